package gridauth

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestSubmitResponseSuccess(t *testing.T) {
	cfg := testConfig()
	cfg.Metrics.Enabled = true
	m, _ := newTestManager(t, cfg)
	ctx := context.Background()

	info, grid := issueActiveCard(t, m, "alice")
	ch := mustChallenge(t, m, info.CardID)

	result, err := m.SubmitResponse(ctx, ch.Token, answersFor(ch, grid))
	if err != nil {
		t.Fatalf("SubmitResponse failed: %v", err)
	}
	if result.Verdict != VerdictSuccess {
		t.Fatalf("verdict = %v, want success", result.Verdict)
	}
	if result.FailedAttempts != 0 {
		t.Fatalf("failed attempts = %d, want 0", result.FailedAttempts)
	}

	updated, err := m.CardInfo(ctx, info.CardID)
	if err != nil {
		t.Fatalf("CardInfo failed: %v", err)
	}
	if updated.LastSuccessAt.IsZero() {
		t.Fatal("LastSuccessAt not recorded")
	}
	if got := m.metrics.Value(MetricVerifySuccess); got != 1 {
		t.Fatalf("success metric = %d, want 1", got)
	}
}

func TestSubmitResponseFailureIncrementsCounter(t *testing.T) {
	m, _ := newTestManager(t, testConfig())
	ctx := context.Background()

	info, grid := issueActiveCard(t, m, "alice")

	ch := mustChallenge(t, m, info.CardID)
	wrong := answersFor(ch, grid)
	wrong[0] = mangleCode(wrong[0])

	result, err := m.SubmitResponse(ctx, ch.Token, wrong)
	if err != nil {
		t.Fatalf("SubmitResponse failed: %v", err)
	}
	if result.Verdict != VerdictFailure {
		t.Fatalf("verdict = %v, want failure", result.Verdict)
	}
	if result.FailedAttempts != 1 {
		t.Fatalf("failed attempts = %d, want 1", result.FailedAttempts)
	}

	// a later success clears the counter
	ch = mustChallenge(t, m, info.CardID)
	result, err = m.SubmitResponse(ctx, ch.Token, answersFor(ch, grid))
	if err != nil {
		t.Fatalf("SubmitResponse failed: %v", err)
	}
	if result.Verdict != VerdictSuccess || result.FailedAttempts != 0 {
		t.Fatalf("result = %+v, want clean success", result)
	}
}

func TestSubmitResponseTokenSingleUse(t *testing.T) {
	m, _ := newTestManager(t, testConfig())
	ctx := context.Background()

	info, grid := issueActiveCard(t, m, "alice")
	ch := mustChallenge(t, m, info.CardID)
	answers := answersFor(ch, grid)

	first, err := m.SubmitResponse(ctx, ch.Token, answers)
	if err != nil {
		t.Fatalf("first submit failed: %v", err)
	}
	if first.Verdict != VerdictSuccess {
		t.Fatalf("first verdict = %v, want success", first.Verdict)
	}

	second, err := m.SubmitResponse(ctx, ch.Token, answers)
	if err != nil {
		t.Fatalf("second submit failed: %v", err)
	}
	if second.Verdict != VerdictExpired {
		t.Fatalf("second verdict = %v, want expired", second.Verdict)
	}
}

func TestSubmitResponseExpiredToken(t *testing.T) {
	m, mr := newTestManager(t, testConfig())
	ctx := context.Background()

	info, grid := issueActiveCard(t, m, "alice")
	ch := mustChallenge(t, m, info.CardID)

	mr.FastForward(31 * time.Second)

	result, err := m.SubmitResponse(ctx, ch.Token, answersFor(ch, grid))
	if err != nil {
		t.Fatalf("SubmitResponse failed: %v", err)
	}
	if result.Verdict != VerdictExpired {
		t.Fatalf("verdict = %v, want expired", result.Verdict)
	}

	// no attempt consumed
	after, err := m.CardInfo(ctx, info.CardID)
	if err != nil {
		t.Fatalf("CardInfo failed: %v", err)
	}
	if after.FailedAttempts != 0 {
		t.Fatalf("failed attempts = %d, want 0", after.FailedAttempts)
	}
}

func TestSubmitResponseGarbageToken(t *testing.T) {
	m, _ := newTestManager(t, testConfig())

	result, err := m.SubmitResponse(context.Background(), "not-a-token", []string{"11"})
	if err != nil {
		t.Fatalf("SubmitResponse failed: %v", err)
	}
	if result.Verdict != VerdictExpired {
		t.Fatalf("verdict = %v, want expired", result.Verdict)
	}
}

func TestSubmitResponseMalformed(t *testing.T) {
	m, _ := newTestManager(t, testConfig())
	ctx := context.Background()

	info, grid := issueActiveCard(t, m, "alice")
	ch := mustChallenge(t, m, info.CardID)

	short := answersFor(ch, grid)[:1]
	_, err := m.SubmitResponse(ctx, ch.Token, short)
	if !errors.Is(err, ErrMalformedResponse) {
		t.Fatalf("err = %v, want ErrMalformedResponse", err)
	}

	// the malformed attempt still consumed the token and an attempt
	after, err := m.CardInfo(ctx, info.CardID)
	if err != nil {
		t.Fatalf("CardInfo failed: %v", err)
	}
	if after.FailedAttempts != 1 {
		t.Fatalf("failed attempts = %d, want 1", after.FailedAttempts)
	}

	result, err := m.SubmitResponse(ctx, ch.Token, answersFor(ch, grid))
	if err != nil {
		t.Fatalf("SubmitResponse failed: %v", err)
	}
	if result.Verdict != VerdictExpired {
		t.Fatalf("reused token verdict = %v, want expired", result.Verdict)
	}
}

func TestLockoutAfterThreshold(t *testing.T) {
	cfg := testConfig()
	cfg.Metrics.Enabled = true
	m, _ := newTestManager(t, cfg)
	ctx := context.Background()

	info, grid := issueActiveCard(t, m, "alice")

	for i := 0; i < 3; i++ {
		ch := mustChallenge(t, m, info.CardID)
		wrong := answersFor(ch, grid)
		wrong[0] = mangleCode(wrong[0])
		result, err := m.SubmitResponse(ctx, ch.Token, wrong)
		if err != nil {
			t.Fatalf("attempt %d failed: %v", i, err)
		}
		if result.Verdict != VerdictFailure {
			t.Fatalf("attempt %d verdict = %v, want failure", i, result.Verdict)
		}
	}

	after, err := m.CardInfo(ctx, info.CardID)
	if err != nil {
		t.Fatalf("CardInfo failed: %v", err)
	}
	if after.LockedUntil.IsZero() {
		t.Fatal("lockout not armed at threshold")
	}
	if got := m.metrics.Value(MetricLockoutTriggered); got != 1 {
		t.Fatalf("lockout metric = %d, want 1", got)
	}

	// correct codes are refused while locked, without comparison
	ch := mustChallenge(t, m, info.CardID)
	result, err := m.SubmitResponse(ctx, ch.Token, answersFor(ch, grid))
	if err != nil {
		t.Fatalf("SubmitResponse failed: %v", err)
	}
	if result.Verdict != VerdictLocked {
		t.Fatalf("verdict = %v, want locked", result.Verdict)
	}

	// operator reset restores service
	if _, err := m.ClearLockout(ctx, info.CardID); err != nil {
		t.Fatalf("ClearLockout failed: %v", err)
	}
	ch = mustChallenge(t, m, info.CardID)
	result, err = m.SubmitResponse(ctx, ch.Token, answersFor(ch, grid))
	if err != nil {
		t.Fatalf("SubmitResponse failed: %v", err)
	}
	if result.Verdict != VerdictSuccess {
		t.Fatalf("verdict after reset = %v, want success", result.Verdict)
	}
}

func TestLockoutCooldownElapses(t *testing.T) {
	m, _ := newTestManager(t, testConfig())
	ctx := context.Background()

	info, grid := issueActiveCard(t, m, "alice")

	// arm a lockout that has already lapsed
	c, err := m.cards.Get(ctx, info.CardID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	expected := c.Version
	c.FailedAttempts = 3
	c.LockedUntil = time.Now().Add(-time.Second).Unix()
	c.Version++
	if err := m.cards.PutIfVersion(ctx, info.CardID, expected, c); err != nil {
		t.Fatalf("PutIfVersion failed: %v", err)
	}

	ch := mustChallenge(t, m, info.CardID)
	result, err := m.SubmitResponse(ctx, ch.Token, answersFor(ch, grid))
	if err != nil {
		t.Fatalf("SubmitResponse failed: %v", err)
	}
	if result.Verdict != VerdictSuccess {
		t.Fatalf("verdict = %v, want success after cool-down", result.Verdict)
	}
	if result.FailedAttempts != 0 {
		t.Fatalf("failed attempts = %d, want 0", result.FailedAttempts)
	}
}

func TestSubmitResponseRevokedCard(t *testing.T) {
	m, _ := newTestManager(t, testConfig())
	ctx := context.Background()

	info, grid := issueActiveCard(t, m, "alice")
	ch := mustChallenge(t, m, info.CardID)

	if _, err := m.RevokeCard(ctx, info.CardID, "compromised"); err != nil {
		t.Fatalf("RevokeCard failed: %v", err)
	}

	_, err := m.SubmitResponse(ctx, ch.Token, answersFor(ch, grid))
	if !errors.Is(err, ErrCardNotActive) {
		t.Fatalf("err = %v, want ErrCardNotActive", err)
	}
}

// A single challenge raced by many submitters yields at most one
// success; everyone else sees the consumed token as expired.
func TestSubmitResponseConcurrentSingleUse(t *testing.T) {
	m, _ := newTestManager(t, testConfig())
	ctx := context.Background()

	info, grid := issueActiveCard(t, m, "alice")
	ch := mustChallenge(t, m, info.CardID)
	answers := answersFor(ch, grid)

	const workers = 16

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		expired   int
	)
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			result, err := m.SubmitResponse(ctx, ch.Token, answers)
			if err != nil {
				t.Errorf("SubmitResponse failed: %v", err)
				return
			}
			mu.Lock()
			defer mu.Unlock()
			switch result.Verdict {
			case VerdictSuccess:
				successes++
			case VerdictExpired:
				expired++
			default:
				t.Errorf("unexpected verdict %v", result.Verdict)
			}
		}()
	}
	wg.Wait()

	if successes != 1 {
		t.Fatalf("successes = %d, want exactly 1", successes)
	}
	if expired != workers-1 {
		t.Fatalf("expired = %d, want %d", expired, workers-1)
	}
}

// End-to-end walk of a small deployment profile: 4x4 digit grid,
// three cells per challenge.
func TestSmallGridScenario(t *testing.T) {
	cfg := testConfig()
	cfg.Card.Rows = 4
	cfg.Card.Columns = 4
	cfg.Card.MinEntropyBits = 64
	m, _ := newTestManager(t, cfg)
	ctx := context.Background()

	info, grid := issueActiveCard(t, m, "carol")
	if info.Rows != 4 || info.Columns != 4 {
		t.Fatalf("grid = %dx%d, want 4x4", info.Rows, info.Columns)
	}

	ch, err := m.RequestChallenge(ctx, info.CardID, 3)
	if err != nil {
		t.Fatalf("RequestChallenge failed: %v", err)
	}
	if len(ch.Coordinates) != 3 {
		t.Fatalf("cells = %d, want 3", len(ch.Coordinates))
	}

	result, err := m.SubmitResponse(ctx, ch.Token, answersFor(ch, grid))
	if err != nil {
		t.Fatalf("SubmitResponse failed: %v", err)
	}
	if result.Verdict != VerdictSuccess {
		t.Fatalf("verdict = %v, want success", result.Verdict)
	}
}

// mangleCode flips the first digit so the code stays well formed but
// wrong.
func mangleCode(code string) string {
	b := []byte(code)
	if b[0] == '9' {
		b[0] = '0'
	} else {
		b[0]++
	}
	return string(b)
}
