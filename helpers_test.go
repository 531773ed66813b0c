package gridauth

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return mr, rdb
}

// seededSource is a deterministic rng.Source for tests. Never use
// outside tests.
type seededSource struct {
	r *rand.Rand
}

func newSeededSource(seed int64) *seededSource {
	return &seededSource{r: rand.New(rand.NewSource(seed))}
}

func (s *seededSource) Read(p []byte) error {
	for i := range p {
		p[i] = byte(s.r.Intn(256))
	}
	return nil
}

func (s *seededSource) Intn(n int) (int, error) {
	return s.r.Intn(n), nil
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Card.Lifetime = time.Hour
	cfg.Challenge.TTL = 30 * time.Second
	cfg.Challenge.MaxPerWindow = 0
	cfg.Lockout.Threshold = 3
	cfg.Lockout.Cooldown = time.Minute
	return cfg
}

func newTestManager(t *testing.T, cfg Config) (*Manager, *miniredis.Miniredis) {
	t.Helper()

	mr, rdb := newTestRedis(t)
	manager, err := New().
		WithConfig(cfg).
		WithRedis(rdb).
		Build()
	if err != nil {
		mr.Close()
		t.Fatalf("Build failed: %v", err)
	}

	t.Cleanup(func() {
		manager.Close()
		mr.Close()
	})
	return manager, mr
}

// issueActiveCard issues a card, captures its grid while exportable,
// and activates it.
func issueActiveCard(t *testing.T, m *Manager, ownerID string) (CardInfo, [][]string) {
	t.Helper()

	ctx := context.Background()
	info, err := m.IssueCard(ctx, IssueRequest{OwnerID: ownerID})
	if err != nil {
		t.Fatalf("IssueCard failed: %v", err)
	}

	grid, err := m.ExportCodes(ctx, info.CardID)
	if err != nil {
		t.Fatalf("ExportCodes failed: %v", err)
	}

	info, err = m.ActivateCard(ctx, info.CardID)
	if err != nil {
		t.Fatalf("ActivateCard failed: %v", err)
	}
	return info, grid
}

func answersFor(ch Challenge, grid [][]string) []string {
	answers := make([]string, len(ch.Coordinates))
	for i, c := range ch.Coordinates {
		answers[i] = grid[c.Row][c.Col]
	}
	return answers
}

func mustChallenge(t *testing.T, m *Manager, cardID string) Challenge {
	t.Helper()

	ch, err := m.RequestChallenge(context.Background(), cardID, 0)
	if err != nil {
		t.Fatalf("RequestChallenge failed: %v", err)
	}
	return ch
}
