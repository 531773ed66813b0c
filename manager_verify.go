package gridauth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/zhoulytwinyu/gridauth/card"
	"github.com/zhoulytwinyu/gridauth/challenge"
	"github.com/zhoulytwinyu/gridauth/internal/rng"
)

var errVerifyLockedRace = errors.New("card locked during verification")

// SubmitResponse consumes a challenge token and verifies the claimed
// codes against the card.
//
// The token is consumed before anything else, so a challenge yields at
// most one verification no matter how many submissions race on it;
// losers see the Expired verdict. An armed lockout refuses the attempt
// before any code comparison. Comparison itself covers every
// challenged cell in constant time, so response timing reveals nothing
// about which cells matched.
//
// Expected outcomes arrive as verdicts in the result; the error return
// is reserved for malformed input and infrastructure faults.
func (m *Manager) SubmitResponse(ctx context.Context, token string, responses []string) (VerificationResult, error) {
	if m == nil {
		return VerificationResult{}, ErrManagerNotReady
	}

	start := time.Now()
	defer func() {
		m.metricObserve(MetricVerifyLatency, time.Since(start))
	}()

	id, secret, err := rng.DecodeChallengeToken(token)
	if err != nil {
		// Undecodable tokens are indistinguishable from lapsed ones.
		m.metricInc(MetricVerifyExpired)
		m.emitAudit(ctx, auditEventVerifyExpired, false, "", "", nil, nil)
		return VerificationResult{Verdict: VerdictExpired}, nil
	}

	record, err := m.challenges.Consume(ctx, id)
	if err != nil {
		if errors.Is(err, errChallengeNotFound) {
			m.metricInc(MetricVerifyExpired)
			m.emitAudit(ctx, auditEventVerifyExpired, false, "", "", nil, nil)
			return VerificationResult{Verdict: VerdictExpired}, nil
		}
		return VerificationResult{}, fmt.Errorf("%w: %v", ErrChallengeUnavailable, err)
	}

	hash := rng.HashChallengeSecret(secret)
	if subtle.ConstantTimeCompare(hash[:], record.SecretHash[:]) != 1 {
		m.metricInc(MetricVerifyExpired)
		m.emitAudit(ctx, auditEventVerifyExpired, false, record.CardID, "", nil, nil)
		return VerificationResult{Verdict: VerdictExpired}, nil
	}

	c, err := m.loadCard(ctx, record.CardID)
	if err != nil {
		if errors.Is(err, ErrCardNotFound) {
			m.metricInc(MetricVerifyExpired)
			m.emitAudit(ctx, auditEventVerifyExpired, false, record.CardID, "", ErrCardNotFound, nil)
			return VerificationResult{Verdict: VerdictNotFound, CardID: record.CardID}, nil
		}
		return VerificationResult{}, err
	}
	defer c.Zero()

	switch c.State {
	case card.StateActive:
	case card.StateExpired:
		m.metricInc(MetricVerifyExpired)
		m.emitAudit(ctx, auditEventVerifyExpired, false, c.ID, c.OwnerID, nil, stateMetadata(c))
		return VerificationResult{Verdict: VerdictExpired, CardID: c.ID, State: c.State}, nil
	default:
		m.emitAudit(ctx, auditEventVerifyFailure, false, c.ID, c.OwnerID, ErrCardNotActive, stateMetadata(c))
		return VerificationResult{}, ErrCardNotActive
	}

	now := time.Now().Unix()
	if c.LockedUntil > 0 && now < c.LockedUntil {
		m.metricInc(MetricVerifyLocked)
		m.emitAudit(ctx, auditEventVerifyLocked, false, c.ID, c.OwnerID, nil, nil)
		return VerificationResult{
			Verdict:        VerdictLocked,
			CardID:         c.ID,
			FailedAttempts: int(c.FailedAttempts),
			State:          c.State,
		}, nil
	}

	if badResponseShape(record.Coordinates, responses) {
		updated, uerr := m.recordAttempt(ctx, c.ID, false)
		if uerr != nil {
			if updated != nil {
				updated.Zero()
			}
			if errors.Is(uerr, errVerifyLockedRace) {
				m.metricInc(MetricVerifyLocked)
				m.emitAudit(ctx, auditEventVerifyLocked, false, c.ID, c.OwnerID, nil, nil)
				return VerificationResult{Verdict: VerdictLocked, CardID: c.ID, State: c.State}, nil
			}
			return VerificationResult{}, uerr
		}
		m.metricInc(MetricVerifyMalformed)
		m.emitAudit(ctx, auditEventVerifyMalformed, false, c.ID, c.OwnerID, ErrMalformedResponse, func() map[string]string {
			return map[string]string{
				"expected": strconv.Itoa(len(record.Coordinates)),
				"got":      strconv.Itoa(len(responses)),
			}
		})
		res := VerificationResult{
			Verdict:        VerdictFailure,
			CardID:         c.ID,
			FailedAttempts: int(updated.FailedAttempts),
			State:          updated.State,
		}
		updated.Zero()
		return res, ErrMalformedResponse
	}

	matched := challenge.CompareCodes(c, record.Coordinates, responses)

	updated, err := m.recordAttempt(ctx, c.ID, matched)
	if err != nil {
		if updated != nil {
			updated.Zero()
		}
		if errors.Is(err, errVerifyLockedRace) {
			m.metricInc(MetricVerifyLocked)
			m.emitAudit(ctx, auditEventVerifyLocked, false, c.ID, c.OwnerID, nil, nil)
			return VerificationResult{Verdict: VerdictLocked, CardID: c.ID, State: c.State}, nil
		}
		return VerificationResult{}, err
	}
	defer updated.Zero()

	res := VerificationResult{
		CardID:         c.ID,
		FailedAttempts: int(updated.FailedAttempts),
		State:          updated.State,
	}

	if matched {
		res.Verdict = VerdictSuccess
		m.metricInc(MetricVerifySuccess)
		m.emitAudit(ctx, auditEventVerifySuccess, true, c.ID, c.OwnerID, nil, nil)
		return res, nil
	}

	res.Verdict = VerdictFailure
	m.metricInc(MetricVerifyFailure)
	m.emitAudit(ctx, auditEventVerifyFailure, false, c.ID, c.OwnerID, nil, func() map[string]string {
		return map[string]string{
			"failed_attempts": strconv.Itoa(res.FailedAttempts),
		}
	})

	if updated.LockedUntil > 0 && updated.FailedAttempts >= uint32(m.config.Lockout.Threshold) {
		m.metricInc(MetricLockoutTriggered)
		m.emitAudit(ctx, auditEventCardLockedOut, false, c.ID, c.OwnerID, nil, func() map[string]string {
			return map[string]string{
				"locked_until": strconv.FormatInt(updated.LockedUntil, 10),
			}
		})
	}

	return res, nil
}

func badResponseShape(coords []Coordinate, responses []string) bool {
	if len(responses) != len(coords) {
		return true
	}
	for _, r := range responses {
		if r == "" {
			return true
		}
	}
	return false
}

// recordAttempt applies one verification outcome to the card record
// under optimistic concurrency. A success clears the failure state; a
// failure bumps the counter and arms the lockout at the threshold. A
// lock armed by a concurrent attempt aborts with errVerifyLockedRace
// before this outcome is recorded.
func (m *Manager) recordAttempt(ctx context.Context, cardID string, success bool) (*card.Card, error) {
	threshold := uint32(m.config.Lockout.Threshold)
	cooldown := int64(m.config.Lockout.Cooldown / time.Second)

	return m.updateCard(ctx, cardID, func(c *card.Card) error {
		if c.State != card.StateActive {
			return ErrCardNotActive
		}

		now := time.Now().Unix()
		if c.LockedUntil > 0 {
			if now < c.LockedUntil {
				return errVerifyLockedRace
			}
			// cool-down elapsed; the window starts fresh
			c.FailedAttempts = 0
			c.LockedUntil = 0
		}

		if success {
			c.FailedAttempts = 0
			c.LockedUntil = 0
			c.LastSuccessAt = now
			return nil
		}

		c.FailedAttempts++
		if c.FailedAttempts >= threshold {
			c.LockedUntil = now + cooldown
		}
		return nil
	})
}
