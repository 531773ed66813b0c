package gridauth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/zhoulytwinyu/gridauth/card"
	"github.com/zhoulytwinyu/gridauth/challenge"
	"github.com/zhoulytwinyu/gridauth/internal/rng"
)

// RequestChallenge issues a new challenge against an Active card: k
// distinct coordinates and a single-use opaque token bound to them.
// k <= 0 means the configured default cell count. The token must come
// back via SubmitResponse within the configured TTL or it silently
// lapses.
//
// Coordinates from the most recent challenges are excluded from
// selection; when the grid is too small to honor the exclusion the
// selector falls back to the full coordinate space rather than fail.
func (m *Manager) RequestChallenge(ctx context.Context, cardID string, k int) (Challenge, error) {
	if m == nil {
		return Challenge{}, ErrManagerNotReady
	}
	if k <= 0 {
		k = m.config.Challenge.Cells
	}

	if err := m.limiter.Enforce(ctx, cardID); err != nil {
		if errors.Is(err, errChallengeLimited) {
			m.metricInc(MetricChallengeRateLimited)
			m.emitAudit(ctx, auditEventChallengeRateLimited, false, cardID, "", ErrChallengeRateLimited, nil)
			return Challenge{}, ErrChallengeRateLimited
		}
		return Challenge{}, fmt.Errorf("%w: %v", ErrChallengeUnavailable, err)
	}

	c, err := m.loadCard(ctx, cardID)
	if err != nil {
		m.emitAudit(ctx, auditEventChallengeIssued, false, cardID, "", err, nil)
		return Challenge{}, err
	}
	defer c.Zero()

	if c.State != card.StateActive {
		m.emitAudit(ctx, auditEventChallengeIssued, false, c.ID, c.OwnerID, ErrCardNotActive, stateMetadata(c))
		return Challenge{}, ErrCardNotActive
	}

	// A history read failure only weakens the exclusion, never blocks
	// issuance.
	exclude, _ := m.challenges.Recent(ctx, c.ID, m.config.Challenge.RecentWindow)

	coords, usedFallback, err := m.selector.Pick(c, k, exclude)
	if err != nil {
		err = mapSelectErr(err)
		m.emitAudit(ctx, auditEventChallengeIssued, false, c.ID, c.OwnerID, err, nil)
		return Challenge{}, err
	}

	if usedFallback {
		m.metricInc(MetricChallengeFallback)
		m.emitAudit(ctx, auditEventChallengeFallback, true, c.ID, c.OwnerID, nil, nil)
	}

	id, err := rng.NewChallengeID(m.random)
	if err != nil {
		err = fmt.Errorf("%w: %v", ErrRandomSourceUnavailable, err)
		m.emitAudit(ctx, auditEventChallengeIssued, false, c.ID, c.OwnerID, err, nil)
		return Challenge{}, err
	}
	secret, err := rng.NewChallengeSecret(m.random)
	if err != nil {
		err = fmt.Errorf("%w: %v", ErrRandomSourceUnavailable, err)
		m.emitAudit(ctx, auditEventChallengeIssued, false, c.ID, c.OwnerID, err, nil)
		return Challenge{}, err
	}

	now := time.Now()
	ttl := m.config.Challenge.TTL
	record := &challengeRecord{
		CardID:      c.ID,
		SecretHash:  rng.HashChallengeSecret(secret),
		Coordinates: coords,
		IssuedAt:    now.Unix(),
		ExpiresAt:   now.Add(ttl).Unix(),
	}

	if err := m.challenges.Save(ctx, id, record, ttl); err != nil {
		err = fmt.Errorf("%w: %v", ErrChallengeUnavailable, err)
		m.emitAudit(ctx, auditEventChallengeIssued, false, c.ID, c.OwnerID, err, nil)
		return Challenge{}, err
	}

	// Best effort; the exclusion window degrades, issuance does not.
	_ = m.challenges.PushRecent(ctx, c.ID, coords, m.config.Challenge.RecentWindow)

	m.metricInc(MetricChallengeIssued)
	m.emitAudit(ctx, auditEventChallengeIssued, true, c.ID, c.OwnerID, nil, func() map[string]string {
		return map[string]string{
			"cells": strconv.Itoa(len(coords)),
		}
	})

	return Challenge{
		CardID:      c.ID,
		Token:       rng.EncodeChallengeToken(id, secret),
		Coordinates: coords,
		IssuedAt:    now.UTC(),
		ExpiresAt:   now.Add(ttl).UTC(),
	}, nil
}

func mapSelectErr(err error) error {
	switch {
	case errors.Is(err, challenge.ErrNotActive):
		return ErrCardNotActive
	case errors.Is(err, challenge.ErrLength):
		return ErrInvalidChallengeLength
	case errors.Is(err, rng.ErrUnavailable):
		return fmt.Errorf("%w: %v", ErrRandomSourceUnavailable, err)
	default:
		return err
	}
}
