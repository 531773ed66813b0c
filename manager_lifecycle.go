package gridauth

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/zhoulytwinyu/gridauth/card"
	"github.com/zhoulytwinyu/gridauth/internal/rng"
)

// IssueCard generates a fresh card for the owner and persists it in
// the Issued state. The returned metadata never includes code values;
// use ExportCodes before activation to deliver the grid.
func (m *Manager) IssueCard(ctx context.Context, req IssueRequest) (CardInfo, error) {
	if m == nil {
		return CardInfo{}, ErrManagerNotReady
	}

	spec := m.cardSpec(req)

	c, err := m.generator.Generate(spec)
	if err != nil {
		err = mapGenerateErr(err)
		m.emitAudit(ctx, auditEventCardIssued, false, "", req.OwnerID, err, nil)
		return CardInfo{}, err
	}
	defer c.Zero()

	if err := m.cards.Create(ctx, c); err != nil {
		err = mapStoreErr(err)
		m.emitAudit(ctx, auditEventCardIssued, false, c.ID, c.OwnerID, err, nil)
		return CardInfo{}, err
	}

	m.metricInc(MetricCardIssued)
	m.emitAudit(ctx, auditEventCardIssued, true, c.ID, c.OwnerID, nil, func() map[string]string {
		return map[string]string{
			"rows":    strconv.Itoa(c.Rows),
			"columns": strconv.Itoa(c.Columns),
		}
	})

	return newCardInfo(c), nil
}

func (m *Manager) cardSpec(req IssueRequest) card.Spec {
	cfg := m.config.Card

	spec := card.Spec{
		OwnerID:        req.OwnerID,
		Rows:           req.Rows,
		Columns:        req.Columns,
		CodeLength:     req.CodeLength,
		Alphabet:       req.Alphabet,
		MinCells:       cfg.MinCells,
		MinEntropyBits: cfg.MinEntropyBits,
	}
	if spec.Rows == 0 {
		spec.Rows = cfg.Rows
	}
	if spec.Columns == 0 {
		spec.Columns = cfg.Columns
	}
	if spec.CodeLength == 0 {
		spec.CodeLength = cfg.CodeLength
	}
	if spec.Alphabet == "" {
		spec.Alphabet = cfg.Alphabet
	}
	return spec
}

func mapGenerateErr(err error) error {
	switch {
	case errors.Is(err, card.ErrInvalidDimensions):
		return ErrInvalidDimensions
	case errors.Is(err, card.ErrInvalidAlphabet):
		return ErrInvalidAlphabet
	case errors.Is(err, card.ErrInsufficientEntropy):
		return ErrInsufficientEntropy
	case errors.Is(err, rng.ErrUnavailable):
		return ErrRandomSourceUnavailable
	default:
		return err
	}
}

// ExportCodes returns the full grid, row by row, for delivery to the
// owner. Export is only permitted while the card is still Issued; once
// activated the codes never leave the engine again.
func (m *Manager) ExportCodes(ctx context.Context, cardID string) ([][]string, error) {
	if m == nil {
		return nil, ErrManagerNotReady
	}

	c, err := m.loadCard(ctx, cardID)
	if err != nil {
		m.emitAudit(ctx, auditEventCodesExported, false, cardID, "", err, nil)
		return nil, err
	}
	defer c.Zero()

	if c.State != card.StateIssued {
		m.emitAudit(ctx, auditEventCodesExported, false, c.ID, c.OwnerID, ErrInvalidTransition, stateMetadata(c))
		return nil, ErrInvalidTransition
	}

	grid := make([][]string, c.Rows)
	for row := 0; row < c.Rows; row++ {
		grid[row] = make([]string, c.Columns)
		for col := 0; col < c.Columns; col++ {
			grid[row][col] = string(c.CodeAt(row, col))
		}
	}

	m.metricInc(MetricCodesExported)
	m.emitAudit(ctx, auditEventCodesExported, true, c.ID, c.OwnerID, nil, nil)

	return grid, nil
}

// ActivateCard moves an Issued card to Active and starts its lifetime
// clock. Reactivating a suspended card goes through ResumeCard.
func (m *Manager) ActivateCard(ctx context.Context, cardID string) (CardInfo, error) {
	if m == nil {
		return CardInfo{}, ErrManagerNotReady
	}

	lifetime := m.config.Card.Lifetime
	info, err := m.transition(ctx, auditEventCardActivated, MetricCardActivated, cardID, func(c *card.Card) error {
		if c.State != card.StateIssued {
			return ErrInvalidTransition
		}
		now := time.Now().Unix()
		c.State = card.StateActive
		c.ActivatedAt = now
		if lifetime > 0 {
			c.ExpiresAt = now + int64(lifetime/time.Second)
		}
		return nil
	})
	return info, err
}

// SuspendCard places an Active card on reversible hold. The reason is
// recorded in the audit trail only.
func (m *Manager) SuspendCard(ctx context.Context, cardID, reason string) (CardInfo, error) {
	if m == nil {
		return CardInfo{}, ErrManagerNotReady
	}

	info, err := m.transitionMeta(ctx, auditEventCardSuspended, MetricCardSuspended, cardID, func(c *card.Card) error {
		if !card.CanTransition(c.State, card.StateSuspended) {
			return ErrInvalidTransition
		}
		c.State = card.StateSuspended
		return nil
	}, func() map[string]string {
		if reason == "" {
			return nil
		}
		return map[string]string{"reason": reason}
	})
	return info, err
}

// ResumeCard lifts a suspension. The failure counter and any armed
// lockout are reset so the owner starts clean.
func (m *Manager) ResumeCard(ctx context.Context, cardID string) (CardInfo, error) {
	if m == nil {
		return CardInfo{}, ErrManagerNotReady
	}

	info, err := m.transition(ctx, auditEventCardResumed, MetricCardResumed, cardID, func(c *card.Card) error {
		if c.State != card.StateSuspended {
			return ErrInvalidTransition
		}
		c.State = card.StateActive
		c.FailedAttempts = 0
		c.LockedUntil = 0
		return nil
	})
	return info, err
}

// RevokeCard terminally retires a card from any non-revoked state. The
// stored code bytes are wiped; the record itself is retained for
// audit.
func (m *Manager) RevokeCard(ctx context.Context, cardID, reason string) (CardInfo, error) {
	if m == nil {
		return CardInfo{}, ErrManagerNotReady
	}

	info, err := m.transitionMeta(ctx, auditEventCardRevoked, MetricCardRevoked, cardID, func(c *card.Card) error {
		if !card.CanTransition(c.State, card.StateRevoked) {
			return ErrInvalidTransition
		}
		c.State = card.StateRevoked
		c.Zero()
		return nil
	}, func() map[string]string {
		if reason == "" {
			return nil
		}
		return map[string]string{"reason": reason}
	})
	return info, err
}

// ClearLockout resets the failure counter and disarms any active
// lockout without touching the card state. Intended for operator use
// after verifying the owner.
func (m *Manager) ClearLockout(ctx context.Context, cardID string) (CardInfo, error) {
	if m == nil {
		return CardInfo{}, ErrManagerNotReady
	}

	info, err := m.transition(ctx, auditEventLockoutCleared, MetricLockoutCleared, cardID, func(c *card.Card) error {
		if c.State.Terminal() {
			return ErrInvalidTransition
		}
		c.FailedAttempts = 0
		c.LockedUntil = 0
		return nil
	})
	return info, err
}

// CardInfo returns the metadata view of a card. Reading applies lazy
// expiry, so a stale Active card comes back Expired.
func (m *Manager) CardInfo(ctx context.Context, cardID string) (CardInfo, error) {
	if m == nil {
		return CardInfo{}, ErrManagerNotReady
	}

	c, err := m.loadCard(ctx, cardID)
	if err != nil {
		return CardInfo{}, err
	}
	defer c.Zero()

	return newCardInfo(c), nil
}

func (m *Manager) transition(
	ctx context.Context,
	eventType string,
	metric MetricID,
	cardID string,
	mutate func(*card.Card) error,
) (CardInfo, error) {
	return m.transitionMeta(ctx, eventType, metric, cardID, mutate, nil)
}

func (m *Manager) transitionMeta(
	ctx context.Context,
	eventType string,
	metric MetricID,
	cardID string,
	mutate func(*card.Card) error,
	metadataBuilder func() map[string]string,
) (CardInfo, error) {
	c, err := m.updateCard(ctx, cardID, mutate)
	if c != nil {
		defer c.Zero()
	}
	if err != nil {
		ownerID := ""
		if c != nil {
			ownerID = c.OwnerID
		}
		m.emitAudit(ctx, eventType, false, cardID, ownerID, err, metadataBuilder)
		return CardInfo{}, err
	}

	m.metricInc(metric)
	m.emitAudit(ctx, eventType, true, c.ID, c.OwnerID, nil, metadataBuilder)

	return newCardInfo(c), nil
}

func stateMetadata(c *card.Card) func() map[string]string {
	state := c.State.String()
	return func() map[string]string {
		return map[string]string{"state": state}
	}
}
