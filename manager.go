package gridauth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/zhoulytwinyu/gridauth/card"
	"github.com/zhoulytwinyu/gridauth/challenge"
	"github.com/zhoulytwinyu/gridauth/internal/rng"
)

// Manager is the engine facade. All card lifecycle, challenge, and
// verification operations go through it. A Manager is safe for
// concurrent use; build one per process and share it.
type Manager struct {
	config Config

	random    rng.Source
	cards     card.Store
	generator *card.Generator
	selector  *challenge.Selector

	challenges *challengeStore
	limiter    *challengeLimiter
	audit      *auditDispatcher
	metrics    *Metrics
}

// Close flushes and stops the audit dispatcher. The Manager must not
// be used afterwards.
func (m *Manager) Close() {
	if m == nil {
		return
	}
	if m.audit != nil {
		m.audit.Close()
	}
}

// AuditDropped reports how many audit events were discarded because
// the buffer was full.
func (m *Manager) AuditDropped() uint64 {
	if m == nil || m.audit == nil {
		return 0
	}
	return m.audit.Dropped()
}

// MetricsSnapshot returns a copy of all counters and histograms.
func (m *Manager) MetricsSnapshot() MetricsSnapshot {
	if m == nil || m.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return m.metrics.Snapshot()
}

func (m *Manager) metricInc(id MetricID) {
	if m == nil || m.metrics == nil {
		return
	}
	m.metrics.Inc(id)
}

func (m *Manager) metricObserve(id MetricID, d time.Duration) {
	if m == nil || m.metrics == nil {
		return
	}
	m.metrics.Observe(id, d)
}

// loadCard fetches a record and applies lazy expiry: a card read past
// its ExpiresAt is transitioned to Expired before being returned, so
// no background scheduler is needed. A losing race on the transition
// just re-reads; some other caller already expired it.
func (m *Manager) loadCard(ctx context.Context, cardID string) (*card.Card, error) {
	for {
		c, err := m.cards.Get(ctx, cardID)
		if err != nil {
			return nil, mapStoreErr(err)
		}

		if !cardExpirable(c, time.Now().Unix()) {
			return c, nil
		}

		expected := c.Version
		c.State = card.StateExpired
		c.Version++
		err = m.cards.PutIfVersion(ctx, cardID, expected, c)
		if err == nil {
			m.metricInc(MetricCardExpired)
			m.emitAudit(ctx, auditEventCardExpired, true, c.ID, c.OwnerID, nil, nil)
			return c, nil
		}
		if errors.Is(err, card.ErrVersionConflict) {
			continue
		}
		return nil, mapStoreErr(err)
	}
}

func cardExpirable(c *card.Card, now int64) bool {
	if c.ExpiresAt == 0 || now < c.ExpiresAt {
		return false
	}
	return c.State == card.StateActive || c.State == card.StateSuspended
}

// updateCard runs a bounded read-mutate-write loop against the card
// store. mutate sees a fresh copy each attempt and may return an error
// to abort. Exhausting the retry limit yields ErrConcurrentModification.
func (m *Manager) updateCard(
	ctx context.Context,
	cardID string,
	mutate func(*card.Card) error,
) (*card.Card, error) {
	for attempt := 0; attempt < m.config.Store.CASRetryLimit; attempt++ {
		c, err := m.loadCard(ctx, cardID)
		if err != nil {
			return nil, err
		}

		if err := mutate(c); err != nil {
			return c, err
		}

		expected := c.Version
		c.Version++
		err = m.cards.PutIfVersion(ctx, cardID, expected, c)
		if err == nil {
			return c, nil
		}
		if errors.Is(err, card.ErrVersionConflict) {
			m.metricInc(MetricStoreConflictRetry)
			continue
		}
		return nil, mapStoreErr(err)
	}

	m.metricInc(MetricConcurrentModification)
	return nil, ErrConcurrentModification
}

func mapStoreErr(err error) error {
	switch {
	case errors.Is(err, card.ErrNotFound):
		return ErrCardNotFound
	case errors.Is(err, card.ErrDuplicateID):
		return ErrDuplicateCard
	case errors.Is(err, card.ErrVersionConflict):
		return ErrConcurrentModification
	default:
		return fmt.Errorf("%w: %v", ErrCardStoreUnavailable, err)
	}
}
