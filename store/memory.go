package store

import (
	"context"
	"sync"

	"github.com/zhoulytwinyu/gridauth/card"
)

// Memory is the reference in-memory card.Store. It is safe for
// concurrent use and intended for tests and single-process setups.
type Memory struct {
	mu    sync.RWMutex
	cards map[string]*card.Card
}

func NewMemory() *Memory {
	return &Memory{cards: make(map[string]*card.Card)}
}

func (s *Memory) Create(_ context.Context, c *card.Card) error {
	if c == nil || c.ID == "" {
		return card.ErrInvalidRecord
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.cards[c.ID]; exists {
		return card.ErrDuplicateID
	}
	s.cards[c.ID] = c.Clone()
	return nil
}

func (s *Memory) Get(_ context.Context, id string) (*card.Card, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.cards[id]
	if !ok {
		return nil, card.ErrNotFound
	}
	return c.Clone(), nil
}

func (s *Memory) PutIfVersion(_ context.Context, id string, expectedVersion uint64, c *card.Card) error {
	if c == nil {
		return card.ErrInvalidRecord
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.cards[id]
	if !ok {
		return card.ErrNotFound
	}
	if current.Version != expectedVersion {
		return card.ErrVersionConflict
	}
	s.cards[id] = c.Clone()
	return nil
}

// Len reports the number of stored cards.
func (s *Memory) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.cards)
}
