package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/zhoulytwinyu/gridauth/card"
)

const defaultRedisPrefix = "gc"

// Redis is a card.Store backed by Redis. Records are stored as the
// versioned binary encoding from the card package; PutIfVersion runs a
// WATCH-scoped read-check-write so the version comparison and the
// overwrite are atomic.
type Redis struct {
	redis  redis.UniversalClient
	prefix string
}

func NewRedis(client redis.UniversalClient, prefix string) *Redis {
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	return &Redis{redis: client, prefix: prefix}
}

func (s *Redis) key(id string) string {
	return s.prefix + ":card:" + id
}

func (s *Redis) Create(ctx context.Context, c *card.Card) error {
	if c == nil || c.ID == "" {
		return card.ErrInvalidRecord
	}
	encoded, err := card.Encode(c)
	if err != nil {
		return err
	}

	// Cards are durable records: no TTL, expiry is a state transition.
	ok, err := s.redis.SetNX(ctx, s.key(c.ID), encoded, 0).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", card.ErrStoreUnavailable, err)
	}
	if !ok {
		return card.ErrDuplicateID
	}
	return nil
}

func (s *Redis) Get(ctx context.Context, id string) (*card.Card, error) {
	data, err := s.redis.Get(ctx, s.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, card.ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", card.ErrStoreUnavailable, err)
	}
	return card.Decode(data)
}

func (s *Redis) PutIfVersion(ctx context.Context, id string, expectedVersion uint64, c *card.Card) error {
	if c == nil {
		return card.ErrInvalidRecord
	}
	encoded, err := card.Encode(c)
	if err != nil {
		return err
	}

	const maxRetries = 4
	key := s.key(id)

	for i := 0; i < maxRetries; i++ {
		err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, key).Bytes()
			if err != nil {
				return err
			}
			current, err := card.Decode(data)
			if err != nil {
				return err
			}
			if current.Version != expectedVersion {
				return card.ErrVersionConflict
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, encoded, 0)
				return nil
			})
			return err
		}, key)

		if err == redis.TxFailedErr {
			// Key changed under WATCH; re-read and re-check the version.
			continue
		}
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return card.ErrNotFound
			}
			if errors.Is(err, card.ErrVersionConflict) || errors.Is(err, card.ErrInvalidRecord) {
				return err
			}
			return fmt.Errorf("%w: %v", card.ErrStoreUnavailable, err)
		}
		return nil
	}

	// Every retry lost the WATCH race: someone else is writing this
	// card, which is exactly a version conflict to the caller.
	return card.ErrVersionConflict
}
