package store

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/zhoulytwinyu/gridauth/card"
)

func newRedisStoreTest(t *testing.T) (*Redis, *miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		rdb.Close()
		mr.Close()
	})
	return NewRedis(rdb, "gc"), mr, rdb
}

func TestRedisCreateGetRoundTrip(t *testing.T) {
	s, _, _ := newRedisStoreTest(t)
	ctx := context.Background()
	c := testCard("c-1")
	c.ActivatedAt = c.CreatedAt + 10
	c.ExpiresAt = c.CreatedAt + 100
	c.FailedAttempts = 2
	c.LockedUntil = c.CreatedAt + 50
	c.LastSuccessAt = c.CreatedAt + 5

	if err := s.Create(ctx, c); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := s.Get(ctx, "c-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ID != c.ID || got.OwnerID != c.OwnerID || got.State != c.State {
		t.Fatalf("identity fields lost: %+v", got)
	}
	if got.Rows != c.Rows || got.Columns != c.Columns || got.CodeLength != c.CodeLength || got.Alphabet != c.Alphabet {
		t.Fatalf("layout fields lost: %+v", got)
	}
	if got.FailedAttempts != c.FailedAttempts || got.LockedUntil != c.LockedUntil {
		t.Fatalf("lockout fields lost: %+v", got)
	}
	if got.CreatedAt != c.CreatedAt || got.ActivatedAt != c.ActivatedAt || got.ExpiresAt != c.ExpiresAt || got.LastSuccessAt != c.LastSuccessAt {
		t.Fatalf("timestamps lost: %+v", got)
	}
	if got.Version != c.Version {
		t.Fatalf("version lost: got %d want %d", got.Version, c.Version)
	}
	if !bytes.Equal(got.Codes, c.Codes) {
		t.Fatal("codes changed through redis round trip")
	}
}

func TestRedisCreateDuplicate(t *testing.T) {
	s, _, _ := newRedisStoreTest(t)
	ctx := context.Background()

	if err := s.Create(ctx, testCard("c-1")); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.Create(ctx, testCard("c-1")); !errors.Is(err, card.ErrDuplicateID) {
		t.Fatalf("expected ErrDuplicateID, got %v", err)
	}
}

func TestRedisGetNotFound(t *testing.T) {
	s, _, _ := newRedisStoreTest(t)
	if _, err := s.Get(context.Background(), "missing"); !errors.Is(err, card.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRedisGetRejectsCorruptRecord(t *testing.T) {
	s, mr, _ := newRedisStoreTest(t)
	mr.Set("gc:card:bad", "not a card record")

	if _, err := s.Get(context.Background(), "bad"); !errors.Is(err, card.ErrInvalidRecord) {
		t.Fatalf("expected ErrInvalidRecord, got %v", err)
	}
}

func TestRedisPutIfVersion(t *testing.T) {
	s, _, _ := newRedisStoreTest(t)
	ctx := context.Background()
	c := testCard("c-1")
	if err := s.Create(ctx, c); err != nil {
		t.Fatalf("create: %v", err)
	}

	next := c.Clone()
	next.State = card.StateActive
	next.Version = 2
	if err := s.PutIfVersion(ctx, "c-1", 1, next); err != nil {
		t.Fatalf("put: %v", err)
	}

	got, err := s.Get(ctx, "c-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.State != card.StateActive || got.Version != 2 {
		t.Fatalf("expected active v2, got state=%v version=%d", got.State, got.Version)
	}

	stale := c.Clone()
	stale.State = card.StateSuspended
	stale.Version = 2
	if err := s.PutIfVersion(ctx, "c-1", 1, stale); !errors.Is(err, card.ErrVersionConflict) {
		t.Fatalf("expected ErrVersionConflict, got %v", err)
	}
}

func TestRedisPutIfVersionNotFound(t *testing.T) {
	s, _, _ := newRedisStoreTest(t)
	err := s.PutIfVersion(context.Background(), "missing", 1, testCard("missing"))
	if !errors.Is(err, card.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRedisKeyPrefix(t *testing.T) {
	_, mr, rdb := newRedisStoreTest(t)
	s := NewRedis(rdb, "other")
	ctx := context.Background()

	if err := s.Create(ctx, testCard("c-1")); err != nil {
		t.Fatalf("create: %v", err)
	}
	if !mr.Exists("other:card:c-1") {
		t.Fatal("expected record under the configured prefix")
	}

	// Empty prefix falls back to the default.
	d := NewRedis(rdb, "")
	if err := d.Create(ctx, testCard("c-2")); err != nil {
		t.Fatalf("create: %v", err)
	}
	if !mr.Exists("gc:card:c-2") {
		t.Fatal("expected record under the default prefix")
	}
}
