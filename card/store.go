package card

import (
	"context"
	"errors"
)

var (
	// ErrNotFound indicates no record exists for the card id.
	ErrNotFound = errors.New("card not found")
	// ErrDuplicateID indicates Create collided with an existing record.
	ErrDuplicateID = errors.New("card id already exists")
	// ErrVersionConflict indicates the record changed since it was read.
	ErrVersionConflict = errors.New("card version conflict")
	// ErrStoreUnavailable wraps backend faults from store implementations.
	ErrStoreUnavailable = errors.New("card store unavailable")
)

// Store is the durable keyed storage consumed by the manager. It must
// provide atomic compare-and-swap semantics keyed on Card.Version so
// concurrent verification attempts never lose a counter increment.
//
// Implementations return records the caller owns outright (deep
// copies); caller-side zeroing must never corrupt stored bytes.
type Store interface {
	// Create persists a new record. Fails with ErrDuplicateID when the
	// id is already present.
	Create(ctx context.Context, c *Card) error

	// Get loads the record for id, or ErrNotFound.
	Get(ctx context.Context, id string) (*Card, error)

	// PutIfVersion replaces the record only when the stored version
	// still equals expectedVersion; otherwise ErrVersionConflict.
	PutIfVersion(ctx context.Context, id string, expectedVersion uint64, c *Card) error
}
