package rng

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
)

// Source is the secure randomness capability injected into the card
// generator and challenge selector. Production uses Crypto; tests may
// substitute a deterministic seeded source.
type Source interface {
	Read(p []byte) error
	Intn(n int) (int, error)
}

// ErrUnavailable wraps any read failure of the underlying random
// source. Callers must treat it as fatal; there is no weaker fallback.
var ErrUnavailable = errors.New("secure random source unavailable")

// Crypto reads from crypto/rand.
type Crypto struct{}

func (Crypto) Read(p []byte) error {
	if _, err := rand.Read(p); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Intn returns a uniform int in [0, n). rand.Int performs rejection
// sampling, so there is no modulo bias.
func (Crypto) Intn(n int) (int, error) {
	if n <= 0 {
		return 0, errors.New("rng: non-positive bound")
	}
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return int(v.Int64()), nil
}
