package challenge

import (
	"errors"

	"github.com/zhoulytwinyu/gridauth/card"
	"github.com/zhoulytwinyu/gridauth/internal/rng"
)

// Coordinate addresses one cell of a grid card.
type Coordinate struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

var (
	// ErrNotActive indicates the card state rejects challenges.
	ErrNotActive = errors.New("card not active")
	// ErrLength indicates k outside [1, rows*columns].
	ErrLength = errors.New("invalid challenge length")
)

// Selector picks challenge coordinates from an injected secure random
// source. A nil source means crypto/rand.
type Selector struct {
	src rng.Source
}

func NewSelector(src rng.Source) *Selector {
	if src == nil {
		src = rng.Crypto{}
	}
	return &Selector{src: src}
}

// Pick samples k distinct coordinates uniformly without replacement
// from the card's coordinate space. Coordinates present in exclude
// (those used by the immediately preceding challenges) are avoided;
// when the exclusion set leaves fewer than k candidates the full space
// is used instead and usedFallback is true so the caller can record
// the policy event.
//
// The returned order is the random pick order, never row-major, so
// position does not leak cell identity.
func (s *Selector) Pick(c *card.Card, k int, exclude map[Coordinate]struct{}) (coords []Coordinate, usedFallback bool, err error) {
	if c.State != card.StateActive {
		return nil, false, ErrNotActive
	}
	cells := c.Cells()
	if k < 1 || k > cells {
		return nil, false, ErrLength
	}

	candidates := make([]Coordinate, 0, cells)
	for row := 0; row < c.Rows; row++ {
		for col := 0; col < c.Columns; col++ {
			coord := Coordinate{Row: row, Col: col}
			if _, skip := exclude[coord]; skip {
				continue
			}
			candidates = append(candidates, coord)
		}
	}
	if len(candidates) < k {
		// Exclusion set too large to honor; fall back to the full space.
		usedFallback = true
		candidates = candidates[:0]
		for row := 0; row < c.Rows; row++ {
			for col := 0; col < c.Columns; col++ {
				candidates = append(candidates, Coordinate{Row: row, Col: col})
			}
		}
	}

	// Partial Fisher-Yates: the first k slots end up a uniform sample
	// in uniform order.
	for i := 0; i < k; i++ {
		j, err := s.src.Intn(len(candidates) - i)
		if err != nil {
			return nil, usedFallback, err
		}
		candidates[i], candidates[i+j] = candidates[i+j], candidates[i]
	}

	return append([]Coordinate(nil), candidates[:k]...), usedFallback, nil
}
