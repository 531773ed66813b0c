package challenge

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/zhoulytwinyu/gridauth/card"
	"github.com/zhoulytwinyu/gridauth/internal/rng"
)

type seededSource struct {
	r *rand.Rand
}

func newSeededSource(seed int64) *seededSource {
	return &seededSource{r: rand.New(rand.NewSource(seed))}
}

func (s *seededSource) Read(p []byte) error {
	for i := range p {
		p[i] = byte(s.r.Intn(256))
	}
	return nil
}

func (s *seededSource) Intn(n int) (int, error) {
	return s.r.Intn(n), nil
}

type failingSource struct{}

func (failingSource) Read([]byte) error {
	return rng.ErrUnavailable
}

func (failingSource) Intn(int) (int, error) {
	return 0, rng.ErrUnavailable
}

func testCard(t *testing.T, rows, cols int) *card.Card {
	t.Helper()

	g := card.NewGenerator(newSeededSource(5))
	c, err := g.Generate(card.Spec{
		OwnerID:    "alice",
		Rows:       rows,
		Columns:    cols,
		CodeLength: 2,
		Alphabet:   "0123456789",
	})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	c.State = card.StateActive
	return c
}

func TestPickDistinctInBounds(t *testing.T) {
	s := NewSelector(newSeededSource(1))
	c := testCard(t, 5, 5)

	for round := 0; round < 50; round++ {
		coords, usedFallback, err := s.Pick(c, 3, nil)
		if err != nil {
			t.Fatalf("Pick failed: %v", err)
		}
		if usedFallback {
			t.Fatal("fallback without exclusion")
		}
		if len(coords) != 3 {
			t.Fatalf("len = %d, want 3", len(coords))
		}

		seen := make(map[Coordinate]struct{})
		for _, coord := range coords {
			if !c.InBounds(coord.Row, coord.Col) {
				t.Fatalf("out of bounds: %+v", coord)
			}
			if _, dup := seen[coord]; dup {
				t.Fatalf("duplicate: %+v", coord)
			}
			seen[coord] = struct{}{}
		}
	}
}

func TestPickCoversSpace(t *testing.T) {
	s := NewSelector(newSeededSource(2))
	c := testCard(t, 3, 3)

	seen := make(map[Coordinate]struct{})
	for round := 0; round < 200; round++ {
		coords, _, err := s.Pick(c, 3, nil)
		if err != nil {
			t.Fatalf("Pick failed: %v", err)
		}
		for _, coord := range coords {
			seen[coord] = struct{}{}
		}
	}
	if len(seen) != c.Cells() {
		t.Fatalf("selection covered %d of %d cells", len(seen), c.Cells())
	}
}

func TestPickHonorsExclusion(t *testing.T) {
	s := NewSelector(newSeededSource(3))
	c := testCard(t, 5, 5)

	exclude := map[Coordinate]struct{}{
		{Row: 0, Col: 0}: {},
		{Row: 1, Col: 1}: {},
		{Row: 2, Col: 2}: {},
	}

	for round := 0; round < 50; round++ {
		coords, usedFallback, err := s.Pick(c, 3, exclude)
		if err != nil {
			t.Fatalf("Pick failed: %v", err)
		}
		if usedFallback {
			t.Fatal("unexpected fallback with 22 candidates")
		}
		for _, coord := range coords {
			if _, banned := exclude[coord]; banned {
				t.Fatalf("picked excluded coordinate %+v", coord)
			}
		}
	}
}

func TestPickFallbackWhenExclusionTooTight(t *testing.T) {
	s := NewSelector(newSeededSource(4))
	c := testCard(t, 3, 3)

	// ban 7 of 9 cells, then ask for 3
	exclude := make(map[Coordinate]struct{})
	for row := 0; row < 3; row++ {
		for col := 0; col < 3; col++ {
			if len(exclude) < 7 {
				exclude[Coordinate{Row: row, Col: col}] = struct{}{}
			}
		}
	}

	coords, usedFallback, err := s.Pick(c, 3, exclude)
	if err != nil {
		t.Fatalf("Pick failed: %v", err)
	}
	if !usedFallback {
		t.Fatal("expected fallback")
	}
	if len(coords) != 3 {
		t.Fatalf("len = %d, want 3", len(coords))
	}
}

func TestPickRejectsBadInput(t *testing.T) {
	s := NewSelector(newSeededSource(5))
	c := testCard(t, 3, 3)

	if _, _, err := s.Pick(c, 0, nil); !errors.Is(err, ErrLength) {
		t.Fatalf("k=0 err = %v, want ErrLength", err)
	}
	if _, _, err := s.Pick(c, 10, nil); !errors.Is(err, ErrLength) {
		t.Fatalf("k>cells err = %v, want ErrLength", err)
	}

	c.State = card.StateSuspended
	if _, _, err := s.Pick(c, 3, nil); !errors.Is(err, ErrNotActive) {
		t.Fatalf("suspended err = %v, want ErrNotActive", err)
	}
}

func TestPickRandomFailure(t *testing.T) {
	s := NewSelector(failingSource{})
	c := testCard(t, 3, 3)

	if _, _, err := s.Pick(c, 3, nil); !errors.Is(err, rng.ErrUnavailable) {
		t.Fatalf("err = %v, want rng.ErrUnavailable", err)
	}
}
