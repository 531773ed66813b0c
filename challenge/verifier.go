package challenge

import (
	"crypto/subtle"

	"github.com/zhoulytwinyu/gridauth/card"
)

// CompareCodes checks every claimed code against the card cell at the
// corresponding coordinate. All cells are compared unconditionally and
// each comparison is constant-time, so timing reveals neither which
// cell mismatched nor how many did. Ordering correspondence between
// coords and claimed is the caller's contract; a length mismatch or an
// out-of-bounds coordinate simply fails.
//
// There is no partial credit: true requires every cell to match.
func CompareCodes(c *card.Card, coords []Coordinate, claimed []string) bool {
	if len(claimed) != len(coords) || len(coords) == 0 {
		return false
	}

	match := 1
	for i, coord := range coords {
		want := c.CodeAt(coord.Row, coord.Col)
		if want == nil {
			match = 0
			continue
		}
		if len(claimed[i]) != len(want) {
			match = 0
			continue
		}
		match &= subtle.ConstantTimeCompare(want, []byte(claimed[i]))
	}

	return match == 1
}
