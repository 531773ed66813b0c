package card

import (
	"errors"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/zhoulytwinyu/gridauth/internal/rng"
)

var (
	// ErrInvalidDimensions covers non-positive rows/columns/code length
	// and layouts below the configured minimum cell count.
	ErrInvalidDimensions = errors.New("invalid card dimensions")
	// ErrInvalidAlphabet covers alphabets shorter than two symbols or
	// containing duplicates (duplicates would skew cell uniformity).
	ErrInvalidAlphabet = errors.New("invalid card alphabet")
	// ErrInsufficientEntropy rejects layouts whose total matrix entropy
	// falls below the configured floor.
	ErrInsufficientEntropy = errors.New("insufficient card entropy")
)

// Spec describes one card to generate. Policy fields come from
// Config.Card; the generator hard-codes nothing.
type Spec struct {
	OwnerID string

	Rows       int
	Columns    int
	CodeLength int
	Alphabet   string

	MinCells       int
	MinEntropyBits float64
}

// Generator produces new grid cards from an injected secure random
// source. A nil source means crypto/rand.
type Generator struct {
	src rng.Source
}

func NewGenerator(src rng.Source) *Generator {
	if src == nil {
		src = rng.Crypto{}
	}
	return &Generator{src: src}
}

// Generate builds a fresh Issued card: every cell drawn independently
// and uniformly from the alphabet, id assigned, nothing persisted.
// Random-source failures surface as rng.ErrUnavailable; there is no
// fallback to a weaker source.
func (g *Generator) Generate(spec Spec) (*Card, error) {
	if spec.Rows < 1 || spec.Columns < 1 || spec.CodeLength < 1 {
		return nil, ErrInvalidDimensions
	}
	if spec.MinCells > 0 && spec.Rows*spec.Columns < spec.MinCells {
		return nil, ErrInvalidDimensions
	}
	if err := validateAlphabet(spec.Alphabet); err != nil {
		return nil, err
	}
	if entropyBits(spec) < spec.MinEntropyBits {
		return nil, ErrInsufficientEntropy
	}

	codes := make([]byte, spec.Rows*spec.Columns*spec.CodeLength)
	for i := range codes {
		idx, err := g.src.Intn(len(spec.Alphabet))
		if err != nil {
			return nil, err
		}
		codes[i] = spec.Alphabet[idx]
	}

	return &Card{
		ID:         uuid.NewString(),
		OwnerID:    spec.OwnerID,
		Rows:       spec.Rows,
		Columns:    spec.Columns,
		CodeLength: spec.CodeLength,
		Alphabet:   spec.Alphabet,
		Codes:      codes,
		State:      StateIssued,
		CreatedAt:  time.Now().Unix(),
		Version:    1,
	}, nil
}

func entropyBits(spec Spec) float64 {
	symbols := spec.Rows * spec.Columns * spec.CodeLength
	return float64(symbols) * math.Log2(float64(len(spec.Alphabet)))
}

func validateAlphabet(alphabet string) error {
	if len(alphabet) < 2 {
		return ErrInvalidAlphabet
	}
	for i := 0; i < len(alphabet); i++ {
		if strings.IndexByte(alphabet[i+1:], alphabet[i]) >= 0 {
			return ErrInvalidAlphabet
		}
	}
	return nil
}
