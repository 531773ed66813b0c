package card

// Card is the persisted grid-card record. Timestamps are Unix seconds;
// zero means unset. Version is bumped by the manager on every mutation
// and is the compare-and-swap key for Store.PutIfVersion.
type Card struct {
	ID      string
	OwnerID string

	Rows       int
	Columns    int
	CodeLength int
	Alphabet   string

	// Codes is the secret matrix: Rows*Columns cells of CodeLength
	// bytes each, row-major. Never serialized outward by the manager.
	Codes []byte

	State          State
	FailedAttempts uint32
	LockedUntil    int64

	CreatedAt     int64
	ActivatedAt   int64
	ExpiresAt     int64
	LastSuccessAt int64

	Version uint64
}

// Cells returns the number of coordinates on the card.
func (c *Card) Cells() int {
	return c.Rows * c.Columns
}

// InBounds reports whether (row, col) addresses a cell.
func (c *Card) InBounds(row, col int) bool {
	return row >= 0 && row < c.Rows && col >= 0 && col < c.Columns
}

// CodeAt returns a view into the code at (row, col), or nil when out
// of bounds. The slice shares backing with Codes: it goes stale once
// Zero is called.
func (c *Card) CodeAt(row, col int) []byte {
	if !c.InBounds(row, col) {
		return nil
	}
	start := (row*c.Columns + col) * c.CodeLength
	return c.Codes[start : start+c.CodeLength]
}

// Clone returns a deep copy, including the codes buffer.
func (c *Card) Clone() *Card {
	if c == nil {
		return nil
	}
	out := *c
	out.Codes = make([]byte, len(c.Codes))
	copy(out.Codes, c.Codes)
	return &out
}

// Zero wipes the secret matrix in place. Metadata stays readable.
func (c *Card) Zero() {
	if c == nil {
		return
	}
	for i := range c.Codes {
		c.Codes[i] = 0
	}
}
