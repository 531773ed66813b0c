package gridauth

import (
	"errors"
	"time"
)

// Config holds every tunable policy of the engine. Instances are
// configured during initialization and treated as immutable afterwards.
type Config struct {
	Card      CardConfig
	Challenge ChallengeConfig
	Lockout   LockoutConfig
	Store     StoreConfig
	Audit     AuditConfig
	Metrics   MetricsConfig
}

/*
====================================
CARD CONFIG
====================================
*/

// CardConfig controls card generation defaults and card lifetime.
// Per-request layout values in [IssueRequest] override the defaults;
// the Min* floors always apply.
type CardConfig struct {
	Rows       int
	Columns    int
	CodeLength int
	Alphabet   string

	// MinCells rejects grids too small to resist coordinate reuse.
	MinCells int
	// MinEntropyBits is the floor on total card entropy, computed as
	// cells * codeLength * log2(len(alphabet)).
	MinEntropyBits float64

	// Lifetime bounds card validity from activation. Zero means the
	// card never expires by age.
	Lifetime time.Duration
}

/*
====================================
CHALLENGE CONFIG
====================================
*/

// ChallengeConfig controls challenge selection and issuance throttling.
type ChallengeConfig struct {
	// Cells is the number of distinct coordinates per challenge.
	Cells int
	// TTL is the challenge validity window.
	TTL time.Duration

	// RecentWindow is how many previous challenges' coordinates are
	// excluded from selection. Zero disables the exclusion.
	RecentWindow int

	// MaxPerWindow caps challenge issuance per card per Window.
	// Zero disables the limiter.
	MaxPerWindow int
	Window       time.Duration
}

/*
====================================
LOCKOUT CONFIG
====================================
*/

// LockoutConfig controls the consecutive-failure lockout.
type LockoutConfig struct {
	// Threshold is the consecutive failure count that arms the lock.
	Threshold int
	// Cooldown is how long verification stays refused once armed.
	Cooldown time.Duration
}

/*
====================================
STORE CONFIG
====================================
*/

// StoreConfig controls persistence behavior shared by the manager and
// the Redis challenge state.
type StoreConfig struct {
	// RedisPrefix namespaces challenge, rate-limit, and recent-history
	// keys.
	RedisPrefix string

	// CASRetryLimit bounds read-modify-write retries on version
	// conflicts before the operation fails with
	// ErrConcurrentModification.
	CASRetryLimit int
}

/*
====================================
AUDIT / METRICS CONFIG
====================================
*/

// AuditConfig controls the buffered audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	// DropIfFull drops events instead of blocking state transitions
	// when the buffer is saturated. Drops are counted.
	DropIfFull bool
}

// MetricsConfig controls the in-process counter and histogram set.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns the documented default policy set. Mutate the
// copy and pass it to [Builder.WithConfig].
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		Card: CardConfig{
			Rows:           5,
			Columns:        5,
			CodeLength:     2,
			Alphabet:       "0123456789",
			MinCells:       9,
			MinEntropyBits: 128,
			Lifetime:       2 * 365 * 24 * time.Hour,
		},
		Challenge: ChallengeConfig{
			Cells:        3,
			TTL:          120 * time.Second,
			RecentWindow: 3,
			MaxPerWindow: 10,
			Window:       time.Minute,
		},
		Lockout: LockoutConfig{
			Threshold: 5,
			Cooldown:  15 * time.Minute,
		},
		Store: StoreConfig{
			RedisPrefix:   "gc",
			CASRetryLimit: 3,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate checks the configuration for internally inconsistent or
// insecure values. It is called during Build.
func (c *Config) Validate() error {
	// Card
	if c.Card.Rows <= 0 || c.Card.Columns <= 0 {
		return errors.New("Card Rows and Columns must be > 0")
	}
	if c.Card.CodeLength <= 0 {
		return errors.New("Card CodeLength must be > 0")
	}
	if len(c.Card.Alphabet) < 2 {
		return errors.New("Card Alphabet must contain at least 2 symbols")
	}
	if c.Card.MinCells < 1 {
		return errors.New("Card MinCells must be >= 1")
	}
	if c.Card.Rows*c.Card.Columns < c.Card.MinCells {
		return errors.New("Card default grid is smaller than MinCells")
	}
	if c.Card.MinEntropyBits < 0 {
		return errors.New("Card MinEntropyBits must be >= 0")
	}
	if c.Card.Lifetime < 0 {
		return errors.New("Card Lifetime must be >= 0")
	}

	// Challenge
	if c.Challenge.Cells <= 0 {
		return errors.New("Challenge Cells must be > 0")
	}
	if c.Challenge.Cells > c.Card.Rows*c.Card.Columns {
		return errors.New("Challenge Cells exceeds the default grid size")
	}
	if c.Challenge.TTL <= 0 {
		return errors.New("Challenge TTL must be > 0")
	}
	if c.Challenge.RecentWindow < 0 {
		return errors.New("Challenge RecentWindow must be >= 0")
	}
	if c.Challenge.MaxPerWindow < 0 {
		return errors.New("Challenge MaxPerWindow must be >= 0")
	}
	if c.Challenge.MaxPerWindow > 0 && c.Challenge.Window <= 0 {
		return errors.New("Challenge Window must be > 0 when MaxPerWindow is set")
	}

	// Lockout
	if c.Lockout.Threshold <= 0 {
		return errors.New("Lockout Threshold must be > 0")
	}
	if c.Lockout.Cooldown <= 0 {
		return errors.New("Lockout Cooldown must be > 0")
	}

	// Store
	if c.Store.RedisPrefix == "" {
		return errors.New("Store RedisPrefix must not be empty")
	}
	if c.Store.CASRetryLimit <= 0 {
		return errors.New("Store CASRetryLimit must be > 0")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}

	return nil
}
