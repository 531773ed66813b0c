package gridauth

import (
	"errors"

	"github.com/redis/go-redis/v9"

	"github.com/zhoulytwinyu/gridauth/card"
	"github.com/zhoulytwinyu/gridauth/challenge"
	"github.com/zhoulytwinyu/gridauth/internal/rng"
	"github.com/zhoulytwinyu/gridauth/store"
)

// Builder assembles a Manager. Builders are single use: configure,
// call Build once, discard.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	cardStore    card.Store
	auditSink    AuditSink
	randomSource rng.Source

	built bool
}

// New returns a Builder preloaded with the default configuration.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the entire configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis sets the Redis client backing challenge state, issuance
// throttling, and (unless overridden) card persistence. Required.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithCardStore overrides card persistence. Challenge state stays in
// Redis regardless; this only swaps where card records live.
func (b *Builder) WithCardStore(s card.Store) *Builder {
	b.cardStore = s
	return b
}

// WithAuditSink sets the audit destination. Only consulted when
// Audit.Enabled is set.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithRandomSource overrides the randomness used for card codes,
// challenge selection, and token material. Leave unset in production.
func (b *Builder) WithRandomSource(src rng.Source) *Builder {
	b.randomSource = src
	return b
}

// WithMetricsEnabled toggles the metric set without replacing the
// whole configuration.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles verification latency buckets.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration, wires every component, and
// returns a ready Manager.
func (b *Builder) Build() (*Manager, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)

	if b.redis == nil {
		return nil, errors.New("redis client required")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	src := b.randomSource
	if src == nil {
		src = rng.Crypto{}
	}

	cardStore := b.cardStore
	if cardStore == nil {
		cardStore = store.NewRedis(b.redis, cfg.Store.RedisPrefix)
	}

	m := &Manager{
		config:    cfg,
		random:    src,
		cards:     cardStore,
		generator: card.NewGenerator(src),
		selector:  challenge.NewSelector(src),
	}
	m.challenges = newChallengeStore(b.redis, cfg.Store.RedisPrefix)
	m.limiter = newChallengeLimiter(b.redis, cfg.Store.RedisPrefix, cfg.Challenge)
	m.audit = newAuditDispatcher(cfg.Audit, b.auditSink)
	m.metrics = NewMetrics(cfg.Metrics)

	b.built = true

	return m, nil
}
