package gridauth

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

var (
	errChallengeLimited            = errors.New("challenge rate limited")
	errChallengeLimiterUnavailable = errors.New("challenge limiter redis unavailable")
)

// challengeLimiter throttles challenge issuance per card with a fixed
// INCR/EXPIRE window. A disabled limiter (MaxPerWindow 0) admits
// everything.
type challengeLimiter struct {
	redis  redis.UniversalClient
	prefix string
	config ChallengeConfig
}

func newChallengeLimiter(redisClient redis.UniversalClient, prefix string, cfg ChallengeConfig) *challengeLimiter {
	return &challengeLimiter{
		redis:  redisClient,
		prefix: prefix,
		config: cfg,
	}
}

func (l *challengeLimiter) key(cardID string) string {
	return l.prefix + ":chlim:" + cardID
}

func (l *challengeLimiter) Enforce(ctx context.Context, cardID string) error {
	if l == nil || l.config.MaxPerWindow <= 0 {
		return nil
	}

	key := l.key(cardID)
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", errChallengeLimiterUnavailable, err)
	}

	if count == 1 {
		if err := l.redis.Expire(ctx, key, l.config.Window).Err(); err != nil {
			return fmt.Errorf("%w: %v", errChallengeLimiterUnavailable, err)
		}
	}

	if count > int64(l.config.MaxPerWindow) {
		return errChallengeLimited
	}

	return nil
}
