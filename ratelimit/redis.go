package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore implements Store on a shared Redis instance so multiple gateway
// replicas count against the same quota. Windows are bucket-aligned: the key
// embeds the truncated window start, so an expired window is simply a new key
// and the old one ages out via TTL.
type RedisStore struct {
	rdb    *redis.Client
	prefix string
}

type RedisOption func(*RedisStore)

func WithKeyPrefix(prefix string) RedisOption {
	return func(s *RedisStore) { s.prefix = strings.Trim(prefix, ":") }
}

func NewRedisStore(rdb *redis.Client, opts ...RedisOption) *RedisStore {
	s := &RedisStore{
		rdb:    rdb,
		prefix: "ratelimit",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Incr implements Store. INCR is atomic per key on the Redis side, which gives
// the per-subject increment-and-compare atomicity the admission check needs.
func (s *RedisStore) Incr(ctx context.Context, subject string, window time.Duration) (int64, time.Time, error) {
	windowStart := time.Now().Truncate(window)
	key := fmt.Sprintf("%s:%s:%d", s.prefix, subject, windowStart.Unix())

	pipe := s.rdb.TxPipeline()
	incr := pipe.Incr(ctx, key)
	// TTL slightly past the window end so requests in flight at the boundary
	// still resolve against the old key.
	pipe.Expire(ctx, key, window+time.Minute)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, time.Time{}, fmt.Errorf("rate limit incr: %w", err)
	}

	return incr.Val(), windowStart, nil
}
