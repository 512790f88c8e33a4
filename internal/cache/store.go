package cache

import (
	"context"
	"time"
)

// Store represents a shared cache interface used across the application.
// Implementations treat a non-positive ttl passed to Set as "never expires".
type Store interface {
	IncrementWithTTL(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Delete(ctx context.Context, keys ...string) error
}

var (
	_ Store = (*DatabaseStore)(nil)
	_ Store = (*RedisClient)(nil)
)
