package cache

import (
	"context"
	"time"
)

// OrderByNumberKey is the cache key for an order snapshot looked up by its
// human-readable number.
func OrderByNumberKey(number string) string {
	return "order:num:" + number
}

// BytesCache is a best-effort byte cache. A miss is (nil, false, nil);
// callers must treat any cache failure as a miss, never as a fatal error.
type BytesCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, key string) error
}
