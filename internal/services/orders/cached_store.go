// Package orders wraps the order store with a best-effort redis cache for
// the hot search path. The cache is never required: any cache failure falls
// through to postgres.
package orders

import (
	"context"
	"encoding/json"
	"time"

	"github.com/evmakov/OrderPort/internal/cache"
	"github.com/evmakov/OrderPort/internal/models"
	"github.com/evmakov/OrderPort/internal/services/tracker"
)

type CachedStore struct {
	inner tracker.Store
	cache cache.BytesCache
	ttl   time.Duration
}

func NewCachedStore(inner tracker.Store, c cache.BytesCache, ttl time.Duration) *CachedStore {
	return &CachedStore{inner: inner, cache: c, ttl: ttl}
}

// FindOrderByNumber caches the order snapshot as JSON. The ingest side
// deletes the key on every order update, so a hit is at worst one
// invalidation behind.
func (s *CachedStore) FindOrderByNumber(ctx context.Context, number string) (*models.Order, error) {
	if s.cache == nil || s.ttl <= 0 {
		return s.inner.FindOrderByNumber(ctx, number)
	}

	key := cache.OrderByNumberKey(number)
	if b, ok, err := s.cache.Get(ctx, key); err == nil && ok {
		var o models.Order
		if json.Unmarshal(b, &o) == nil {
			return &o, nil
		}
	}

	o, err := s.inner.FindOrderByNumber(ctx, number)
	if err != nil {
		return nil, err
	}
	if b, err := json.Marshal(o); err == nil {
		_ = s.cache.Set(ctx, key, b, s.ttl)
	}
	return o, nil
}

func (s *CachedStore) ListTrajectories(ctx context.Context, orderID uint64) ([]*models.TrajectoryPoint, error) {
	return s.inner.ListTrajectories(ctx, orderID)
}

func (s *CachedStore) ListItems(ctx context.Context, orderID uint64) ([]*models.OrderItem, error) {
	return s.inner.ListItems(ctx, orderID)
}
