package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/atmx/wager-ledger/internal/model"
)

// CachedStore wraps a primary Store (PostgreSQL) with a Redis read-through
// cache for aggregates. Writes go to the primary store and invalidate the
// cache; reads check Redis first then fall back to the primary.
type CachedStore struct {
	primary Store
	rdb     *redis.Client
	ttl     time.Duration
}

// NewCachedStore creates a cached wrapper around a primary store.
func NewCachedStore(primary Store, rdb *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{
		primary: primary,
		rdb:     rdb,
		ttl:     ttl,
	}
}

// --- Write-through (write to primary, refresh or invalidate cache) ---

func (s *CachedStore) CreateAggregate(ctx context.Context, agg *model.Aggregate) error {
	if err := s.primary.CreateAggregate(ctx, agg); err != nil {
		return err
	}
	s.cacheAggregate(ctx, agg)
	return nil
}

func (s *CachedStore) Apply(ctx context.Context, userID string, fn MutateFunc) (*model.Aggregate, error) {
	// Drop the entry first so a reader racing the commit cannot keep a
	// stale copy alive past it.
	s.rdb.Del(ctx, aggregateKey(userID))

	agg, err := s.primary.Apply(ctx, userID, fn)
	if err != nil {
		return nil, err
	}
	s.rdb.Del(ctx, aggregateKey(userID))
	return agg, nil
}

// --- Read-through (check cache first) ---

func (s *CachedStore) GetAggregate(ctx context.Context, userID string) (*model.Aggregate, error) {
	data, err := s.rdb.Get(ctx, aggregateKey(userID)).Bytes()
	if err == nil {
		var agg model.Aggregate
		if json.Unmarshal(data, &agg) == nil {
			return &agg, nil
		}
	}

	// Cache miss: read from primary.
	agg, err := s.primary.GetAggregate(ctx, userID)
	if err != nil {
		return nil, err
	}

	s.cacheAggregate(ctx, agg)
	return agg, nil
}

// --- Passthrough (not cached) ---

func (s *CachedStore) ListHistory(ctx context.Context, userID string, limit int, cursor string) ([]model.HistoryRecord, string, error) {
	return s.primary.ListHistory(ctx, userID, limit, cursor)
}

func (s *CachedStore) PurgeHistory(ctx context.Context, userID string) (int, error) {
	return s.primary.PurgeHistory(ctx, userID)
}

// --- Cache helpers ---

func (s *CachedStore) cacheAggregate(ctx context.Context, agg *model.Aggregate) {
	if data, err := json.Marshal(agg); err == nil {
		s.rdb.Set(ctx, aggregateKey(agg.UserID), data, s.ttl)
	}
}

func aggregateKey(userID string) string { return fmt.Sprintf("aggregate:%s", userID) }
