package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atmx/wager-ledger/internal/model"
	"github.com/atmx/wager-ledger/internal/store"
)

func newCachedStore(t *testing.T) (*store.CachedStore, *store.MemoryStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	primary := store.NewMemoryStore()
	return store.NewCachedStore(primary, rdb, 30*time.Second), primary, mr
}

func TestCachedStore_CreatePopulatesCache(t *testing.T) {
	cs, _, mr := newCachedStore(t)
	seedAggregate(t, cs, "user-1")

	assert.True(t, mr.Exists("aggregate:user-1"))
	assert.Equal(t, 30*time.Second, mr.TTL("aggregate:user-1"))
}

func TestCachedStore_ReadThrough(t *testing.T) {
	cs, primary, mr := newCachedStore(t)
	seedAggregate(t, primary, "user-1")
	ctx := context.Background()

	require.False(t, mr.Exists("aggregate:user-1"))

	got, err := cs.GetAggregate(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 1000.0, got.Accounts[0].Balance)
	assert.True(t, mr.Exists("aggregate:user-1"))

	// Served from the cache even if the primary changes underneath.
	_, err = primary.Apply(ctx, "user-1", func(agg *model.Aggregate) ([]model.HistoryRecord, error) {
		agg.Accounts[0].Balance = 5
		return nil, nil
	})
	require.NoError(t, err)

	cached, err := cs.GetAggregate(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 1000.0, cached.Accounts[0].Balance)
}

func TestCachedStore_ApplyInvalidates(t *testing.T) {
	cs, _, mr := newCachedStore(t)
	seedAggregate(t, cs, "user-1")
	ctx := context.Background()

	_, err := cs.Apply(ctx, "user-1", func(agg *model.Aggregate) ([]model.HistoryRecord, error) {
		agg.Accounts[0].Balance = 250
		return nil, nil
	})
	require.NoError(t, err)
	assert.False(t, mr.Exists("aggregate:user-1"))

	got, err := cs.GetAggregate(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 250.0, got.Accounts[0].Balance)
}

func TestCachedStore_CorruptEntryFallsBack(t *testing.T) {
	cs, primary, mr := newCachedStore(t)
	seedAggregate(t, primary, "user-1")
	require.NoError(t, mr.Set("aggregate:user-1", "{not json"))

	got, err := cs.GetAggregate(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, "user-1", got.UserID)
}

func TestCachedStore_NotFoundPassesThrough(t *testing.T) {
	cs, _, _ := newCachedStore(t)

	_, err := cs.GetAggregate(context.Background(), "nobody")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestCachedStore_HistoryPassthrough(t *testing.T) {
	cs, _, _ := newCachedStore(t)
	seedAggregate(t, cs, "user-1")
	ctx := context.Background()

	appendHistory(t, cs, "user-1", record("user-1", "h-1", t0))

	page, next, err := cs.ListHistory(ctx, "user-1", 10, "")
	require.NoError(t, err)
	assert.Len(t, page, 1)
	assert.Empty(t, next)

	n, err := cs.PurgeHistory(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
