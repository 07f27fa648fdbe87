package store

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/atmx/wager-ledger/internal/model"
)

// MemoryStore implements Store with in-memory maps. Used for testing
// and development. Not suitable for production (no persistence).
type MemoryStore struct {
	mu         sync.RWMutex
	aggregates map[string]*model.Aggregate
	history    map[string][]model.HistoryRecord // user id -> records in insert order
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		aggregates: make(map[string]*model.Aggregate),
		history:    make(map[string][]model.HistoryRecord),
	}
}

func (s *MemoryStore) CreateAggregate(_ context.Context, agg *model.Aggregate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.aggregates[agg.UserID]; ok {
		return fmt.Errorf("%w: %s", ErrAlreadyExists, agg.UserID)
	}
	// Store a copy to avoid external mutation.
	s.aggregates[agg.UserID] = agg.Clone()
	return nil
}

func (s *MemoryStore) GetAggregate(_ context.Context, userID string) (*model.Aggregate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	agg, ok := s.aggregates[userID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, userID)
	}
	return agg.Clone(), nil
}

// Apply runs fn under the write lock, so the whole read-modify-write and the
// history append form one critical section.
func (s *MemoryStore) Apply(ctx context.Context, userID string, fn MutateFunc) (*model.Aggregate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.aggregates[userID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, userID)
	}

	working := current.Clone()
	records, err := fn(working)
	if err != nil {
		return nil, err
	}
	// A caller that gave up must not observe a half-visible write.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	working.UpdatedAt = time.Now().UTC()
	s.aggregates[userID] = working
	s.history[userID] = append(s.history[userID], records...)
	return working.Clone(), nil
}

func (s *MemoryStore) ListHistory(_ context.Context, userID string, limit int, cursor string) ([]model.HistoryRecord, string, error) {
	after, err := decodeCursor(cursor)
	if err != nil {
		return nil, "", err
	}
	if limit <= 0 {
		return []model.HistoryRecord{}, "", nil
	}

	s.mu.RLock()
	records := slices.Clone(s.history[userID])
	s.mu.RUnlock()

	slices.SortFunc(records, newerFirst)

	page := make([]model.HistoryRecord, 0, limit)
	for _, r := range records {
		if after != nil && !after.before(r) {
			continue
		}
		if len(page) == limit {
			return page, cursorOf(page[len(page)-1]).encode(), nil
		}
		page = append(page, r)
	}
	return page, "", nil
}

func (s *MemoryStore) PurgeHistory(_ context.Context, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.history[userID])
	delete(s.history, userID)
	return n, nil
}
