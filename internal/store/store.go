// Package store defines the persistence interface for the wager ledger.
// Implementations include PostgreSQL (source of truth), Redis (read-through
// cache), and in-memory (for testing).
package store

import (
	"context"
	"errors"

	"github.com/atmx/wager-ledger/internal/model"
)

var (
	// ErrNotFound is returned when no aggregate exists for a user id.
	ErrNotFound = errors.New("store: aggregate not found")

	// ErrAlreadyExists is returned by CreateAggregate for a known user id.
	ErrAlreadyExists = errors.New("store: aggregate already exists")

	// ErrInvalidCursor is returned when a history cursor cannot be decoded.
	ErrInvalidCursor = errors.New("store: invalid history cursor")
)

// MutateFunc receives a private copy of the aggregate, mutates it and returns
// the history records to append. Returning an error aborts the write.
type MutateFunc func(agg *model.Aggregate) ([]model.HistoryRecord, error)

// Store is the persistence interface. PostgreSQL is the source of truth;
// Redis provides a read-through cache layer.
type Store interface {
	// --- Aggregate ---

	// CreateAggregate persists a new user aggregate.
	CreateAggregate(ctx context.Context, agg *model.Aggregate) error

	// GetAggregate retrieves the aggregate of a user.
	GetAggregate(ctx context.Context, userID string) (*model.Aggregate, error)

	// Apply performs an atomic read-modify-write of one aggregate. The
	// mutated aggregate and every history record fn returns are committed
	// together or not at all, and no other Apply on the same user
	// interleaves with it.
	Apply(ctx context.Context, userID string, fn MutateFunc) (*model.Aggregate, error)

	// --- Append-only history ---

	// ListHistory returns a user's records newest first, at most limit of
	// them, starting after cursor ("" for the first page). The returned
	// cursor is "" when there are no more records.
	ListHistory(ctx context.Context, userID string, limit int, cursor string) ([]model.HistoryRecord, string, error)

	// PurgeHistory deletes every history record of a user and returns how
	// many were deleted.
	PurgeHistory(ctx context.Context, userID string) (int, error)
}
