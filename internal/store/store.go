// Package store defines the persistence abstractions for the event log and
// the per-source checkpoint table.
package store

import (
	"context"
	"time"

	"github.com/neuwcodebox/disaster-feed/internal/model"
)

// EventLog is the append-only store of normalized events.
type EventLog interface {
	// Insert atomically persists one row. Fails only on I/O or a duplicate
	// id constraint violation; assigns no fields itself.
	Insert(ctx context.Context, e *model.Event) error

	GetByID(ctx context.Context, id string) (*model.Event, error)

	// List returns rows ordered by fetched_at DESC, filters ANDed, capped
	// at filter.Limit (defaulted/clamped by the caller).
	List(ctx context.Context, filter model.ListFilter) ([]*model.Event, error)

	// ListSince returns rows with fetched_at > since, ordered ascending,
	// ties broken by id ASC, capped at limit.
	ListSince(ctx context.Context, since time.Time, limit int) ([]*model.Event, error)
}

// CheckpointStore is the per-source resumable-state table.
type CheckpointStore interface {
	Get(ctx context.Context, sourceID model.Source) (*model.Checkpoint, error)
	Upsert(ctx context.Context, sourceID model.Source, state *string) error
}

// Store bundles both tables behind one handle.
type Store interface {
	EventLog
	CheckpointStore
	Close() error
}
