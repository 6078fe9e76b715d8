package domain

import (
	"context"

	"github.com/google/uuid"

	"datalens/internal/core/schema"
)

// WriterPort commits facts, resolutions and edges into the knowledge base
type WriterPort interface {
	// Merge commits one file batch atomically under per-repository mutual
	// exclusion. Identity races are retried with bounded backoff; a conflict
	// that outlives the budget fails only this batch
	Merge(ctx context.Context, runID uuid.UUID, batch schema.Batch) (MergeStats, error)

	// MergeEdges upserts relationship edges once the whole run's facts are in
	MergeEdges(ctx context.Context, runID uuid.UUID, edges []schema.Edge) error

	// RecordMisses bumps the full-scan miss counter on latest facts of the
	// repository absent from seen and retires those at or past threshold
	RecordMisses(ctx context.Context, runID uuid.UUID, repository string, seen []schema.FactID, threshold int) (retired int, err error)

	// FlagDrift marks latest facts missing from seen as drifted and clears
	// the flag on those present again. Returns the newly drifted count
	FlagDrift(ctx context.Context, repository string, seen []schema.FactID) (drifted int, err error)
}

// QueryPort reads the knowledge base
type QueryPort interface {
	// Search ranks latest facts against a free-form query by symbol,
	// collection and field name
	Search(ctx context.Context, query string, limit int) ([]SearchHit, error)

	// GetType returns the newest live record shape for a symbol
	GetType(ctx context.Context, symbolName string) (TypeDetail, error)
}
