// Package domain defines the scan-run bookkeeping contract
package domain

import (
	"context"

	"github.com/google/uuid"

	"datalens/internal/core/schema"
)

// LifecyclePort opens and closes run records
type LifecyclePort interface {
	// Begin persists a new running ScanRun and returns it
	Begin(ctx context.Context, repository string, mode schema.ScanMode, commitSHA string) (schema.ScanRun, error)

	// Finish stores the run's final counters and status. FinishedAt is
	// stamped when the caller left it nil
	Finish(ctx context.Context, run schema.ScanRun) error
}

// QueryPort reads run history
type QueryPort interface {
	Get(ctx context.Context, id uuid.UUID) (schema.ScanRun, error)
	List(ctx context.Context, repository string, limit int) ([]schema.ScanRun, error)

	// Baseline returns the newest successfully finished run for the
	// repository; ok is false when none exists yet
	Baseline(ctx context.Context, repository string) (schema.ScanRun, bool, error)
}
