package domain

import (
	"context"

	"datalens/internal/core/schema"
	factsdom "datalens/internal/services/facts/domain"
	runsdom "datalens/internal/services/runs/domain"
	samplesdom "datalens/internal/services/samples/domain"
)

// Ports are dependencies injected into the scan module
type Ports struct {
	Runs        runsdom.LifecyclePort // required
	History     runsdom.QueryPort     // required
	FactsWriter factsdom.WriterPort   // required
	Samples     samplesdom.WriterPort // required when sampling is configured
}

// Source is the pinned repository view planning and extraction read from.
// All paths are repository-relative with '/' separators
type Source interface {
	// Head is the commit the view was pinned at
	Head() string
	// Identity is the canonical repository name
	Identity() string
	// Files enumerates the full tree
	Files(ctx context.Context) ([]string, error)
	// ReadFile returns one file's content at the pinned commit
	ReadFile(path string) ([]byte, error)
	// Changed diffs the pinned commit against a baseline
	Changed(ctx context.Context, baseSHA string) (changed, removed []string, err error)
}

// OrchestratorPort drives one scan through the pipeline state machine
type OrchestratorPort interface {
	// Run executes a scan and returns its finished record. The returned run
	// carries counters and status even when err is non-nil
	Run(ctx context.Context, opts Options) (schema.ScanRun, error)
}
