// Package domain defines the types and interfaces for the samples service
package domain

import (
	"context"

	"github.com/google/uuid"

	"datalens/internal/core/schema"
)

// Source is the read-only document store the sampler draws from
type Source interface {
	Collections(ctx context.Context) ([]string, error)
	Sample(ctx context.Context, collection string) ([]map[string]any, error)
}

// SampleStats summarizes one sampling pass
type SampleStats struct {
	// Sampled counts collections that produced a full shape
	Sampled int
	// Degraded counts collections recorded with an empty shape after a
	// connection or classification failure
	Degraded int
	// Skipped counts resolved names absent from the data store
	Skipped int
}

// WriterPort persists samples
type WriterPort interface {
	// Write replaces the sample for (collection, scan run)
	Write(ctx context.Context, sample schema.Sample) error
}

// QueryPort reads stored samples
type QueryPort interface {
	// Latest returns the newest sample for the collection across runs
	Latest(ctx context.Context, collection string) (schema.Sample, bool, error)
	// ForRun returns the sample one specific run captured
	ForRun(ctx context.Context, collection string, runID uuid.UUID) (schema.Sample, bool, error)
}

// SamplerPort drives a bounded sampling pass over resolved collections
type SamplerPort interface {
	SampleCollections(ctx context.Context, runID uuid.UUID, collections []string) SampleStats
}
