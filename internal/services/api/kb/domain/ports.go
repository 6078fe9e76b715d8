package domain

import (
	"context"

	"datalens/internal/core/schema"
	factsdomain "datalens/internal/services/facts/domain"
)

// ServicePort defines the service contract for knowledge-base queries.
// Search hits and type details are served in the facts service's own
// query shapes; runs are flattened into RunView
type ServicePort interface {
	Search(ctx context.Context, in SearchInput) ([]factsdomain.SearchHit, error)
	TypeDetail(ctx context.Context, symbol string) (factsdomain.TypeDetail, error)
	Runs(ctx context.Context, in RunsInput) ([]RunView, error)
	Run(ctx context.Context, id string) (RunView, error)
	CollectionSample(ctx context.Context, collection string) (schema.Sample, error)
}
