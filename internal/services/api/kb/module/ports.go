package module

import (
	"context"

	"datalens/internal/core/schema"
	kbdom "datalens/internal/services/api/kb/domain"
	kbsvc "datalens/internal/services/api/kb/service"
	factsdomain "datalens/internal/services/facts/domain"
)

// Ports returns the module ports
func (m *Module) Ports() any { return m.ports }

// adaptKBPort adapts the kb service to the domain port interface
type adaptKBPort struct{ svc kbsvc.Service }

// Search implements the domain ServicePort interface
func (a adaptKBPort) Search(ctx context.Context, in kbdom.SearchInput) ([]factsdomain.SearchHit, error) {
	return a.svc.Search(ctx, in)
}

// TypeDetail implements the domain ServicePort interface
func (a adaptKBPort) TypeDetail(ctx context.Context, symbol string) (factsdomain.TypeDetail, error) {
	return a.svc.TypeDetail(ctx, symbol)
}

// Runs implements the domain ServicePort interface
func (a adaptKBPort) Runs(ctx context.Context, in kbdom.RunsInput) ([]kbdom.RunView, error) {
	return a.svc.Runs(ctx, in)
}

// Run implements the domain ServicePort interface
func (a adaptKBPort) Run(ctx context.Context, id string) (kbdom.RunView, error) {
	return a.svc.Run(ctx, id)
}

// CollectionSample implements the domain ServicePort interface
func (a adaptKBPort) CollectionSample(ctx context.Context, collection string) (schema.Sample, error) {
	return a.svc.CollectionSample(ctx, collection)
}
