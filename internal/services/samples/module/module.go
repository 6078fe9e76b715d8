// Package module implements the samples service module
package module

import (
	"datalens/internal/modkit"
	"datalens/internal/modkit/httpkit"
	"datalens/internal/services/samples/domain"
	"datalens/internal/services/samples/repo"
	"datalens/internal/services/samples/service"
)

// Ports exposed by the samples module. The sampling pass itself is wired
// by the scan service because the document store opens per run
type Ports struct {
	Writer domain.WriterPort
	Query  domain.QueryPort
}

// Module implements the samples service module
type Module struct {
	deps  modkit.Deps
	ports Ports
}

// New constructs a new samples module
func New(deps modkit.Deps) *Module {
	svc := service.New(repo.NewCH(deps.CH))

	m := &Module{deps: deps}
	m.ports = Ports{
		Writer: svc,
		Query:  svc,
	}
	return m
}

// Name satisfies modkit.Module
func (m *Module) Name() string { return "samples" }

// Ports satisfies modkit.Module
func (m *Module) Ports() any { return m.ports }

// Prefix satisfies modkit.Module
func (m *Module) Prefix() string { return "" }

// MountRoutes satisfies modkit.Module
func (m *Module) MountRoutes(r httpkit.Router) {}
