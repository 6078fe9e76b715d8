// Package module implements the runs service module
package module

import (
	"datalens/internal/modkit"
	"datalens/internal/modkit/httpkit"
	"datalens/internal/services/runs/domain"
	"datalens/internal/services/runs/repo"
	"datalens/internal/services/runs/service"
)

// Ports exposed by the runs module
type Ports struct {
	Lifecycle domain.LifecyclePort
	Query     domain.QueryPort
}

// Module implements the runs service module
type Module struct {
	deps  modkit.Deps
	ports Ports
}

// New constructs a new runs module
func New(deps modkit.Deps) *Module {
	opts := FromConfig(deps.Cfg)

	svc := service.New(deps.PG, repo.NewPG(), service.Config{
		HardLimit: opts.HardLimit,
	})

	m := &Module{deps: deps}
	m.ports = Ports{
		Lifecycle: svc,
		Query:     svc,
	}
	return m
}

// Name satisfies modkit.Module
func (m *Module) Name() string { return "runs" }

// Ports satisfies modkit.Module
func (m *Module) Ports() any { return m.ports }

// Prefix satisfies modkit.Module
func (m *Module) Prefix() string { return "" }

// MountRoutes satisfies modkit.Module
func (m *Module) MountRoutes(r httpkit.Router) {}
