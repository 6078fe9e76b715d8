// Package module implements the facts service module
package module

import (
	"datalens/internal/modkit"
	"datalens/internal/modkit/httpkit"
	"datalens/internal/services/facts/domain"
	"datalens/internal/services/facts/repo"
	"datalens/internal/services/facts/service"
)

// Ports exposed by the facts module
type Ports struct {
	Writer domain.WriterPort
	Query  domain.QueryPort
}

// Module implements the facts service module
type Module struct {
	deps  modkit.Deps
	ports Ports
}

// New constructs a new facts module
func New(deps modkit.Deps) *Module {
	opts := FromConfig(deps.Cfg)

	svc := service.New(deps.PG, repo.NewPG(), service.Config{
		SearchLimit:   opts.SearchLimit,
		RetryAttempts: opts.RetryAttempts,
		RetryBackoff:  opts.RetryBackoff,
	})

	m := &Module{deps: deps}
	m.ports = Ports{
		Writer: svc,
		Query:  svc,
	}
	return m
}

// Name satisfies modkit.Module
func (m *Module) Name() string { return "facts" }

// Ports satisfies modkit.Module
func (m *Module) Ports() any { return m.ports }

// Prefix satisfies modkit.Module
func (m *Module) Prefix() string { return "" }

// MountRoutes satisfies modkit.Module
func (m *Module) MountRoutes(r httpkit.Router) {}
