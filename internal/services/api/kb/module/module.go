// Package module wires the knowledge-base query API using modkit
package module

import (
	"net/http"

	modkit "datalens/internal/modkit"
	"datalens/internal/modkit/httpkit"
	str "datalens/internal/platform/strings"
	kbhttp "datalens/internal/services/api/kb/http"
	kbsvc "datalens/internal/services/api/kb/service"
	factsdomain "datalens/internal/services/facts/domain"
	runsdomain "datalens/internal/services/runs/domain"
	samplesdomain "datalens/internal/services/samples/domain"
)

// Ports are the storage-side query ports the module consumes
type Ports struct {
	Facts   factsdomain.QueryPort   // required
	Runs    runsdomain.QueryPort    // required
	Samples samplesdomain.QueryPort // optional; the sample endpoint reports unavailable without it
}

// Module implements the modkit.Module interface
type Module struct {
	deps modkit.Deps
	name string

	mws       []func(http.Handler) http.Handler
	ports     any
	swaggerOn bool

	subrouter func(httpkit.Router) httpkit.Router
	register  func(httpkit.Router)

	svc kbsvc.Service
}

// New constructs the kb module. Its query routes sit at the version root,
// so callers inject the consumed ports via modkit.WithPorts
func New(deps modkit.Deps, opts ...modkit.Option) modkit.Module {
	b := modkit.Build(append([]modkit.Option{modkit.WithName("kb")}, opts...)...)

	ports, ok := b.Ports.(Ports)
	if !ok {
		panic("kb module: expected WithPorts(kb/module.Ports)")
	}
	svc := kbsvc.New(ports.Facts, ports.Runs, ports.Samples)

	m := &Module{
		deps:      deps,
		name:      b.Name,
		mws:       b.Mw,
		swaggerOn: b.SwaggerOn,
		subrouter: b.Subrouter,
		svc:       svc,
	}
	m.ports = adaptKBPort{svc: svc}

	external := b.Register
	m.register = func(r httpkit.Router) {
		kbhttp.Register(r, m.svc)
		if external != nil {
			external(r)
		}
	}
	return m
}

// MountRoutes implements the modkit.Module interface. Routes register in an
// inline group directly on the router the caller scopes, with no extra
// path prefix
func (m *Module) MountRoutes(r httpkit.Router) {
	r.Group(func(rr httpkit.Router) {
		for _, mw := range m.mws {
			rr.Use(mw)
		}
		if m.subrouter != nil {
			rr = m.subrouter(rr)
		}
		if m.register != nil {
			m.register(rr)
		}
	})
}

// Name returns the module name
func (m *Module) Name() string { return str.MustString(m.name, "module name") }

// Prefix returns the module route prefix
func (m *Module) Prefix() string { return "/" }

// Middlewares returns the module middlewares
func (m *Module) Middlewares() []func(http.Handler) http.Handler { return m.mws }
