// Package api provides the read-only HTTP query surface over the knowledge base
package api

import (
	"context"
	stdhttp "net/http"
	"time"

	"datalens/internal/platform/config"
	perr "datalens/internal/platform/errors"
	"datalens/internal/platform/logger"
	phttp "datalens/internal/platform/net/http"
	"datalens/internal/platform/net/middleware"
	"datalens/internal/platform/store"

	"datalens/internal/modkit"
	"datalens/internal/modkit/httpkit"
	"datalens/internal/modkit/module"
	"datalens/internal/modkit/swaggerkit"

	kbmod "datalens/internal/services/api/kb/module"
	metamod "datalens/internal/services/api/meta/module"
	factsmod "datalens/internal/services/facts/module"
	runsdomain "datalens/internal/services/runs/domain"
	runsmod "datalens/internal/services/runs/module"
	samplesmod "datalens/internal/services/samples/module"
)

// Options are the API options
type Options struct {
	Config         config.Conf
	Store          *store.Store
	Logger         *logger.Logger
	EnableSwagger  bool
	EnableProfiler bool

	// Token gates the query endpoints behind a static bearer token when set.
	// Monitoring endpoints stay open either way
	Token string
}

// Mount mounts the API service onto the given router
func Mount(r phttp.Router, opt Options) {
	// shared deps for modules
	deps := modkit.Deps{
		Cfg: opt.Config,
		PG:  opt.Store.PG,
		CH:  opt.Store.CH,
	}

	// Storage-owning modules come up first so their query ports can be
	// injected into the HTTP-facing kb module
	facts := factsmod.New(deps)
	runs := runsmod.New(deps)
	module.Register(facts.Name(), facts.Ports())
	module.Register(runs.Name(), runs.Ports())

	kbPorts := kbmod.Ports{
		Facts: module.MustPortsOf[factsmod.Ports](facts).Query,
		Runs:  module.MustPortsOf[runsmod.Ports](runs).Query,
	}
	// the sample endpoint is served only when ClickHouse is configured
	if opt.Store.CH != nil {
		samples := samplesmod.New(deps)
		kbPorts.Samples = module.MustPortsOf[samplesmod.Ports](samples).Query
		module.Register(samples.Name(), samples.Ports())
	}

	// ?repo= filters are validated against run history and stamped on the
	// request context before kb handlers see them
	kb := kbmod.New(deps,
		modkit.WithPorts(kbPorts),
		modkit.WithMiddlewares(httpkit.RepoScope(repoGate{runs: kbPorts.Runs}, phttp.JSON)),
	)

	meta := metamod.New(deps)

	// versioned API with a common middleware stack; kb routes sit at the
	// version root so the public paths are /v1/search, /v1/types/{symbol},
	// /v1/runs and /v1/samples/{collection}
	httpkit.MountUnder(r, "/v1", httpkit.CommonStack(), func(api httpkit.Router) {
		swaggerkit.Mount(r, opt.EnableSwagger)
		phttp.MountProfiler(r, "/debug", opt.EnableProfiler)

		module.Register(meta.Name(), meta.Ports())
		meta.MountRoutes(api)

		mountKB := func(gr httpkit.Router) {
			module.Register(kb.Name(), kb.Ports())
			kb.MountRoutes(gr)
		}
		if opt.Token != "" {
			httpkit.Protected(api, "/v1", middleware.StaticToken(opt.Token), mountKB)
			return
		}
		mountKB(api)
	})

	// liveness endpoint for load balancers stays at the root
	phttp.GetJSON(r, "/healthz", healthz(opt.Store))
}

// repoGate treats a repository as known once it has at least one recorded scan run
type repoGate struct {
	runs runsdomain.QueryPort
}

func (g repoGate) Validate(r *stdhttp.Request, repository string) error {
	rows, err := g.runs.List(r.Context(), repository, 1)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return perr.NotFoundf("repository %q has no recorded scans", repository)
	}
	return nil
}

// healthz reports process liveness plus backing store reachability
func healthz(st *store.Store) func(*stdhttp.Request) (any, error) {
	return func(r *stdhttp.Request) (any, error) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := st.Guard(ctx); err != nil {
			return nil, perr.Unavailablef("backing store unreachable: %v", err)
		}
		return map[string]bool{"ok": true}, nil
	}
}
