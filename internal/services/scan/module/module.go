// Package module implements the scan module
package module

import (
	"context"

	"datalens/internal/adapters/docstore"
	"datalens/internal/adapters/gitrepo"
	"datalens/internal/adapters/treesit"
	"datalens/internal/core/pii"
	"datalens/internal/core/policy"
	"datalens/internal/modkit"
	"datalens/internal/modkit/httpkit"
	samplesdomain "datalens/internal/services/samples/domain"
	samplesservice "datalens/internal/services/samples/service"
	"datalens/internal/services/scan/domain"
	"datalens/internal/services/scan/service"
)

// Ports exposed by the scan module
type Ports struct {
	Orchestrator domain.OrchestratorPort
}

// Module implements modkit.Module
type Module struct {
	deps  modkit.Deps
	ports Ports
}

// New constructs a new scan module. Dependency ports come in via
// modkit.WithPorts(scan/domain.Ports)
func New(deps modkit.Deps, overrides Options, opts ...modkit.Option) *Module {
	b := modkit.Build(append([]modkit.Option{
		modkit.WithName("scan"),
	}, opts...)...)

	ports, ok := b.Ports.(domain.Ports)
	if !ok {
		panic("scan module: expected WithPorts(scan/domain.Ports)")
	}
	if ports.Runs == nil || ports.History == nil || ports.FactsWriter == nil {
		panic("scan module: Ports missing Runs, History or FactsWriter")
	}

	cfg := FromConfig(deps.Cfg)
	if overrides.Workers != 0 {
		cfg.Workers = overrides.Workers
	}
	if overrides.MongoURI != "" {
		cfg.MongoURI = overrides.MongoURI
	}
	if overrides.MongoDatabase != "" {
		cfg.MongoDatabase = overrides.MongoDatabase
	}

	var factory service.SamplerFactory
	if cfg.MongoURI != "" {
		if ports.Samples == nil {
			panic("scan module: sampling configured but Ports.Samples is nil")
		}
		factory = samplerFactory(cfg, ports.Samples)
	}

	svc := service.New(
		ports.Runs,
		ports.History,
		ports.FactsWriter,
		treesit.New(),
		func(path string) (domain.Source, error) { return gitrepo.Open(path) },
		factory,
		service.Config{Workers: cfg.Workers},
	)

	m := &Module{deps: deps}
	m.ports = Ports{Orchestrator: svc}
	return m
}

// samplerFactory opens the document store per run so credentials and policy
// budgets are read at scan time, not process start
func samplerFactory(cfg Options, writer samplesdomain.WriterPort) service.SamplerFactory {
	return func(ctx context.Context, pol *policy.Policy) (samplesdomain.SamplerPort, func(), error) {
		pack, err := pii.Load()
		if err != nil {
			return nil, nil, err
		}
		if err := pol.ExtendPII(pack); err != nil {
			return nil, nil, err
		}

		store, err := docstore.Open(ctx, docstore.Options{
			URI:        cfg.MongoURI,
			Database:   cfg.MongoDatabase,
			SampleSize: pol.Sampler.SampleSize,
			ByteBudget: pol.Sampler.ByteBudget,
		})
		if err != nil {
			return nil, nil, err
		}

		sampler := samplesservice.NewSampler(store, writer, pii.NewClassifier(pack), samplesservice.SamplerConfig{
			Concurrency: pol.Sampler.Concurrency,
		})
		release := func() { _ = store.Close(context.Background()) }
		return sampler, release, nil
	}
}

// Name satisfies modkit.Module
func (m *Module) Name() string { return "scan" }

// Ports satisfies modkit.Module
func (m *Module) Ports() any { return m.ports }

// Prefix satisfies modkit.Module
func (m *Module) Prefix() string { return "" }

// MountRoutes satisfies modkit.Module
func (m *Module) MountRoutes(_ httpkit.Router) {}
