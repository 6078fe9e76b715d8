// Package service implements the scan orchestrator: a state machine driving
// planning, extraction, resolution, sampling and the knowledge-base commit
// for one run
package service

import (
	"context"
	"time"

	"datalens/internal/core/parse"
	"datalens/internal/core/policy"
	"datalens/internal/core/schema"
	"datalens/internal/modkit/scope"
	perr "datalens/internal/platform/errors"
	"datalens/internal/platform/logger"
	ptime "datalens/internal/platform/time"
	factsdomain "datalens/internal/services/facts/domain"
	runsdomain "datalens/internal/services/runs/domain"
	samplesdomain "datalens/internal/services/samples/domain"
	"datalens/internal/services/scan/domain"
)

// OpenSource pins a repository view for one run
type OpenSource func(path string) (domain.Source, error)

// SamplerFactory opens the document store for one run's sampling pass; the
// returned release closes it. A nil factory disables sampling
type SamplerFactory func(ctx context.Context, pol *policy.Policy) (samplesdomain.SamplerPort, func(), error)

// Config for the scan service
type Config struct {
	// Workers bounds the extraction pool
	Workers int
}

// Service implements domain.OrchestratorPort
type Service struct {
	runs    runsdomain.LifecyclePort
	history runsdomain.QueryPort
	facts   factsdomain.WriterPort
	parser  parse.Parser
	open    OpenSource
	sampler SamplerFactory
	cfg     Config
	log     logger.Logger

	now func() time.Time
}

// New constructs the scan orchestrator
func New(
	runs runsdomain.LifecyclePort,
	history runsdomain.QueryPort,
	facts factsdomain.WriterPort,
	parser parse.Parser,
	open OpenSource,
	sampler SamplerFactory,
	cfg Config,
) *Service {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	return &Service{
		runs:    runs,
		history: history,
		facts:   facts,
		parser:  parser,
		open:    open,
		sampler: sampler,
		cfg:     cfg,
		log:     *logger.Named("scan"),
		now:     ptime.NowUTC,
	}
}

// Run implements domain.OrchestratorPort. Stages are sequential; a failure
// at any stage keeps every file batch already committed and records the
// failed stage on the run
func (s *Service) Run(ctx context.Context, opts domain.Options) (schema.ScanRun, error) {
	switch opts.Mode {
	case schema.ModeIncremental, schema.ModeFull, schema.ModeIntegrity:
	default:
		return aborted(opts), perr.Newf(perr.ErrorCodeInvalidArgument, "scan: invalid mode %q", opts.Mode)
	}
	if opts.RepoPath == "" {
		return aborted(opts), perr.New(perr.ErrorCodeInvalidArgument, "scan: repository path is required")
	}

	src, err := s.open(opts.RepoPath)
	if err != nil {
		s.log.Error().Err(err).Str("path", opts.RepoPath).Msg("cannot open repository")
		return aborted(opts), err
	}
	pol, err := policy.ForRepo(opts.RepoPath, opts.PolicyPath)
	if err != nil {
		s.log.Error().Err(err).Msg("cannot load scan policy")
		return aborted(opts), err
	}

	run, err := s.runs.Begin(ctx, src.Identity(), opts.Mode, src.Head())
	if err != nil {
		s.log.Error().Err(err).Msg("cannot record scan run")
		return aborted(opts), err
	}
	ctx = scope.WithRun(ctx, run.ID.String(), string(run.Mode))

	files, err := s.plan(ctx, src, pol, &run, opts)
	if err != nil {
		return s.fail(ctx, run, schema.StagePlanning, err)
	}

	extracted, err := s.extract(ctx, src, &run, files)
	if err != nil {
		return s.fail(ctx, run, schema.StageExtracting, err)
	}

	inferred, err := s.resolveAll(ctx, pol, &run, extracted)
	if err != nil {
		return s.fail(ctx, run, schema.StageResolving, err)
	}

	if err := s.sample(ctx, pol, &run, inferred.collections); err != nil {
		return s.fail(ctx, run, schema.StageSampling, err)
	}

	if err := s.commit(ctx, pol, &run, extracted, inferred); err != nil {
		return s.fail(ctx, run, schema.StageCommitting, err)
	}

	run.Status = schema.RunDone
	if err := s.runs.Finish(ctx, run); err != nil {
		s.log.Error().Err(err).Msg("cannot record finished run")
		return s.fail(ctx, run, schema.StageCommitting, err)
	}
	logger.C(ctx).Info().
		Str("repo", run.Repository).
		Int("files_scanned", run.FilesScanned).
		Int("files_skipped", run.FilesSkipped).
		Int("facts_added", run.FactsAdded).
		Int("facts_retired", run.FactsRetired).
		Int("unresolved", run.Unresolved).
		Int("low_conf_edges", run.LowConfEdges).
		Int("drifted", run.Drifted).
		Msg("scan done")
	return run, nil
}

// aborted is the record for a run that failed before it could be persisted
func aborted(opts domain.Options) schema.ScanRun {
	return schema.ScanRun{
		Mode:        opts.Mode,
		Status:      schema.RunFailed,
		FailedStage: schema.StagePlanning,
	}
}

func (s *Service) fail(ctx context.Context, run schema.ScanRun, stage schema.Stage, err error) (schema.ScanRun, error) {
	run.Status = schema.RunFailed
	run.FailedStage = stage
	if finErr := s.runs.Finish(ctx, run); finErr != nil {
		s.log.Error().Err(finErr).Str("run_id", run.ID.String()).Msg("cannot record failed run")
	}
	logger.C(ctx).Error().Err(err).Str("stage", string(stage)).Msg("scan failed")
	return run, err
}
