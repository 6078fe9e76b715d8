// Package service provides the scan-run bookkeeping service
package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"datalens/internal/core/schema"
	"datalens/internal/modkit/repokit"
	perr "datalens/internal/platform/errors"
	"datalens/internal/platform/logger"
	ptime "datalens/internal/platform/time"
	"datalens/internal/services/runs/repo"
)

// Config for the runs service
type Config struct {
	HardLimit int
}

// Service implements domain.LifecyclePort and domain.QueryPort
type Service struct {
	tx     repokit.TxRunner
	binder repokit.Binder[repo.Storage]
	cfg    Config
	log    logger.Logger

	now func() time.Time
}

// New constructs the runs service
func New(tx repokit.TxRunner, binder repokit.Binder[repo.Storage], cfg Config) *Service {
	if cfg.HardLimit <= 0 {
		cfg.HardLimit = 50
	}
	return &Service{
		tx:     tx,
		binder: binder,
		cfg:    cfg,
		log:    *logger.Named("runs"),
		now:    ptime.NowUTC,
	}
}

// Begin implements domain.LifecyclePort
func (s *Service) Begin(ctx context.Context, repository string, mode schema.ScanMode, commitSHA string) (schema.ScanRun, error) {
	if repository == "" || commitSHA == "" {
		return schema.ScanRun{}, perr.New(perr.ErrorCodeInvalidArgument, "runs: repository and commit sha are required")
	}
	run := schema.ScanRun{
		ID:         uuid.New(),
		Repository: repository,
		Mode:       mode,
		CommitSHA:  commitSHA,
		StartedAt:  s.now().UTC(),
		Status:     schema.RunRunning,
	}
	if err := s.binder.Bind(s.tx).Insert(ctx, run); err != nil {
		return schema.ScanRun{}, err
	}
	s.log.Info().Str("run_id", run.ID.String()).Str("mode", string(mode)).Str("repo", repository).Msg("run started")
	return run, nil
}

// Finish implements domain.LifecyclePort
func (s *Service) Finish(ctx context.Context, run schema.ScanRun) error {
	if run.FinishedAt == nil {
		run.FinishedAt = ptime.Ptr(s.now().UTC())
	}
	if err := s.binder.Bind(s.tx).Update(ctx, run); err != nil {
		return err
	}
	s.log.Info().
		Str("run_id", run.ID.String()).
		Str("status", string(run.Status)).
		Int("files", run.FilesScanned).
		Int("skipped", run.FilesSkipped).
		Int("facts", run.FactsAdded).
		Int("unresolved", run.Unresolved).
		Msg("run finished")
	return nil
}

// Get implements domain.QueryPort
func (s *Service) Get(ctx context.Context, id uuid.UUID) (schema.ScanRun, error) {
	return s.binder.Bind(s.tx).Get(ctx, id)
}

// List implements domain.QueryPort
func (s *Service) List(ctx context.Context, repository string, limit int) ([]schema.ScanRun, error) {
	if limit <= 0 || limit > s.cfg.HardLimit {
		limit = s.cfg.HardLimit
	}
	return s.binder.Bind(s.tx).List(ctx, repository, limit)
}

// Baseline implements domain.QueryPort
func (s *Service) Baseline(ctx context.Context, repository string) (schema.ScanRun, bool, error) {
	return s.binder.Bind(s.tx).LastSuccessful(ctx, repository)
}
