// Package repo provides the scan-run repository implementation
package repo

import (
	"context"

	"github.com/google/uuid"

	"datalens/internal/core/schema"
	"datalens/internal/modkit/repokit"
	perr "datalens/internal/platform/errors"
	"datalens/internal/platform/store"
)

type (
	pg     struct{ q repokit.Queryer }
	binder struct{}
)

// NewPG constructs a new repo binder for Postgres
func NewPG() repokit.Binder[Storage] { return binder{} }

// Bind implements repokit.Binder
func (binder) Bind(q repokit.Queryer) Storage { return &pg{q: q} }

// Storage defines the scan-run repository
type Storage interface {
	Insert(ctx context.Context, run schema.ScanRun) error
	Update(ctx context.Context, run schema.ScanRun) error
	Get(ctx context.Context, id uuid.UUID) (schema.ScanRun, error)
	List(ctx context.Context, repository string, limit int) ([]schema.ScanRun, error)
	LastSuccessful(ctx context.Context, repository string) (schema.ScanRun, bool, error)
}

const runColumns = `
	id, repository, mode, commit_sha, started_at, finished_at,
	files_scanned, files_skipped, facts_added, facts_retired,
	unresolved, low_conf_edges, drifted, status, failed_stage`

// Insert implements Storage
func (s *pg) Insert(ctx context.Context, run schema.ScanRun) error {
	_, err := s.q.Exec(ctx, `
		INSERT INTO scan_runs (`+runColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)`,
		run.ID, run.Repository, string(run.Mode), run.CommitSHA, run.StartedAt, run.FinishedAt,
		run.FilesScanned, run.FilesSkipped, run.FactsAdded, run.FactsRetired,
		run.Unresolved, run.LowConfEdges, run.Drifted, string(run.Status), string(run.FailedStage),
	)
	return perr.FromPostgres(err, "insert scan run")
}

// Update implements Storage
func (s *pg) Update(ctx context.Context, run schema.ScanRun) error {
	tag, err := s.q.Exec(ctx, `
		UPDATE scan_runs SET
			finished_at = $2, files_scanned = $3, files_skipped = $4,
			facts_added = $5, facts_retired = $6, unresolved = $7,
			low_conf_edges = $8, drifted = $9, status = $10, failed_stage = $11
		WHERE id = $1`,
		run.ID, run.FinishedAt, run.FilesScanned, run.FilesSkipped,
		run.FactsAdded, run.FactsRetired, run.Unresolved,
		run.LowConfEdges, run.Drifted, string(run.Status), string(run.FailedStage),
	)
	if err != nil {
		return perr.FromPostgres(err, "update scan run")
	}
	if tag.RowsAffected() == 0 {
		return perr.Newf(perr.ErrorCodeNotFound, "scan run %s not found", run.ID)
	}
	return nil
}

// Get implements Storage
func (s *pg) Get(ctx context.Context, id uuid.UUID) (schema.ScanRun, error) {
	run, err := store.One(ctx, s.q, scanRun,
		`SELECT `+runColumns+` FROM scan_runs WHERE id = $1`, id)
	if err != nil {
		if perr.IsCode(err, perr.ErrorCodeNotFound) {
			return schema.ScanRun{}, perr.Newf(perr.ErrorCodeNotFound, "scan run %s not found", id)
		}
		return schema.ScanRun{}, perr.FromPostgres(err, "get scan run")
	}
	return run, nil
}

// List implements Storage. An empty repository lists runs across all of them
func (s *pg) List(ctx context.Context, repository string, limit int) ([]schema.ScanRun, error) {
	out, err := store.Many(ctx, s.q, scanRun, `
		SELECT `+runColumns+`
		FROM scan_runs
		WHERE ($1 = '' OR repository = $1)
		ORDER BY started_at DESC
		LIMIT $2`,
		repository, limit,
	)
	if err != nil {
		return nil, perr.FromPostgres(err, "list scan runs")
	}
	return out, nil
}

// LastSuccessful implements Storage
func (s *pg) LastSuccessful(ctx context.Context, repository string) (schema.ScanRun, bool, error) {
	run, err := store.One(ctx, s.q, scanRun, `
		SELECT `+runColumns+`
		FROM scan_runs
		WHERE repository = $1 AND status = 'done'
		ORDER BY started_at DESC
		LIMIT 1`,
		repository,
	)
	if err != nil {
		if perr.IsCode(err, perr.ErrorCodeNotFound) {
			return schema.ScanRun{}, false, nil
		}
		return schema.ScanRun{}, false, perr.FromPostgres(err, "last successful run")
	}
	return run, true, nil
}

func scanRun(row repokit.Row) (schema.ScanRun, error) {
	var (
		run         schema.ScanRun
		mode        string
		status      string
		failedStage string
	)
	err := row.Scan(
		&run.ID, &run.Repository, &mode, &run.CommitSHA, &run.StartedAt, &run.FinishedAt,
		&run.FilesScanned, &run.FilesSkipped, &run.FactsAdded, &run.FactsRetired,
		&run.Unresolved, &run.LowConfEdges, &run.Drifted, &status, &failedStage,
	)
	if err != nil {
		return schema.ScanRun{}, err
	}
	run.Mode = schema.ScanMode(mode)
	run.Status = schema.RunStatus(status)
	run.FailedStage = schema.Stage(failedStage)
	return run, nil
}
