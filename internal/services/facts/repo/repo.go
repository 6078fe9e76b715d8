// Package repo provides the knowledge-base repository implementation:
// an append-only fact log plus a latest view of one row per live identity
package repo

import (
	"context"
	"fmt"
	"strings"
	"time"

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

// FactRow is the flattened write form of one fact revision. Resolution
// columns are zero-valued for record shapes
type FactRow struct {
	FactID      int64
	Repository  string
	FilePath    string
	SymbolName  string
	Kind        string
	CommitSHA   string
	RunID       uuid.UUID
	Payload     []byte
	PayloadHash int64
	Collection  string
	Confidence  float64
	Method      string
	CapturedAt  time.Time
}

// SearchRow is the raw search candidate before ranking
type SearchRow struct {
	FactID     int64
	Kind       string
	Repository string
	FilePath   string
	SymbolName string
	Collection string
	Confidence float64
	Method     string
	StartLine  int
	FieldsJSON string
}

// TypeRow is the stored form of one record-shape fact
type TypeRow struct {
	FactID  int64
	Payload []byte
}

// Storage defines the knowledge-base repository
type Storage interface {
	LockRepository(ctx context.Context, repository string) error
	UpsertFact(ctx context.Context, row FactRow) (added bool, err error)
	UpsertEdges(ctx context.Context, runID uuid.UUID, edges []schema.Edge, now time.Time) error

	BumpMisses(ctx context.Context, repository string, seen []int64, now time.Time) error
	RetirePast(ctx context.Context, repository string, threshold int, now time.Time) (int, error)
	MarkDrift(ctx context.Context, repository string, seen []int64, now time.Time) (int, error)
	ClearDrift(ctx context.Context, repository string, seen []int64, now time.Time) error

	SearchRows(ctx context.Context, query string, limit int) ([]SearchRow, error)
	TypeRow(ctx context.Context, symbolName string) (TypeRow, error)
	CollectionFor(ctx context.Context, factID int64) (collection string, confidence float64, err error)
}

// LockRepository takes the per-repository advisory lock for the current
// transaction. Commits for one repository serialize here so identity races
// cannot produce lost updates
func (s *pg) LockRepository(ctx context.Context, repository string) error {
	_, err := s.q.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, repository)
	return perr.FromPostgres(err, "lock repository")
}

// UpsertFact appends a log revision and points the latest view at it. A
// payload identical to the current revision refreshes liveness columns
// without appending, so re-running the same scan leaves the log untouched
func (s *pg) UpsertFact(ctx context.Context, row FactRow) (bool, error) {
	curHash, err := store.Scalar[int64](ctx, s.q,
		`SELECT payload_hash FROM fact_latest WHERE fact_id = $1`, row.FactID)
	switch {
	case err == nil && curHash == row.PayloadHash:
		_, err = s.q.Exec(ctx, `
			UPDATE fact_latest SET
				collection = $2, confidence = $3, method = $4,
				retired = FALSE, drifted = FALSE, missed_full_scans = 0,
				last_seen_run = $5, updated_at = $6
			WHERE fact_id = $1`,
			row.FactID, row.Collection, row.Confidence, row.Method, row.RunID, row.CapturedAt,
		)
		return false, perr.FromPostgres(err, "refresh fact")
	case err != nil && !noRows(err):
		return false, perr.FromPostgres(err, "read fact hash")
	}

	var logID int64
	err = s.q.QueryRow(ctx, `
		INSERT INTO fact_log
			(fact_id, repository, file_path, symbol_name, kind, commit_sha,
			scan_run_id, payload, payload_hash, captured_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		RETURNING log_id`,
		row.FactID, row.Repository, row.FilePath, row.SymbolName, row.Kind, row.CommitSHA,
		row.RunID, row.Payload, row.PayloadHash, row.CapturedAt,
	).Scan(&logID)
	if err != nil {
		return false, perr.FromPostgres(err, "append fact log")
	}

	_, err = s.q.Exec(ctx, `
		INSERT INTO fact_latest
			(fact_id, log_id, repository, file_path, symbol_name, kind,
			collection, confidence, method, payload, payload_hash,
			retired, drifted, missed_full_scans, last_seen_run, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,FALSE,FALSE,0,$12,$13)
		ON CONFLICT (fact_id) DO UPDATE SET
			log_id = EXCLUDED.log_id,
			file_path = EXCLUDED.file_path,
			symbol_name = EXCLUDED.symbol_name,
			collection = EXCLUDED.collection,
			confidence = EXCLUDED.confidence,
			method = EXCLUDED.method,
			payload = EXCLUDED.payload,
			payload_hash = EXCLUDED.payload_hash,
			retired = FALSE,
			drifted = FALSE,
			missed_full_scans = 0,
			last_seen_run = EXCLUDED.last_seen_run,
			updated_at = EXCLUDED.updated_at`,
		row.FactID, logID, row.Repository, row.FilePath, row.SymbolName, row.Kind,
		row.Collection, row.Confidence, row.Method, row.Payload, row.PayloadHash,
		row.RunID, row.CapturedAt,
	)
	if err != nil {
		return false, perr.FromPostgres(err, "upsert fact latest")
	}
	return true, nil
}

// UpsertEdges writes the run's edges in one statement. Re-inferred edges
// refresh confidence and liveness instead of duplicating
func (s *pg) UpsertEdges(ctx context.Context, runID uuid.UUID, edges []schema.Edge, now time.Time) error {
	if len(edges) == 0 {
		return nil
	}

	var sb strings.Builder
	sb.WriteString(`INSERT INTO relationship_edges
		(from_id, to_id, kind, confidence, last_seen_run, updated_at) VALUES `)

	args := make([]any, 0, len(edges)*6)
	for i, e := range edges {
		if i > 0 {
			sb.WriteByte(',')
		}
		base := i*6 + 1
		fmt.Fprintf(&sb, "($%d,$%d,$%d,$%d,$%d,$%d)", base, base+1, base+2, base+3, base+4, base+5)
		args = append(args, e.From.Int64(), e.To.Int64(), string(e.Kind), e.Confidence, runID, now)
	}
	sb.WriteString(` ON CONFLICT (from_id, to_id, kind) DO UPDATE SET
		confidence = EXCLUDED.confidence,
		last_seen_run = EXCLUDED.last_seen_run,
		updated_at = EXCLUDED.updated_at`)

	_, err := s.q.Exec(ctx, sb.String(), args...)
	return perr.FromPostgres(err, "upsert edges")
}

func noRows(err error) bool {
	return err != nil && strings.Contains(err.Error(), "no rows")
}
