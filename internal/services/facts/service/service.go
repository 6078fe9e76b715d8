// Package service provides the knowledge-base facts service
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"datalens/internal/core/schema"
	"datalens/internal/modkit/repokit"
	perr "datalens/internal/platform/errors"
	"datalens/internal/platform/logger"
	ptime "datalens/internal/platform/time"
	"datalens/internal/services/facts/domain"
	"datalens/internal/services/facts/repo"
)

// Config for the facts service
type Config struct {
	SearchLimit   int
	RetryAttempts int
	RetryBackoff  time.Duration
}

// Service implements domain.WriterPort and domain.QueryPort
type Service struct {
	tx     repokit.TxRunner
	binder repokit.Binder[repo.Storage]
	cfg    Config
	log    logger.Logger

	now   func() time.Time
	sleep func(time.Duration)
}

// New constructs the facts service
func New(tx repokit.TxRunner, binder repokit.Binder[repo.Storage], cfg Config) *Service {
	if cfg.SearchLimit <= 0 {
		cfg.SearchLimit = 50
	}
	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = 3
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 100 * time.Millisecond
	}
	return &Service{
		tx:     tx,
		binder: binder,
		cfg:    cfg,
		log:    *logger.Named("facts"),
		now:    ptime.NowUTC,
		sleep:  time.Sleep,
	}
}

// Merge implements domain.WriterPort
func (s *Service) Merge(ctx context.Context, runID uuid.UUID, batch schema.Batch) (domain.MergeStats, error) {
	if batch.Facts() == 0 {
		return domain.MergeStats{}, nil
	}

	rows, err := s.factRows(runID, batch)
	if err != nil {
		return domain.MergeStats{}, err
	}

	var stats domain.MergeStats
	err = s.withRetry(ctx, "merge "+batch.FilePath, func() error {
		stats = domain.MergeStats{}
		return repokit.WithTx(ctx, s.tx, func(q repokit.Queryer) error {
			st := s.binder.Bind(q)
			if err := st.LockRepository(ctx, batch.Repository); err != nil {
				return err
			}
			for _, row := range rows {
				added, err := st.UpsertFact(ctx, row)
				if err != nil {
					return err
				}
				if added {
					stats.Added++
				} else {
					stats.Unchanged++
				}
			}
			return nil
		})
	})
	if err != nil {
		return domain.MergeStats{}, err
	}
	s.log.Debug().
		Str("file", batch.FilePath).
		Int("added", stats.Added).
		Int("unchanged", stats.Unchanged).
		Msg("batch merged")
	return stats, nil
}

// factRows flattens a batch into write rows. Operation rows carry their
// resolution columns; record rows leave them zero
func (s *Service) factRows(runID uuid.UUID, batch schema.Batch) ([]repo.FactRow, error) {
	res := make(map[schema.FactID]schema.Resolution, len(batch.Resolutions))
	for _, r := range batch.Resolutions {
		res[r.OperationID] = r
	}
	now := s.now().UTC()

	rows := make([]repo.FactRow, 0, batch.Facts())
	for _, rec := range batch.Records {
		payload, err := json.Marshal(rec)
		if err != nil {
			return nil, perr.Wrapf(err, perr.ErrorCodeUnknown, "marshal record %s", rec.SymbolName)
		}
		rows = append(rows, repo.FactRow{
			FactID:      rec.ID.Int64(),
			Repository:  batch.Repository,
			FilePath:    batch.FilePath,
			SymbolName:  rec.SymbolName,
			Kind:        string(schema.KindRecordShape),
			CommitSHA:   batch.CommitSHA,
			RunID:       runID,
			Payload:     payload,
			PayloadHash: int64(schema.ContentHash(payload)),
			CapturedAt:  now,
		})
	}
	for _, op := range batch.Ops {
		payload, err := json.Marshal(op)
		if err != nil {
			return nil, perr.Wrapf(err, perr.ErrorCodeUnknown, "marshal op %s", op.Provenance.SymbolName)
		}
		row := repo.FactRow{
			FactID:      op.ID.Int64(),
			Repository:  batch.Repository,
			FilePath:    batch.FilePath,
			SymbolName:  op.Provenance.SymbolName,
			Kind:        string(op.Kind),
			CommitSHA:   batch.CommitSHA,
			RunID:       runID,
			Payload:     payload,
			PayloadHash: int64(schema.ContentHash(payload)),
			Method:      string(schema.MethodUnresolved),
			CapturedAt:  now,
		}
		if r, ok := res[op.ID]; ok {
			row.Collection = r.Collection
			row.Confidence = r.Confidence
			row.Method = string(r.Method)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// MergeEdges implements domain.WriterPort
func (s *Service) MergeEdges(ctx context.Context, runID uuid.UUID, edges []schema.Edge) error {
	if len(edges) == 0 {
		return nil
	}
	now := s.now().UTC()
	return s.withRetry(ctx, "merge edges", func() error {
		return repokit.WithTx(ctx, s.tx, func(q repokit.Queryer) error {
			return s.binder.Bind(q).UpsertEdges(ctx, runID, edges, now)
		})
	})
}

// RecordMisses implements domain.WriterPort
func (s *Service) RecordMisses(ctx context.Context, runID uuid.UUID, repository string, seen []schema.FactID, threshold int) (int, error) {
	if threshold <= 0 {
		return 0, perr.New(perr.ErrorCodeInvalidArgument, "facts: retirement threshold must be positive")
	}
	ids := int64IDs(seen)
	now := s.now().UTC()

	var retired int
	err := s.withRetry(ctx, "record misses", func() error {
		return repokit.WithTx(ctx, s.tx, func(q repokit.Queryer) error {
			st := s.binder.Bind(q)
			if err := st.LockRepository(ctx, repository); err != nil {
				return err
			}
			if err := st.BumpMisses(ctx, repository, ids, now); err != nil {
				return err
			}
			n, err := st.RetirePast(ctx, repository, threshold, now)
			retired = n
			return err
		})
	})
	if err != nil {
		return 0, err
	}
	if retired > 0 {
		s.log.Info().Str("repo", repository).Int("retired", retired).Msg("facts retired")
	}
	return retired, nil
}

// FlagDrift implements domain.WriterPort
func (s *Service) FlagDrift(ctx context.Context, repository string, seen []schema.FactID) (int, error) {
	ids := int64IDs(seen)
	now := s.now().UTC()

	var drifted int
	err := s.withRetry(ctx, "flag drift", func() error {
		return repokit.WithTx(ctx, s.tx, func(q repokit.Queryer) error {
			st := s.binder.Bind(q)
			if err := st.LockRepository(ctx, repository); err != nil {
				return err
			}
			n, err := st.MarkDrift(ctx, repository, ids, now)
			if err != nil {
				return err
			}
			drifted = n
			return st.ClearDrift(ctx, repository, ids, now)
		})
	})
	if err != nil {
		return 0, err
	}
	return drifted, nil
}

// Search implements domain.QueryPort
func (s *Service) Search(ctx context.Context, query string, limit int) ([]domain.SearchHit, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, perr.New(perr.ErrorCodeInvalidArgument, "facts: empty search query")
	}
	if limit <= 0 || limit > s.cfg.SearchLimit {
		limit = s.cfg.SearchLimit
	}

	// overfetch so ranking can reorder beyond the SQL sort
	pool := limit * 5
	if pool < 50 {
		pool = 50
	}
	rows, err := s.binder.Bind(s.tx).SearchRows(ctx, query, pool)
	if err != nil {
		return nil, err
	}

	hits := rank(query, rows)
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

// GetType implements domain.QueryPort
func (s *Service) GetType(ctx context.Context, symbolName string) (domain.TypeDetail, error) {
	symbolName = strings.TrimSpace(symbolName)
	if symbolName == "" {
		return domain.TypeDetail{}, perr.New(perr.ErrorCodeInvalidArgument, "facts: empty symbol name")
	}

	st := s.binder.Bind(s.tx)
	tr, err := st.TypeRow(ctx, symbolName)
	if err != nil {
		return domain.TypeDetail{}, err
	}

	var rec schema.RecordShape
	if err := json.Unmarshal(tr.Payload, &rec); err != nil {
		return domain.TypeDetail{}, perr.Wrapf(err, perr.ErrorCodeUnknown, "decode record %s", symbolName)
	}

	collection, confidence, err := st.CollectionFor(ctx, tr.FactID)
	if err != nil {
		return domain.TypeDetail{}, err
	}
	if collection == "" && rec.Annotation != "" {
		// no operation binds this record yet; the annotation rung still applies
		collection, confidence = rec.Annotation, 0.9
	}

	return domain.TypeDetail{
		Record:     rec,
		Collection: collection,
		Confidence: confidence,
		DeepLink:   deepLink(rec.Provenance),
	}, nil
}

// withRetry re-runs fn on transient knowledge-base contention with doubling
// backoff. Non-retryable errors and exhausted budgets return immediately
func (s *Service) withRetry(ctx context.Context, what string, fn func() error) error {
	backoff := s.cfg.RetryBackoff
	var err error
	for attempt := 1; attempt <= s.cfg.RetryAttempts; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if !perr.IsRetryable(err) || attempt == s.cfg.RetryAttempts {
			break
		}
		s.log.Warn().
			Str("op", what).
			Int("attempt", attempt).
			Dur("backoff", backoff).
			Err(err).
			Msg("retrying after contention")
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		s.sleep(backoff)
		backoff *= 2
	}
	return err
}

func int64IDs(ids []schema.FactID) []int64 {
	out := make([]int64, len(ids))
	for i, id := range ids {
		out[i] = id.Int64()
	}
	return out
}

// deepLink renders a browsable source location. Repository identities naming
// a forge host get a blob URL pinned to the captured commit; local
// identities fall back to a file URL
func deepLink(p schema.Provenance) string {
	if host, _, ok := strings.Cut(p.Repository, "/"); ok && strings.Contains(host, ".") {
		return fmt.Sprintf("https://%s/blob/%s/%s#L%d-L%d",
			p.Repository, p.CommitSHA, p.FilePath, p.StartLine, p.EndLine)
	}
	return fmt.Sprintf("file://%s/%s#L%d-L%d", p.Repository, p.FilePath, p.StartLine, p.EndLine)
}
