package repo

import (
	"context"
	"time"

	perr "datalens/internal/platform/errors"
)

// BumpMisses increments the consecutive full-scan miss counter on every live
// fact of the repository that this scan did not see
func (s *pg) BumpMisses(ctx context.Context, repository string, seen []int64, now time.Time) error {
	_, err := s.q.Exec(ctx, `
		UPDATE fact_latest SET
			missed_full_scans = missed_full_scans + 1,
			updated_at = $3
		WHERE repository = $1
			AND NOT retired
			AND NOT (fact_id = ANY($2::bigint[]))`,
		repository, seen, now,
	)
	return perr.FromPostgres(err, "bump misses")
}

// RetirePast retires live facts whose miss counter reached the threshold.
// Retired facts leave the latest view; their log history stays
func (s *pg) RetirePast(ctx context.Context, repository string, threshold int, now time.Time) (int, error) {
	tag, err := s.q.Exec(ctx, `
		UPDATE fact_latest SET retired = TRUE, updated_at = $3
		WHERE repository = $1
			AND NOT retired
			AND missed_full_scans >= $2`,
		repository, threshold, now,
	)
	if err != nil {
		return 0, perr.FromPostgres(err, "retire facts")
	}
	return int(tag.RowsAffected()), nil
}

// MarkDrift flags live facts whose source symbol the integrity walk no
// longer found. Drifted facts stay in the latest view for curation
func (s *pg) MarkDrift(ctx context.Context, repository string, seen []int64, now time.Time) (int, error) {
	tag, err := s.q.Exec(ctx, `
		UPDATE fact_latest SET drifted = TRUE, updated_at = $3
		WHERE repository = $1
			AND NOT retired
			AND NOT drifted
			AND NOT (fact_id = ANY($2::bigint[]))`,
		repository, seen, now,
	)
	if err != nil {
		return 0, perr.FromPostgres(err, "mark drift")
	}
	return int(tag.RowsAffected()), nil
}

// ClearDrift lifts the drift flag from facts the integrity walk found again
func (s *pg) ClearDrift(ctx context.Context, repository string, seen []int64, now time.Time) error {
	_, err := s.q.Exec(ctx, `
		UPDATE fact_latest SET drifted = FALSE, updated_at = $3
		WHERE repository = $1
			AND drifted
			AND fact_id = ANY($2::bigint[])`,
		repository, seen, now,
	)
	return perr.FromPostgres(err, "clear drift")
}
