// Package repo stores field-shape samples in ClickHouse. One row per
// observed field path; an empty sample keeps a single marker row so a
// degraded pass is still visible
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"

	"datalens/internal/core/schema"
	perr "datalens/internal/platform/errors"
	"datalens/internal/platform/store"
)

// CH implements sample storage on ClickHouse
type CH struct {
	ch store.Clickhouse
}

// NewCH constructs the ClickHouse samples repo
func NewCH(ch store.Clickhouse) *CH { return &CH{ch: ch} }

const table = "field_samples"

// markerPath tags the row written for an empty sample
const markerPath = ""

// Write appends the sample's rows. The table is a ReplacingMergeTree keyed
// by (collection, scan_run_id, path), so re-writing the same sample
// collapses instead of duplicating
func (r *CH) Write(ctx context.Context, s schema.Sample) error {
	rows := make([][]any, 0, len(s.FieldShapes)+1)
	if len(s.FieldShapes) == 0 {
		rows = append(rows, row(s, schema.FieldShape{Path: markerPath}))
	}
	for _, fs := range s.FieldShapes {
		rows = append(rows, row(s, fs))
	}
	if err := r.ch.Insert(ctx, table, rows); err != nil {
		return perr.Wrapf(err, perr.ErrorCodeUnavailable, "write sample %s", s.Collection)
	}
	return nil
}

func row(s schema.Sample, fs schema.FieldShape) []any {
	var lenMin, lenMax int32
	hasLen := fs.Length != nil
	if hasLen {
		lenMin, lenMax = int32(fs.Length.Min), int32(fs.Length.Max)
	}
	return []any{
		s.Collection,
		s.ScanRunID,
		fs.Path,
		fs.Type,
		fs.Nullable,
		lenMin,
		lenMax,
		hasLen,
		fs.Format,
		fs.Redacted,
		s.CapturedAt,
	}
}

// Latest reads the newest run's sample for the collection
func (r *CH) Latest(ctx context.Context, collection string) (schema.Sample, bool, error) {
	rows, err := r.ch.Query(ctx, `
		SELECT scan_run_id, path, type, nullable, len_min, len_max, has_len, format, redacted, captured_at
		FROM field_samples FINAL
		WHERE collection = ?
			AND scan_run_id = (
				SELECT scan_run_id FROM field_samples
				WHERE collection = ?
				ORDER BY captured_at DESC
				LIMIT 1
			)
		ORDER BY path`,
		collection, collection,
	)
	if err != nil {
		return schema.Sample{}, false, perr.Wrapf(err, perr.ErrorCodeUnavailable, "latest sample %s", collection)
	}
	defer rows.Close()
	return collect(rows, collection)
}

// ForRun reads the sample one run captured for the collection
func (r *CH) ForRun(ctx context.Context, collection string, runID uuid.UUID) (schema.Sample, bool, error) {
	rows, err := r.ch.Query(ctx, `
		SELECT scan_run_id, path, type, nullable, len_min, len_max, has_len, format, redacted, captured_at
		FROM field_samples FINAL
		WHERE collection = ? AND scan_run_id = ?
		ORDER BY path`,
		collection, runID,
	)
	if err != nil {
		return schema.Sample{}, false, perr.Wrapf(err, perr.ErrorCodeUnavailable, "sample %s for run %s", collection, runID)
	}
	defer rows.Close()
	return collect(rows, collection)
}

func collect(rows store.Rows, collection string) (schema.Sample, bool, error) {
	s := schema.Sample{Collection: collection}
	found := false
	for rows.Next() {
		var (
			runID          uuid.UUID
			path, typ      string
			nullable       bool
			lenMin, lenMax int32
			hasLen         bool
			format         string
			redacted       bool
			capturedAt     time.Time
		)
		if err := rows.Scan(&runID, &path, &typ, &nullable, &lenMin, &lenMax, &hasLen, &format, &redacted, &capturedAt); err != nil {
			return schema.Sample{}, false, perr.Wrapf(err, perr.ErrorCodeUnknown, "scan sample row")
		}
		found = true
		s.ScanRunID = runID
		s.CapturedAt = capturedAt
		if path == markerPath {
			continue
		}
		fs := schema.FieldShape{
			Path:     path,
			Type:     typ,
			Nullable: nullable,
			Format:   format,
			Redacted: redacted,
		}
		if hasLen {
			fs.Length = &schema.LengthRange{Min: int(lenMin), Max: int(lenMax)}
		}
		s.FieldShapes = append(s.FieldShapes, fs)
	}
	if err := rows.Err(); err != nil {
		return schema.Sample{}, false, perr.Wrapf(err, perr.ErrorCodeUnavailable, "read sample rows")
	}
	return s, found, nil
}
