package repo

import (
	"context"
	"strings"

	"datalens/internal/modkit/repokit"
	perr "datalens/internal/platform/errors"
	"datalens/internal/platform/store"
)

// SearchRows returns unranked candidates matching the query on symbol name,
// resolved collection or a declared field name. The service ranks and trims
func (s *pg) SearchRows(ctx context.Context, query string, limit int) ([]SearchRow, error) {
	pattern := "%" + escapeLike(query) + "%"

	out, err := store.Many(ctx, s.q, scanSearchRow, `
		SELECT
			fact_id, kind, repository, file_path, symbol_name,
			collection, confidence, method,
			COALESCE((payload->'provenance'->>'start_line')::int, 0),
			COALESCE(payload->'fields', '[]'::jsonb)::text
		FROM fact_latest
		WHERE NOT retired AND (
			symbol_name ILIKE $1 ESCAPE '\'
			OR collection ILIKE $1 ESCAPE '\'
			OR EXISTS (
				SELECT 1
				FROM jsonb_array_elements(COALESCE(payload->'fields', '[]'::jsonb)) f
				WHERE f->>'name' ILIKE $1 ESCAPE '\'
			)
		)
		ORDER BY confidence DESC, symbol_name
		LIMIT $2`,
		pattern, limit,
	)
	if err != nil {
		return nil, perr.FromPostgres(err, "search facts")
	}
	return out, nil
}

func scanSearchRow(row repokit.Row) (SearchRow, error) {
	var r SearchRow
	err := row.Scan(
		&r.FactID, &r.Kind, &r.Repository, &r.FilePath, &r.SymbolName,
		&r.Collection, &r.Confidence, &r.Method, &r.StartLine, &r.FieldsJSON,
	)
	return r, err
}

// TypeRow returns the newest live record shape declared under the symbol
func (s *pg) TypeRow(ctx context.Context, symbolName string) (TypeRow, error) {
	var tr TypeRow
	err := s.q.QueryRow(ctx, `
		SELECT fact_id, payload
		FROM fact_latest
		WHERE symbol_name = $1 AND kind = 'record_shape' AND NOT retired
		ORDER BY updated_at DESC
		LIMIT 1`,
		symbolName,
	).Scan(&tr.FactID, &tr.Payload)
	if err != nil {
		if noRows(err) {
			return TypeRow{}, perr.Newf(perr.ErrorCodeNotFound, "type %q not found", symbolName)
		}
		return TypeRow{}, perr.FromPostgres(err, "get type")
	}
	return tr, nil
}

// CollectionFor finds the strongest collection binding among operations
// linked to the record by a uses_record edge
func (s *pg) CollectionFor(ctx context.Context, factID int64) (string, float64, error) {
	var (
		collection string
		confidence float64
	)
	err := s.q.QueryRow(ctx, `
		SELECT o.collection, o.confidence
		FROM relationship_edges e
		JOIN fact_latest o ON o.fact_id = e.from_id
		WHERE e.to_id = $1
			AND e.kind = 'uses_record'
			AND NOT o.retired
			AND o.collection <> ''
		ORDER BY o.confidence DESC, o.collection
		LIMIT 1`,
		factID,
	).Scan(&collection, &confidence)
	if err != nil {
		if noRows(err) {
			return "", 0, nil
		}
		return "", 0, perr.FromPostgres(err, "collection for record")
	}
	return collection, confidence, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
