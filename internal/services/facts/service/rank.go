package service

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/agext/levenshtein"

	"datalens/internal/core/ident"
	"datalens/internal/core/schema"
	"datalens/internal/services/facts/domain"
	"datalens/internal/services/facts/repo"
)

// rank scores candidates against the query and orders them best-first. A
// candidate's score is its strongest match across symbol name, resolved
// collection and declared field names
func rank(query string, rows []repo.SearchRow) []domain.SearchHit {
	q := strings.ToLower(strings.TrimSpace(query))
	qTokens := ident.Tokens(q)

	hits := make([]domain.SearchHit, 0, len(rows))
	for _, r := range rows {
		best, matched := score(q, qTokens, r.SymbolName), "symbol"
		if s := score(q, qTokens, r.Collection); s > best {
			best, matched = s, "collection"
		}
		for _, f := range fieldNames(r.FieldsJSON) {
			if s := score(q, qTokens, f); s > best {
				best, matched = s, "field"
			}
		}

		hits = append(hits, domain.SearchHit{
			ID:         schema.IDFromInt64(r.FactID),
			Kind:       schema.FactKind(r.Kind),
			SymbolName: r.SymbolName,
			Repository: r.Repository,
			FilePath:   r.FilePath,
			StartLine:  r.StartLine,
			Collection: r.Collection,
			Confidence: r.Confidence,
			Method:     schema.Method(r.Method),
			MatchedOn:  matched,
			Score:      best,
		})
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		if hits[i].SymbolName != hits[j].SymbolName {
			return hits[i].SymbolName < hits[j].SymbolName
		}
		return hits[i].FilePath < hits[j].FilePath
	})
	return hits
}

// score rates how well target answers the query: exact match 1.0, substring
// 0.95, otherwise the better of whole-string and token-wise normalized edit
// similarity
func score(q string, qTokens []string, target string) float64 {
	if target == "" {
		return 0
	}
	t := strings.ToLower(target)
	if t == q {
		return 1.0
	}
	if strings.Contains(t, q) {
		return 0.95
	}

	best := editSim(q, t)

	tTokens := ident.Tokens(t)
	if len(qTokens) > 0 && len(tTokens) > 0 {
		total := 0.0
		for _, qt := range qTokens {
			tokenBest := 0.0
			for _, tt := range tTokens {
				if s := editSim(qt, tt); s > tokenBest {
					tokenBest = s
				}
			}
			total += tokenBest
		}
		if s := total / float64(len(qTokens)); s > best {
			best = s
		}
	}
	return best
}

func editSim(a, b string) float64 {
	max := len(a)
	if len(b) > max {
		max = len(b)
	}
	if max == 0 {
		return 0
	}
	s := 1.0 - float64(levenshtein.Distance(a, b, nil))/float64(max)
	if s < 0 {
		return 0
	}
	return s
}

func fieldNames(fieldsJSON string) []string {
	if fieldsJSON == "" || fieldsJSON == "[]" {
		return nil
	}
	var fields []schema.Field
	if err := json.Unmarshal([]byte(fieldsJSON), &fields); err != nil {
		return nil
	}
	names := make([]string, 0, len(fields))
	for _, f := range fields {
		names = append(names, f.Name)
	}
	return names
}
