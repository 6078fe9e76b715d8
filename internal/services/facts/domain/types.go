// Package domain defines the types and interfaces for the facts service
package domain

import (
	"datalens/internal/core/schema"
)

// MergeStats summarizes one committed batch
type MergeStats struct {
	// Added counts new fact revisions appended to the log
	Added int
	// Unchanged counts identities whose payload matched the latest revision
	Unchanged int
}

// SearchHit is one ranked knowledge-base match
type SearchHit struct {
	ID         schema.FactID   `json:"id"`
	Kind       schema.FactKind `json:"kind"`
	SymbolName string          `json:"symbol_name"`
	Repository string          `json:"repository"`
	FilePath   string          `json:"file_path"`
	StartLine  int             `json:"start_line"`
	Collection string          `json:"collection,omitempty"`
	Confidence float64         `json:"confidence"`
	Method     schema.Method   `json:"method"`
	MatchedOn  string          `json:"matched_on"`
	Score      float64         `json:"score"`
}

// TypeDetail is the full view of one record shape: the fact, its inferred
// collection binding and a deep link into the source
type TypeDetail struct {
	Record     schema.RecordShape `json:"record"`
	Collection string             `json:"collection,omitempty"`
	Confidence float64            `json:"confidence,omitempty"`
	DeepLink   string             `json:"deep_link"`
}
