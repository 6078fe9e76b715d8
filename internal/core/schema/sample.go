package schema

import (
	"time"

	"github.com/google/uuid"
)

// LengthRange bounds the observed lengths of a sampled field
type LengthRange struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// FieldShape is the structural description of one observed document field.
// Redacted shapes carry the type only: length and format are withheld even
// though they were computed
type FieldShape struct {
	Path     string       `json:"path"`
	Type     string       `json:"type"`
	Nullable bool         `json:"nullable,omitempty"`
	Length   *LengthRange `json:"length,omitempty"`
	Format   string       `json:"format,omitempty"`
	Redacted bool         `json:"redacted,omitempty"`
}

// Sample is the shape of a bounded random draw from one collection during one
// scan run. It never contains a literal field value; re-sampling the same
// (collection, run) replaces it
type Sample struct {
	Collection  string       `json:"collection"`
	ScanRunID   uuid.UUID    `json:"scan_run_id"`
	FieldShapes []FieldShape `json:"field_shapes"`
	CapturedAt  time.Time    `json:"captured_at"`
}
