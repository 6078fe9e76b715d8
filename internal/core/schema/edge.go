package schema

// EdgeKind names a relationship between two facts
type EdgeKind string

const (
	// EdgeUsesRecord links an operation to the record shape bound at its call site
	EdgeUsesRecord EdgeKind = "uses_record"
	// EdgeReferencesRecord links a record to another record named by one of its field types
	EdgeReferencesRecord EdgeKind = "references_record"
	// EdgeSameCollection links two operations resolved to the same collection
	EdgeSameCollection EdgeKind = "writes_to_same_collection_as"
)

// Edge is one directed relationship in the fact graph. Confidence is the
// product of the connected facts' confidences: record shapes count 1.0,
// operations count their resolution confidence
type Edge struct {
	From       FactID   `json:"from"`
	To         FactID   `json:"to"`
	Kind       EdgeKind `json:"kind"`
	Confidence float64  `json:"confidence"`
}
