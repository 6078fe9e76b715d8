package schema

// Method names how a collection binding was inferred
type Method string

const (
	MethodLiteral    Method = "literal_string"
	MethodBinding    Method = "variable_binding"
	MethodAnnotation Method = "attribute_annotation"
	MethodConvention Method = "convention_fallback"
	MethodUnresolved Method = "unresolved"
)

// Precedence orders methods for tie-breaking; lower binds stronger
func (m Method) Precedence() int {
	switch m {
	case MethodLiteral:
		return 0
	case MethodBinding:
		return 1
	case MethodAnnotation:
		return 2
	case MethodConvention:
		return 3
	}
	return 4
}

// Candidate is one possible collection binding for an operation
type Candidate struct {
	Name       string  `json:"name"`
	Confidence float64 `json:"confidence"`
	Method     Method  `json:"method"`
}

// Resolution binds an operation fact to its inferred collection. Collection
// is empty and Confidence zero when no method applied; the operation is kept
// for curation, never dropped
type Resolution struct {
	OperationID FactID      `json:"operation_id"`
	Collection  string      `json:"collection,omitempty"`
	Confidence  float64     `json:"confidence"`
	Method      Method      `json:"method"`
	Candidates  []Candidate `json:"candidates,omitempty"`
}

// Resolved reports whether the resolution names a collection
func (r Resolution) Resolved() bool {
	return r.Method != MethodUnresolved && r.Collection != ""
}
