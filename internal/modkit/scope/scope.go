// Package scope carries scan run attribution across pipeline stage boundaries
package scope

import "context"

// Scope holds cross boundary attributes for the active scan run
// stages stamp their name as they start so a failure can be pinned to a stage
// without threading extra parameters through every helper
type Scope struct {
	Values map[string]string
}

type key struct{}

// well known attribute keys
const (
	keyRunID = "run_id"
	keyMode  = "mode"
	keyStage = "stage"
)

// With merges values into scope on ctx
// the parent scope is copied, not mutated, so sibling stages stay isolated
func With(ctx context.Context, kv map[string]string) context.Context {
	s := From(ctx)
	merged := make(map[string]string, len(s.Values)+len(kv))
	for k, v := range s.Values {
		merged[k] = v
	}
	for k, v := range kv {
		merged[k] = v
	}
	return context.WithValue(ctx, key{}, Scope{Values: merged})
}

// Get returns a value and a boolean
func Get(ctx context.Context, k string) (string, bool) {
	s := From(ctx)
	v, ok := s.Values[k]
	return v, ok
}

// From returns scope on ctx or an empty one
func From(ctx context.Context) Scope {
	v := ctx.Value(key{})
	if v == nil {
		return Scope{Values: make(map[string]string)}
	}
	s, _ := v.(Scope)
	if s.Values == nil {
		s.Values = make(map[string]string)
	}
	return s
}

// WithRun stamps the scan run identity for everything under ctx
func WithRun(ctx context.Context, runID, mode string) context.Context {
	return With(ctx, map[string]string{keyRunID: runID, keyMode: mode})
}

// WithStage stamps the active pipeline stage
func WithStage(ctx context.Context, stage string) context.Context {
	return With(ctx, map[string]string{keyStage: stage})
}

// RunID returns the scan run id on ctx or empty
func RunID(ctx context.Context) string {
	v, _ := Get(ctx, keyRunID)
	return v
}

// Mode returns the scan mode on ctx or empty
func Mode(ctx context.Context) string {
	v, _ := Get(ctx, keyMode)
	return v
}

// Stage returns the active stage on ctx or empty
func Stage(ctx context.Context) string {
	v, _ := Get(ctx, keyStage)
	return v
}
