package store

import "context"

type (
	repoKey  struct{}
	reqIDKey struct{}
)

// WithRepo attaches a repository identity to the context
func WithRepo(ctx context.Context, repository string) context.Context {
	return context.WithValue(ctx, repoKey{}, repository)
}

// RepoFrom retrieves the repository identity from context if present
func RepoFrom(ctx context.Context) (string, bool) {
	v := ctx.Value(repoKey{})
	if v == nil {
		return "", false
	}
	s, _ := v.(string)
	return s, s != ""
}

// WithRequestID attaches a request id to the context
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, reqIDKey{}, id)
}

// RequestID retrieves a request id from context if present
func RequestID(ctx context.Context) (string, bool) {
	v := ctx.Value(reqIDKey{})
	if v == nil {
		return "", false
	}
	s, _ := v.(string)
	return s, s != ""
}
