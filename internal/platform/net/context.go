// Package net provides utilities for working with request contexts
package net

import (
	"context"

	chimw "github.com/go-chi/chi/v5/middleware"
)

// ctxKey is an unexported key type for context values
type ctxKey string

const keyRepository ctxKey = "repository"

// WithRequest annotates context with common request scoped ids
//
// repo is the canonical repository identity a knowledge base request is
// scoped to, for example "github.com/acme/orders"
func WithRequest(ctx context.Context, reqID, repo string) context.Context {
	if reqID != "" {
		// set chi RequestID so chimw.GetReqID can retrieve it
		ctx = context.WithValue(ctx, chimw.RequestIDKey, reqID)
	}
	if repo != "" {
		ctx = context.WithValue(ctx, keyRepository, repo)
	}
	return ctx
}

// RequestID returns the request id on the context if present
func RequestID(ctx context.Context) string {
	if v := chimw.GetReqID(ctx); v != "" {
		return v
	}
	return ""
}

// Repository returns the repository scope on the context if present
func Repository(ctx context.Context) string {
	if v, ok := ctx.Value(keyRepository).(string); ok {
		return v
	}
	return ""
}
