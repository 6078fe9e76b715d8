// Package httpkit provides tiny HTTP helpers and adapters
package httpkit

import (
	"net/http"

	perrs "datalens/internal/platform/errors"
)

// TokenFunc checks a raw bearer token
// return nil to accept the request, any error to reject it
type TokenFunc func(token string) error

// Port implements middleware.TokenPort by reading Authorization and delegating to a TokenFunc
type Port struct {
	verify TokenFunc
}

// NewPortFunc builds a Port from a simple verifier function
func NewPortFunc(fn TokenFunc) *Port {
	return &Port{verify: fn}
}

// Verify extracts the bearer token and runs the verifier
// returns unauthorized when the header is missing, malformed, or the verifier rejects
func (p *Port) Verify(r *http.Request) error {
	raw, err := BearerToken(r)
	if err != nil {
		return err
	}
	if p.verify == nil {
		return perrs.Unauthorizedf("invalid bearer token")
	}
	if err := p.verify(raw); err != nil {
		return perrs.Unauthorizedf("invalid bearer token")
	}
	return nil
}
