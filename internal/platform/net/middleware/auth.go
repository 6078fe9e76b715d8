package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	perr "datalens/internal/platform/errors"
	pnet "datalens/internal/platform/net"
)

// TokenPort is a tiny seam for request authentication
type TokenPort interface {
	// Verify inspects the request credentials and returns an error to reject it
	Verify(r *http.Request) error
}

// StaticToken verifies a constant bearer token from the Authorization header
type StaticToken string

// Verify checks for "Authorization: Bearer <token>" with a constant time compare
func (s StaticToken) Verify(r *http.Request) error {
	raw := r.Header.Get("Authorization")
	if raw == "" {
		return perr.Unauthorizedf("missing authorization header")
	}
	got, ok := strings.CutPrefix(raw, "Bearer ")
	if !ok {
		return perr.Unauthorizedf("authorization header is not a bearer token")
	}
	if subtle.ConstantTimeCompare([]byte(got), []byte(s)) != 1 {
		return perr.Unauthorizedf("invalid token")
	}
	return nil
}

// Auth gates requests behind the port when provided. A nil port is a no-op
func Auth(p TokenPort, write func(w http.ResponseWriter, status int, body any)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if p == nil {
				next.ServeHTTP(w, r)
				return
			}
			if err := p.Verify(r); err != nil {
				status, body := pnet.Error(err, pnet.RequestID(r.Context()))
				write(w, status, body)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
