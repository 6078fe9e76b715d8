package httpkit

import (
	"net/http"
	"strings"

	perrs "datalens/internal/platform/errors"
	pnet "datalens/internal/platform/net"
)

// Repo returns the repository a request is scoped to
// it prefers the context value stamped by RepoScope and falls back to the repo query param
func Repo(r *http.Request) (string, error) {
	if repo := pnet.Repository(r.Context()); repo != "" {
		return repo, nil
	}
	if repo := strings.TrimSpace(r.URL.Query().Get("repo")); repo != "" {
		return repo, nil
	}
	return "", perrs.InvalidArgf("missing repo scope")
}

// MustRepo returns the repository scope or panics
// only use on routes behind RepoScope with a required repo
func MustRepo(r *http.Request) string {
	repo, err := Repo(r)
	if err != nil {
		panic(err)
	}
	return repo
}

// BearerToken returns the raw bearer token from the Authorization header
func BearerToken(r *http.Request) (string, error) {
	authz := r.Header.Get("Authorization")
	if strings.TrimSpace(authz) == "" {
		return "", perrs.Unauthorizedf("missing bearer token")
	}
	// case-insensitive Bearer prefix (don't trim the whole header first)
	const prefix = "bearer "
	if len(authz) < len(prefix) || strings.ToLower(authz[:len(prefix)]) != prefix {
		return "", perrs.Unauthorizedf("missing bearer token")
	}
	raw := strings.TrimSpace(authz[len(prefix):])
	if raw == "" {
		return "", perrs.Unauthorizedf("missing bearer token")
	}
	return raw, nil
}

// MustBearerToken returns the raw bearer token or panics
// only use on routes protected by the auth middleware
func MustBearerToken(r *http.Request) string {
	raw, err := BearerToken(r)
	if err != nil {
		panic(err)
	}
	return raw
}
