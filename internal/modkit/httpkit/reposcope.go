package httpkit

import (
	"net/http"
	"strings"

	pnet "datalens/internal/platform/net"
)

// RepoPort validates a repository scope before requests run under it
// implementations typically check the repository is known to the knowledge base
type RepoPort interface {
	Validate(r *http.Request, repository string) error
}

// RepoScope is middleware that reads the repo query param, validates it through
// the port when one is wired, and stamps it on the request context for handlers
// and repos downstream. Requests without a repo param pass through unscoped
func RepoScope(p RepoPort, write func(w http.ResponseWriter, status int, body any)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			repo := strings.TrimSpace(r.URL.Query().Get("repo"))
			if repo == "" {
				next.ServeHTTP(w, r)
				return
			}
			if p != nil {
				if err := p.Validate(r, repo); err != nil {
					status, body := pnet.Error(err, pnet.RequestID(r.Context()))
					write(w, status, body)
					return
				}
			}
			ctx := pnet.WithRequest(r.Context(), pnet.RequestID(r.Context()), repo)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
