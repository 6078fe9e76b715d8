// Package http provides http transport for knowledge-base queries
package http

import (
	stdhttp "net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"datalens/internal/modkit/httpkit"
	"datalens/internal/services/api/kb/domain"
	svc "datalens/internal/services/api/kb/service"
)

// Register mounts knowledge-base endpoints on the given router
func Register(r httpkit.Router, s svc.Service) {
	h := &handlers{svc: s}
	httpkit.Get(r, "/search", h.search)
	httpkit.Get(r, "/types/{symbol}", h.typeDetail)
	httpkit.Get(r, "/runs", h.runs)
	httpkit.Get(r, "/runs/{id}", h.run)
	httpkit.Get(r, "/samples/{collection}", h.sample)
}

type handlers struct{ svc svc.Service }

func intQuery(r *stdhttp.Request, key string) int {
	n, _ := strconv.Atoi(r.URL.Query().Get(key))
	return n
}

// swagger:route GET /v1/search KB kbSearch
// @Summary Ranked search over records, operations and collections
// @Tags KB
// @Produce json
// @Param q query string true "Free-form query"
// @Param limit query int false "Max hits (default 20, cap 100)"
// @Success 200 {array} domain.SearchHit "ok"
// @Router /v1/search [get]
func (h *handlers) search(r *stdhttp.Request) (any, error) {
	in := domain.SearchInput{
		Q:     r.URL.Query().Get("q"),
		Limit: intQuery(r, "limit"),
	}
	return h.svc.Search(r.Context(), in)
}

// swagger:route GET /v1/types/{symbol} KB kbTypeDetail
// @Summary Newest live record shape for a symbol with collection binding
// @Tags KB
// @Produce json
// @Param symbol path string true "Record symbol name"
// @Success 200 {object} domain.TypeDetail "ok"
// @Router /v1/types/{symbol} [get]
func (h *handlers) typeDetail(r *stdhttp.Request) (any, error) {
	return h.svc.TypeDetail(r.Context(), chi.URLParam(r, "symbol"))
}

// swagger:route GET /v1/runs KB kbRuns
// @Summary Recent scan runs with final counters
// @Tags KB
// @Produce json
// @Param repo query string false "Filter to one repository"
// @Param limit query int false "Max runs (default 20, cap 100)"
// @Success 200 {array} domain.RunView "ok"
// @Router /v1/runs [get]
func (h *handlers) runs(r *stdhttp.Request) (any, error) {
	// scope is optional here; unscoped requests list runs across repositories
	repo, _ := httpkit.Repo(r)
	in := domain.RunsInput{
		Repo:  repo,
		Limit: intQuery(r, "limit"),
	}
	return h.svc.Runs(r.Context(), in)
}

// swagger:route GET /v1/runs/{id} KB kbRun
// @Summary One scan run by id
// @Tags KB
// @Produce json
// @Param id path string true "Run id (uuid)"
// @Success 200 {object} domain.RunView "ok"
// @Router /v1/runs/{id} [get]
func (h *handlers) run(r *stdhttp.Request) (any, error) {
	return h.svc.Run(r.Context(), chi.URLParam(r, "id"))
}

// swagger:route GET /v1/samples/{collection} KB kbSample
// @Summary Newest field-shape sample for a collection
// @Tags KB
// @Produce json
// @Param collection path string true "Collection name"
// @Success 200 {object} domain.Sample "ok"
// @Router /v1/samples/{collection} [get]
func (h *handlers) sample(r *stdhttp.Request) (any, error) {
	return h.svc.CollectionSample(r.Context(), chi.URLParam(r, "collection"))
}
