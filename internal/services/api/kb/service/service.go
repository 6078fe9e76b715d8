// Package service contains knowledge-base query workflows
package service

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"datalens/internal/core/schema"
	perr "datalens/internal/platform/errors"
	"datalens/internal/platform/net/http/bind"
	"datalens/internal/services/api/kb/domain"
	factsdomain "datalens/internal/services/facts/domain"
	runsdomain "datalens/internal/services/runs/domain"
	samplesdomain "datalens/internal/services/samples/domain"
)

// Service defines the service contract for knowledge-base queries
type Service interface{ domain.ServicePort }

const (
	defaultLimit = 20
	hardLimit    = 100
)

// Svc implements the Service interface
type Svc struct {
	facts   factsdomain.QueryPort
	runs    runsdomain.QueryPort
	samples samplesdomain.QueryPort
}

// New creates a new knowledge-base query service. The samples port may be
// nil when no sample store is configured
func New(facts factsdomain.QueryPort, runs runsdomain.QueryPort, samples samplesdomain.QueryPort) *Svc {
	if facts == nil {
		panic("kb.Service requires a non nil facts query port")
	}
	if runs == nil {
		panic("kb.Service requires a non nil runs query port")
	}
	return &Svc{facts: facts, runs: runs, samples: samples}
}

func clampLimit(n int) int {
	switch {
	case n <= 0:
		return defaultLimit
	case n > hardLimit:
		return hardLimit
	default:
		return n
	}
}

// validate runs the shared request validator over a query-built input
func validate(in any) error {
	if err := bind.Get().Validator.Struct(in); err != nil {
		_, msg := bind.ValidationFieldAndMessage(err)
		return perr.Newf(perr.ErrorCodeValidation, "%s", msg)
	}
	return nil
}

// Search ranks knowledge-base facts against a free-form query
func (s *Svc) Search(ctx context.Context, in domain.SearchInput) ([]factsdomain.SearchHit, error) {
	in.Q = strings.TrimSpace(in.Q)
	if err := validate(in); err != nil {
		return nil, err
	}
	return s.facts.Search(ctx, in.Q, clampLimit(in.Limit))
}

// TypeDetail returns the newest live record shape for a symbol
func (s *Svc) TypeDetail(ctx context.Context, symbol string) (factsdomain.TypeDetail, error) {
	symbol = strings.TrimSpace(symbol)
	if symbol == "" {
		return factsdomain.TypeDetail{}, perr.InvalidArgf("symbol is required")
	}
	return s.facts.GetType(ctx, symbol)
}

// Runs lists recent scan runs, newest first
func (s *Svc) Runs(ctx context.Context, in domain.RunsInput) ([]domain.RunView, error) {
	in.Repo = strings.TrimSpace(in.Repo)
	if err := validate(in); err != nil {
		return nil, err
	}
	rows, err := s.runs.List(ctx, in.Repo, clampLimit(in.Limit))
	if err != nil {
		return nil, err
	}
	out := make([]domain.RunView, 0, len(rows))
	for _, r := range rows {
		out = append(out, domain.NewRunView(r))
	}
	return out, nil
}

// Run fetches one scan run by id
func (s *Svc) Run(ctx context.Context, id string) (domain.RunView, error) {
	rid, err := uuid.Parse(strings.TrimSpace(id))
	if err != nil {
		return domain.RunView{}, perr.InvalidArgf("run id must be a uuid")
	}
	row, err := s.runs.Get(ctx, rid)
	if err != nil {
		return domain.RunView{}, err
	}
	return domain.NewRunView(row), nil
}

// CollectionSample returns the newest stored field-shape sample for a
// collection across all runs
func (s *Svc) CollectionSample(ctx context.Context, collection string) (schema.Sample, error) {
	collection = strings.TrimSpace(collection)
	if collection == "" {
		return schema.Sample{}, perr.InvalidArgf("collection is required")
	}
	if s.samples == nil {
		return schema.Sample{}, perr.Unavailablef("sample store is not configured")
	}
	sample, ok, err := s.samples.Latest(ctx, collection)
	if err != nil {
		return schema.Sample{}, err
	}
	if !ok {
		return schema.Sample{}, perr.NotFoundf("no sample recorded for collection %q", collection)
	}
	return sample, nil
}
