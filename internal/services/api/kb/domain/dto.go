// Package domain holds DTOs for the knowledge-base query API
package domain

import (
	"time"

	"datalens/internal/core/schema"
	factsdomain "datalens/internal/services/facts/domain"
)

// Query responses reuse the owning domains' shapes verbatim
type (
	SearchHit  = factsdomain.SearchHit
	TypeDetail = factsdomain.TypeDetail
	Sample     = schema.Sample
)

// SearchInput filters the ranked knowledge-base search
type SearchInput struct {
	Q     string `json:"q" validate:"required,min=1,max=200" example:"order"`
	Limit int    `json:"limit,omitempty" validate:"omitempty,min=1,max=100" example:"20"`
}

// RunsInput filters scan run history
type RunsInput struct {
	Repo  string `json:"repo,omitempty" validate:"omitempty,min=1,max=200" example:"acme/billing"`
	Limit int    `json:"limit,omitempty" validate:"omitempty,min=1,max=100" example:"20"`
}

// RunView is one scan run with its final counters
type RunView struct {
	ID           string `json:"id"`
	Repository   string `json:"repository"`
	Mode         string `json:"mode"`
	CommitSHA    string `json:"commit_sha"`
	StartedAt    string `json:"started_at"`
	FinishedAt   string `json:"finished_at,omitempty"`
	FilesScanned int    `json:"files_scanned"`
	FilesSkipped int    `json:"files_skipped"`
	FactsAdded   int    `json:"facts_added"`
	FactsRetired int    `json:"facts_retired"`
	Unresolved   int    `json:"unresolved"`
	LowConfEdges int    `json:"low_conf_edges"`
	Drifted      int    `json:"drifted"`
	Status       string `json:"status"`
	FailedStage  string `json:"failed_stage,omitempty"`
}

// NewRunView flattens a scan run for transport
func NewRunView(r schema.ScanRun) RunView {
	v := RunView{
		ID:           r.ID.String(),
		Repository:   r.Repository,
		Mode:         string(r.Mode),
		CommitSHA:    r.CommitSHA,
		StartedAt:    r.StartedAt.UTC().Format(time.RFC3339),
		FilesScanned: r.FilesScanned,
		FilesSkipped: r.FilesSkipped,
		FactsAdded:   r.FactsAdded,
		FactsRetired: r.FactsRetired,
		Unresolved:   r.Unresolved,
		LowConfEdges: r.LowConfEdges,
		Drifted:      r.Drifted,
		Status:       string(r.Status),
		FailedStage:  string(r.FailedStage),
	}
	if r.FinishedAt != nil {
		v.FinishedAt = r.FinishedAt.UTC().Format(time.RFC3339)
	}
	return v
}
