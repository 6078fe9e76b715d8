package schema

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ScanMode selects the planning strategy for a run
type ScanMode string

const (
	ModeIncremental ScanMode = "incremental"
	ModeFull        ScanMode = "full"
	ModeIntegrity   ScanMode = "integrity"
)

// ParseMode reads a user-supplied mode string
func ParseMode(s string) (ScanMode, error) {
	switch m := ScanMode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeIncremental, ModeFull, ModeIntegrity:
		return m, nil
	default:
		return "", fmt.Errorf("schema: mode must be one of incremental, full, integrity; got %q", s)
	}
}

// Stage names a pipeline phase for failure attribution
type Stage string

const (
	StagePlanning   Stage = "planning"
	StageExtracting Stage = "extracting"
	StageResolving  Stage = "resolving"
	StageSampling   Stage = "sampling"
	StageCommitting Stage = "committing"
)

// RunStatus is the lifecycle state of a scan run
type RunStatus string

const (
	RunRunning RunStatus = "running"
	RunDone    RunStatus = "done"
	RunFailed  RunStatus = "failed"
)

// ScanRun is one pipeline execution and its summary counters. FailedStage is
// set only when Status is RunFailed. CommitSHA is the tree state the run saw;
// incremental planning diffs against the sha of the last successful run
type ScanRun struct {
	ID           uuid.UUID  `json:"id"`
	Repository   string     `json:"repository"`
	Mode         ScanMode   `json:"mode"`
	CommitSHA    string     `json:"commit_sha"`
	StartedAt    time.Time  `json:"started_at"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
	FilesScanned int        `json:"files_scanned"`
	FilesSkipped int        `json:"files_skipped"`
	FactsAdded   int        `json:"facts_added"`
	FactsRetired int        `json:"facts_retired"`
	Unresolved   int        `json:"unresolved"`
	LowConfEdges int        `json:"low_conf_edges"`
	Drifted      int        `json:"drifted"`
	Status       RunStatus  `json:"status"`
	FailedStage  Stage      `json:"failed_stage,omitempty"`
}

// ExitCode maps a finished run to the scanner's process exit code:
// 0 clean, 1 partial (skipped files, unresolved facts or drift), 2 failed
func (r ScanRun) ExitCode() int {
	switch {
	case r.Status == RunFailed:
		return 2
	case r.FilesSkipped > 0 || r.Unresolved > 0 || r.Drifted > 0:
		return 1
	default:
		return 0
	}
}
