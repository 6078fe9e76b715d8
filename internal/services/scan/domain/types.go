// Package domain defines the types and interfaces for the scan service
package domain

import (
	"datalens/internal/core/schema"
)

// Options selects what one scan visits
type Options struct {
	// RepoPath is the working tree root of the repository to scan
	RepoPath string
	// Mode picks the planning strategy
	Mode schema.ScanMode
	// BaselineSHA overrides the incremental diff baseline; empty uses the
	// last successful run's commit
	BaselineSHA string
	// PolicyPath overrides .datalens.yaml discovery at the repository root
	PolicyPath string
}
