// Package version provides information about the build version of a binary.
package version

// BuildInfo holds version information about the running binary.
type BuildInfo struct {
	Service string `json:"service"`
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Date    string `json:"date"`
}

// Info returns the build information for the named binary. The version,
// commit, and date variables are intended to be set at build time using
// -ldflags.
func Info(service string) BuildInfo {
	// Set via -ldflags "-X 'datalens/internal/core/version.version=v0.0.1'
	// -X 'datalens/internal/core/version.commit=abcd' -X 'datalens/internal/core/version.date=2026-03-01'"
	return BuildInfo{
		Service: service,
		Version: version,
		Commit:  commit,
		Date:    date,
	}
}

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)
