package module

import (
	"time"

	"datalens/internal/platform/config"
)

// Options holds configuration settings for the facts module
type Options struct {
	SearchLimit   int
	RetryAttempts int
	RetryBackoff  time.Duration
}

// FromConfig reads configuration settings from the config.Conf
func FromConfig(cfg config.Conf) Options {
	ff := cfg.Prefix("CORE_FACTS_")
	return Options{
		SearchLimit:   ff.MayInt("SEARCH_LIMIT", 50),
		RetryAttempts: ff.MayInt("RETRY_ATTEMPTS", 3),
		RetryBackoff:  ff.MayDuration("RETRY_BACKOFF", 100*time.Millisecond),
	}
}
