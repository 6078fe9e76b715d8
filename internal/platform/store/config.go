package store

import "time"

// Config aggregates per backend configuration
type Config struct {
	AppName string

	PG PGConfig
	CH CHConfig
}

// PGConfig configures postgres connectivity and tracing
type PGConfig struct {
	Enabled     bool
	URL         string
	MaxConns    int32
	LogSQL      bool
	SlowQueryMs int

	// Boot knobs, zero values fall back to the opener defaults
	ConnectRetries int           // default 20
	PingTimeout    time.Duration // default 3s
}

// CHConfig configures clickhouse connectivity
// ClientName and ClientTag identify the process in server side query logs
type CHConfig struct {
	Enabled    bool
	URL        string
	ClientName string
	ClientTag  string
}
