package module

import "datalens/internal/platform/config"

// Options holds configuration settings for the scan module
type Options struct {
	Workers       int
	MongoURI      string
	MongoDatabase string
}

// FromConfig reads configuration settings from the config.Conf
func FromConfig(cfg config.Conf) Options {
	sf := cfg.Prefix("CORE_SCAN_")
	mf := cfg.Prefix("SERVICE_MONGO_")
	return Options{
		Workers:       sf.MayInt("WORKERS", 4),
		MongoURI:      mf.MayString("URI", ""),
		MongoDatabase: mf.MayString("DATABASE", ""),
	}
}
