// Package config manages stratum configuration: viper-backed loading with
// environment overrides, merged TOML files, TOML write-back with rotating
// backups, and a file watcher for live reload.
package config

import "fmt"

// Config represents the stratum configuration.
type Config struct {
	Database DatabaseConfig `mapstructure:"database"`
	Log      LogConfig      `mapstructure:"log"`
	Fetcher  FetcherConfig  `mapstructure:"fetcher"`
	Resolver ResolverConfig `mapstructure:"resolver"`
}

// DatabaseConfig configures the SQLite database.
type DatabaseConfig struct {
	Path          string `mapstructure:"path"`
	BusyTimeoutMS int    `mapstructure:"busy_timeout_ms"` // SQLite busy handler timeout (default: 5000)
}

// LogConfig configures the global logger.
type LogConfig struct {
	JSON  bool   `mapstructure:"json"`  // JSON output instead of the minimal console encoder
	Level string `mapstructure:"level"` // debug, info, warn, error (default: info)
}

// FetcherConfig configures the remote type fetcher.
type FetcherConfig struct {
	// Endpoint overrides the host a versioned type URL names; empty means
	// fetch from the URL itself.
	Endpoint string `mapstructure:"endpoint"`
	// LocalDir serves type schemas from a directory of JSON files instead
	// of the network (air-gapped deployments).
	LocalDir       string  `mapstructure:"local_dir"`
	TimeoutSeconds int     `mapstructure:"timeout_s"`   // per-request timeout (default: 10)
	RatePerSecond  float64 `mapstructure:"rate_per_s"`  // outbound request rate limit (default: 4)
	Burst          int     `mapstructure:"burst"`       // rate limiter burst (default: 8)
}

// ResolverConfig bounds reference resolution and subgraph traversal.
type ResolverConfig struct {
	MaxReferenceDepth int `mapstructure:"max_reference_depth"` // ontology $ref hop budget (default: 16)
	MaxTraversalDepth int `mapstructure:"max_traversal_depth"` // per-edge-kind subgraph depth cap (default: 16)
}

// GetDatabasePath returns the configured database path.
func (c *Config) GetDatabasePath() string {
	if c.Database.Path == "" {
		return "stratum.db" // Fallback default
	}
	return c.Database.Path
}

// String returns a string representation of the config.
func (c *Config) String() string {
	return fmt.Sprintf("Config{Database: %s, Log: {JSON: %t, Level: %s}, Resolver: {RefDepth: %d, TraversalDepth: %d}}",
		c.Database.Path, c.Log.JSON, c.Log.Level,
		c.Resolver.MaxReferenceDepth, c.Resolver.MaxTraversalDepth)
}
