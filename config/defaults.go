package config

import "github.com/spf13/viper"

// Default file permissions for created config directories.
const DefaultDirPermissions = 0750

// SetDefaults configures default values for all configuration options.
func SetDefaults(v *viper.Viper) {
	// Database defaults
	v.SetDefault("database.path", "stratum.db")
	v.SetDefault("database.busy_timeout_ms", 5000)

	// Log defaults
	v.SetDefault("log.json", false)
	v.SetDefault("log.level", "info")

	// Fetcher defaults
	v.SetDefault("fetcher.endpoint", "")
	v.SetDefault("fetcher.local_dir", "")
	v.SetDefault("fetcher.timeout_s", 10)
	v.SetDefault("fetcher.rate_per_s", 4.0)
	v.SetDefault("fetcher.burst", 8)

	// Resolver defaults
	v.SetDefault("resolver.max_reference_depth", 16)
	v.SetDefault("resolver.max_traversal_depth", 16)
}

// BindSensitiveEnvVars explicitly binds deployment-specific configuration to
// environment variables.
func BindSensitiveEnvVars(v *viper.Viper) {
	// Database path
	v.BindEnv("database.path", "STRATUM_DATABASE_PATH")

	// Remote fetcher endpoint
	v.BindEnv("fetcher.endpoint", "STRATUM_FETCHER_ENDPOINT")
}
