package config

import "github.com/stratumdb/stratum/errors"

// Validate checks configuration values for consistency. Zero values are
// valid wherever a default exists; only actively harmful values are
// rejected.
func (c *Config) Validate() error {
	if c.Database.BusyTimeoutMS < 0 {
		return errors.Newf("database.busy_timeout_ms must not be negative, got %d", c.Database.BusyTimeoutMS)
	}

	switch c.Log.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return errors.Newf("log.level must be one of debug, info, warn, error; got %q", c.Log.Level)
	}

	if c.Fetcher.TimeoutSeconds < 0 {
		return errors.Newf("fetcher.timeout_s must not be negative, got %d", c.Fetcher.TimeoutSeconds)
	}
	if c.Fetcher.RatePerSecond < 0 {
		return errors.Newf("fetcher.rate_per_s must not be negative, got %f", c.Fetcher.RatePerSecond)
	}
	if c.Fetcher.Burst < 0 {
		return errors.Newf("fetcher.burst must not be negative, got %d", c.Fetcher.Burst)
	}

	if c.Resolver.MaxReferenceDepth < 0 {
		return errors.Newf("resolver.max_reference_depth must not be negative, got %d", c.Resolver.MaxReferenceDepth)
	}
	if c.Resolver.MaxTraversalDepth < 0 || c.Resolver.MaxTraversalDepth > 255 {
		return errors.Newf("resolver.max_traversal_depth must be between 0 and 255, got %d", c.Resolver.MaxTraversalDepth)
	}

	return nil
}
