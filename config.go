package batchmut

import (
	"fmt"
	"time"
)

// Config is the configuration for the Scheduler.
//
// All duration fields accept standard Go duration strings like "500ms", "5s"
// when loaded from YAML.
type Config struct {
	// MaxInstancesPerChunk is the hard cap on instances per snapshot chunk.
	// Lower values mean smaller async tasks and better parallelism at the cost
	// of more scheduling overhead.
	//
	// Today every container yields a single chunk regardless of size; the cap
	// is reserved for spatial sub-chunking and only validated.
	// Recommended: 2048.
	MaxInstancesPerChunk int `yaml:"maxInstancesPerChunk"`

	// MaxConcurrentChunks caps how many chunks may be in flight simultaneously
	// across all transformers. Dispatch attempts beyond the cap are skipped for
	// the tick and retried later, exactly like lock contention.
	// Recommended: 32.
	MaxConcurrentChunks int `yaml:"maxConcurrentChunks"`

	// HandleTimeout is how long an open handle may remain unresolved before
	// the timeout sweep force-abandons it.
	//
	// The sweep itself is not implemented yet; the value is validated and the
	// handle's issue timestamp is tracked so the sweep can be added without a
	// config change. A transformer that never terminates its handle currently
	// leaks the container lock permanently.
	// Recommended: 5s.
	HandleTimeout time.Duration `yaml:"handleTimeout"`

	// WarnOnAutoAbandon controls whether a handle dropped while still open
	// logs a warning when its leak guard abandons it. The abandon itself always
	// happens. Only DefaultConfig sets this; a zero-value Config disables it.
	WarnOnAutoAbandon bool `yaml:"warnOnAutoAbandon"`
}

// DefaultConfig returns a Config with sensible defaults.
//
// Returns:
//   - Config: Configuration with default values
func DefaultConfig() Config {
	return Config{
		MaxInstancesPerChunk: 2048,
		MaxConcurrentChunks:  32,
		HandleTimeout:        5 * time.Second,
		WarnOnAutoAbandon:    true,
	}
}

// SetDefaults fills in missing configuration values with production defaults.
//
// Boolean fields are left untouched: start from DefaultConfig() to get
// WarnOnAutoAbandon enabled.
//
// Parameters:
//   - cfg: Config to apply defaults to (modified in place)
func SetDefaults(cfg *Config) {
	defaults := DefaultConfig()

	if cfg.MaxInstancesPerChunk == 0 {
		cfg.MaxInstancesPerChunk = defaults.MaxInstancesPerChunk
	}
	if cfg.MaxConcurrentChunks == 0 {
		cfg.MaxConcurrentChunks = defaults.MaxConcurrentChunks
	}
	if cfg.HandleTimeout == 0 {
		cfg.HandleTimeout = defaults.HandleTimeout
	}
}

// Validate checks configuration constraints and returns an error for invalid values.
//
// Hard Validation Rules:
//   - MaxInstancesPerChunk >= 64 (smaller chunks make scheduling overhead dominate)
//   - MaxConcurrentChunks >= 1
//   - HandleTimeout >= 500ms (normal async work completes well within one tick)
//
// Returns:
//   - error: Validation error with clear explanation, nil if valid
func (cfg *Config) Validate() error {
	if cfg.MaxInstancesPerChunk < 64 {
		return fmt.Errorf(
			"MaxInstancesPerChunk (%d) must be >= 64, smaller chunks make scheduling overhead dominate",
			cfg.MaxInstancesPerChunk,
		)
	}

	if cfg.MaxConcurrentChunks < 1 {
		return fmt.Errorf("MaxConcurrentChunks must be >= 1, got %d", cfg.MaxConcurrentChunks)
	}

	if cfg.HandleTimeout < 500*time.Millisecond {
		return fmt.Errorf(
			"HandleTimeout (%v) must be >= 500ms, normal async work completes well within one tick",
			cfg.HandleTimeout,
		)
	}

	return nil
}

// ValidateWithWarnings checks configuration and logs warnings for non-recommended values.
//
// This is called after Validate() in NewScheduler() to provide operator guidance.
//
// Parameters:
//   - logger: Logger instance for warning output
func (cfg *Config) ValidateWithWarnings(logger Logger) {
	if cfg.MaxConcurrentChunks > 256 {
		logger.Warn(
			"MaxConcurrentChunks is very high, a flood of transformers may saturate background workers",
			"maxConcurrentChunks", cfg.MaxConcurrentChunks,
			"recommended", "32-256",
		)
	}

	if cfg.HandleTimeout > 30*time.Second {
		logger.Warn(
			"HandleTimeout is very long, a stalled transformer will hold its container lock for the full window",
			"handleTimeout", cfg.HandleTimeout,
			"recommended", "5s",
		)
	}
}

// TestConfig returns a configuration optimized for fast test execution.
//
// Returns:
//   - Config: Configuration with fast timings for tests
//
// Example:
//
//	cfg := batchmut.TestConfig()
//	sched, err := batchmut.NewScheduler(&cfg)
func TestConfig() Config {
	cfg := DefaultConfig()

	cfg.MaxInstancesPerChunk = 64
	cfg.HandleTimeout = 500 * time.Millisecond // 10x faster

	return cfg
}
