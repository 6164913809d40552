package batchmut

import "errors"

// Sentinel errors returned by the Scheduler.
var (
	// ErrInvalidConfig is returned when the configuration is invalid.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrNotInitialized is returned when Close is called on a scheduler that
	// was already torn down.
	ErrNotInitialized = errors.New("scheduler not initialized")
)
