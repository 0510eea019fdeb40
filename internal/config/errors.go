package config

import "errors"

// Validation errors returned by [ClientConfig.validate] and
// [StructuredConfig.validate] when required configuration groups are
// incomplete or invalid.
var (
	// ErrInvalidAdapterConfigs indicates invalid client adapter settings
	// (for example, missing base URL or request timeout).
	ErrInvalidAdapterConfigs = errors.New("invalid adapter configuration")
	// ErrInvalidStorageConfigs indicates invalid storage settings
	// (for example, empty DSN).
	ErrInvalidStorageConfigs = errors.New("invalid storage configuration")
	// ErrInvalidSyncConfigs indicates invalid sync scheduling settings
	// (for example, a zero debounce window).
	ErrInvalidSyncConfigs = errors.New("invalid sync configuration")
)
