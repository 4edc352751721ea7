package de

import "errors"

var (
	// ErrNotInitialized is returned when the optimizer is stepped or queried
	// before Initialize.
	ErrNotInitialized = errors.New("de: optimizer not initialized")

	// ErrAlreadyInitialized is returned by a second call to Initialize.
	ErrAlreadyInitialized = errors.New("de: optimizer already initialized")

	// ErrInvalidConfig matches every *ConfigError via errors.Is.
	ErrInvalidConfig = &ConfigError{}
)

// ConfigError reports a rejected configuration value.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return "de: invalid configuration"
	}
	return "de: invalid " + e.Field + ": " + e.Reason
}

func (e *ConfigError) Is(target error) bool {
	_, ok := target.(*ConfigError)
	return ok
}
