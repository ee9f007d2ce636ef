package models

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound marks a channel, member or record that disappeared before it could be acted on.
	ErrNotFound    = errors.New("not found")
	ErrNotLocked   = errors.New("guild is not locked down")
	ErrRateLimited = errors.New("rate limited")
)

type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration for %s: %s", e.Field, e.Reason)
}

func IsConfigurationError(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}
