package model

import (
	"errors"
	"fmt"
)

// Run-level failures. Anything else that goes wrong while fitting a single
// feature is recorded on that feature's result row instead.
var (
	ErrFatalConfig       = errors.New("fatal configuration error")
	ErrEmptyIntersection = errors.New("no samples shared by feature table and metadata")
	ErrMissingOffsetData = errors.New("offsets requested but library sizes cannot be computed")
)

// ConfigError is a malformed model specification. It matches ErrFatalConfig
// under errors.Is.
type ConfigError struct {
	Field string
	Msg   string
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return "config: " + e.Msg
	}
	return fmt.Sprintf("config: %s: %s", e.Field, e.Msg)
}

func (e *ConfigError) Unwrap() error { return ErrFatalConfig }

// Configf builds a *ConfigError for field.
func Configf(field, format string, a ...any) error {
	return &ConfigError{Field: field, Msg: fmt.Sprintf(format, a...)}
}
