package config

import (
	"github.com/pkg/errors"

	"github.com/sodistec/sodistec/utils"
)

// ConfigError is a fatal startup error caused by an invalid or unusable configuration: missing
// model files, an unknown class label or backend, or an invalid threshold.
type ConfigError struct {
	Path string
	Err  error
}

// NewConfigError returns a ConfigError for the value at path.
func NewConfigError(path string, err error) error {
	return &ConfigError{Path: path, Err: utils.NewConfigValidationError(path, err)}
}

func newFieldRequiredError(path, field string) error {
	return &ConfigError{Path: path, Err: utils.NewConfigValidationFieldRequiredError(path, field)}
}

func (e *ConfigError) Error() string {
	return "config: " + e.Err.Error()
}

// Unwrap returns the underlying cause.
func (e *ConfigError) Unwrap() error {
	return e.Err
}

// IsConfigError reports whether err is or wraps a ConfigError.
func IsConfigError(err error) bool {
	var cfgErr *ConfigError
	return errors.As(err, &cfgErr)
}
