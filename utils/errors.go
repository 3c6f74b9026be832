package utils

import (
	"github.com/pkg/errors"
)

// NewConfigValidationError returns a config validation error
// occurring at a given path.
func NewConfigValidationError(path string, err error) error {
	return errors.Wrapf(err, "error validating %q", path)
}

// NewConfigValidationFieldRequiredError returns a config validation
// error for a field missing at a given path.
func NewConfigValidationFieldRequiredError(path, field string) error {
	return NewConfigValidationError(path, errors.Errorf("%q is required", field))
}

// NewOutOfRangeConfigError returns a config validation error for a field whose value
// lies outside of its allowed range.
func NewOutOfRangeConfigError(path, field string, value interface{}, allowed string) error {
	return NewConfigValidationError(path, errors.Errorf("%q is %v, must be %s", field, value, allowed))
}
