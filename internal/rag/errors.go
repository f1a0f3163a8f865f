package rag

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration matches every *ConfigurationError via errors.Is.
	ErrConfiguration = errors.New("configuration error")
	// ErrInput matches every *InputError via errors.Is.
	ErrInput = errors.New("input error")
)

// ConfigurationError reports a wizard profile that is missing or carries a value
// outside its enumerated domain. The workstream should be shown as not yet configured.
type ConfigurationError struct {
	Field  string
	Value  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e.Value != "" {
		return fmt.Sprintf("wizard profile %s=%q: %s", e.Field, e.Value, e.Reason)
	}
	return fmt.Sprintf("wizard profile %s: %s", e.Field, e.Reason)
}

func (e *ConfigurationError) Is(target error) bool { return target == ErrConfiguration }

// InputError reports a malformed scoring snapshot. It indicates an upstream
// data-integrity defect and is never clamped away.
type InputError struct {
	Field  string
	Reason string
}

func (e *InputError) Error() string {
	return fmt.Sprintf("scoring input %s: %s", e.Field, e.Reason)
}

func (e *InputError) Is(target error) bool { return target == ErrInput }

func inputErr(field, format string, args ...any) error {
	return &InputError{Field: field, Reason: fmt.Sprintf(format, args...)}
}
