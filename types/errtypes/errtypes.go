// Package errtypes contains the error taxonomy shared by the fault model packages.
package errtypes

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration is returned for invalid formats, cell configurations
	// and missing required parameters. It is always raised before any array
	// is mutated.
	ErrConfiguration = errors.New("configuration error")

	// ErrDataUnavailable is returned when a technology or distribution key
	// is absent from the characterization store.
	ErrDataUnavailable = errors.New("data unavailable")

	// ErrNumericDefect marks a packed symbol that left [0, levels-1] after
	// injection.
	ErrNumericDefect = errors.New("numeric defect")
)

type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: %s", ErrConfiguration, e.Reason)
	}
	return fmt.Sprintf("%s: %s: %s", ErrConfiguration, e.Field, e.Reason)
}

func (e *ConfigError) Unwrap() error { return ErrConfiguration }

// Configf builds a ConfigError for field with a formatted reason.
func Configf(field, format string, args ...any) error {
	return &ConfigError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

type DataUnavailableError struct {
	Technology string
	Key        string
}

func (e *DataUnavailableError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("%s: technology %q not found", ErrDataUnavailable, e.Technology)
	}
	return fmt.Sprintf("%s: technology %q has no entry for %s", ErrDataUnavailable, e.Technology, e.Key)
}

func (e *DataUnavailableError) Unwrap() error { return ErrDataUnavailable }

type NumericDefectError struct {
	Cell   int
	Row    int
	Level  int
	Levels int
}

func (e *NumericDefectError) Error() string {
	return fmt.Sprintf("%s: cell %d of row %d shifted to level %d outside [0, %d]", ErrNumericDefect, e.Cell, e.Row, e.Level, e.Levels-1)
}

func (e *NumericDefectError) Unwrap() error { return ErrNumericDefect }
