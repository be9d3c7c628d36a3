// Package schedulererrors contains generic errors returned by the scheduler core when callers
// pass invalid input or ask for resources that don't exist.
//
// Callers should match on these with errors.As rather than comparing error strings; errors are
// usually wrapped with a stack trace via github.com/pkg/errors before being returned.
package schedulererrors

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrInvalidArgument is a generic error to be returned on invalid argument.
// Message is optional and is omitted from the error message if not provided.
type ErrInvalidArgument struct {
	Name    string      // Name of the field referred to, e.g., "count"
	Value   interface{} // The invalid value that was provided
	Message string      // An optional message to include with the error message, e.g., explaining why the value is invalid
}

func (err *ErrInvalidArgument) Error() string {
	if err.Message == "" {
		return fmt.Sprintf("value %q is invalid for field %q", fmt.Sprint(err.Value), err.Name)
	} else {
		return fmt.Sprintf("value %q is invalid for field %q; %s", fmt.Sprint(err.Value), err.Name, err.Message)
	}
}

// ErrNotFound is a generic error to be returned whenever some resource isn't found.
// Type and Message are optional and are omitted from the error message if not provided.
type ErrNotFound struct {
	Type    string
	Value   string
	Message string
}

func (err *ErrNotFound) Error() (s string) {
	if err.Type != "" {
		s = fmt.Sprintf("resource %q of type %q does not exist", err.Value, err.Type)
	} else {
		s = fmt.Sprintf("resource %q does not exist", err.Value)
	}
	if err.Message != "" {
		return s + fmt.Sprintf("; %s", err.Message)
	} else {
		return s
	}
}

// NewInvalidArgument returns an *ErrInvalidArgument annotated with a stack trace.
func NewInvalidArgument(name string, value interface{}, format string, args ...interface{}) error {
	return errors.WithStack(&ErrInvalidArgument{
		Name:    name,
		Value:   value,
		Message: fmt.Sprintf(format, args...),
	})
}

// IsInvalidArgument returns true if any error in the chain is an *ErrInvalidArgument.
func IsInvalidArgument(err error) bool {
	var e *ErrInvalidArgument
	return errors.As(err, &e)
}

// IsNotFound returns true if any error in the chain is an *ErrNotFound.
func IsNotFound(err error) bool {
	var e *ErrNotFound
	return errors.As(err, &e)
}
