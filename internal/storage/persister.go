// Package storage provides the namespaced byte key-value contract the state store is persisted through,
// along with in-memory, redis and postgres backends and caching/metrics decorators.
//
// Keys are '/'-separated paths. Intermediate nodes are implicit: a node exists for as long as it has a value or
// a descendant with a value. The root node always exists.
package storage

import (
	"fmt"

	"github.com/pkg/errors"
)

// Persister is the minimal storage contract consumed by the state store.
// Implementations must provide read-after-write visibility but are not required to make multi-key operations
// atomic.
type Persister interface {
	// Get returns the value stored at path, or an *Error with reason NotFound if there is none.
	Get(path string) ([]byte, error)
	// Set creates or overwrites the value at path.
	Set(path string, value []byte) error
	// Delete removes the value at path, or returns an *Error with reason NotFound if there is none.
	// Descendants of path are not affected.
	Delete(path string) error
	// GetChildren returns the sorted names of the immediate children of path.
	// Returns an *Error with reason NotFound if path doesn't exist.
	GetChildren(path string) ([]string, error)
	// RecursiveDelete removes path and everything beneath it. Deleting a path that doesn't exist is not an error.
	RecursiveDelete(path string) error
}

type Reason int

const (
	StorageError Reason = iota
	NotFound
	SerializationError
	LogicError
)

func (r Reason) String() string {
	switch r {
	case NotFound:
		return "NOT_FOUND"
	case SerializationError:
		return "SERIALIZATION_ERROR"
	case LogicError:
		return "LOGIC_ERROR"
	default:
		return "STORAGE_ERROR"
	}
}

// Error is returned by all Persister implementations.
type Error struct {
	Reason Reason
	Path   string
	// Underlying cause, if any.
	Err error
}

func (err *Error) Error() string {
	if err.Err != nil {
		return fmt.Sprintf("%s at %q: %s", err.Reason, err.Path, err.Err)
	}
	return fmt.Sprintf("%s at %q", err.Reason, err.Path)
}

func (err *Error) Unwrap() error {
	return err.Err
}

func newError(reason Reason, path string, cause error) error {
	return errors.WithStack(&Error{Reason: reason, Path: path, Err: cause})
}

// NewNotFoundError returns an *Error with reason NotFound.
func NewNotFoundError(path string) error {
	return newError(NotFound, path, nil)
}

// NewStorageError wraps a backend failure.
func NewStorageError(path string, cause error) error {
	return newError(StorageError, path, cause)
}

// NewSerializationError wraps a failure to encode or decode a stored value.
func NewSerializationError(path string, cause error) error {
	return newError(SerializationError, path, cause)
}

// ReasonOf returns the reason of the first *Error in err's chain, or StorageError if there is none.
func ReasonOf(err error) Reason {
	var e *Error
	if errors.As(err, &e) {
		return e.Reason
	}
	return StorageError
}

// IsNotFound returns true if err is an *Error with reason NotFound.
func IsNotFound(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Reason == NotFound
}
