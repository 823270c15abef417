package db

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation is returned when a todo is rejected before it is written.
	ErrValidation = errors.New("invalid todo")
	// ErrNotFound is returned when a write references an id that no longer exists.
	ErrNotFound = errors.New("todo not found")
	// ErrStorage matches every *StorageError.
	ErrStorage = errors.New("storage failure")
)

// StorageError wraps a failure of the underlying database.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("failed to %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func (e *StorageError) Is(target error) bool { return target == ErrStorage }

func storageErr(op string, err error) error {
	return &StorageError{Op: op, Err: err}
}

func notFound(id int64) error {
	return fmt.Errorf("%w: %d", ErrNotFound, id)
}
