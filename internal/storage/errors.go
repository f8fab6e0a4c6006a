package storage

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when no document matches the identifier
	ErrNotFound = errors.New("document not found")

	// ErrClosed is returned when the store has been closed
	ErrClosed = errors.New("store is closed")

	// ErrIDInUpdate is returned when an update tries to touch the identifier
	ErrIDInUpdate = errors.New("update must not contain _id")
)

// StoreError is returned for every failed store operation.
type StoreError struct {
	Op         string
	Collection string
	Err        error
}

// Error implements the error interface
func (e *StoreError) Error() string {
	if e.Collection == "" {
		return fmt.Sprintf("store %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("store %s %s: %v", e.Op, e.Collection, e.Err)
}

// Unwrap returns the underlying error
func (e *StoreError) Unwrap() error {
	return e.Err
}

func storeErr(op, collection string, err error) error {
	return &StoreError{Op: op, Collection: collection, Err: err}
}
