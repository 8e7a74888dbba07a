package teddy

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingStore is wrapped by every MissingStoreError.
	ErrMissingStore = errors.New("teddy: store does not exist")

	// ErrDuplicateStore is wrapped by every DuplicateStoreError.
	ErrDuplicateStore = errors.New("teddy: store already exists")

	// ErrUnknownAction is returned by Store.Call for an unregistered action.
	ErrUnknownAction = errors.New("teddy: unknown action")

	// ErrUnknownGetter is returned by Store.Eval for an unregistered getter.
	ErrUnknownGetter = errors.New("teddy: unknown getter")

	// ErrClosed is returned by operations on a closed Teddy.
	ErrClosed = errors.New("teddy: closed")
)

// MissingStoreError is returned by LookupStore when the store has not been
// created.
type MissingStoreError struct {
	Definition Definition
}

func (e *MissingStoreError) Error() string {
	return fmt.Sprintf("teddy: store %s does not exist", e.Definition)
}

// Unwrap returns ErrMissingStore.
func (e *MissingStoreError) Unwrap() error {
	return ErrMissingStore
}

// DuplicateStoreError is returned by CreateStore when the store already
// exists.
type DuplicateStoreError struct {
	Definition Definition
}

func (e *DuplicateStoreError) Error() string {
	return fmt.Sprintf("teddy: store %s already exists", e.Definition)
}

// Unwrap returns ErrDuplicateStore.
func (e *DuplicateStoreError) Unwrap() error {
	return ErrDuplicateStore
}

// PanicError carries a value recovered from an action or getter.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("teddy: panic: %v", e.Value)
}
