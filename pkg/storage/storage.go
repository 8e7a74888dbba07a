// Package storage provides byte storage backends for persisted store state.
//
// Every driver implements Storage. Drivers that can observe changes made by
// other processes also implement Watcher.
//
//   - Memory: in-process map, for tests and single-process use
//   - File: one JSON file per key in a directory, watched with fsnotify
//   - S3: one object per key under a bucket prefix
//   - Badger: an embedded BadgerDB key-value store
//
// Implementations must be safe for concurrent use.
package storage

import (
	"context"
	"errors"
)

// ErrClosed is returned when operations are attempted on a closed storage.
var ErrClosed = errors.New("storage: closed")

// Storage persists opaque values by key.
type Storage interface {
	// Load returns the value stored under key.
	// Returns (nil, nil) if the key doesn't exist.
	Load(ctx context.Context, key string) ([]byte, error)

	// Save stores data under key, overwriting any previous value.
	Save(ctx context.Context, key string, data []byte) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases any resources held by the storage.
	Close() error
}

// Watcher is implemented by storages that report changes to keys.
type Watcher interface {
	// Watch calls fn with the key of every changed value until ctx is done
	// or the storage is closed. fn runs on a goroutine owned by the storage.
	Watch(ctx context.Context, fn func(key string)) error
}
