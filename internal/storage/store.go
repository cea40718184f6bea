// Package storage provides abstractions for durable key/value persistence.
package storage

import "context"

// Fixed keys under which the application persists its data. The event store
// key is reserved for the append-only event log and is not written by the
// current snapshot-based persistence.
const (
	EventStoreKey = "sfi.events.store"
	DataStoreKey  = "sfi.simple_data.store"
)

// Store defines the interface for durable key/value storage.
// This abstraction allows swapping storage backends (SQLite, in-memory, etc.)
// without changing the agent layer.
type Store interface {
	// Load returns the value stored under key.
	// Returns nil and no error if the key is absent.
	Load(ctx context.Context, key string) ([]byte, error)

	// Save writes value under key, replacing any previous value atomically.
	Save(ctx context.Context, key string, value []byte) error

	// Delete removes the key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases any resources held by the store.
	Close() error
}
