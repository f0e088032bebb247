// Package storage provides the pluggable key-value backends the scheduler
// snapshots are saved to. Backends are interchangeable behind Store:
// embedded Badger (default), the application SQLite database, a remote
// HTTP key-value service, or process memory for tests.
package storage

import "context"

// Store persists opaque snapshot blobs by key.
type Store interface {
	// Load returns the blob saved under key, or nil, nil when the key has
	// never been saved.
	Load(ctx context.Context, key string) ([]byte, error)
	// Save writes the blob under key, replacing any previous value.
	Save(ctx context.Context, key string, blob []byte) error
	// Close releases backend resources.
	Close() error
}
