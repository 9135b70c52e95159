package kvstore

import (
	"context"
	"errors"
	"time"
)

// DefaultMaxValueSize mirrors the hosted KV store's documented per-entry
// ceiling. Writes above it are rejected by every implementation.
const DefaultMaxValueSize = 100_000

// ErrValueTooLarge is returned by Set when the value exceeds MaxValueSize.
var ErrValueTooLarge = errors.New("kvstore: value exceeds max entry size")

// Store is the persistent level-2 cache backend contract. Single-key reads
// and writes are atomic; there is no prefix-delete, callers must enumerate
// the keys they want gone.
type Store interface {
	// Get returns the stored value and whether the key exists and is fresh.
	Get(ctx context.Context, key string) (string, bool, error)

	// Set stores value under key for ttl. ttl <= 0 means no expiry.
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is a no-op.
	Delete(ctx context.Context, key string) error

	// MaxValueSize is the per-entry ceiling in bytes.
	MaxValueSize() int

	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error
}
