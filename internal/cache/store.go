// Package cache provides the response cache used by the TTL caching proxy.
// Backends share a small store contract; the memory backend is the reference
// implementation and the Redis backend allows several instances to share one
// table.
package cache

import (
	"context"
	"time"
)

// Payload is the cached projection of a pipeline response.
type Payload struct {
	Status  int               `json:"status"`
	Body    string            `json:"body"`
	Headers map[string]string `json:"headers,omitempty"`
}

// Entry pairs a stored payload with its freshness window. An entry is valid
// iff the current time is before ExpiresAt; expired entries are evicted
// lazily on the next lookup for their key.
type Entry struct {
	Payload   Payload   `json:"payload"`
	StoredAt  time.Time `json:"storedAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Store is the table the caching proxy reads and writes. Implementations must
// be safe for concurrent use.
type Store interface {
	Lookup(ctx context.Context, key string) (Entry, bool, error)
	Store(ctx context.Context, key string, entry Entry) error
	Delete(ctx context.Context, key string) error
	Size(ctx context.Context) (int64, error)
	Close(ctx context.Context) error
}
