package cache

import (
	"context"
	"sync"
	"time"
)

type memoryStore struct {
	mu      sync.Mutex
	entries map[string]Entry
}

// NewMemory builds the in-process store. The table is unbounded: entries only
// leave it through TTL expiry or explicit deletion, so callers needing a size
// cap must layer a capacity policy on top.
func NewMemory() Store {
	return &memoryStore{entries: make(map[string]Entry)}
}

func (s *memoryStore) Lookup(_ context.Context, key string) (Entry, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[key]
	if !ok {
		return Entry{}, false, nil
	}
	if !time.Now().Before(entry.ExpiresAt) {
		delete(s.entries, key)
		return Entry{}, false, nil
	}
	return cloneEntry(entry), true, nil
}

func (s *memoryStore) Store(_ context.Context, key string, entry Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry.StoredAt.IsZero() {
		entry.StoredAt = time.Now().UTC()
	}
	s.entries[key] = cloneEntry(entry)
	return nil
}

func (s *memoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}

func (s *memoryStore) Size(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.entries)), nil
}

func (s *memoryStore) Close(context.Context) error {
	return nil
}

func cloneEntry(in Entry) Entry {
	out := Entry{
		Payload:   Payload{Status: in.Payload.Status, Body: in.Payload.Body},
		StoredAt:  in.StoredAt,
		ExpiresAt: in.ExpiresAt,
	}
	if len(in.Payload.Headers) > 0 {
		out.Payload.Headers = make(map[string]string, len(in.Payload.Headers))
		for k, v := range in.Payload.Headers {
			out.Payload.Headers[k] = v
		}
	}
	return out
}
