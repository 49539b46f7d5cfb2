package cache

import (
	"context"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
)

func newMiniredis(t *testing.T) *miniredis.Miniredis {
	t.Helper()
	server, err := miniredis.Run()
	if err != nil {
		if strings.Contains(err.Error(), "operation not permitted") {
			t.Skip("miniredis unavailable in sandbox")
		}
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(server.Close)
	return server
}

func TestRedisStoreLookup(t *testing.T) {
	server := newMiniredis(t)

	store, err := NewRedis(RedisConfig{Address: server.Addr()})
	if err != nil {
		t.Fatalf("new redis: %v", err)
	}
	ctx := context.Background()
	defer func() {
		if err := store.Close(ctx); err != nil {
			t.Fatalf("close: %v", err)
		}
	}()

	entry := Entry{
		Payload:  Payload{Status: 200, Body: "cached", Headers: map[string]string{"content-type": "text/plain"}},
		StoredAt: time.Now().UTC(),
	}
	entry.ExpiresAt = entry.StoredAt.Add(time.Minute)

	if err := store.Store(ctx, "redis:test", entry); err != nil {
		t.Fatalf("store: %v", err)
	}

	got, ok, err := store.Lookup(ctx, "redis:test")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if !ok {
		t.Fatalf("expected hit")
	}
	if got.Payload.Body != "cached" || got.Payload.Headers["content-type"] != "text/plain" {
		t.Fatalf("unexpected entry: %#v", got)
	}

	size, err := store.Size(ctx)
	if err != nil {
		t.Fatalf("size: %v", err)
	}
	if size != 1 {
		t.Fatalf("expected size 1, got %d", size)
	}

	if err := store.Delete(ctx, "redis:test"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	_, ok, err = store.Lookup(ctx, "redis:test")
	if err != nil {
		t.Fatalf("lookup after delete: %v", err)
	}
	if ok {
		t.Fatalf("expected delete to remove key")
	}
}

func TestRedisStoreExpiry(t *testing.T) {
	server := newMiniredis(t)

	store, err := NewRedis(RedisConfig{Address: server.Addr()})
	if err != nil {
		t.Fatalf("new redis: %v", err)
	}
	ctx := context.Background()
	defer func() { _ = store.Close(ctx) }()

	entry := Entry{Payload: Payload{Status: 200, Body: "fresh"}, StoredAt: time.Now().UTC()}
	entry.ExpiresAt = entry.StoredAt.Add(50 * time.Millisecond)
	if err := store.Store(ctx, "key", entry); err != nil {
		t.Fatalf("store: %v", err)
	}

	// miniredis only advances TTLs manually.
	server.FastForward(100 * time.Millisecond)

	_, ok, err := store.Lookup(ctx, "key")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if ok {
		t.Fatalf("expected entry to expire")
	}
}

func TestRedisStoreRejectsMissingExpiry(t *testing.T) {
	server := newMiniredis(t)

	store, err := NewRedis(RedisConfig{Address: server.Addr()})
	if err != nil {
		t.Fatalf("new redis: %v", err)
	}
	ctx := context.Background()
	defer func() { _ = store.Close(ctx) }()

	if err := store.Store(ctx, "key", Entry{Payload: Payload{Status: 200}}); err == nil {
		t.Fatalf("expected error for entry without expiry")
	}
}

func TestRedisRequiresAddress(t *testing.T) {
	if _, err := NewRedis(RedisConfig{}); err == nil {
		t.Fatalf("expected error for missing address")
	}
}
