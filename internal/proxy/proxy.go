// Package proxy implements the TTL caching proxy: a unit wrapping an inner
// service of the same handler capability, answering idempotent calls from a
// response cache while entries are fresh and delegating otherwise.
package proxy

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/l0p7/gatepipe/internal/cache"
	"github.com/l0p7/gatepipe/internal/metrics"
	"github.com/l0p7/gatepipe/internal/pipeline"
)

// CacheHeader marks responses served through the proxy: HIT for cached
// responses, MISS for freshly delegated ones.
const CacheHeader = "x-cache"

// Stats is the read-only aggregate counter snapshot the proxy exposes for
// observability.
type Stats struct {
	Hits   uint64
	Misses uint64
}

// Proxy wraps an inner handler with a response cache. The freshness window
// is fixed at construction; an entry stored at t answers lookups strictly
// before t+ttl and is lazily evicted by the store afterwards.
type Proxy struct {
	ttl      time.Duration
	store    cache.Store
	logger   *slog.Logger
	recorder *metrics.Recorder
	now      func() time.Time

	hits   atomic.Uint64
	misses atomic.Uint64

	next pipeline.Handler
}

// Config carries the proxy construction settings.
type Config struct {
	TTL      time.Duration
	Store    cache.Store
	Logger   *slog.Logger
	Recorder *metrics.Recorder
}

// New validates the configuration and constructs the proxy.
func New(cfg Config) (*Proxy, error) {
	if cfg.TTL <= 0 {
		return nil, &pipeline.ConfigError{Unit: "cache_proxy", Reason: "ttl must be positive"}
	}
	if cfg.Store == nil {
		return nil, &pipeline.ConfigError{Unit: "cache_proxy", Reason: "cache store required"}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Proxy{
		ttl:      cfg.TTL,
		store:    cfg.Store,
		logger:   logger.With(slog.String("unit", "cache_proxy")),
		recorder: cfg.Recorder,
		now:      time.Now,
	}, nil
}

// Wrap binds the inner service. Called once at assembly time.
func (p *Proxy) Wrap(next pipeline.Handler) pipeline.Handler {
	p.next = next
	return p
}

// Handle serves cacheable requests from the store when fresh and delegates
// otherwise. Only successful responses are stored; failures always fall
// through to the inner service on the next identical request.
func (p *Proxy) Handle(ctx context.Context, req *pipeline.Request) (*pipeline.Response, error) {
	if !req.Method.Idempotent() {
		// Non-cacheable methods bypass the table entirely: no read, no write.
		return p.next.Handle(ctx, req)
	}

	key := cache.Key(string(req.Method), req.Path, req.QueryParams())
	logger := p.logger.With(slog.String("cache_key", key))

	lookupStart := p.now()
	entry, ok, err := p.store.Lookup(ctx, key)
	if err != nil {
		p.observeLookup(metrics.CacheLookupError, p.now().Sub(lookupStart))
		logger.Error("cache lookup failed", slog.Any("error", err))
	} else if ok {
		p.observeLookup(metrics.CacheLookupHit, p.now().Sub(lookupStart))
		p.hits.Add(1)
		logger.Debug("cache hit", slog.Time("expires_at", entry.ExpiresAt))
		resp := responseFromPayload(entry.Payload)
		resp.SetHeader(CacheHeader, "HIT")
		return resp, nil
	} else {
		p.observeLookup(metrics.CacheLookupMiss, p.now().Sub(lookupStart))
	}
	p.misses.Add(1)

	resp, err := p.next.Handle(ctx, req)
	if err != nil || resp == nil {
		return resp, err
	}

	if resp.IsSuccess() {
		storedAt := p.now().UTC()
		storeStart := p.now()
		storeErr := p.store.Store(ctx, key, cache.Entry{
			Payload:   payloadFromResponse(resp),
			StoredAt:  storedAt,
			ExpiresAt: storedAt.Add(p.ttl),
		})
		if storeErr != nil {
			p.observeStore(metrics.CacheStoreError, p.now().Sub(storeStart))
			logger.Error("cache store failed", slog.Any("error", storeErr))
		} else {
			p.observeStore(metrics.CacheStoreStored, p.now().Sub(storeStart))
			logger.Debug("response cached", slog.Duration("ttl", p.ttl))
		}
	} else {
		p.observeStore(metrics.CacheStoreSkipped, 0)
	}

	resp.SetHeader(CacheHeader, "MISS")
	return resp, nil
}

// Stats returns the aggregate hit and miss counters.
func (p *Proxy) Stats() Stats {
	return Stats{Hits: p.hits.Load(), Misses: p.misses.Load()}
}

func (p *Proxy) observeLookup(result metrics.CacheLookupOutcome, elapsed time.Duration) {
	if p.recorder != nil {
		p.recorder.ObserveCacheLookup(result, elapsed)
	}
}

func (p *Proxy) observeStore(result metrics.CacheStoreOutcome, elapsed time.Duration) {
	if p.recorder != nil {
		p.recorder.ObserveCacheStore(result, elapsed)
	}
}

// responseFromPayload rebuilds a response from its cached projection. The
// result is a fresh value, so outer units mutating it on the return path
// never touch the stored entry.
func responseFromPayload(in cache.Payload) *pipeline.Response {
	resp := pipeline.NewResponse(in.Status, in.Body)
	for k, v := range in.Headers {
		resp.SetHeader(k, v)
	}
	return resp
}

func payloadFromResponse(in *pipeline.Response) cache.Payload {
	payload := cache.Payload{Status: in.Status, Body: in.Body}
	if headers := in.Headers(); len(headers) > 0 {
		payload.Headers = make(map[string]string, len(headers))
		for k, v := range headers {
			payload.Headers[k] = v
		}
	}
	return payload
}
