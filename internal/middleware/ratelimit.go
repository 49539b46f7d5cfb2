package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/l0p7/gatepipe/internal/config"
	"github.com/l0p7/gatepipe/internal/pipeline"
)

// RateLimit bounds how many requests an identity may make inside a sliding
// window. The window is recomputed from a per-identity log of timestamps on
// every call; entries aged exactly the window length or more are pruned, so a
// request arriving precisely at the window edge no longer counts the oldest
// entry against the limit.
//
// The timestamp log is shared mutable state across concurrent invocations and
// is guarded by a mutex around the whole check-then-append sequence.
type RateLimit struct {
	maxRequests int
	window      time.Duration
	logger      *slog.Logger
	now         func() time.Time

	mu  sync.Mutex
	log map[string][]time.Time

	next pipeline.Handler
}

// NewRateLimit validates the threshold configuration and constructs the unit.
func NewRateLimit(cfg config.RateLimitConfig, logger *slog.Logger) (*RateLimit, error) {
	if cfg.MaxRequests <= 0 {
		return nil, &pipeline.ConfigError{Unit: "rate_limit", Reason: "max requests must be positive"}
	}
	if cfg.WindowSeconds <= 0 {
		return nil, &pipeline.ConfigError{Unit: "rate_limit", Reason: "window must be positive"}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RateLimit{
		maxRequests: cfg.MaxRequests,
		window:      cfg.Window(),
		logger:      logger.With(slog.String("unit", "rate_limit")),
		now:         time.Now,
		log:         make(map[string][]time.Time),
	}, nil
}

// Wrap binds the next handler. Called once at assembly time.
func (u *RateLimit) Wrap(next pipeline.Handler) pipeline.Handler {
	u.next = next
	return u
}

// Handle admits the request when the identity has remaining budget, otherwise
// short-circuits with 429 without delegating.
func (u *RateLimit) Handle(ctx context.Context, req *pipeline.Request) (*pipeline.Response, error) {
	identity := req.ContextString(ContextKeyUserID, "anonymous")

	if !u.admit(identity) {
		u.logger.Warn("rate limit exceeded",
			slog.String("identity", identity),
			slog.Int("max_requests", u.maxRequests),
			slog.Duration("window", u.window),
		)
		resp := deny(http.StatusTooManyRequests, "rate limit exceeded")
		resp.SetHeader("retry-after", strconv.Itoa(int(u.window/time.Second)))
		return resp, nil
	}

	return u.next.Handle(ctx, req)
}

func (u *RateLimit) admit(identity string) bool {
	now := u.now()
	cutoff := now.Add(-u.window)

	u.mu.Lock()
	defer u.mu.Unlock()

	entries := u.log[identity]
	kept := entries[:0]
	for _, ts := range entries {
		// ts == cutoff means the entry is exactly window old: outside.
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}

	if len(kept) >= u.maxRequests {
		u.log[identity] = kept
		return false
	}

	u.log[identity] = append(kept, now)
	return true
}
