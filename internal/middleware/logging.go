// Package middleware contains the units composed into the request pipeline.
// Each unit wraps the next handler with one cross-cutting behavior: it may
// inspect or mutate the request before delegating, short-circuit with its own
// response, and adjust the response on the way back out. Construction-time
// validation fails fast so a misconfigured unit never sees a request.
package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/l0p7/gatepipe/internal/pipeline"
)

// Logging records every call that reaches it, successful or not, and stamps
// the elapsed time on the response. Errors are logged and then re-propagated
// so inner faults stay visible to the caller.
type Logging struct {
	logger *slog.Logger
	next   pipeline.Handler
}

// NewLogging constructs the logging unit.
func NewLogging(logger *slog.Logger) *Logging {
	if logger == nil {
		logger = slog.Default()
	}
	return &Logging{logger: logger.With(slog.String("unit", "logging"))}
}

// Wrap binds the next handler. Called once at assembly time.
func (u *Logging) Wrap(next pipeline.Handler) pipeline.Handler {
	u.next = next
	return u
}

// Handle logs the request, delegates, and logs the outcome with its latency.
func (u *Logging) Handle(ctx context.Context, req *pipeline.Request) (*pipeline.Response, error) {
	logger := u.logger
	if req.ID != "" {
		logger = logger.With(slog.String("request_id", req.ID))
	}
	logger.Info("request received",
		slog.String("method", string(req.Method)),
		slog.String("path", req.Path),
		slog.Time("received_at", req.ReceivedAt),
	)

	start := time.Now()
	resp, err := u.next.Handle(ctx, req)
	elapsed := time.Since(start)

	if err != nil {
		attrs := []any{slog.Duration("elapsed", elapsed), slog.Any("error", err)}
		if he, ok := pipeline.AsHandlerError(err); ok {
			attrs = append(attrs, slog.Int("status", he.Status))
		}
		logger.Error("request failed", attrs...)
		return resp, err
	}

	resp.Elapsed = elapsed
	logger.Info("request completed",
		slog.Int("status", resp.Status),
		slog.Float64("elapsed_ms", float64(elapsed)/float64(time.Millisecond)),
	)
	return resp, nil
}
