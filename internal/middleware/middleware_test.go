package middleware

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"sync/atomic"

	"github.com/l0p7/gatepipe/internal/pipeline"
)

// countingHandler is the innermost stub used across unit tests: it counts
// delegations and replays a canned response.
type countingHandler struct {
	calls  atomic.Int64
	status int
	body   string
	check  func(req *pipeline.Request)
}

func (h *countingHandler) Handle(_ context.Context, req *pipeline.Request) (*pipeline.Response, error) {
	h.calls.Add(1)
	if h.check != nil {
		h.check(req)
	}
	status := h.status
	if status == 0 {
		status = http.StatusOK
	}
	return pipeline.NewResponse(status, h.body), nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelDebug}))
}
