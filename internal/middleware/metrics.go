package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/l0p7/gatepipe/internal/metrics"
	"github.com/l0p7/gatepipe/internal/pipeline"
)

// Metrics observes every call that reaches it, whether the wrapped chain
// produced a response or a fault. Placed outermost it measures rejected and
// accepted calls alike; errors are recorded and then re-propagated.
type Metrics struct {
	recorder *metrics.Recorder
	next     pipeline.Handler
}

// NewMetrics constructs the measurement unit.
func NewMetrics(recorder *metrics.Recorder) *Metrics {
	return &Metrics{recorder: recorder}
}

// Wrap binds the next handler. Called once at assembly time.
func (u *Metrics) Wrap(next pipeline.Handler) pipeline.Handler {
	u.next = next
	return u
}

// Handle times the delegation and records the outcome.
func (u *Metrics) Handle(ctx context.Context, req *pipeline.Request) (*pipeline.Response, error) {
	start := time.Now()
	resp, err := u.next.Handle(ctx, req)
	elapsed := time.Since(start)

	status := 0
	fromCache := false
	switch {
	case resp != nil:
		status = resp.Status
		fromCache = resp.Header("x-cache") == "HIT"
	case err != nil:
		status = http.StatusInternalServerError
		if he, ok := pipeline.AsHandlerError(err); ok {
			status = he.Status
		}
	}
	u.recorder.ObserveRequest(req.Path, string(req.Method), status, fromCache, elapsed)

	return resp, err
}
