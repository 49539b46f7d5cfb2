package server

import (
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"

	"github.com/l0p7/gatepipe/internal/pipeline"
	"github.com/l0p7/gatepipe/internal/templates"
)

// Adapter bridges net/http to the pipeline. It is the response-producing
// boundary: a fault that escapes the chain is converted into a response here.
// The active chain is swapped atomically on configuration reload; the chain
// itself is immutable, so in-flight requests keep the structure they started
// with.
type Adapter struct {
	chain    atomic.Pointer[pipeline.Handler]
	logger   *slog.Logger
	errorTpl *templates.Template
}

// NewAdapter binds the initial chain. The error template is optional; when
// nil, fault bodies are plain text.
func NewAdapter(chain pipeline.Handler, logger *slog.Logger, errorTpl *templates.Template) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	a := &Adapter{logger: logger.With(slog.String("component", "http_adapter")), errorTpl: errorTpl}
	a.chain.Store(&chain)
	return a
}

// Swap replaces the active chain. Safe to call while requests are in flight.
func (a *Adapter) Swap(chain pipeline.Handler) {
	a.chain.Store(&chain)
}

// ServeHTTP translates the wire request, runs the chain, and writes the
// result back.
func (a *Adapter) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	req := pipeline.NewRequest(pipeline.Method(strings.ToUpper(r.Method)), r.URL.Path)
	for name, values := range r.Header {
		if len(values) > 0 {
			req.SetHeader(name, values[0])
		}
	}
	for name, values := range r.URL.Query() {
		if len(values) > 0 {
			req.SetQuery(name, values[0])
		}
	}
	if r.Body != nil {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			a.writeError(w, http.StatusBadRequest, "unreadable request body")
			return
		}
		req.Body = string(body)
	}

	chain := *a.chain.Load()
	resp, err := chain.Handle(r.Context(), req)
	if err != nil {
		status := http.StatusInternalServerError
		message := "internal error"
		if he, ok := pipeline.AsHandlerError(err); ok {
			status = he.Status
			message = he.Message
		} else {
			a.logger.Error("pipeline fault", slog.Any("error", err))
		}
		a.writeError(w, status, message)
		return
	}
	if resp == nil {
		a.writeError(w, http.StatusInternalServerError, "empty response")
		return
	}

	for name, value := range resp.Headers() {
		w.Header().Set(name, value)
	}
	w.WriteHeader(resp.Status)
	if _, err := io.WriteString(w, resp.Body); err != nil {
		a.logger.Warn("response write failed", slog.Any("error", err))
	}
}

func (a *Adapter) writeError(w http.ResponseWriter, status int, message string) {
	body := message
	if a.errorTpl != nil {
		rendered, err := a.errorTpl.Render(map[string]any{
			"status":  status,
			"message": message,
		})
		if err != nil {
			a.logger.Warn("error template render failed", slog.Any("error", err))
		} else {
			body = rendered
		}
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}
