package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/l0p7/gatepipe/internal/config"
	"github.com/l0p7/gatepipe/internal/expr"
	"github.com/l0p7/gatepipe/internal/pipeline"
)

// Policy evaluates a boolean guard expression against the request snapshot
// and short-circuits with 403 when the expression denies the call. The
// expression is compiled at construction, so a malformed guard aborts
// assembly instead of failing per request.
type Policy struct {
	program expr.Program
	logger  *slog.Logger
	next    pipeline.Handler
}

// NewPolicy compiles the configured expression and constructs the unit.
func NewPolicy(cfg config.PolicyConfig, logger *slog.Logger) (*Policy, error) {
	env, err := expr.NewEnvironment()
	if err != nil {
		return nil, err
	}
	program, err := env.Compile(cfg.Expression)
	if err != nil {
		return nil, &pipeline.ConfigError{Unit: "policy", Reason: err.Error()}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Policy{program: program, logger: logger.With(slog.String("unit", "policy"))}, nil
}

// Wrap binds the next handler. Called once at assembly time.
func (u *Policy) Wrap(next pipeline.Handler) pipeline.Handler {
	u.next = next
	return u
}

// Handle evaluates the guard before delegating. Evaluation faults deny the
// request rather than silently admitting it.
func (u *Policy) Handle(ctx context.Context, req *pipeline.Request) (*pipeline.Response, error) {
	allowed, err := u.program.EvalBool(map[string]any{
		"method":  string(req.Method),
		"path":    req.Path,
		"headers": req.Headers(),
		"query":   req.QueryParams(),
		"context": req.Context,
	})
	if err != nil {
		u.logger.Error("guard evaluation failed",
			slog.String("expression", u.program.Source()),
			slog.Any("error", err),
		)
		return deny(http.StatusForbidden, "request denied by policy"), nil
	}
	if !allowed {
		u.logger.Warn("request denied",
			slog.String("expression", u.program.Source()),
			slog.String("path", req.Path),
		)
		return deny(http.StatusForbidden, "request denied by policy"), nil
	}
	return u.next.Handle(ctx, req)
}
