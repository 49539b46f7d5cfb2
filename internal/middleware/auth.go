package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/l0p7/gatepipe/internal/config"
	"github.com/l0p7/gatepipe/internal/pipeline"
)

// Context keys the authentication unit populates for downstream units.
const (
	ContextKeyUserID  = "user_id"
	ContextKeyIsAdmin = "is_admin"
)

// Auth guards the chain behind a bearer-credential check. A missing or
// invalid credential short-circuits with a 401 response; the failure is never
// surfaced as an error, so outer logging and metrics units still observe the
// rejected call.
type Auth struct {
	tokens map[string]struct{}
	logger *slog.Logger
	next   pipeline.Handler
}

// NewAuth validates the credential set and constructs the unit.
func NewAuth(cfg config.AuthConfig, logger *slog.Logger) (*Auth, error) {
	if len(cfg.Tokens) == 0 {
		return nil, &pipeline.ConfigError{Unit: "auth", Reason: "at least one valid token required"}
	}
	tokens := make(map[string]struct{}, len(cfg.Tokens))
	for _, token := range cfg.Tokens {
		token = strings.TrimSpace(token)
		if token == "" {
			return nil, &pipeline.ConfigError{Unit: "auth", Reason: "empty token in credential set"}
		}
		tokens[token] = struct{}{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Auth{tokens: tokens, logger: logger.With(slog.String("unit", "auth"))}, nil
}

// Wrap binds the next handler. Called once at assembly time.
func (u *Auth) Wrap(next pipeline.Handler) pipeline.Handler {
	u.next = next
	return u
}

// Handle checks the authorization header before delegating. On success the
// authenticated identity is recorded on the request context for inner units
// such as the rate limiter.
func (u *Auth) Handle(ctx context.Context, req *pipeline.Request) (*pipeline.Response, error) {
	header := strings.TrimSpace(req.Header("authorization"))
	if header == "" {
		u.logger.Warn("missing credential", slog.String("path", req.Path))
		return deny(http.StatusUnauthorized, "authentication required"), nil
	}

	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if _, ok := u.tokens[token]; !ok {
		u.logger.Warn("invalid credential", slog.String("path", req.Path))
		return deny(http.StatusUnauthorized, "invalid authentication token"), nil
	}

	req.SetContextValue(ContextKeyUserID, "user:"+token[:min(8, len(token))])
	req.SetContextValue(ContextKeyIsAdmin, strings.HasPrefix(token, "admin-"))

	return u.next.Handle(ctx, req)
}

func deny(status int, message string) *pipeline.Response {
	resp := pipeline.NewResponse(status, message)
	resp.SetHeader("content-type", "text/plain; charset=utf-8")
	return resp
}
