package middleware

import (
	"context"
	"net/http"

	"github.com/l0p7/gatepipe/internal/config"
	"github.com/l0p7/gatepipe/internal/pipeline"
)

// CORS answers preflight requests and appends cross-origin headers to
// outgoing responses for allowed origins. Preflights short-circuit with 204;
// everything else delegates and is decorated on the way back out.
type CORS struct {
	origins map[string]struct{}
	any     bool
	next    pipeline.Handler
}

// NewCORS validates the origin list and constructs the unit.
func NewCORS(cfg config.CORSConfig) (*CORS, error) {
	if len(cfg.AllowedOrigins) == 0 {
		return nil, &pipeline.ConfigError{Unit: "cors", Reason: "at least one allowed origin required"}
	}
	origins := make(map[string]struct{}, len(cfg.AllowedOrigins))
	wildcard := false
	for _, origin := range cfg.AllowedOrigins {
		if origin == "*" {
			wildcard = true
			continue
		}
		origins[origin] = struct{}{}
	}
	return &CORS{origins: origins, any: wildcard}, nil
}

// Wrap binds the next handler. Called once at assembly time.
func (u *CORS) Wrap(next pipeline.Handler) pipeline.Handler {
	u.next = next
	return u
}

// Handle short-circuits OPTIONS preflights and decorates all other responses
// with the cross-origin headers when the origin is allowed.
func (u *CORS) Handle(ctx context.Context, req *pipeline.Request) (*pipeline.Response, error) {
	var resp *pipeline.Response
	var err error

	if req.Method == pipeline.MethodOptions {
		resp = pipeline.NewResponse(http.StatusNoContent, "")
	} else {
		resp, err = u.next.Handle(ctx, req)
		if err != nil || resp == nil {
			return resp, err
		}
	}

	origin := req.Header("origin")
	if origin == "" {
		origin = "*"
	}
	if u.allowed(origin) {
		resp.SetHeader("access-control-allow-origin", origin)
		resp.SetHeader("access-control-allow-methods", "GET, POST, PUT, DELETE, PATCH")
		resp.SetHeader("access-control-allow-headers", "Content-Type, Authorization")
		resp.SetHeader("access-control-max-age", "3600")
	}
	return resp, nil
}

func (u *CORS) allowed(origin string) bool {
	if u.any {
		return true
	}
	_, ok := u.origins[origin]
	return ok
}
