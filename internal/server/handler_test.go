package server

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gavv/httpexpect/v2"
	"github.com/stretchr/testify/require"

	"github.com/l0p7/gatepipe/internal/api"
	"github.com/l0p7/gatepipe/internal/cache"
	"github.com/l0p7/gatepipe/internal/config"
	"github.com/l0p7/gatepipe/internal/middleware"
	"github.com/l0p7/gatepipe/internal/pipeline"
	"github.com/l0p7/gatepipe/internal/proxy"
	"github.com/l0p7/gatepipe/internal/templates"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fullChain assembles the same unit ordering the binary uses, tuned for test
// speed: short quote delay, tight rate limit, in-memory cache.
func fullChain(t *testing.T) pipeline.Handler {
	t.Helper()
	logger := testLogger()

	auth, err := middleware.NewAuth(config.AuthConfig{Tokens: []string{"secret-token-123", "admin-token-456"}}, logger)
	require.NoError(t, err)
	rateLimit, err := middleware.NewRateLimit(config.RateLimitConfig{MaxRequests: 10, WindowSeconds: 60}, logger)
	require.NoError(t, err)
	cacheProxy, err := proxy.New(proxy.Config{TTL: time.Minute, Store: cache.NewMemory(), Logger: logger})
	require.NoError(t, err)

	chain, err := pipeline.Chain(
		api.New(api.WithQuoteDelay(time.Millisecond)),
		middleware.NewRequestID(),
		middleware.NewLogging(logger),
		auth,
		rateLimit,
		cacheProxy,
	)
	require.NoError(t, err)
	return chain
}

func newClient(t *testing.T, adapter *Adapter) (*httpexpect.Expect, func()) {
	t.Helper()
	srv := httptest.NewServer(adapter)
	return httpexpect.Default(t, srv.URL), srv.Close
}

func TestAdapterEndToEnd(t *testing.T) {
	adapter := NewAdapter(fullChain(t), testLogger(), nil)
	e, done := newClient(t, adapter)
	defer done()

	// No credential: the auth unit short-circuits before the terminal handler.
	e.GET("/quotes").WithQuery("ticker", "AAPL").
		Expect().
		Status(http.StatusUnauthorized)

	// Authenticated: first read is a miss, second is served from cache.
	first := e.GET("/quotes").WithQuery("ticker", "AAPL").
		WithHeader("Authorization", "Bearer secret-token-123").
		Expect().
		Status(http.StatusOK)
	first.Header("X-Cache").IsEqual("MISS")
	first.Header("X-Request-Id").NotEmpty()
	first.JSON().Object().Value("ticker").IsEqual("AAPL")

	second := e.GET("/quotes").WithQuery("ticker", "AAPL").
		WithHeader("Authorization", "Bearer secret-token-123").
		Expect().
		Status(http.StatusOK)
	second.Header("X-Cache").IsEqual("HIT")
	second.JSON().Object().Value("price").IsEqual(150.25)
}

func TestAdapterConvertsHandlerErrors(t *testing.T) {
	adapter := NewAdapter(fullChain(t), testLogger(), nil)
	e, done := newClient(t, adapter)
	defer done()

	e.GET("/quotes").WithQuery("ticker", "NOPE").
		WithHeader("Authorization", "Bearer secret-token-123").
		Expect().
		Status(http.StatusNotFound).
		Body().Contains("unknown ticker")
}

func TestAdapterRateLimitsClients(t *testing.T) {
	logger := testLogger()
	auth, err := middleware.NewAuth(config.AuthConfig{Tokens: []string{"secret-token-123"}}, logger)
	require.NoError(t, err)
	rateLimit, err := middleware.NewRateLimit(config.RateLimitConfig{MaxRequests: 2, WindowSeconds: 60}, logger)
	require.NoError(t, err)

	chain, err := pipeline.Chain(api.New(api.WithQuoteDelay(time.Millisecond)), auth, rateLimit)
	require.NoError(t, err)

	adapter := NewAdapter(chain, logger, nil)
	e, done := newClient(t, adapter)
	defer done()

	for range 2 {
		e.GET("/products").
			WithHeader("Authorization", "Bearer secret-token-123").
			Expect().
			Status(http.StatusOK)
	}

	e.GET("/products").
		WithHeader("Authorization", "Bearer secret-token-123").
		Expect().
		Status(http.StatusTooManyRequests).
		Header("Retry-After").IsEqual("60")
}

func TestAdapterRendersErrorTemplate(t *testing.T) {
	tpl, err := templates.NewRenderer().CompileInline("error", `{"error":"{{ .message }}","status":{{ .status }}}`)
	require.NoError(t, err)

	adapter := NewAdapter(fullChain(t), testLogger(), tpl)
	e, done := newClient(t, adapter)
	defer done()

	e.GET("/quotes").WithQuery("ticker", "AAPL").
		Expect().
		Status(http.StatusUnauthorized).
		Body().Contains(`"error":"authentication required"`).Contains(`"status":401`)
}

func TestAdapterSwapReplacesChain(t *testing.T) {
	open, err := pipeline.Chain(api.New(api.WithQuoteDelay(time.Millisecond)))
	require.NoError(t, err)
	adapter := NewAdapter(open, testLogger(), nil)
	e, done := newClient(t, adapter)
	defer done()

	e.GET("/products").Expect().Status(http.StatusOK)

	// Reload with authentication required: the same listener now rejects
	// anonymous calls.
	auth, err := middleware.NewAuth(config.AuthConfig{Tokens: []string{"secret-token-123"}}, testLogger())
	require.NoError(t, err)
	locked, err := pipeline.Chain(api.New(api.WithQuoteDelay(time.Millisecond)), auth)
	require.NoError(t, err)
	adapter.Swap(locked)

	e.GET("/products").Expect().Status(http.StatusUnauthorized)
	e.GET("/products").
		WithHeader("Authorization", "Bearer secret-token-123").
		Expect().
		Status(http.StatusOK)
}
