package middleware

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/l0p7/gatepipe/internal/config"
	"github.com/l0p7/gatepipe/internal/pipeline"
)

func newCORSChain(t *testing.T, inner pipeline.Handler, origins ...string) pipeline.Handler {
	t.Helper()
	unit, err := NewCORS(config.CORSConfig{AllowedOrigins: origins})
	require.NoError(t, err)
	return unit.Wrap(inner)
}

func TestCORSPreflightShortCircuits(t *testing.T) {
	inner := &countingHandler{}
	chain := newCORSChain(t, inner, "*")

	req := pipeline.NewRequest(pipeline.MethodOptions, "/quotes")
	req.SetHeader("origin", "https://app.example.com")

	resp, err := chain.Handle(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, http.StatusNoContent, resp.Status)
	require.Equal(t, "https://app.example.com", resp.Header("access-control-allow-origin"))
	require.Equal(t, "3600", resp.Header("access-control-max-age"))
	require.EqualValues(t, 0, inner.calls.Load(), "preflights never reach inner units")
}

func TestCORSDecoratesAllowedOrigins(t *testing.T) {
	inner := &countingHandler{body: "ok"}
	chain := newCORSChain(t, inner, "https://app.example.com")

	req := pipeline.NewRequest(pipeline.MethodGet, "/quotes")
	req.SetHeader("origin", "https://app.example.com")

	resp, err := chain.Handle(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.Status)
	require.Equal(t, "https://app.example.com", resp.Header("access-control-allow-origin"))
	require.EqualValues(t, 1, inner.calls.Load())
}

func TestCORSSkipsDisallowedOrigins(t *testing.T) {
	inner := &countingHandler{body: "ok"}
	chain := newCORSChain(t, inner, "https://app.example.com")

	req := pipeline.NewRequest(pipeline.MethodGet, "/quotes")
	req.SetHeader("origin", "https://evil.example.com")

	resp, err := chain.Handle(context.Background(), req)
	require.NoError(t, err)
	// The request still goes through; only the cross-origin grant is withheld.
	require.Equal(t, http.StatusOK, resp.Status)
	require.Empty(t, resp.Header("access-control-allow-origin"))
}

func TestCORSConfigValidation(t *testing.T) {
	_, err := NewCORS(config.CORSConfig{})
	require.Error(t, err)
}
