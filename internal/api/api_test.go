package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/l0p7/gatepipe/internal/pipeline"
)

func newTestHandler() *Handler {
	return New(WithQuoteDelay(time.Millisecond))
}

func TestQuotesKnownTicker(t *testing.T) {
	h := newTestHandler()

	req := pipeline.NewRequest(pipeline.MethodGet, "/quotes")
	req.SetQuery("ticker", "aapl")

	resp, err := h.Handle(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.Status)
	require.Equal(t, "application/json", resp.Header("content-type"))

	var quote Quote
	require.NoError(t, json.Unmarshal([]byte(resp.Body), &quote))
	require.Equal(t, "AAPL", quote.Ticker, "tickers are normalized to upper case")
	require.Equal(t, 150.25, quote.Price)
	require.False(t, quote.AsOf.IsZero())
}

func TestQuotesValidation(t *testing.T) {
	h := newTestHandler()
	ctx := context.Background()

	_, err := h.Handle(ctx, pipeline.NewRequest(pipeline.MethodGet, "/quotes"))
	he, ok := pipeline.AsHandlerError(err)
	require.True(t, ok)
	require.Equal(t, http.StatusBadRequest, he.Status)

	req := pipeline.NewRequest(pipeline.MethodGet, "/quotes")
	req.SetQuery("ticker", "NOPE")
	_, err = h.Handle(ctx, req)
	he, ok = pipeline.AsHandlerError(err)
	require.True(t, ok)
	require.Equal(t, http.StatusNotFound, he.Status)

	req = pipeline.NewRequest(pipeline.MethodPost, "/quotes")
	req.SetQuery("ticker", "AAPL")
	_, err = h.Handle(ctx, req)
	he, ok = pipeline.AsHandlerError(err)
	require.True(t, ok)
	require.Equal(t, http.StatusMethodNotAllowed, he.Status)
}

func TestQuotesHonorsContextCancellation(t *testing.T) {
	h := New(WithQuoteDelay(time.Second))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	req := pipeline.NewRequest(pipeline.MethodGet, "/quotes")
	req.SetQuery("ticker", "AAPL")

	_, err := h.Handle(ctx, req)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestUsersListAndCreate(t *testing.T) {
	h := newTestHandler()
	ctx := context.Background()

	resp, err := h.Handle(ctx, pipeline.NewRequest(pipeline.MethodGet, "/users"))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.Status)

	var listing map[string][]User
	require.NoError(t, json.Unmarshal([]byte(resp.Body), &listing))
	require.Len(t, listing["users"], 2)

	create := pipeline.NewRequest(pipeline.MethodPost, "/users")
	create.Body = `{"name":"Carol","email":"carol@example.com"}`
	resp, err = h.Handle(ctx, create)
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.Status)

	var created map[string]User
	require.NoError(t, json.Unmarshal([]byte(resp.Body), &created))
	require.Equal(t, 3, created["user"].ID)
	require.Equal(t, "Carol", created["user"].Name)

	resp, err = h.Handle(ctx, pipeline.NewRequest(pipeline.MethodGet, "/users"))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(resp.Body), &listing))
	require.Len(t, listing["users"], 3)
}

func TestUsersRejectsMalformedPayload(t *testing.T) {
	h := newTestHandler()

	create := pipeline.NewRequest(pipeline.MethodPost, "/users")
	create.Body = `{"name":`
	_, err := h.Handle(context.Background(), create)
	he, ok := pipeline.AsHandlerError(err)
	require.True(t, ok)
	require.Equal(t, http.StatusBadRequest, he.Status)
}

func TestProductsListing(t *testing.T) {
	h := newTestHandler()

	resp, err := h.Handle(context.Background(), pipeline.NewRequest(pipeline.MethodGet, "/products"))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.Status)

	var listing map[string][]Product
	require.NoError(t, json.Unmarshal([]byte(resp.Body), &listing))
	require.Len(t, listing["products"], 2)

	_, err = h.Handle(context.Background(), pipeline.NewRequest(pipeline.MethodDelete, "/products"))
	he, ok := pipeline.AsHandlerError(err)
	require.True(t, ok)
	require.Equal(t, http.StatusMethodNotAllowed, he.Status)
}

func TestUnknownRoute(t *testing.T) {
	h := newTestHandler()

	_, err := h.Handle(context.Background(), pipeline.NewRequest(pipeline.MethodGet, "/nowhere"))
	require.Error(t, err)
	var he *pipeline.HandlerError
	require.True(t, errors.As(err, &he))
	require.Equal(t, http.StatusNotFound, he.Status)
}
