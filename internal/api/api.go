// Package api holds the terminal handler: the business logic at the core of
// the chain. It knows nothing about authentication, caching, logging, or any
// other concern the surrounding units add.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/l0p7/gatepipe/internal/pipeline"
)

// Quote is a point-in-time price for a ticker.
type Quote struct {
	Ticker string    `json:"ticker"`
	Price  float64   `json:"price"`
	AsOf   time.Time `json:"asOf"`
}

// User is a demo directory record.
type User struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Product is a demo catalogue record.
type Product struct {
	ID    int     `json:"id"`
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

// Handler serves the demo routes backed by in-memory data. Quote lookups
// carry a simulated upstream delay so the caching proxy's effect is visible.
type Handler struct {
	quoteDelay time.Duration
	prices     map[string]float64

	mu       sync.Mutex
	users    []User
	products []Product
}

// Option adjusts handler construction.
type Option func(*Handler)

// WithQuoteDelay overrides the simulated upstream latency for quote lookups.
func WithQuoteDelay(d time.Duration) Option {
	return func(h *Handler) { h.quoteDelay = d }
}

// New seeds the in-memory data.
func New(opts ...Option) *Handler {
	h := &Handler{
		quoteDelay: 150 * time.Millisecond,
		prices: map[string]float64{
			"AAPL":  150.25,
			"GOOGL": 2800.50,
			"MSFT":  310.10,
			"TSLA":  720.00,
		},
		users: []User{
			{ID: 1, Name: "Alice", Email: "alice@example.com"},
			{ID: 2, Name: "Bob", Email: "bob@example.com"},
		},
		products: []Product{
			{ID: 1, Name: "Laptop", Price: 999.99},
			{ID: 2, Name: "Mouse", Price: 29.99},
		},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Handle routes the request. Unknown routes surface as a HandlerError so
// outer units can observe the fault before the boundary converts it.
func (h *Handler) Handle(ctx context.Context, req *pipeline.Request) (*pipeline.Response, error) {
	switch {
	case strings.HasPrefix(req.Path, "/quotes"):
		return h.handleQuotes(ctx, req)
	case strings.HasPrefix(req.Path, "/users"):
		return h.handleUsers(req)
	case strings.HasPrefix(req.Path, "/products"):
		return h.handleProducts(req)
	default:
		return nil, pipeline.NewHandlerError(http.StatusNotFound, fmt.Sprintf("no route for %s", req.Path))
	}
}

func (h *Handler) handleQuotes(ctx context.Context, req *pipeline.Request) (*pipeline.Response, error) {
	if req.Method != pipeline.MethodGet {
		return nil, pipeline.NewHandlerError(http.StatusMethodNotAllowed, "quotes only supports GET")
	}
	ticker := strings.ToUpper(strings.TrimSpace(req.Query("ticker")))
	if ticker == "" {
		return nil, pipeline.NewHandlerError(http.StatusBadRequest, "ticker query parameter required")
	}

	// Simulated upstream latency; the real system would call out here.
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(h.quoteDelay):
	}

	price, ok := h.prices[ticker]
	if !ok {
		return nil, pipeline.NewHandlerError(http.StatusNotFound, fmt.Sprintf("unknown ticker %s", ticker))
	}
	return jsonResponse(http.StatusOK, Quote{Ticker: ticker, Price: price, AsOf: time.Now().UTC()})
}

func (h *Handler) handleUsers(req *pipeline.Request) (*pipeline.Response, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	switch req.Method {
	case pipeline.MethodGet:
		return jsonResponse(http.StatusOK, map[string][]User{"users": h.users})
	case pipeline.MethodPost:
		var user User
		if req.Body != "" {
			if err := json.Unmarshal([]byte(req.Body), &user); err != nil {
				return nil, pipeline.NewHandlerError(http.StatusBadRequest, "malformed user payload")
			}
		}
		user.ID = len(h.users) + 1
		h.users = append(h.users, user)
		return jsonResponse(http.StatusCreated, map[string]User{"user": user})
	default:
		return nil, pipeline.NewHandlerError(http.StatusMethodNotAllowed, "users only supports GET and POST")
	}
}

func (h *Handler) handleProducts(req *pipeline.Request) (*pipeline.Response, error) {
	if req.Method != pipeline.MethodGet {
		return nil, pipeline.NewHandlerError(http.StatusMethodNotAllowed, "products only supports GET")
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return jsonResponse(http.StatusOK, map[string][]Product{"products": h.products})
}

func jsonResponse(status int, payload any) (*pipeline.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("api: marshal response: %w", err)
	}
	resp := pipeline.NewResponse(status, string(body))
	resp.SetHeader("content-type", "application/json")
	return resp, nil
}
