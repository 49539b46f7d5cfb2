// Package pipeline defines the request/response model and the handler
// capability every unit in the chain implements. A pipeline is a singly
// linked stack of middleware units wrapping a terminal handler: each unit
// owns the link to its successor, the structure is built once at assembly
// time and never mutated afterward, so no lock guards the chain itself.
package pipeline

import (
	"context"
	"errors"
)

// Handler processes a request and produces a response. Both middleware units
// and the terminal handler implement it; composition happens through each
// unit's reference to the next handler, not through inheritance.
type Handler interface {
	Handle(ctx context.Context, req *Request) (*Response, error)
}

// HandlerFunc adapts a plain function to the Handler capability.
type HandlerFunc func(ctx context.Context, req *Request) (*Response, error)

// Handle invokes the function.
func (f HandlerFunc) Handle(ctx context.Context, req *Request) (*Response, error) {
	return f(ctx, req)
}

// Middleware wraps a handler with one cross-cutting behavior. Wrap is called
// exactly once per chain assembly.
type Middleware interface {
	Wrap(next Handler) Handler
}

// MiddlewareFunc adapts a wrapping function to the Middleware capability.
type MiddlewareFunc func(next Handler) Handler

// Wrap applies the function.
func (f MiddlewareFunc) Wrap(next Handler) Handler { return f(next) }

// Chain assembles the decorator stack around the terminal handler. Units are
// given outermost first, so the first unit's pre-logic runs first and its
// post-logic runs last. A unit that short-circuits prevents every unit inward
// of it, and the terminal handler, from observing the call.
func Chain(terminal Handler, units ...Middleware) (Handler, error) {
	if terminal == nil {
		return nil, errors.New("pipeline: terminal handler required")
	}
	handler := terminal
	for i := len(units) - 1; i >= 0; i-- {
		if units[i] == nil {
			return nil, errors.New("pipeline: nil middleware unit")
		}
		handler = units[i].Wrap(handler)
	}
	return handler, nil
}
