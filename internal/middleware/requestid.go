package middleware

import (
	"context"

	"github.com/google/uuid"

	"github.com/l0p7/gatepipe/internal/pipeline"
)

// RequestIDHeader carries the request identifier on responses.
const RequestIDHeader = "x-request-id"

// ContextKeyRequestID is the request context key holding the identifier.
const ContextKeyRequestID = "request_id"

// RequestID assigns an identifier to requests that arrive without one so
// every inner unit can correlate its log lines.
type RequestID struct {
	next pipeline.Handler
}

// NewRequestID constructs the request identification unit.
func NewRequestID() *RequestID { return &RequestID{} }

// Wrap binds the next handler. Called once at assembly time.
func (u *RequestID) Wrap(next pipeline.Handler) pipeline.Handler {
	u.next = next
	return u
}

// Handle ensures the request carries an identifier, delegates, and echoes the
// identifier on the response.
func (u *RequestID) Handle(ctx context.Context, req *pipeline.Request) (*pipeline.Response, error) {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	req.SetContextValue(ContextKeyRequestID, req.ID)

	resp, err := u.next.Handle(ctx, req)
	if resp != nil {
		resp.SetHeader(RequestIDHeader, req.ID)
	}
	return resp, err
}
