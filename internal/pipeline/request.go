package pipeline

import (
	"strings"
	"time"
)

// Method enumerates the request verbs the pipeline understands.
type Method string

const (
	MethodGet     Method = "GET"
	MethodPost    Method = "POST"
	MethodPut     Method = "PUT"
	MethodDelete  Method = "DELETE"
	MethodPatch   Method = "PATCH"
	MethodOptions Method = "OPTIONS"
)

// Idempotent reports whether the method is safe to serve from a cache.
func (m Method) Idempotent() bool { return m == MethodGet }

// Request is the mutable per-call value threaded through the chain. It is
// owned exclusively by a single pipeline invocation: units mutate it in place
// and it is discarded once the outermost unit returns. Header keys are stored
// lowercase so lookups are case-insensitive.
type Request struct {
	Method Method
	Path   string
	Body   string

	headers map[string]string
	query   map[string]string

	// Context carries values units hand to their successors, such as the
	// authenticated user id. It mirrors the request-scoped snapshot the
	// admission layer exposes to downstream units.
	Context map[string]any

	ReceivedAt time.Time
	ID         string
}

// NewRequest captures the inbound call metadata and initializes the shared
// maps so units never need nil checks before writing.
func NewRequest(method Method, path string) *Request {
	return &Request{
		Method:     method,
		Path:       path,
		headers:    make(map[string]string),
		query:      make(map[string]string),
		Context:    make(map[string]any),
		ReceivedAt: time.Now().UTC(),
	}
}

// Header performs a case-insensitive header lookup, returning the empty
// string when the header is absent.
func (r *Request) Header(name string) string {
	return r.headers[strings.ToLower(name)]
}

// SetHeader stores a header under its lowercase key.
func (r *Request) SetHeader(name, value string) {
	if r.headers == nil {
		r.headers = make(map[string]string)
	}
	r.headers[strings.ToLower(name)] = value
}

// Headers exposes the underlying header map. Keys are lowercase.
func (r *Request) Headers() map[string]string { return r.headers }

// Query returns the value of a query parameter, empty when absent.
func (r *Request) Query(name string) string { return r.query[name] }

// SetQuery stores a query parameter.
func (r *Request) SetQuery(name, value string) {
	if r.query == nil {
		r.query = make(map[string]string)
	}
	r.query[name] = value
}

// QueryParams exposes the underlying query parameter map.
func (r *Request) QueryParams() map[string]string { return r.query }

// ContextValue returns a value a prior unit stored on the request, along with
// whether it was present.
func (r *Request) ContextValue(key string) (any, bool) {
	v, ok := r.Context[key]
	return v, ok
}

// ContextString returns a context value coerced to string, or the fallback
// when the key is absent or holds a non-string.
func (r *Request) ContextString(key, fallback string) string {
	if v, ok := r.Context[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return fallback
}

// SetContextValue records a cross-unit value on the request.
func (r *Request) SetContextValue(key string, value any) {
	if r.Context == nil {
		r.Context = make(map[string]any)
	}
	r.Context[key] = value
}
