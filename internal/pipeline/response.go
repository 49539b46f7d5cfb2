package pipeline

import (
	"net/http"
	"strings"
	"time"
)

// Response is produced by the terminal handler or by a short-circuiting unit
// and mutated by units as control returns outward. Once the outermost unit
// hands it back to the caller it must be treated as immutable.
type Response struct {
	Status int
	Body   string

	headers map[string]string

	// Elapsed is stamped by the logging unit with the time the wrapped
	// portion of the chain took to produce this response.
	Elapsed time.Duration
}

// NewResponse constructs a response with an initialized header map.
func NewResponse(status int, body string) *Response {
	return &Response{Status: status, Body: body, headers: make(map[string]string)}
}

// Header performs a case-insensitive response header lookup.
func (r *Response) Header(name string) string {
	return r.headers[strings.ToLower(name)]
}

// SetHeader stores a response header under its lowercase key.
func (r *Response) SetHeader(name, value string) {
	if r.headers == nil {
		r.headers = make(map[string]string)
	}
	r.headers[strings.ToLower(name)] = value
}

// Headers exposes the underlying header map. Keys are lowercase.
func (r *Response) Headers() map[string]string { return r.headers }

// IsSuccess reports whether the status falls in the 2xx range.
func (r *Response) IsSuccess() bool {
	return r.Status >= http.StatusOK && r.Status < http.StatusMultipleChoices
}

// Clone returns a deep copy so cached responses survive mutation by outer
// units on the return path.
func (r *Response) Clone() *Response {
	out := &Response{Status: r.Status, Body: r.Body, Elapsed: r.Elapsed}
	if len(r.headers) > 0 {
		out.headers = make(map[string]string, len(r.headers))
		for k, v := range r.headers {
			out.headers[k] = v
		}
	} else {
		out.headers = make(map[string]string)
	}
	return out
}
