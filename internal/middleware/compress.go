package middleware

import (
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/l0p7/gatepipe/internal/config"
	"github.com/l0p7/gatepipe/internal/pipeline"
)

// Compression transforms the response after delegation, never before: the
// body is gzipped only when the request declares it accepts the encoding and
// the body exceeds the configured minimum size. Failure responses pass
// through untouched.
type Compression struct {
	minBytes int
	next     pipeline.Handler
}

// NewCompression validates the threshold configuration and constructs the
// unit. Only gzip is supported.
func NewCompression(cfg config.CompressionConfig) (*Compression, error) {
	if cfg.MinBytes < 0 {
		return nil, &pipeline.ConfigError{Unit: "compression", Reason: "minimum body size must not be negative"}
	}
	if enc := strings.ToLower(strings.TrimSpace(cfg.Encoding)); enc != "" && enc != "gzip" {
		return nil, &pipeline.ConfigError{Unit: "compression", Reason: fmt.Sprintf("unsupported encoding %q", cfg.Encoding)}
	}
	return &Compression{minBytes: cfg.MinBytes}, nil
}

// Wrap binds the next handler. Called once at assembly time.
func (u *Compression) Wrap(next pipeline.Handler) pipeline.Handler {
	u.next = next
	return u
}

// Handle delegates first and conditionally compresses the returned body.
func (u *Compression) Handle(ctx context.Context, req *pipeline.Request) (*pipeline.Response, error) {
	acceptsGzip := strings.Contains(strings.ToLower(req.Header("accept-encoding")), "gzip")

	resp, err := u.next.Handle(ctx, req)
	if err != nil || resp == nil {
		return resp, err
	}

	if !acceptsGzip || !resp.IsSuccess() || len(resp.Body) <= u.minBytes {
		return resp, nil
	}

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, werr := zw.Write([]byte(resp.Body)); werr != nil {
		return resp, nil
	}
	if cerr := zw.Close(); cerr != nil {
		return resp, nil
	}

	originalSize := len(resp.Body)
	resp.Body = buf.String()
	resp.SetHeader("content-encoding", "gzip")
	resp.SetHeader("x-original-size", strconv.Itoa(originalSize))
	resp.SetHeader("x-compressed-size", strconv.Itoa(buf.Len()))
	return resp, nil
}
