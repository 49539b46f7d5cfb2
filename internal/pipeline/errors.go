package pipeline

import (
	"errors"
	"fmt"
)

// HandlerError reports a per-request processing fault raised by the terminal
// handler. Units that catch it for logging or measurement must re-propagate
// it after recording; only a response-producing boundary (such as the HTTP
// adapter) converts it into a response.
type HandlerError struct {
	Status  int
	Message string
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("handler: %d %s", e.Status, e.Message)
}

// ConfigError reports invalid unit configuration detected at assembly time,
// before any request is processed.
type ConfigError struct {
	Unit   string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("pipeline: %s: %s", e.Unit, e.Reason)
}

// NewHandlerError builds a HandlerError with the given status and message.
func NewHandlerError(status int, message string) *HandlerError {
	return &HandlerError{Status: status, Message: message}
}

// AsHandlerError unwraps err into a HandlerError when one is present in the
// chain of wrapped errors.
func AsHandlerError(err error) (*HandlerError, bool) {
	var he *HandlerError
	if errors.As(err, &he) {
		return he, true
	}
	return nil, false
}
