package domain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"syscall"
)

// Failure is the single error type the orchestrator stores and surfaces.
// Retryable is decided once, where the error originates (processor adapter,
// store, queue client) - never inferred later from message text.
type Failure struct {
	Message   string          `json:"message"`
	Code      int             `json:"code,omitempty"`
	Details   json.RawMessage `json:"details,omitempty"`
	Retryable bool            `json:"-"`
}

func (f *Failure) Error() string {
	if f.Code != 0 {
		return fmt.Sprintf("%s (code %d)", f.Message, f.Code)
	}
	return f.Message
}

// Transient builds a retryable failure (rate limit, upstream unavailable, timeout).
func Transient(code int, format string, args ...interface{}) *Failure {
	return &Failure{Message: fmt.Sprintf(format, args...), Code: code, Retryable: true}
}

// Terminal builds a non-retryable failure (validation, business rejection, 4xx).
func Terminal(code int, format string, args ...interface{}) *Failure {
	return &Failure{Message: fmt.Sprintf(format, args...), Code: code}
}

// AsFailure unwraps err looking for a *Failure.
func AsFailure(err error) (*Failure, bool) {
	var f *Failure
	if errors.As(err, &f) {
		return f, true
	}
	return nil, false
}

// Classify promotes an arbitrary error into a Failure. Errors already tagged
// keep their flag; network-level conditions (timeout, reset, refused, DNS) and
// context deadlines are retryable; everything else is terminal.
func Classify(err error) *Failure {
	if f, ok := AsFailure(err); ok {
		return f
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &Failure{Message: err.Error(), Retryable: true}
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return &Failure{Message: err.Error(), Retryable: true}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &Failure{Message: err.Error(), Retryable: true}
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.EPIPE) {
		return &Failure{Message: err.Error(), Retryable: true}
	}
	return &Failure{Message: err.Error()}
}
