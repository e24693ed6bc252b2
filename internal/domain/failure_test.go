package domain

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"
	"testing"
	"time"
)

func TestClassifyKeepsTaggedFailures(t *testing.T) {
	f := Transient(429, "rate limited")
	got := Classify(fmt.Errorf("calling upstream: %w", f))
	if got != f {
		t.Fatalf("expected the original failure back, got %+v", got)
	}
	if !got.Retryable {
		t.Fatal("transient failure lost its retryable flag")
	}

	tf := Terminal(400, "bad input")
	if Classify(tf).Retryable {
		t.Fatal("terminal failure classified as retryable")
	}
}

func TestClassifyNetworkErrorsRetryable(t *testing.T) {
	cases := []error{
		context.DeadlineExceeded,
		&net.DNSError{Err: "no such host", Name: "api.example.com"},
		&net.OpError{Op: "dial", Err: &timeoutErr{}},
		syscall.ECONNREFUSED,
		fmt.Errorf("write: %w", syscall.ECONNRESET),
	}
	for _, err := range cases {
		if f := Classify(err); !f.Retryable {
			t.Errorf("expected %v to classify retryable", err)
		}
	}
}

func TestClassifyDefaultsTerminal(t *testing.T) {
	f := Classify(errors.New("field 'name' is required"))
	if f.Retryable {
		t.Fatal("plain error classified as retryable")
	}
	if f.Message == "" {
		t.Fatal("message lost in classification")
	}
}

func TestFailureErrorString(t *testing.T) {
	if got := Terminal(422, "invalid payload").Error(); got != "invalid payload (code 422)" {
		t.Fatalf("unexpected error string %q", got)
	}
	if got := (&Failure{Message: "boom"}).Error(); got != "boom" {
		t.Fatalf("unexpected error string %q", got)
	}
}

// timeoutErr satisfies net.Error with Timeout() == true.
type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

var _ net.Error = timeoutErr{}

func TestClassifyTimeoutAfterDeadline(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond)
	defer cancel()
	<-ctx.Done()
	if f := Classify(ctx.Err()); !f.Retryable {
		t.Fatal("context deadline not classified retryable")
	}
}
