package sqsclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"syscall"

	"github.com/aws/smithy-go"
)

// errClientClosed is returned by operations invoked after [Client.Close].
var errClientClosed = errors.New("SQS client is closed")

// ConfigurationError reports required connection fields that were empty when
// a [Client] was constructed. It is never retried.
type ConfigurationError struct {
	// Missing lists the human-readable names of every absent field.
	Missing []string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("missing required SQS connection parameters: %s", strings.Join(e.Missing, ", "))
}

// TransientError marks an error as a recoverable connectivity failure.
// A transport injected via [WithDialer] can wrap errors in TransientError to
// make the receive loop reconnect and retry instead of failing fast.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient SQS failure: %v", e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// RetryExhaustedError is returned by [Client.Receive] when every allowed
// attempt failed with a transient connectivity error. It unwraps to the last
// transient failure, so callers can distinguish "queue temporarily
// unreachable" from an invalid request with errors.As.
type RetryExhaustedError struct {
	// Attempts is the number of receive attempts that were made.
	Attempts int
	// Err is the transient failure observed on the final attempt.
	Err error
}

func (e *RetryExhaustedError) Error() string {
	return fmt.Sprintf("receive retry budget exhausted after %d attempts: %v", e.Attempts, e.Err)
}

func (e *RetryExhaustedError) Unwrap() error {
	return e.Err
}

// isTransient classifies a receive failure. Only connectivity-class errors
// (long-poll timeouts, dropped or refused connections, truncated responses)
// trigger reconnect and retry. An error carrying a service response — a
// smithy API error such as access denied or a malformed request — means the
// connection is healthy and the request itself is bad, so it is fatal.
func isTransient(err error) bool {
	// A context error means the caller's deadline or cancellation fired, not
	// that the connection degraded; reconnecting cannot help. It would
	// otherwise pass the net.Error timeout test below.
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return false
	}

	var te *TransientError
	if errors.As(err, &te) {
		return true
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}

	return errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.EPIPE)
}
