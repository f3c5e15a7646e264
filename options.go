package sqsclient

import (
	"context"
	"errors"
	"time"
)

// Option is a functional option for configuring a [Client].
// Options are passed to [NewClient] or [NewRegistry] and applied before the
// transport connection is opened.
type Option func(*Options)

// Options holds the resolved configuration for a [Client].
// All fields are set to sensible defaults by [NewClient]; use With* functions
// to override individual values.
type Options struct {
	maxReceiveAttempts         int
	receiveMaxNumberOfMessages int32
	visibilityTimeoutSeconds   int32
	receiveWaitTimeSeconds     int32
	retryBackoff               time.Duration
	apiMaxRetryAttempts        int
	apiMaxRetryBackoffDelay    time.Duration
	dialer                     Dialer // Optional: injected transport factory for testing
}

func newOptions() *Options {
	return &Options{
		maxReceiveAttempts:         3,
		receiveMaxNumberOfMessages: 10,
		visibilityTimeoutSeconds:   60,
		receiveWaitTimeSeconds:     10,
		retryBackoff:               0,
		apiMaxRetryAttempts:        5,
		apiMaxRetryBackoffDelay:    10 * time.Second,
	}
}

func (o *Options) validate() error {
	if o.maxReceiveAttempts < 1 {
		return errors.New("max receive attempts must be greater than or equal to 1")
	}

	if o.receiveMaxNumberOfMessages < 1 || o.receiveMaxNumberOfMessages > 10 {
		return errors.New("max number of messages per SQS receive must be between 1 and 10")
	}

	if o.visibilityTimeoutSeconds < 0 || o.visibilityTimeoutSeconds > 43200 {
		return errors.New("SQS message visibility timeout must be between 0 seconds and 12 hours")
	}

	if o.receiveWaitTimeSeconds < 0 || o.receiveWaitTimeSeconds > 20 {
		return errors.New("SQS receive wait time must be between 0 and 20 seconds")
	}

	if o.retryBackoff < 0 || o.retryBackoff > time.Minute {
		return errors.New("receive retry backoff must be between 0 and 1 minute")
	}

	if o.apiMaxRetryAttempts < 0 || o.apiMaxRetryAttempts > 10 {
		return errors.New("max SQS API retry attempts must be between 0 and 10")
	}

	if o.apiMaxRetryBackoffDelay < 1*time.Second || o.apiMaxRetryBackoffDelay > 30*time.Second {
		return errors.New("max SQS API retry backoff delay must be between 1 and 30 seconds")
	}

	return nil
}

// WithMaxReceiveAttempts sets the retry budget of [Client.Receive]: the
// maximum number of long-poll attempts made before the call fails with
// [RetryExhaustedError]. The budget bounds reconnect attempts, not elapsed
// wall-clock time; callers needing a hard deadline should wrap the call in a
// context with one. Must be at least 1. Default: 3.
func WithMaxReceiveAttempts(n int) Option {
	return func(o *Options) {
		o.maxReceiveAttempts = n
	}
}

// WithReceiveMaxNumberOfMessages sets the maximum number of messages
// returned by a single receive attempt. Must be between 1 and 10.
// Default: 10.
func WithReceiveMaxNumberOfMessages(n int32) Option {
	return func(o *Options) {
		o.receiveMaxNumberOfMessages = n
	}
}

// WithVisibilityTimeout sets the visibility timeout applied to each received
// message: the interval during which the message stays hidden from other
// consumers while leased to this one. Must be between 0 and 43200 seconds
// (12 hours). Default: 60.
func WithVisibilityTimeout(seconds int32) Option {
	return func(o *Options) {
		o.visibilityTimeoutSeconds = seconds
	}
}

// WithReceiveWaitTimeSeconds sets the long-poll wait duration of each receive
// attempt. The window is per attempt, not cumulative: a reconnect resets it
// entirely. Must be between 0 and 20 seconds. Default: 10.
func WithReceiveWaitTimeSeconds(seconds int32) Option {
	return func(o *Options) {
		o.receiveWaitTimeSeconds = seconds
	}
}

// WithRetryBackoff sets the delay inserted between a reconnect and the next
// receive attempt. A zero backoff retries immediately; set a positive value
// to be gentler on a flapping network. The wait is aborted when the call's
// context is cancelled. Must be between 0 and 1 minute. Default: 0.
func WithRetryBackoff(d time.Duration) Option {
	return func(o *Options) {
		o.retryBackoff = d
	}
}

// WithAPIMaxRetryAttempts sets the maximum number of retry attempts the AWS
// SDK itself performs per API call, below this package's receive retry loop.
// Must be between 0 and 10. Default: 5.
func WithAPIMaxRetryAttempts(n int) Option {
	return func(o *Options) {
		o.apiMaxRetryAttempts = n
	}
}

// WithAPIMaxRetryBackoffDelay sets the maximum backoff delay between
// consecutive SDK-level retry attempts. Must be between 1 second and
// 30 seconds. Default: 10 seconds.
func WithAPIMaxRetryBackoffDelay(d time.Duration) Option {
	return func(o *Options) {
		o.apiMaxRetryBackoffDelay = d
	}
}

// Dialer opens a transport handle for the given connection configuration.
// It is invoked once at construction and again on every reconnect.
type Dialer func(ctx context.Context, cfg Config) (QueueAPI, error)

// WithDialer replaces the default AWS SQS transport factory with a custom
// one. This option is intended for testing with mock or stub transports.
func WithDialer(d Dialer) Option {
	return func(o *Options) {
		o.dialer = d
	}
}
