// Package sqsclient is a client-side abstraction over AWS SQS providing
// message send, batched receive with retry, deletion (acknowledgement) and
// administrative purge, with transient-failure recovery and
// one-instance-per-configuration caching.
//
// # Registry and Client
//
// [Registry] deduplicates [Client] instances by connection configuration:
// repeated construction with a field-wise equal [Config] reuses one
// underlying connection. Construct a registry once at startup and pass it to
// consumers:
//
//	registry := sqsclient.NewRegistry(logger)
//	client, err := registry.GetOrCreate(ctx, sqsclient.Config{
//	    Region:          "eu-west-1",
//	    AccessKeyID:     accessKey,
//	    SecretAccessKey: secretKey,
//	    QueueURL:        queueURL,
//	})
//
// Each Client owns one connection to the queue fixed at construction and
// exposes [Client.Send], [Client.Receive], [Client.Delete] and
// [Client.Purge]. A missing connection field fails construction with a
// [*ConfigurationError] naming every absent field; [ConfigFromEnv] builds a
// Config from SQS_* environment variables.
//
// # Receive and retry
//
// [Client.Receive] is the only operation with local recovery. It long-polls
// for a batch of messages and, on a transient connectivity failure, rebuilds
// the transport handle from the same bound configuration and polls again, up
// to a configurable attempt budget. When the budget is exhausted the call
// fails with [*RetryExhaustedError], which callers can pick out with
// errors.As to distinguish "queue temporarily unreachable" from an invalid
// request. Non-transient failures — authorization errors, malformed
// requests — are returned immediately from every operation, without retry.
//
// An empty successful poll means the queue was empty during the wait window;
// it is returned as an empty slice and consumes no retry.
//
// Received messages are leased for the configured visibility timeout.
// Delivery is at-least-once: a message not deleted before its lease expires
// becomes eligible for redelivery, so consumers must tolerate duplicates.
//
// # Configuration
//
// Behaviour is tuned with functional options passed to [NewClient] or
// [NewRegistry]; see the With* functions for settings and defaults. Options
// cover the receive retry budget, batch size, visibility timeout, long-poll
// wait, an optional backoff between retry attempts, and the AWS SDK's own
// retryer limits.
//
// # Scoped use
//
// For short-lived maintenance work, [Borrow] constructs a client, runs a
// callback, and guarantees the transport handle is released afterwards:
//
//	err := sqsclient.Borrow(ctx, cfg, logger, func(c *sqsclient.Client) error {
//	    return c.Purge(ctx)
//	})
package sqsclient
