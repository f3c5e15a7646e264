package sqsclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"go.uber.org/zap"
)

// Receive long-polls the queue for a batch of messages, retrying transient
// connectivity failures up to the budget set by [WithMaxReceiveAttempts].
//
// Each attempt requests up to the configured batch size with all system and
// message attributes, the configured visibility timeout, and the configured
// long-poll wait. The first successful poll returns immediately; an empty
// result is a successful poll of an empty queue, not a failure, and consumes
// no retry.
//
// When an attempt fails with a transient connectivity error (long-poll
// timeout, dropped connection), the client reconnects — rebuilding the
// transport handle from the same bound configuration — before anything else,
// so the client is never left with a dead handle even when the budget is
// exhausted. If the failed attempt was the last allowed one, Receive returns
// a [*RetryExhaustedError]; otherwise it retries, after the optional
// [WithRetryBackoff] delay. Any non-transient failure is returned
// immediately without reconnect or retry.
//
// ctx cancellation is honored between attempts, never mid-poll; a hard
// wall-clock deadline therefore has to cover the full budget of
// maxAttempts × waitTime.
func (c *Client) Receive(ctx context.Context) ([]Message, error) {
	input := &sqs.ReceiveMessageInput{
		QueueUrl:              &c.cfg.QueueURL,
		MaxNumberOfMessages:   c.opts.receiveMaxNumberOfMessages,
		VisibilityTimeout:     c.opts.visibilityTimeoutSeconds,
		WaitTimeSeconds:       c.opts.receiveWaitTimeSeconds,
		AttributeNames:        []sqstypes.QueueAttributeName{sqstypes.QueueAttributeNameAll},
		MessageAttributeNames: []string{"All"},
	}

	for attempt := 1; ; attempt++ {
		var output *sqs.ReceiveMessageOutput

		err := c.withTransport(func(api QueueAPI) error {
			var err error
			output, err = api.ReceiveMessage(ctx, input)
			return err
		})
		if errors.Is(err, errClientClosed) {
			return nil, err
		}

		if err == nil {
			messages := make([]Message, 0, len(output.Messages))
			for _, m := range output.Messages {
				messages = append(messages, newMessage(m))
			}

			c.logger.Debug("SQS messages received",
				zap.Int("count", len(messages)), zap.Int("attempt", attempt))

			return messages, nil
		}

		if !isTransient(err) {
			return nil, fmt.Errorf("failed to receive SQS messages: %w", err)
		}

		c.logger.Warn("Transient failure while receiving SQS messages",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", c.opts.maxReceiveAttempts),
			zap.Error(err))

		// Reconnect before the budget check so the handle is live again
		// even when this was the final attempt.
		if rerr := c.connect(ctx); rerr != nil {
			return nil, fmt.Errorf("failed to reconnect after transient receive failure: %w", rerr)
		}

		if attempt >= c.opts.maxReceiveAttempts {
			c.logger.Error("Receive retry budget exhausted", zap.Int("attempts", attempt))
			return nil, &RetryExhaustedError{Attempts: attempt, Err: err}
		}

		if werr := c.waitBeforeRetry(ctx); werr != nil {
			return nil, werr
		}
	}
}

// waitBeforeRetry sleeps for the configured backoff, or returns early with
// the context's error when the caller cancels. With zero backoff it only
// checks for cancellation.
func (c *Client) waitBeforeRetry(ctx context.Context) error {
	if c.opts.retryBackoff <= 0 {
		return ctx.Err()
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(c.opts.retryBackoff):
		return nil
	}
}
