package sqsclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/retry"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"go.uber.org/zap"
)

// QueueAPI is the transport contract a [Client] requires from the queue
// service. The AWS SQS client satisfies it; tests inject mocks via
// [WithDialer].
type QueueAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
	PurgeQueue(ctx context.Context, params *sqs.PurgeQueueInput, optFns ...func(*sqs.Options)) (*sqs.PurgeQueueOutput, error)
}

// Client owns one connection to a specific SQS queue and exposes send,
// retrying receive, delete and purge operations against it. The queue bound
// at construction never changes; the transport handle behind it is replaced
// on reconnect without changing the client's identity or configuration.
//
// Create a Client with [NewClient], or preferably through
// [Registry.GetOrCreate] so that repeated construction with an equal [Config]
// reuses one instance. All methods are safe for concurrent use: the handle
// swap performed by the receive loop's reconnect is serialized against
// in-flight send and delete calls on the same client.
type Client struct {
	cfg    Config
	opts   *Options
	logger *zap.Logger

	mu     sync.RWMutex
	api    QueueAPI
	closed bool
}

// NewClient validates cfg, eagerly opens a transport connection bound to the
// configured region and credentials, and returns the connected client.
//
// If any of the four connection fields is empty, NewClient fails with a
// [*ConfigurationError] listing every missing field. A nil logger is
// replaced with a no-op logger.
func NewClient(ctx context.Context, cfg Config, logger *zap.Logger, opts ...Option) (*Client, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	options := newOptions()

	for _, o := range opts {
		o(options)
	}

	if err := options.validate(); err != nil {
		return nil, fmt.Errorf("invalid SQS client options: %w", err)
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	c := &Client{
		cfg:  cfg,
		opts: options,
		logger: logger.With(
			zap.String("queue_url", cfg.QueueURL),
			zap.String("region", cfg.Region),
		),
	}

	if err := c.connect(ctx); err != nil {
		return nil, err
	}

	return c, nil
}

// Config returns the connection configuration the client was built from.
func (c *Client) Config() Config {
	return c.cfg
}

// connect opens a fresh transport handle and installs it, releasing the
// previous one. Used both for initial construction and for recovery after a
// transient receive failure.
func (c *Client) connect(ctx context.Context) error {
	dial := c.opts.dialer
	if dial == nil {
		dial = c.dialSQS
	}

	api, err := dial(ctx, c.cfg)
	if err != nil {
		return fmt.Errorf("failed to open SQS transport: %w", err)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		c.release(api)
		return errClientClosed
	}
	old := c.api
	c.api = api
	c.mu.Unlock()

	// Acquiring the write lock above waited for every in-flight operation to
	// drain its read lock, so nothing is still executing on the old handle.
	if old != nil {
		c.release(old)
	}

	return nil
}

func (c *Client) dialSQS(ctx context.Context, cfg Config) (QueueAPI, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		),
	)
	if err != nil {
		return nil, err
	}

	return sqs.NewFromConfig(awsCfg, func(o *sqs.Options) {
		o.Retryer = retry.AddWithMaxBackoffDelay(o.Retryer, c.opts.apiMaxRetryBackoffDelay)
		o.Retryer = retry.AddWithMaxAttempts(o.Retryer, c.opts.apiMaxRetryAttempts)
	}), nil
}

// release closes a discarded transport handle when it supports closing.
// The AWS SDK client holds no resources that need explicit release; injected
// transports may.
func (c *Client) release(api QueueAPI) {
	closer, ok := api.(io.Closer)
	if !ok {
		return
	}

	if err := closer.Close(); err != nil {
		c.logger.Warn("Failed to close SQS transport handle", zap.Error(err))
	}
}

// withTransport runs op on the current handle, holding the shared lock for
// the duration of the call. A concurrent reconnect or Close takes the write
// lock and therefore waits for every in-flight operation to finish before it
// swaps or releases the handle.
func (c *Client) withTransport(op func(api QueueAPI) error) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.api == nil {
		return errClientClosed
	}

	return op(c.api)
}

// Close releases the client's transport handle. The client cannot be used
// afterwards; operations on a closed client fail. Closing an already-closed
// client is a no-op.
func (c *Client) Close() error {
	c.mu.Lock()
	api := c.api
	c.api = nil
	c.closed = true
	c.mu.Unlock()

	if api == nil {
		return nil
	}

	if closer, ok := api.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			return fmt.Errorf("failed to close SQS transport handle: %w", err)
		}
	}

	return nil
}

// Send transmits body as a message payload to the bound queue and returns
// the queue's acknowledgement. attrs, when non-nil, is attached as
// string-valued message attributes and delivered unmodified to receivers.
//
// Send never retries: any transport failure is logged with context and
// returned to the caller. This is a deliberate contrast with
// [Client.Receive], which has local recovery.
func (c *Client) Send(ctx context.Context, body string, attrs map[string]string) (*SendResult, error) {
	input := &sqs.SendMessageInput{
		QueueUrl:    &c.cfg.QueueURL,
		MessageBody: &body,
	}

	if len(attrs) > 0 {
		input.MessageAttributes = make(map[string]sqstypes.MessageAttributeValue, len(attrs))
		for name, value := range attrs {
			input.MessageAttributes[name] = sqstypes.MessageAttributeValue{
				DataType:    aws.String("String"),
				StringValue: aws.String(value),
			}
		}
	}

	var output *sqs.SendMessageOutput

	err := c.withTransport(func(api QueueAPI) error {
		var err error
		output, err = api.SendMessage(ctx, input)
		return err
	})
	if errors.Is(err, errClientClosed) {
		return nil, err
	}
	if err != nil {
		c.logger.Error("Failed to send SQS message", zap.Error(err))
		return nil, fmt.Errorf("failed to send SQS message: %w", err)
	}

	messageID := aws.ToString(output.MessageId)
	c.logger.Debug("SQS message sent", zap.String("message_id", messageID))

	return &SendResult{MessageID: messageID}, nil
}

// Delete removes msg from the queue using its receipt handle, acknowledging
// successful processing. Receipt handles are single-use and valid only while
// the message is leased; deleting with a stale handle is resolved by the
// queue service, not re-validated here. Delete never retries.
func (c *Client) Delete(ctx context.Context, msg Message) error {
	input := &sqs.DeleteMessageInput{
		QueueUrl:      &c.cfg.QueueURL,
		ReceiptHandle: &msg.ReceiptHandle,
	}

	err := c.withTransport(func(api QueueAPI) error {
		_, err := api.DeleteMessage(ctx, input)
		return err
	})
	if errors.Is(err, errClientClosed) {
		return err
	}
	if err != nil {
		c.logger.Error("Failed to delete SQS message",
			zap.String("message_id", msg.MessageID), zap.Error(err))
		return fmt.Errorf("failed to delete SQS message: %w", err)
	}

	c.logger.Debug("SQS message deleted", zap.String("message_id", msg.MessageID))

	return nil
}

// Purge removes all messages from the bound queue, including messages
// currently leased to other consumers and messages sent by other producers.
// It is destructive and cannot be undone; intended for tests and maintenance
// only. Failures are logged and returned to the caller.
func (c *Client) Purge(ctx context.Context) error {
	input := &sqs.PurgeQueueInput{
		QueueUrl: &c.cfg.QueueURL,
	}

	err := c.withTransport(func(api QueueAPI) error {
		_, err := api.PurgeQueue(ctx, input)
		return err
	})
	if errors.Is(err, errClientClosed) {
		return err
	}
	if err != nil {
		c.logger.Error("Failed to purge SQS queue", zap.Error(err))
		return fmt.Errorf("failed to purge SQS queue: %w", err)
	}

	c.logger.Info("SQS queue purged")

	return nil
}
