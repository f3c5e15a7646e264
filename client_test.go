//nolint:paralleltest,testpackage // Tests need access to unexported functions
package sqsclient

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"go.uber.org/zap"
)

func TestNewClient_OpensTransportEagerly(t *testing.T) {
	var dials atomic.Int32

	client, err := NewClient(context.Background(), testConfig(), zap.NewNop(),
		WithDialer(staticDialer(&mockQueueAPI{}, &dials)))
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}

	if dials.Load() != 1 {
		t.Errorf("expected construction to open the transport, got %d dials", dials.Load())
	}

	if client.Config() != testConfig() {
		t.Errorf("expected config to be retained, got %+v", client.Config())
	}
}

func TestNewClient_MissingFields(t *testing.T) {
	var dials atomic.Int32

	cfg := testConfig()
	cfg.AccessKeyID = ""
	cfg.QueueURL = ""

	_, err := NewClient(context.Background(), cfg, nil, WithDialer(staticDialer(&mockQueueAPI{}, &dials)))

	var cfgErr *ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}

	want := []string{"access key ID", "queue URL"}
	if len(cfgErr.Missing) != len(want) {
		t.Fatalf("expected missing fields %v, got %v", want, cfgErr.Missing)
	}

	for i, name := range want {
		if cfgErr.Missing[i] != name {
			t.Errorf("expected missing field %q at %d, got %q", name, i, cfgErr.Missing[i])
		}
	}

	if dials.Load() != 0 {
		t.Error("expected no transport to be opened for an invalid config")
	}
}

func TestNewClient_InvalidOptions(t *testing.T) {
	_, err := NewClient(context.Background(), testConfig(), nil, WithMaxReceiveAttempts(0))
	if err == nil {
		t.Fatal("expected an error for a zero retry budget")
	}
}

func TestNewClient_DialFailure(t *testing.T) {
	dialErr := errors.New("credentials rejected")

	_, err := NewClient(context.Background(), testConfig(), nil,
		WithDialer(func(_ context.Context, _ Config) (QueueAPI, error) {
			return nil, dialErr
		}))
	if !errors.Is(err, dialErr) {
		t.Fatalf("expected the dial error to surface, got %v", err)
	}
}

func TestSend(t *testing.T) {
	var dials atomic.Int32

	cfg := testConfig()

	mock := &mockQueueAPI{
		sendMessageFunc: func(_ context.Context, input *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
			if aws.ToString(input.QueueUrl) != cfg.QueueURL {
				t.Errorf("expected queue URL %q, got %q", cfg.QueueURL, aws.ToString(input.QueueUrl))
			}
			if aws.ToString(input.MessageBody) != `{"k":1}` {
				t.Errorf("expected body %q, got %q", `{"k":1}`, aws.ToString(input.MessageBody))
			}
			attr, ok := input.MessageAttributes["origin"]
			if !ok || aws.ToString(attr.StringValue) != "unit-test" || aws.ToString(attr.DataType) != "String" {
				t.Errorf("expected the origin attribute to pass through, got %v", input.MessageAttributes)
			}
			return &sqs.SendMessageOutput{MessageId: aws.String("msg-42")}, nil
		},
	}

	client, err := NewClient(context.Background(), cfg, nil, WithDialer(staticDialer(mock, &dials)))
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}

	result, err := client.Send(context.Background(), `{"k":1}`, map[string]string{"origin": "unit-test"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if result.MessageID != "msg-42" {
		t.Errorf("expected message ID 'msg-42', got %q", result.MessageID)
	}
}

func TestSend_ErrorPropagatesWithoutRetry(t *testing.T) {
	var dials, calls atomic.Int32

	sendErr := errors.New("network unreachable")

	mock := &mockQueueAPI{
		sendMessageFunc: func(_ context.Context, _ *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
			calls.Add(1)
			return nil, sendErr
		},
	}

	client, err := NewClient(context.Background(), testConfig(), nil, WithDialer(staticDialer(mock, &dials)))
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}

	if _, err := client.Send(context.Background(), "body", nil); !errors.Is(err, sendErr) {
		t.Fatalf("expected the transport error to surface, got %v", err)
	}

	if calls.Load() != 1 {
		t.Errorf("send must not retry, got %d calls", calls.Load())
	}

	if dials.Load() != 1 {
		t.Errorf("send must not reconnect, got %d dials", dials.Load())
	}
}

func TestDelete(t *testing.T) {
	var dials atomic.Int32

	cfg := testConfig()

	mock := &mockQueueAPI{
		deleteMessageFunc: func(_ context.Context, input *sqs.DeleteMessageInput, _ ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error) {
			if aws.ToString(input.QueueUrl) != cfg.QueueURL {
				t.Errorf("expected queue URL %q, got %q", cfg.QueueURL, aws.ToString(input.QueueUrl))
			}
			if aws.ToString(input.ReceiptHandle) != "rh-7" {
				t.Errorf("expected receipt handle 'rh-7', got %q", aws.ToString(input.ReceiptHandle))
			}
			return &sqs.DeleteMessageOutput{}, nil
		},
	}

	client, err := NewClient(context.Background(), cfg, nil, WithDialer(staticDialer(mock, &dials)))
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}

	msg := Message{MessageID: "msg-7", ReceiptHandle: "rh-7"}
	if err := client.Delete(context.Background(), msg); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func TestDelete_ErrorPropagates(t *testing.T) {
	var dials atomic.Int32

	deleteErr := errors.New("receipt handle is invalid")

	mock := &mockQueueAPI{
		deleteMessageFunc: func(_ context.Context, _ *sqs.DeleteMessageInput, _ ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error) {
			return nil, deleteErr
		},
	}

	client, err := NewClient(context.Background(), testConfig(), nil, WithDialer(staticDialer(mock, &dials)))
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}

	if err := client.Delete(context.Background(), Message{ReceiptHandle: "stale"}); !errors.Is(err, deleteErr) {
		t.Fatalf("expected the transport error to surface, got %v", err)
	}
}

func TestPurge(t *testing.T) {
	var dials atomic.Int32

	cfg := testConfig()

	mock := &mockQueueAPI{
		purgeQueueFunc: func(_ context.Context, input *sqs.PurgeQueueInput, _ ...func(*sqs.Options)) (*sqs.PurgeQueueOutput, error) {
			if aws.ToString(input.QueueUrl) != cfg.QueueURL {
				t.Errorf("expected queue URL %q, got %q", cfg.QueueURL, aws.ToString(input.QueueUrl))
			}
			return &sqs.PurgeQueueOutput{}, nil
		},
	}

	client, err := NewClient(context.Background(), cfg, nil, WithDialer(staticDialer(mock, &dials)))
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}

	if err := client.Purge(context.Background()); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func TestPurge_ErrorIsReturnedNotSwallowed(t *testing.T) {
	var dials atomic.Int32

	purgeErr := errors.New("purge already in progress")

	mock := &mockQueueAPI{
		purgeQueueFunc: func(_ context.Context, _ *sqs.PurgeQueueInput, _ ...func(*sqs.Options)) (*sqs.PurgeQueueOutput, error) {
			return nil, purgeErr
		},
	}

	client, err := NewClient(context.Background(), testConfig(), nil, WithDialer(staticDialer(mock, &dials)))
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}

	if err := client.Purge(context.Background()); !errors.Is(err, purgeErr) {
		t.Fatalf("expected the purge error to surface, got %v", err)
	}
}

func TestClose_ReleasesTransport(t *testing.T) {
	mock := &closableQueueAPI{}

	client, err := NewClient(context.Background(), testConfig(), nil,
		WithDialer(func(_ context.Context, _ Config) (QueueAPI, error) { return mock, nil }))
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}

	if err := client.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if mock.closed.Load() != 1 {
		t.Errorf("expected the handle to be closed once, got %d", mock.closed.Load())
	}

	// Closing twice is a no-op.
	if err := client.Close(); err != nil {
		t.Fatalf("second Close failed: %v", err)
	}

	if mock.closed.Load() != 1 {
		t.Errorf("expected no second close, got %d", mock.closed.Load())
	}

	if _, err := client.Send(context.Background(), "body", nil); !errors.Is(err, errClientClosed) {
		t.Errorf("expected closed-client error from Send, got %v", err)
	}

	if err := client.Delete(context.Background(), Message{ReceiptHandle: "rh"}); !errors.Is(err, errClientClosed) {
		t.Errorf("expected closed-client error from Delete, got %v", err)
	}

	if err := client.Purge(context.Background()); !errors.Is(err, errClientClosed) {
		t.Errorf("expected closed-client error from Purge, got %v", err)
	}
}

func TestSendReceiveDeletePurge_RoundTrip(t *testing.T) {
	var dials atomic.Int32

	queue := &fakeQueue{}

	client, err := NewClient(context.Background(), testConfig(), nil,
		WithDialer(staticDialer(queue.api(), &dials)))
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}

	ctx := context.Background()

	sent, err := client.Send(ctx, `{"k":1}`, map[string]string{"trace": "abc"})
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	messages, err := client.Receive(ctx)
	if err != nil {
		t.Fatalf("Receive failed: %v", err)
	}

	if len(messages) != 1 {
		t.Fatalf("expected exactly one message, got %d", len(messages))
	}

	if messages[0].MessageID != sent.MessageID {
		t.Errorf("expected message ID %q, got %q", sent.MessageID, messages[0].MessageID)
	}

	if messages[0].Body != `{"k":1}` {
		t.Errorf("expected body %q, got %q", `{"k":1}`, messages[0].Body)
	}

	if messages[0].MessageAttributes["trace"] != "abc" {
		t.Errorf("expected send-time attributes to round-trip, got %v", messages[0].MessageAttributes)
	}

	if err := client.Delete(ctx, messages[0]); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	again, err := client.Receive(ctx)
	if err != nil {
		t.Fatalf("Receive after delete failed: %v", err)
	}

	if len(again) != 0 {
		t.Errorf("a deleted message must not be redelivered, got %d messages", len(again))
	}

	if _, err := client.Send(ctx, "leftover", nil); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	if err := client.Purge(ctx); err != nil {
		t.Fatalf("Purge failed: %v", err)
	}

	empty, err := client.Receive(ctx)
	if err != nil {
		t.Fatalf("Receive after purge failed: %v", err)
	}

	if len(empty) != 0 {
		t.Errorf("expected an empty queue after purge, got %d messages", len(empty))
	}
}

func TestReconnectWaitsForInFlightSend(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})

	old := &closableQueueAPI{}
	old.sendMessageFunc = func(_ context.Context, _ *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
		close(entered)
		<-release
		if old.closed.Load() != 0 {
			t.Error("old handle was released while a send was still executing on it")
		}
		return &sqs.SendMessageOutput{MessageId: aws.String("msg-1")}, nil
	}
	old.receiveMessageFunc = func(_ context.Context, _ *sqs.ReceiveMessageInput, _ ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error) {
		return nil, &TransientError{Err: errors.New("connection degraded")}
	}

	var dialCount atomic.Int32
	dialer := func(_ context.Context, _ Config) (QueueAPI, error) {
		if dialCount.Add(1) == 1 {
			return old, nil
		}
		return &mockQueueAPI{}, nil
	}

	client, err := NewClient(context.Background(), testConfig(), nil,
		WithDialer(dialer), WithMaxReceiveAttempts(2))
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}

	sendDone := make(chan error, 1)
	go func() {
		_, err := client.Send(context.Background(), "body", nil)
		sendDone <- err
	}()

	<-entered

	receiveDone := make(chan error, 1)
	go func() {
		_, err := client.Receive(context.Background())
		receiveDone <- err
	}()

	// Wait for the reconnect to dial the replacement handle. The swap itself
	// must then block until the in-flight send drains, so the old handle may
	// not have been released yet.
	for dialCount.Load() < 2 {
		time.Sleep(time.Millisecond)
	}

	if old.closed.Load() != 0 {
		t.Fatal("old handle was released while a send was still in flight")
	}

	close(release)

	if err := <-sendDone; err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	if err := <-receiveDone; err != nil {
		t.Fatalf("Receive failed: %v", err)
	}

	if old.closed.Load() != 1 {
		t.Errorf("expected the old handle to be released once drained, got %d closes", old.closed.Load())
	}
}

func TestConnect_AfterCloseDoesNotResurrect(t *testing.T) {
	var handles []*closableQueueAPI

	dialer := func(_ context.Context, _ Config) (QueueAPI, error) {
		h := &closableQueueAPI{}
		handles = append(handles, h)
		return h, nil
	}

	client, err := NewClient(context.Background(), testConfig(), nil, WithDialer(dialer))
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}

	if err := client.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if err := client.connect(context.Background()); !errors.Is(err, errClientClosed) {
		t.Fatalf("expected closed-client error from reconnect, got %v", err)
	}

	if len(handles) != 2 {
		t.Fatalf("expected one reconnect dial, got %d handles", len(handles))
	}

	if handles[1].closed.Load() != 1 {
		t.Error("expected the freshly dialed handle to be released, not leaked")
	}

	if _, err := client.Send(context.Background(), "body", nil); !errors.Is(err, errClientClosed) {
		t.Errorf("expected the client to stay closed, got %v", err)
	}
}
