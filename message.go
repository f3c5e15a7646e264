package sqsclient

import (
	"github.com/aws/aws-sdk-go-v2/aws"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

// Message is one message received from the queue. The body is an opaque
// string; it is passed through without parsing or validation.
//
// ReceiptHandle is a single-use token identifying the current lease of the
// message. It is only valid while the message is in flight, i.e. until the
// visibility timeout granted at receive time expires. Pass the Message to
// [Client.Delete] before then to acknowledge it; otherwise the queue makes
// it eligible for redelivery (at-least-once delivery — consumers must
// tolerate duplicates).
type Message struct {
	MessageID     string
	Body          string
	ReceiptHandle string

	// Attributes holds the queue-level system attributes of the message
	// (e.g. ApproximateReceiveCount, SentTimestamp).
	Attributes map[string]string

	// MessageAttributes holds the string-valued custom attributes set by
	// the sender, passed through unmodified.
	MessageAttributes map[string]string
}

// SendResult is the queue's acknowledgement of a sent message.
type SendResult struct {
	MessageID string
}

func newMessage(m sqstypes.Message) Message {
	msg := Message{
		MessageID:     aws.ToString(m.MessageId),
		Body:          aws.ToString(m.Body),
		ReceiptHandle: aws.ToString(m.ReceiptHandle),
		Attributes:    m.Attributes,
	}

	if len(m.MessageAttributes) > 0 {
		msg.MessageAttributes = make(map[string]string, len(m.MessageAttributes))
		for name, attr := range m.MessageAttributes {
			msg.MessageAttributes[name] = aws.ToString(attr.StringValue)
		}
	}

	return msg
}
