package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Publisher puts an encoded message on a queue.
type Publisher interface {
	Publish(ctx context.Context, body []byte) error
}

// QueueNotifier hands messages to a broker instead of sending them inline.
// A consumer running Relay performs the actual delivery.
type QueueNotifier struct {
	publisher Publisher
}

// NewQueueNotifier creates a new QueueNotifier.
func NewQueueNotifier(publisher Publisher) *QueueNotifier {
	return &QueueNotifier{publisher: publisher}
}

// Send encodes the message as JSON and publishes it.
func (n *QueueNotifier) Send(ctx context.Context, to, subject, body string) error {
	payload, err := json.Marshal(Message{To: to, Subject: subject, Body: body})
	if err != nil {
		return fmt.Errorf("%w: encode message: %w", ErrNotify, err)
	}
	if err := n.publisher.Publish(ctx, payload); err != nil {
		return fmt.Errorf("%w: publish: %w", ErrNotify, err)
	}
	return nil
}

// Relay returns a queue handler that decodes a message and passes it to next.
// Every call is bounded by timeout.
func Relay(next Notifier, timeout time.Duration) func(body []byte) error {
	return func(body []byte) error {
		var msg Message
		if err := json.Unmarshal(body, &msg); err != nil {
			return fmt.Errorf("%w: decode message: %w", ErrNotify, err)
		}
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return next.Send(ctx, msg.To, msg.Subject, msg.Body)
	}
}
