// Package notifier delivers out-of-band messages such as order alerts.
package notifier

import (
	"context"
	"errors"
)

var (
	// ErrNotify wraps every delivery failure.
	ErrNotify = errors.New("notification failed")
	// ErrNotConfigured is returned when the transport has no host or port.
	ErrNotConfigured = errors.New("notifier not configured")
)

// Notifier sends a single message. Implementations never panic past Send;
// every failure comes back as an error.
type Notifier interface {
	Send(ctx context.Context, to, subject, body string) error
}

// Message is the queued form of a notification.
type Message struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}
