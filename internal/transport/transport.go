// Package transport delivers rendered notifications through the external
// providers. The dispatcher treats any non-nil error as a delivery failure.
package transport

import (
	"context"

	"appointment-notifier/internal/models"
)

// Message is a rendered notification ready for delivery.
type Message struct {
	Channel  models.NotificationChannel
	To       string
	Subject  string
	TextBody string
	HTMLBody string
}

// Transport sends a message through the provider for its channel.
type Transport interface {
	Send(ctx context.Context, msg *Message) error
}
