// internal/transport/router.go
package transport

import (
	"context"
	"fmt"
	"time"

	"appointment-notifier/internal/models"
)

// Router picks the provider for a message's channel and bounds every provider
// call with a timeout so a hung transport cannot stall a batch run.
type Router struct {
	email   Transport
	sms     Transport
	timeout time.Duration
}

func NewRouter(email, sms Transport, timeout time.Duration) *Router {
	return &Router{email: email, sms: sms, timeout: timeout}
}

func (r *Router) Send(ctx context.Context, msg *Message) error {
	var t Transport
	switch msg.Channel {
	case models.ChannelEmail:
		t = r.email
	case models.ChannelSMS:
		t = r.sms
	default:
		return fmt.Errorf("unsupported channel: %s", msg.Channel)
	}
	if t == nil {
		return fmt.Errorf("no transport configured for channel: %s", msg.Channel)
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	return t.Send(ctx, msg)
}
