// Package dispatcher builds a notification record, enforces per-user rate
// limits, invokes the transport and reconciles the record's terminal status.
package dispatcher

import (
	"context"

	"appointment-notifier/internal/common/clock"
	"appointment-notifier/internal/common/logger"
	"appointment-notifier/internal/common/metrics"
	"appointment-notifier/internal/ledger"
	"appointment-notifier/internal/models"
	"appointment-notifier/internal/transport"
)

// Dispatch result reasons.
const (
	ReasonRateLimited    = "rate_limited"
	ReasonPersistError   = "persist_error"
	ReasonTransportError = "transport_error"
)

// DispatchRequest describes one notification to deliver.
type DispatchRequest struct {
	UserID         string
	AppointmentID  string
	Kind           models.NotificationKind
	Channel        models.NotificationChannel // defaults to email
	RecipientEmail string
	RecipientPhone string // used when Channel is sms
	Subject        string
	TextBody       string
	HTMLBody       string
}

// DispatchResult reports the outcome of a single dispatch.
type DispatchResult struct {
	Sent           bool   `json:"sent"`
	Reason         string `json:"reason,omitempty"`
	NotificationID string `json:"notificationId,omitempty"`
}

// Config holds the dispatcher's tunables.
type Config struct {
	RateLimitCeiling int
}

type Dispatcher struct {
	config    *Config
	ledger    ledger.Ledger
	transport transport.Transport
	clock     clock.Clock
	logger    logger.Logger
}

func New(cfg *Config, l ledger.Ledger, t transport.Transport, clk clock.Clock, log logger.Logger) *Dispatcher {
	return &Dispatcher{
		config:    cfg,
		ledger:    l,
		transport: t,
		clock:     clk,
		logger:    log.WithFields(map[string]interface{}{"component": "dispatcher"}),
	}
}

// Dispatch performs one notification attempt: rate-limit check, queued record,
// transport call, terminal status update. It never returns an error; every
// failure mode is reported through the result and absorbed into statistics.
//
// Side effects: exactly one ledger record per invocation (unless rate-limited),
// exactly one transport call (unless rate-limited or the record write failed).
func (d *Dispatcher) Dispatch(ctx context.Context, req *DispatchRequest) *DispatchResult {
	if req.Channel == "" {
		req.Channel = models.ChannelEmail
	}

	// Rate-limit check is fail-open: a broken counter must not block dispatch.
	count, err := d.ledger.CountForUser(ctx, req.UserID)
	if err != nil {
		d.logger.Warn("rate-limit count query failed, proceeding fail-open", map[string]interface{}{
			"userId": req.UserID,
			"error":  err.Error(),
		})
	} else if count >= d.config.RateLimitCeiling {
		d.logger.Info("dispatch rejected by rate limit", map[string]interface{}{
			"userId":  req.UserID,
			"count":   count,
			"ceiling": d.config.RateLimitCeiling,
		})
		metrics.NotificationDispatches.WithLabelValues(string(req.Kind), ReasonRateLimited).Inc()
		return &DispatchResult{Sent: false, Reason: ReasonRateLimited}
	}

	record, err := d.ledger.Create(ctx, &models.NotificationRecordDraft{
		UserID:        req.UserID,
		AppointmentID: req.AppointmentID,
		Kind:          req.Kind,
		Channel:       req.Channel,
		Message:       req.TextBody,
	})
	if err != nil {
		d.logger.Error("failed to persist notification record", map[string]interface{}{
			"userId": req.UserID,
			"kind":   string(req.Kind),
			"error":  err.Error(),
		})
		metrics.NotificationDispatches.WithLabelValues(string(req.Kind), ReasonPersistError).Inc()
		return &DispatchResult{Sent: false, Reason: ReasonPersistError}
	}

	sendErr := d.transport.Send(ctx, &transport.Message{
		Channel:  req.Channel,
		To:       d.recipient(req),
		Subject:  req.Subject,
		TextBody: req.TextBody,
		HTMLBody: req.HTMLBody,
	})

	// The transport outcome is the source of truth. Status updates are
	// best-effort bookkeeping and never change the reported result.
	if sendErr != nil {
		d.logger.Error("transport delivery failed", map[string]interface{}{
			"notificationId": record.ID,
			"channel":        string(req.Channel),
			"error":          sendErr.Error(),
		})
		if _, err := d.ledger.UpdateStatus(ctx, record.ID, models.StatusFailed, nil, sendErr.Error()); err != nil {
			d.logger.Warn("failed to mark notification record failed", map[string]interface{}{
				"notificationId": record.ID,
				"error":          err.Error(),
			})
		}
		metrics.NotificationDispatches.WithLabelValues(string(req.Kind), ReasonTransportError).Inc()
		return &DispatchResult{Sent: false, Reason: ReasonTransportError, NotificationID: record.ID}
	}

	sentAt := d.clock.Now().UTC()
	if _, err := d.ledger.UpdateStatus(ctx, record.ID, models.StatusSent, &sentAt, ""); err != nil {
		d.logger.Warn("failed to mark notification record sent", map[string]interface{}{
			"notificationId": record.ID,
			"error":          err.Error(),
		})
	}

	metrics.NotificationDispatches.WithLabelValues(string(req.Kind), "sent").Inc()
	return &DispatchResult{Sent: true, NotificationID: record.ID}
}

func (d *Dispatcher) recipient(req *DispatchRequest) string {
	if req.Channel == models.ChannelSMS {
		return req.RecipientPhone
	}
	return req.RecipientEmail
}
