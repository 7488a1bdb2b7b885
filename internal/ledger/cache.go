// internal/ledger/cache.go
package ledger

import (
	"context"
	stderrors "errors"
	"time"

	"appointment-notifier/internal/common/logger"
	"appointment-notifier/internal/models"

	"github.com/redis/go-redis/v9"
)

const (
	reminderKeyPrefix = "reminder:sent:"
	reminderKeyTTL    = 48 * time.Hour
)

// CachedLedger fronts a Ledger with a redis dedup cache for the idempotency
// check. The cache is strictly an accelerator: every redis failure falls back
// to the underlying store, and a stale miss only costs one extra SQL query.
type CachedLedger struct {
	inner  Ledger
	rdb    *redis.Client
	logger logger.Logger
}

func NewCachedLedger(inner Ledger, rdb *redis.Client, log logger.Logger) *CachedLedger {
	return &CachedLedger{
		inner:  inner,
		rdb:    rdb,
		logger: log.WithFields(map[string]interface{}{"component": "ledger-cache"}),
	}
}

func (c *CachedLedger) Create(ctx context.Context, draft *models.NotificationRecordDraft) (*models.NotificationRecord, error) {
	record, err := c.inner.Create(ctx, draft)
	if err != nil {
		return nil, err
	}

	// A queued reminder already counts as "in flight" for dedup purposes.
	if record.Kind == models.KindAppointmentReminder && record.AppointmentID != "" {
		c.markReminder(ctx, record.AppointmentID)
	}
	return record, nil
}

func (c *CachedLedger) UpdateStatus(ctx context.Context, id string, status models.NotificationStatus, sentAt *time.Time, errorDetail string) (*models.NotificationRecord, error) {
	return c.inner.UpdateStatus(ctx, id, status, sentAt, errorDetail)
}

func (c *CachedLedger) CountForUser(ctx context.Context, userID string) (int, error) {
	return c.inner.CountForUser(ctx, userID)
}

func (c *CachedLedger) HasReminderAlreadySent(ctx context.Context, appointmentID string) (bool, error) {
	val, err := c.rdb.Get(ctx, reminderKeyPrefix+appointmentID).Result()
	if err == nil && val == "1" {
		return true, nil
	}
	if err != nil && !stderrors.Is(err, redis.Nil) {
		c.logger.Warn("reminder cache read failed, falling back to store", map[string]interface{}{
			"appointmentId": appointmentID,
			"error":         err.Error(),
		})
	}

	sent, err := c.inner.HasReminderAlreadySent(ctx, appointmentID)
	if err != nil {
		return false, err
	}
	if sent {
		c.markReminder(ctx, appointmentID)
	}
	return sent, nil
}

func (c *CachedLedger) markReminder(ctx context.Context, appointmentID string) {
	if err := c.rdb.Set(ctx, reminderKeyPrefix+appointmentID, "1", reminderKeyTTL).Err(); err != nil {
		c.logger.Warn("reminder cache write failed", map[string]interface{}{
			"appointmentId": appointmentID,
			"error":         err.Error(),
		})
	}
}
