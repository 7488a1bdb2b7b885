// internal/dispatcher/dispatcher_test.go
package dispatcher

import (
	"context"
	"fmt"
	"testing"
	"time"

	"appointment-notifier/internal/common/clock"
	"appointment-notifier/internal/common/errors"
	"appointment-notifier/internal/common/logger"
	"appointment-notifier/internal/models"
	"appointment-notifier/internal/transport"

	"github.com/stretchr/testify/assert"
)

var fixedNow = time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)

// mockLedger is a function-field stub for the notification ledger.
type mockLedger struct {
	countFn  func(ctx context.Context, userID string) (int, error)
	createFn func(ctx context.Context, draft *models.NotificationRecordDraft) (*models.NotificationRecord, error)
	updateFn func(ctx context.Context, id string, status models.NotificationStatus, sentAt *time.Time, errorDetail string) (*models.NotificationRecord, error)

	createCalls []*models.NotificationRecordDraft
	updateCalls []models.NotificationStatus
}

func (m *mockLedger) Create(ctx context.Context, draft *models.NotificationRecordDraft) (*models.NotificationRecord, error) {
	m.createCalls = append(m.createCalls, draft)
	if m.createFn != nil {
		return m.createFn(ctx, draft)
	}
	return &models.NotificationRecord{
		ID:            "notif-001",
		UserID:        draft.UserID,
		AppointmentID: draft.AppointmentID,
		Kind:          draft.Kind,
		Channel:       draft.Channel,
		Message:       draft.Message,
		Status:        models.StatusQueued,
		CreatedAt:     fixedNow,
	}, nil
}

func (m *mockLedger) UpdateStatus(ctx context.Context, id string, status models.NotificationStatus, sentAt *time.Time, errorDetail string) (*models.NotificationRecord, error) {
	m.updateCalls = append(m.updateCalls, status)
	if m.updateFn != nil {
		return m.updateFn(ctx, id, status, sentAt, errorDetail)
	}
	return &models.NotificationRecord{ID: id, Status: status, SentAt: sentAt, ErrorDetail: errorDetail}, nil
}

func (m *mockLedger) CountForUser(ctx context.Context, userID string) (int, error) {
	if m.countFn != nil {
		return m.countFn(ctx, userID)
	}
	return 0, nil
}

func (m *mockLedger) HasReminderAlreadySent(ctx context.Context, appointmentID string) (bool, error) {
	return false, nil
}

// mockTransport records every delivery attempt.
type mockTransport struct {
	sendFn func(ctx context.Context, msg *transport.Message) error
	sent   []*transport.Message
}

func (m *mockTransport) Send(ctx context.Context, msg *transport.Message) error {
	m.sent = append(m.sent, msg)
	if m.sendFn != nil {
		return m.sendFn(ctx, msg)
	}
	return nil
}

func newTestDispatcher(t *testing.T, l *mockLedger, tr *mockTransport) *Dispatcher {
	return New(&Config{RateLimitCeiling: 10}, l, tr, clock.Fixed(fixedNow), logger.NewTestLogger(t))
}

func reminderRequest() *DispatchRequest {
	return &DispatchRequest{
		UserID:         "user-001",
		AppointmentID:  "appt-001",
		Kind:           models.KindAppointmentReminder,
		Channel:        models.ChannelEmail,
		RecipientEmail: "citizen@example.lk",
		Subject:        "Appointment Reminder - REF-001",
		TextBody:       "reminder body",
	}
}

func TestDispatch_Success(t *testing.T) {
	l := &mockLedger{}
	tr := &mockTransport{}
	d := newTestDispatcher(t, l, tr)

	result := d.Dispatch(context.Background(), reminderRequest())

	assert.True(t, result.Sent)
	assert.Empty(t, result.Reason)
	assert.Equal(t, "notif-001", result.NotificationID)

	assert.Len(t, tr.sent, 1)
	assert.Equal(t, "citizen@example.lk", tr.sent[0].To)
	assert.Equal(t, models.ChannelEmail, tr.sent[0].Channel)

	assert.Len(t, l.createCalls, 1)
	assert.Equal(t, []models.NotificationStatus{models.StatusSent}, l.updateCalls)
}

func TestDispatch_RateLimited(t *testing.T) {
	l := &mockLedger{
		countFn: func(ctx context.Context, userID string) (int, error) {
			return 10, nil
		},
	}
	tr := &mockTransport{}
	d := newTestDispatcher(t, l, tr)

	result := d.Dispatch(context.Background(), reminderRequest())

	assert.False(t, result.Sent)
	assert.Equal(t, ReasonRateLimited, result.Reason)
	assert.Empty(t, result.NotificationID)

	// A rejected dispatch leaves no record and touches no transport.
	assert.Empty(t, l.createCalls)
	assert.Empty(t, tr.sent)
}

func TestDispatch_BelowCeilingProceeds(t *testing.T) {
	l := &mockLedger{
		countFn: func(ctx context.Context, userID string) (int, error) {
			return 9, nil
		},
	}
	tr := &mockTransport{}
	d := newTestDispatcher(t, l, tr)

	result := d.Dispatch(context.Background(), reminderRequest())

	assert.True(t, result.Sent)
	assert.Len(t, tr.sent, 1)
}

func TestDispatch_CountErrorFailsOpen(t *testing.T) {
	l := &mockLedger{
		countFn: func(ctx context.Context, userID string) (int, error) {
			return 0, errors.NewStorageError("count_for_user", fmt.Errorf("connection refused"))
		},
	}
	tr := &mockTransport{}
	d := newTestDispatcher(t, l, tr)

	result := d.Dispatch(context.Background(), reminderRequest())

	assert.True(t, result.Sent)
	assert.Len(t, tr.sent, 1)
}

func TestDispatch_PersistError(t *testing.T) {
	l := &mockLedger{
		createFn: func(ctx context.Context, draft *models.NotificationRecordDraft) (*models.NotificationRecord, error) {
			return nil, errors.NewStorageError("create", fmt.Errorf("insert failed"))
		},
	}
	tr := &mockTransport{}
	d := newTestDispatcher(t, l, tr)

	result := d.Dispatch(context.Background(), reminderRequest())

	assert.False(t, result.Sent)
	assert.Equal(t, ReasonPersistError, result.Reason)

	// No record means no send: the ledger row is the audit trail.
	assert.Empty(t, tr.sent)
}

func TestDispatch_TransportError(t *testing.T) {
	l := &mockLedger{}
	tr := &mockTransport{
		sendFn: func(ctx context.Context, msg *transport.Message) error {
			return errors.NewTransportError("email", fmt.Errorf("ses throttled"))
		},
	}
	d := newTestDispatcher(t, l, tr)

	result := d.Dispatch(context.Background(), reminderRequest())

	assert.False(t, result.Sent)
	assert.Equal(t, ReasonTransportError, result.Reason)
	assert.Equal(t, "notif-001", result.NotificationID)

	// The queued record must be reconciled to failed.
	assert.Equal(t, []models.NotificationStatus{models.StatusFailed}, l.updateCalls)
}

func TestDispatch_StatusUpdateFailureKeepsOutcome(t *testing.T) {
	l := &mockLedger{
		updateFn: func(ctx context.Context, id string, status models.NotificationStatus, sentAt *time.Time, errorDetail string) (*models.NotificationRecord, error) {
			return nil, errors.NewStorageError("update_status", fmt.Errorf("deadlock"))
		},
	}
	tr := &mockTransport{}
	d := newTestDispatcher(t, l, tr)

	result := d.Dispatch(context.Background(), reminderRequest())

	// Delivery succeeded; a bookkeeping failure cannot change the outcome.
	assert.True(t, result.Sent)
	assert.Empty(t, result.Reason)
}

func TestDispatch_DefaultsToEmailChannel(t *testing.T) {
	l := &mockLedger{}
	tr := &mockTransport{}
	d := newTestDispatcher(t, l, tr)

	req := reminderRequest()
	req.Channel = ""
	result := d.Dispatch(context.Background(), req)

	assert.True(t, result.Sent)
	assert.Equal(t, models.ChannelEmail, tr.sent[0].Channel)
	assert.Equal(t, "citizen@example.lk", tr.sent[0].To)
}

func TestDispatch_SMSUsesPhoneRecipient(t *testing.T) {
	l := &mockLedger{}
	tr := &mockTransport{}
	d := newTestDispatcher(t, l, tr)

	req := reminderRequest()
	req.Channel = models.ChannelSMS
	req.RecipientPhone = "+94771234567"
	result := d.Dispatch(context.Background(), req)

	assert.True(t, result.Sent)
	assert.Equal(t, "+94771234567", tr.sent[0].To)
}
