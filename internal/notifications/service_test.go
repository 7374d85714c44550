package notifications

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/studiohubhq/studiohub-backend/pkg/db/models"
	"github.com/studiohubhq/studiohub-backend/pkg/enums"
	pkgerrors "github.com/studiohubhq/studiohub-backend/pkg/errors"
	"github.com/studiohubhq/studiohub-backend/pkg/outbox"
)

func setupNotificationsTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	notifications := `
CREATE TABLE IF NOT EXISTS notifications (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  type TEXT NOT NULL,
  title TEXT NOT NULL,
  message TEXT NOT NULL,
  link TEXT,
  read_at DATETIME,
  created_at DATETIME
);`
	require.NoError(t, db.Exec(notifications).Error)
	return db
}

type emitterStub struct {
	events []outbox.DomainEvent
}

func (e *emitterStub) Emit(_ context.Context, _ *gorm.DB, event outbox.DomainEvent) error {
	e.events = append(e.events, event)
	return nil
}

func assertCode(t *testing.T, err error, want pkgerrors.Code) {
	t.Helper()
	require.Error(t, err)
	domainErr := pkgerrors.As(err)
	require.NotNilf(t, domainErr, "expected coded error, got %v", err)
	assert.Equalf(t, want, domainErr.Code(), "unexpected code for error: %v", err)
}

func seedNotification(t *testing.T, db *gorm.DB, userID uuid.UUID, createdAt time.Time, read bool) *models.Notification {
	t.Helper()

	notification := &models.Notification{
		ID:        uuid.New(),
		UserID:    userID,
		Type:      enums.NotificationTypeSystemAnnouncement,
		Title:     "Heads up",
		Message:   "Studio closes early on Friday",
		CreatedAt: createdAt,
	}
	if read {
		at := createdAt.Add(time.Minute)
		notification.ReadAt = &at
	}
	require.NoError(t, db.Create(notification).Error)
	return notification
}

func TestNotifyValidation(t *testing.T) {
	db := setupNotificationsTestDB(t)
	service, err := NewService(NewRepository(db), nil)
	require.NoError(t, err)
	ctx := context.Background()

	err = service.Notify(ctx, nil, NotifyInput{
		Type:    enums.NotificationTypeOrderAlert,
		Title:   "t",
		Message: "m",
	})
	assertCode(t, err, pkgerrors.CodeValidation)

	err = service.Notify(ctx, nil, NotifyInput{
		UserID:  uuid.New(),
		Type:    enums.NotificationType("smoke-signal"),
		Title:   "t",
		Message: "m",
	})
	assertCode(t, err, pkgerrors.CodeValidation)

	err = service.Notify(ctx, nil, NotifyInput{
		UserID:  uuid.New(),
		Type:    enums.NotificationTypeOrderAlert,
		Title:   "  ",
		Message: "m",
	})
	assertCode(t, err, pkgerrors.CodeValidation)
}

func TestNotifyStoresRowAndEmitsInTx(t *testing.T) {
	db := setupNotificationsTestDB(t)
	emitter := &emitterStub{}
	service, err := NewService(NewRepository(db), emitter)
	require.NoError(t, err)
	ctx := context.Background()

	userID := uuid.New()
	err = db.Transaction(func(tx *gorm.DB) error {
		return service.Notify(ctx, tx, NotifyInput{
			UserID:  userID,
			Type:    enums.NotificationTypeBookingAlert,
			Title:   "  Booking accepted  ",
			Message: "Your session is on",
		})
	})
	require.NoError(t, err)

	var stored models.Notification
	require.NoError(t, db.First(&stored, "user_id = ?", userID).Error)
	assert.Equal(t, "Booking accepted", stored.Title)
	assert.Nil(t, stored.ReadAt)

	require.Len(t, emitter.events, 1)
	event := emitter.events[0]
	assert.Equal(t, enums.EventNotificationRequested, event.EventType)
	assert.Equal(t, enums.AggregateNotification, event.AggregateType)
	assert.Equal(t, stored.ID, event.AggregateID)
}

func TestNotifyWithoutTxSkipsEvent(t *testing.T) {
	db := setupNotificationsTestDB(t)
	emitter := &emitterStub{}
	service, err := NewService(NewRepository(db), emitter)
	require.NoError(t, err)

	userID := uuid.New()
	require.NoError(t, service.Notify(context.Background(), nil, NotifyInput{
		UserID:  userID,
		Type:    enums.NotificationTypeWalletAlert,
		Title:   "Wallet credited",
		Message: "Escrow released",
	}))

	var count int64
	require.NoError(t, db.Model(&models.Notification{}).Where("user_id = ?", userID).Count(&count).Error)
	assert.Equal(t, int64(1), count)
	assert.Empty(t, emitter.events)
}

func TestListUnreadOnly(t *testing.T) {
	db := setupNotificationsTestDB(t)
	service, err := NewService(NewRepository(db), nil)
	require.NoError(t, err)
	ctx := context.Background()

	userID := uuid.New()
	base := time.Date(2026, 11, 1, 9, 0, 0, 0, time.UTC)
	unread := seedNotification(t, db, userID, base.Add(2*time.Minute), false)
	seedNotification(t, db, userID, base.Add(time.Minute), true)
	seedNotification(t, db, uuid.New(), base, false)

	all, _, err := service.List(ctx, userID, ListParams{Limit: 10})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	unreadOnly, _, err := service.List(ctx, userID, ListParams{Limit: 10, UnreadOnly: true})
	require.NoError(t, err)
	require.Len(t, unreadOnly, 1)
	assert.Equal(t, unread.ID, unreadOnly[0].ID)
}

func TestMarkRead(t *testing.T) {
	db := setupNotificationsTestDB(t)
	service, err := NewService(NewRepository(db), nil)
	require.NoError(t, err)
	ctx := context.Background()

	userID := uuid.New()
	notification := seedNotification(t, db, userID, time.Date(2026, 11, 2, 9, 0, 0, 0, time.UTC), false)

	err = service.MarkRead(ctx, userID, uuid.New())
	assertCode(t, err, pkgerrors.CodeNotFound)

	// Another user cannot mark someone else's notification.
	err = service.MarkRead(ctx, uuid.New(), notification.ID)
	assertCode(t, err, pkgerrors.CodeNotFound)

	require.NoError(t, service.MarkRead(ctx, userID, notification.ID))
	var stored models.Notification
	require.NoError(t, db.First(&stored, "id = ?", notification.ID).Error)
	assert.NotNil(t, stored.ReadAt)

	// Marking twice stays idempotent.
	require.NoError(t, service.MarkRead(ctx, userID, notification.ID))
}

func TestMarkAllRead(t *testing.T) {
	db := setupNotificationsTestDB(t)
	service, err := NewService(NewRepository(db), nil)
	require.NoError(t, err)
	ctx := context.Background()

	userID := uuid.New()
	base := time.Date(2026, 11, 3, 9, 0, 0, 0, time.UTC)
	seedNotification(t, db, userID, base, false)
	seedNotification(t, db, userID, base.Add(time.Minute), false)
	seedNotification(t, db, userID, base.Add(2*time.Minute), true)

	updated, err := service.MarkAllRead(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), updated)

	var unread int64
	require.NoError(t, db.Model(&models.Notification{}).
		Where("user_id = ? AND read_at IS NULL", userID).
		Count(&unread).Error)
	assert.Zero(t, unread)
}
