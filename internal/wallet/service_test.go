package wallet

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/studiohubhq/studiohub-backend/internal/bookings"
	"github.com/studiohubhq/studiohub-backend/internal/notifications"
	"github.com/studiohubhq/studiohub-backend/internal/orders"
	"github.com/studiohubhq/studiohub-backend/internal/rentals"
	"github.com/studiohubhq/studiohub-backend/internal/users"
	"github.com/studiohubhq/studiohub-backend/pkg/db/models"
	"github.com/studiohubhq/studiohub-backend/pkg/enums"
	pkgerrors "github.com/studiohubhq/studiohub-backend/pkg/errors"
	"github.com/studiohubhq/studiohub-backend/pkg/outbox"
)

type notifierStub struct {
	inputs []notifications.NotifyInput
}

func (n *notifierStub) Notify(_ context.Context, _ *gorm.DB, input notifications.NotifyInput) error {
	n.inputs = append(n.inputs, input)
	return nil
}

type emitterStub struct {
	events []outbox.DomainEvent
}

func (e *emitterStub) Emit(_ context.Context, _ *gorm.DB, event outbox.DomainEvent) error {
	e.events = append(e.events, event)
	return nil
}

func (e *emitterStub) types() []enums.OutboxEventType {
	out := make([]enums.OutboxEventType, 0, len(e.events))
	for _, event := range e.events {
		out = append(out, event.EventType)
	}
	return out
}

type txRunnerStub struct {
	db *gorm.DB
}

func (r *txRunnerStub) WithTx(_ context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.Transaction(fn)
}

func assertCode(t *testing.T, err error, want pkgerrors.Code) {
	t.Helper()
	require.Error(t, err)
	domainErr := pkgerrors.As(err)
	require.NotNilf(t, domainErr, "expected coded error, got %v", err)
	assert.Equalf(t, want, domainErr.Code(), "unexpected code for error: %v", err)
}

type walletFixture struct {
	service  Service
	orders   orders.Service
	notifier *notifierStub
	emitter  *emitterStub
}

func newWalletFixture(t *testing.T, db *gorm.DB, platformFeePercent int64) walletFixture {
	t.Helper()

	runner := &txRunnerStub{db: db}
	ordersService, err := orders.NewService(orders.ServiceParams{
		OrderRepo:         orders.NewRepository(db),
		Users:             users.NewRepository(db),
		TransactionRunner: runner,
		ReferralPercent:   0,
	})
	require.NoError(t, err)

	notifier := &notifierStub{}
	emitter := &emitterStub{}
	service, err := NewService(ServiceParams{
		WalletRepo:         NewRepository(db),
		BookingRepo:        bookings.NewRepository(db),
		Rentals:            rentals.NewRepository(db),
		Orders:             ordersService,
		Notifier:           notifier,
		Outbox:             emitter,
		TransactionRunner:  runner,
		PlatformFeePercent: platformFeePercent,
	})
	require.NoError(t, err)
	return walletFixture{
		service:  service,
		orders:   ordersService,
		notifier: notifier,
		emitter:  emitter,
	}
}

func newWalletMember(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()
	user := &models.User{
		ID:           uuid.New(),
		Email:        uuid.NewString() + "@example.com",
		PasswordHash: "x",
		FirstName:    "Chidi",
		LastName:     "Eze",
		Role:         enums.UserRoleMember,
		IsActive:     true,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func newPayableOrder(t *testing.T, db *gorm.DB, userID uuid.UUID, amountKobo int64) *models.Order {
	t.Helper()
	order := &models.Order{
		ID:          uuid.New(),
		UserID:      userID,
		Title:       "Studio session package",
		ServiceType: enums.ServiceTypeCourse,
		AmountKobo:  amountKobo,
		Status:      enums.OrderStatusPending,
	}
	require.NoError(t, db.Create(order).Error)
	return order
}

func TestPayFromWalletInsufficientFunds(t *testing.T) {
	db := setupWalletTestDB(t)
	fixture := newWalletFixture(t, db, 10)
	ctx := context.Background()

	member := newWalletMember(t, db)
	creditReferral(t, db, member.ID, 100)
	order := newPayableOrder(t, db, member.ID, 50_000)

	_, err := fixture.service.PayFromWallet(ctx, PayInput{UserID: member.ID, OrderID: order.ID})
	assertCode(t, err, pkgerrors.CodeInsufficientFunds)

	// Nothing written: no usage row, order untouched.
	var usageCount int64
	require.NoError(t, db.Model(&models.WalletUsage{}).Where("user_id = ?", member.ID).Count(&usageCount).Error)
	assert.Zero(t, usageCount)

	reloaded, err := fixture.orders.Get(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusPending, reloaded.Status)
}

func TestPayFromWalletSettlesOrder(t *testing.T) {
	db := setupWalletTestDB(t)
	fixture := newWalletFixture(t, db, 10)
	ctx := context.Background()

	member := newWalletMember(t, db)
	creditReferral(t, db, member.ID, 100_000)
	order := newPayableOrder(t, db, member.ID, 60_000)

	paid, err := fixture.service.PayFromWallet(ctx, PayInput{UserID: member.ID, OrderID: order.ID})
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusPaid, paid.Status)

	breakdown, err := fixture.service.Balance(ctx, member.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(40_000), breakdown.TotalKobo)
	assert.Equal(t, int64(60_000), breakdown.UsedKobo)

	assert.Contains(t, fixture.emitter.types(), enums.EventWalletDebited)

	// Re-paying a settled order is refused before any balance read.
	_, err = fixture.service.PayFromWallet(ctx, PayInput{UserID: member.ID, OrderID: order.ID})
	assertCode(t, err, pkgerrors.CodeStateConflict)
}

func TestPayFromWalletOwnerOnly(t *testing.T) {
	db := setupWalletTestDB(t)
	fixture := newWalletFixture(t, db, 10)
	ctx := context.Background()

	member := newWalletMember(t, db)
	stranger := newWalletMember(t, db)
	order := newPayableOrder(t, db, member.ID, 10_000)

	_, err := fixture.service.PayFromWallet(ctx, PayInput{UserID: stranger.ID, OrderID: order.ID})
	assertCode(t, err, pkgerrors.CodeForbidden)
}

func seedAcceptedBooking(t *testing.T, db *gorm.DB, endedAgo time.Duration, totalKobo int64) (*models.Rental, *models.Booking) {
	t.Helper()

	rental := &models.Rental{
		ID:             uuid.New(),
		OwnerID:        uuid.New(),
		DeviceName:     "Grand piano",
		HourlyRateKobo: 50_000,
		Status:         enums.RentalStatusApproved,
	}
	require.NoError(t, db.Create(rental).Error)

	end := time.Now().UTC().Add(-endedAgo)
	booking := &models.Booking{
		ID:        uuid.New(),
		RentalID:  rental.ID,
		RenterID:  uuid.New(),
		StartTime: end.Add(-2 * time.Hour),
		EndTime:   end,
		TotalKobo: totalKobo,
		Status:    enums.BookingStatusAccepted,
	}
	require.NoError(t, db.Create(booking).Error)
	return rental, booking
}

func TestReleaseEscrowAdminOnly(t *testing.T) {
	db := setupWalletTestDB(t)
	fixture := newWalletFixture(t, db, 10)

	_, booking := seedAcceptedBooking(t, db, time.Hour, 100_000)
	_, err := fixture.service.ReleaseEscrow(context.Background(), ReleaseEscrowInput{
		BookingID: booking.ID,
		ActorID:   uuid.New(),
		ActorRole: enums.UserRoleMember,
	})
	assertCode(t, err, pkgerrors.CodeForbidden)
}

func TestReleaseEscrowRequiresEndedWindow(t *testing.T) {
	db := setupWalletTestDB(t)
	fixture := newWalletFixture(t, db, 10)

	_, booking := seedAcceptedBooking(t, db, -time.Hour, 100_000)
	_, err := fixture.service.ReleaseEscrow(context.Background(), ReleaseEscrowInput{
		BookingID: booking.ID,
		ActorID:   uuid.New(),
		ActorRole: enums.UserRoleAdmin,
	})
	assertCode(t, err, pkgerrors.CodeStateConflict)
}

func TestReleaseEscrowCreditsOwnerMinusFee(t *testing.T) {
	db := setupWalletTestDB(t)
	fixture := newWalletFixture(t, db, 10)
	ctx := context.Background()

	rental, booking := seedAcceptedBooking(t, db, time.Hour, 100_000)

	released, err := fixture.service.ReleaseEscrow(ctx, ReleaseEscrowInput{
		BookingID: booking.ID,
		ActorID:   uuid.New(),
		ActorRole: enums.UserRoleAdmin,
	})
	require.NoError(t, err)
	assert.Equal(t, enums.BookingStatusCompleted, released.Status)
	assert.True(t, released.EscrowReleased)

	var earnings []models.RentalEarning
	require.NoError(t, db.Where("owner_id = ?", rental.OwnerID).Find(&earnings).Error)
	require.Len(t, earnings, 1)
	assert.Equal(t, int64(90_000), earnings[0].AmountKobo)
	require.NotNil(t, earnings[0].BookingID)
	assert.Equal(t, booking.ID, *earnings[0].BookingID)

	require.Len(t, fixture.notifier.inputs, 1)
	assert.Equal(t, rental.OwnerID, fixture.notifier.inputs[0].UserID)
	assert.Equal(t, enums.NotificationTypeWalletAlert, fixture.notifier.inputs[0].Type)
	assert.Contains(t, fixture.emitter.types(), enums.EventEscrowReleased)

	breakdown, err := fixture.service.Balance(ctx, rental.OwnerID)
	require.NoError(t, err)
	assert.Equal(t, int64(90_000), breakdown.TotalKobo)

	// A second release is refused and writes nothing further.
	_, err = fixture.service.ReleaseEscrow(ctx, ReleaseEscrowInput{
		BookingID: booking.ID,
		ActorID:   uuid.New(),
		ActorRole: enums.UserRoleAdmin,
	})
	assertCode(t, err, pkgerrors.CodeStateConflict)

	var count int64
	require.NoError(t, db.Model(&models.RentalEarning{}).Where("owner_id = ?", rental.OwnerID).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}
