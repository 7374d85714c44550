package orders

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	sq "github.com/square/square-go-sdk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/studiohubhq/studiohub-backend/internal/notifications"
	"github.com/studiohubhq/studiohub-backend/internal/users"
	"github.com/studiohubhq/studiohub-backend/pkg/db/models"
	"github.com/studiohubhq/studiohub-backend/pkg/enums"
	pkgerrors "github.com/studiohubhq/studiohub-backend/pkg/errors"
	"github.com/studiohubhq/studiohub-backend/pkg/outbox"
	"github.com/studiohubhq/studiohub-backend/pkg/square"
)

func setupOrdersTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	usersTable := `
CREATE TABLE IF NOT EXISTS users (
  id TEXT PRIMARY KEY,
  email TEXT NOT NULL UNIQUE,
  password_hash TEXT NOT NULL,
  first_name TEXT NOT NULL,
  last_name TEXT NOT NULL,
  phone TEXT,
  role TEXT NOT NULL DEFAULT 'member',
  referred_by TEXT,
  is_active INTEGER NOT NULL DEFAULT 1,
  last_login_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`
	orders := `
CREATE TABLE IF NOT EXISTS orders (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  title TEXT NOT NULL,
  service_type TEXT NOT NULL,
  product_id TEXT,
  amount_kobo INTEGER NOT NULL,
  duration_days INTEGER,
  status TEXT NOT NULL DEFAULT 'pending',
  expires_at DATETIME,
  paid_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`
	payments := `
CREATE TABLE IF NOT EXISTS payments (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  user_id TEXT NOT NULL,
  amount_kobo INTEGER NOT NULL,
  method TEXT NOT NULL,
  reference TEXT,
  created_at DATETIME
);`
	referralEarnings := `
CREATE TABLE IF NOT EXISTS referral_earnings (
  id TEXT PRIMARY KEY,
  referrer_id TEXT NOT NULL,
  referred_user_id TEXT NOT NULL,
  order_id TEXT,
  amount_kobo INTEGER NOT NULL,
  created_at DATETIME
);`
	require.NoError(t, db.Exec(usersTable).Error)
	require.NoError(t, db.Exec(orders).Error)
	require.NoError(t, db.Exec(payments).Error)
	require.NoError(t, db.Exec(referralEarnings).Error)
	return db
}

func newMember(t *testing.T, db *gorm.DB, referredBy *uuid.UUID) *models.User {
	t.Helper()

	user := &models.User{
		ID:           uuid.New(),
		Email:        uuid.NewString() + "@example.com",
		PasswordHash: "x",
		FirstName:    "Ada",
		LastName:     "Obi",
		Role:         enums.UserRoleMember,
		ReferredBy:   referredBy,
		IsActive:     true,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

type notifierStub struct {
	inputs []notifications.NotifyInput
	err    error
}

func (n *notifierStub) Notify(_ context.Context, _ *gorm.DB, input notifications.NotifyInput) error {
	n.inputs = append(n.inputs, input)
	return n.err
}

type gatewayStub struct {
	params []square.PaymentCreateParams
	err    error
}

func (g *gatewayStub) CreatePayment(_ context.Context, params square.PaymentCreateParams) (*sq.Payment, error) {
	g.params = append(g.params, params)
	if g.err != nil {
		return nil, g.err
	}
	id := "sq-payment-7"
	status := "PENDING"
	return &sq.Payment{ID: &id, Status: &status}, nil
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

func newOrdersService(t *testing.T, db *gorm.DB, referralPercent int64) (Service, *notifierStub, *emitterStub) {
	t.Helper()

	notifier := &notifierStub{}
	emitter := &emitterStub{}
	service, err := NewService(ServiceParams{
		OrderRepo:         NewRepository(db),
		Users:             users.NewRepository(db),
		Notifier:          notifier,
		Outbox:            emitter,
		TransactionRunner: &txRunnerStub{db: db},
		ReferralPercent:   referralPercent,
	})
	require.NoError(t, err)
	return service, notifier, emitter
}

func newCardOrdersService(t *testing.T, db *gorm.DB) (Service, *gatewayStub) {
	t.Helper()

	gateway := &gatewayStub{}
	service, err := NewService(ServiceParams{
		OrderRepo:         NewRepository(db),
		Users:             users.NewRepository(db),
		CardGateway:       gateway,
		TransactionRunner: &txRunnerStub{db: db},
	})
	require.NoError(t, err)
	return service, gateway
}

func adminOffer(userID uuid.UUID, amountKobo int64) CreateOfferInput {
	return CreateOfferInput{
		UserID:      userID,
		Title:       "Mixing masterclass",
		ServiceType: enums.ServiceTypeCourse,
		AmountKobo:  amountKobo,
		ActorID:     uuid.New(),
		ActorRole:   enums.UserRoleAdmin,
	}
}

func TestCreateOfferRequiresAdmin(t *testing.T) {
	db := setupOrdersTestDB(t)
	service, _, _ := newOrdersService(t, db, 0)
	ctx := context.Background()

	member := newMember(t, db, nil)
	input := adminOffer(member.ID, 50_000)
	input.ActorRole = enums.UserRoleMember

	_, err := service.CreateOffer(ctx, input)
	assertCode(t, err, pkgerrors.CodeForbidden)
}

func TestCreateOfferValidation(t *testing.T) {
	db := setupOrdersTestDB(t)
	service, _, _ := newOrdersService(t, db, 0)
	ctx := context.Background()

	member := newMember(t, db, nil)

	cases := []struct {
		name   string
		mutate func(*CreateOfferInput)
		want   pkgerrors.Code
	}{
		{
			name:   "blank title",
			mutate: func(in *CreateOfferInput) { in.Title = "  " },
			want:   pkgerrors.CodeValidation,
		},
		{
			name:   "unknown service type",
			mutate: func(in *CreateOfferInput) { in.ServiceType = enums.ServiceType("karaoke") },
			want:   pkgerrors.CodeValidation,
		},
		{
			name:   "non-positive amount",
			mutate: func(in *CreateOfferInput) { in.AmountKobo = 0 },
			want:   pkgerrors.CodeValidation,
		},
		{
			name: "expiry in the past",
			mutate: func(in *CreateOfferInput) {
				past := time.Now().Add(-time.Hour)
				in.ExpiresAt = &past
			},
			want: pkgerrors.CodeValidation,
		},
		{
			name:   "unknown recipient",
			mutate: func(in *CreateOfferInput) { in.UserID = uuid.New() },
			want:   pkgerrors.CodeNotFound,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			input := adminOffer(member.ID, 50_000)
			tc.mutate(&input)
			_, err := service.CreateOffer(ctx, input)
			assertCode(t, err, tc.want)
		})
	}
}

func TestCreateOfferNotifiesRecipient(t *testing.T) {
	db := setupOrdersTestDB(t)
	service, notifier, _ := newOrdersService(t, db, 0)
	ctx := context.Background()

	member := newMember(t, db, nil)
	order, err := service.CreateOffer(ctx, adminOffer(member.ID, 50_000))
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusPending, order.Status)
	require.Len(t, notifier.inputs, 1)
	assert.Equal(t, member.ID, notifier.inputs[0].UserID)
	assert.Equal(t, enums.NotificationTypeOrderAlert, notifier.inputs[0].Type)
}

func TestAcceptOffer(t *testing.T) {
	db := setupOrdersTestDB(t)
	service, _, emitter := newOrdersService(t, db, 0)
	ctx := context.Background()

	member := newMember(t, db, nil)
	order, err := service.CreateOffer(ctx, adminOffer(member.ID, 50_000))
	require.NoError(t, err)

	_, err = service.AcceptOffer(ctx, order.ID, uuid.New())
	assertCode(t, err, pkgerrors.CodeForbidden)

	accepted, err := service.AcceptOffer(ctx, order.ID, member.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusAccepted, accepted.Status)
	assert.Contains(t, emitter.types(), enums.EventOrderAccepted)

	// Accepted orders stay payable but cannot be accepted twice.
	_, err = service.AcceptOffer(ctx, order.ID, member.ID)
	assertCode(t, err, pkgerrors.CodeStateConflict)
}

func TestAcceptOfferExpired(t *testing.T) {
	db := setupOrdersTestDB(t)
	service, _, _ := newOrdersService(t, db, 0)
	ctx := context.Background()

	member := newMember(t, db, nil)
	expired := time.Now().Add(-time.Minute)
	order := &models.Order{
		ID:          uuid.New(),
		UserID:      member.ID,
		Title:       "Lapsed offer",
		ServiceType: enums.ServiceTypeCourse,
		AmountKobo:  20_000,
		Status:      enums.OrderStatusPending,
		ExpiresAt:   &expired,
	}
	require.NoError(t, db.Create(order).Error)

	_, err := service.AcceptOffer(ctx, order.ID, member.ID)
	assertCode(t, err, pkgerrors.CodeStateConflict)
}

func settleInTx(t *testing.T, db *gorm.DB, service Service, input SettleInput) error {
	t.Helper()
	return db.Transaction(func(tx *gorm.DB) error {
		return service.Settle(context.Background(), tx, input)
	})
}

func TestSettleMarksPaidOnce(t *testing.T) {
	db := setupOrdersTestDB(t)
	service, notifier, emitter := newOrdersService(t, db, 0)
	ctx := context.Background()

	member := newMember(t, db, nil)
	order, err := service.CreateOffer(ctx, adminOffer(member.ID, 50_000))
	require.NoError(t, err)

	err = settleInTx(t, db, service, SettleInput{
		OrderID:        order.ID,
		AmountPaidKobo: 49_999,
		Method:         enums.PaymentMethodCard,
		ActorID:        member.ID,
	})
	assertCode(t, err, pkgerrors.CodeValidation)

	reference := "sq-payment-1"
	err = settleInTx(t, db, service, SettleInput{
		OrderID:        order.ID,
		AmountPaidKobo: 50_000,
		Method:         enums.PaymentMethodCard,
		Reference:      &reference,
		ActorID:        member.ID,
	})
	require.NoError(t, err)

	settled, err := service.Get(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusPaid, settled.Status)
	require.NotNil(t, settled.PaidAt)

	var payments []models.Payment
	require.NoError(t, db.Where("order_id = ?", order.ID).Find(&payments).Error)
	require.Len(t, payments, 1)
	assert.Equal(t, int64(50_000), payments[0].AmountKobo)
	assert.Equal(t, enums.PaymentMethodCard, payments[0].Method)
	require.NotNil(t, payments[0].Reference)
	assert.Equal(t, reference, *payments[0].Reference)

	// Offer creation plus settlement each notify the buyer.
	require.Len(t, notifier.inputs, 2)
	assert.Contains(t, emitter.types(), enums.EventOrderPaid)

	err = settleInTx(t, db, service, SettleInput{
		OrderID:        order.ID,
		AmountPaidKobo: 50_000,
		Method:         enums.PaymentMethodCard,
		ActorID:        member.ID,
	})
	assertCode(t, err, pkgerrors.CodeStateConflict)
}

func TestSettleCreditsReferrer(t *testing.T) {
	db := setupOrdersTestDB(t)
	service, _, emitter := newOrdersService(t, db, 10)
	ctx := context.Background()

	referrer := newMember(t, db, nil)
	buyer := newMember(t, db, &referrer.ID)
	order, err := service.CreateOffer(ctx, adminOffer(buyer.ID, 50_000))
	require.NoError(t, err)

	err = settleInTx(t, db, service, SettleInput{
		OrderID:        order.ID,
		AmountPaidKobo: 50_000,
		Method:         enums.PaymentMethodCard,
		ActorID:        buyer.ID,
	})
	require.NoError(t, err)

	var earnings []models.ReferralEarning
	require.NoError(t, db.Where("referrer_id = ?", referrer.ID).Find(&earnings).Error)
	require.Len(t, earnings, 1)
	assert.Equal(t, int64(5_000), earnings[0].AmountKobo)
	assert.Equal(t, buyer.ID, earnings[0].ReferredUserID)
	assert.Contains(t, emitter.types(), enums.EventReferralEarned)
}

func TestSettleSkipsReferralWhenDisabled(t *testing.T) {
	db := setupOrdersTestDB(t)
	service, _, emitter := newOrdersService(t, db, 0)
	ctx := context.Background()

	referrer := newMember(t, db, nil)
	buyer := newMember(t, db, &referrer.ID)
	order, err := service.CreateOffer(ctx, adminOffer(buyer.ID, 50_000))
	require.NoError(t, err)

	err = settleInTx(t, db, service, SettleInput{
		OrderID:        order.ID,
		AmountPaidKobo: 50_000,
		Method:         enums.PaymentMethodWallet,
		ActorID:        buyer.ID,
	})
	require.NoError(t, err)

	var count int64
	require.NoError(t, db.Model(&models.ReferralEarning{}).Where("referrer_id = ?", referrer.ID).Count(&count).Error)
	assert.Zero(t, count)
	assert.NotContains(t, emitter.types(), enums.EventReferralEarned)
}

func TestStartCardPaymentCreatesGatewayCharge(t *testing.T) {
	db := setupOrdersTestDB(t)
	service, gateway := newCardOrdersService(t, db)
	ctx := context.Background()

	member := newMember(t, db, nil)
	order, err := service.CreateOffer(ctx, adminOffer(member.ID, 50_000))
	require.NoError(t, err)

	payment, err := service.StartCardPayment(ctx, StartCardPaymentInput{
		OrderID:  order.ID,
		ActorID:  member.ID,
		SourceID: "cnon:card-nonce",
	})
	require.NoError(t, err)
	assert.Equal(t, "sq-payment-7", payment.PaymentID)
	assert.Equal(t, "PENDING", payment.Status)
	assert.Equal(t, order.ID, payment.OrderID)
	assert.Equal(t, int64(50_000), payment.AmountKobo)

	// The order UUID rides in the charge reference so the payment webhook
	// can settle the right order.
	require.Len(t, gateway.params, 1)
	charged := gateway.params[0]
	assert.Equal(t, order.ID.String(), charged.ReferenceID)
	assert.Equal(t, int64(50_000), charged.AmountKobo)
	assert.Equal(t, "cnon:card-nonce", charged.SourceID)
}

func TestStartCardPaymentGuards(t *testing.T) {
	db := setupOrdersTestDB(t)
	service, gateway := newCardOrdersService(t, db)
	ctx := context.Background()

	member := newMember(t, db, nil)
	order, err := service.CreateOffer(ctx, adminOffer(member.ID, 50_000))
	require.NoError(t, err)

	_, err = service.StartCardPayment(ctx, StartCardPaymentInput{
		OrderID: order.ID, ActorID: member.ID, SourceID: "  ",
	})
	assertCode(t, err, pkgerrors.CodeValidation)

	_, err = service.StartCardPayment(ctx, StartCardPaymentInput{
		OrderID: order.ID, ActorID: uuid.New(), SourceID: "cnon:card-nonce",
	})
	assertCode(t, err, pkgerrors.CodeForbidden)

	expired := time.Now().Add(-time.Minute)
	lapsed := &models.Order{
		ID:          uuid.New(),
		UserID:      member.ID,
		Title:       "Lapsed offer",
		ServiceType: enums.ServiceTypeCourse,
		AmountKobo:  20_000,
		Status:      enums.OrderStatusPending,
		ExpiresAt:   &expired,
	}
	require.NoError(t, db.Create(lapsed).Error)
	_, err = service.StartCardPayment(ctx, StartCardPaymentInput{
		OrderID: lapsed.ID, ActorID: member.ID, SourceID: "cnon:card-nonce",
	})
	assertCode(t, err, pkgerrors.CodeStateConflict)

	now := time.Now().UTC()
	paid := &models.Order{
		ID:          uuid.New(),
		UserID:      member.ID,
		Title:       "Settled order",
		ServiceType: enums.ServiceTypeCourse,
		AmountKobo:  20_000,
		Status:      enums.OrderStatusPaid,
		PaidAt:      &now,
	}
	require.NoError(t, db.Create(paid).Error)
	_, err = service.StartCardPayment(ctx, StartCardPaymentInput{
		OrderID: paid.ID, ActorID: member.ID, SourceID: "cnon:card-nonce",
	})
	assertCode(t, err, pkgerrors.CodeStateConflict)

	// Guard failures never reach the gateway.
	assert.Empty(t, gateway.params)

	unconfigured, _, _ := newOrdersService(t, db, 0)
	_, err = unconfigured.StartCardPayment(ctx, StartCardPaymentInput{
		OrderID: order.ID, ActorID: member.ID, SourceID: "cnon:card-nonce",
	})
	assertCode(t, err, pkgerrors.CodeDependency)
}

func TestSettleRollsBackWhenNotificationFails(t *testing.T) {
	db := setupOrdersTestDB(t)
	service, notifier, emitter := newOrdersService(t, db, 0)
	ctx := context.Background()

	member := newMember(t, db, nil)
	order, err := service.CreateOffer(ctx, adminOffer(member.ID, 50_000))
	require.NoError(t, err)

	notifier.err = errors.New("notification store unavailable")
	err = settleInTx(t, db, service, SettleInput{
		OrderID:        order.ID,
		AmountPaidKobo: 50_000,
		Method:         enums.PaymentMethodCard,
		ActorID:        member.ID,
	})
	require.Error(t, err)

	// The failed settlement leaves no trace: no payment row, status and
	// paid_at untouched, no paid event emitted.
	var count int64
	require.NoError(t, db.Model(&models.Payment{}).Where("order_id = ?", order.ID).Count(&count).Error)
	assert.Zero(t, count)

	reloaded, err := service.Get(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusPending, reloaded.Status)
	assert.Nil(t, reloaded.PaidAt)
	assert.NotContains(t, emitter.types(), enums.EventOrderPaid)

	// Settlement succeeds once the notifier recovers.
	notifier.err = nil
	err = settleInTx(t, db, service, SettleInput{
		OrderID:        order.ID,
		AmountPaidKobo: 50_000,
		Method:         enums.PaymentMethodCard,
		ActorID:        member.ID,
	})
	require.NoError(t, err)
}

func TestExpirePastDue(t *testing.T) {
	db := setupOrdersTestDB(t)
	service, _, emitter := newOrdersService(t, db, 0)
	ctx := context.Background()

	require.NoError(t, db.Exec("DELETE FROM orders").Error)

	member := newMember(t, db, nil)
	past := time.Now().UTC().Add(-time.Hour)
	future := time.Now().UTC().Add(time.Hour)
	now := time.Now().UTC()

	pastDue := &models.Order{
		ID:          uuid.New(),
		UserID:      member.ID,
		Title:       "Past due",
		ServiceType: enums.ServiceTypeCourse,
		AmountKobo:  10_000,
		Status:      enums.OrderStatusPending,
		ExpiresAt:   &past,
	}
	stillOpen := &models.Order{
		ID:          uuid.New(),
		UserID:      member.ID,
		Title:       "Still open",
		ServiceType: enums.ServiceTypeCourse,
		AmountKobo:  10_000,
		Status:      enums.OrderStatusAccepted,
		ExpiresAt:   &future,
	}
	alreadyPaid := &models.Order{
		ID:          uuid.New(),
		UserID:      member.ID,
		Title:       "Already paid",
		ServiceType: enums.ServiceTypeCourse,
		AmountKobo:  10_000,
		Status:      enums.OrderStatusPaid,
		ExpiresAt:   &past,
		PaidAt:      &now,
	}
	require.NoError(t, db.Create(pastDue).Error)
	require.NoError(t, db.Create(stillOpen).Error)
	require.NoError(t, db.Create(alreadyPaid).Error)

	expired, err := service.ExpirePastDue(ctx, 50)
	require.NoError(t, err)
	assert.Equal(t, 1, expired)
	assert.Contains(t, emitter.types(), enums.EventOrderExpired)

	check := func(id uuid.UUID, want enums.OrderStatus) {
		t.Helper()
		order, err := service.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, want, order.Status)
	}
	check(pastDue.ID, enums.OrderStatusExpired)
	check(stillOpen.ID, enums.OrderStatusAccepted)
	check(alreadyPaid.ID, enums.OrderStatusPaid)
}
