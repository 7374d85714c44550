package squarewebhook

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/studiohubhq/studiohub-backend/internal/orders"
	"github.com/studiohubhq/studiohub-backend/pkg/enums"
	pkgerrors "github.com/studiohubhq/studiohub-backend/pkg/errors"
)

type settlerStub struct {
	inputs []orders.SettleInput
	err    error
}

func (s *settlerStub) Settle(_ context.Context, _ *gorm.DB, input orders.SettleInput) error {
	s.inputs = append(s.inputs, input)
	return s.err
}

type runnerStub struct{}

func (runnerStub) WithTx(_ context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

func newWebhookService(t *testing.T, settler *settlerStub) *Service {
	t.Helper()
	service, err := NewService(ServiceParams{
		Orders:            settler,
		TransactionRunner: runnerStub{},
	})
	require.NoError(t, err)
	return service
}

func completedPaymentEvent(orderID uuid.UUID, amountKobo int64) *SquareWebhookEvent {
	return &SquareWebhookEvent{
		EventID: uuid.NewString(),
		Type:    "payment.updated",
		Data: SquareWebhookData{
			Type: "payment",
			ID:   "sq-data-id",
			Object: SquareWebhookObject{
				Payment: &SquarePayment{
					ID:          "sq-payment-42",
					Status:      "COMPLETED",
					ReferenceID: orderID.String(),
					AmountMoney: SquareAmountMoney{Amount: amountKobo, Currency: "NGN"},
				},
			},
		},
	}
}

func TestHandleEventSettlesCompletedPayment(t *testing.T) {
	settler := &settlerStub{}
	service := newWebhookService(t, settler)

	orderID := uuid.New()
	err := service.HandleEvent(context.Background(), completedPaymentEvent(orderID, 75_000))
	require.NoError(t, err)

	require.Len(t, settler.inputs, 1)
	input := settler.inputs[0]
	assert.Equal(t, orderID, input.OrderID)
	assert.Equal(t, int64(75_000), input.AmountPaidKobo)
	assert.Equal(t, enums.PaymentMethodCard, input.Method)
	require.NotNil(t, input.Reference)
	assert.Equal(t, "sq-payment-42", *input.Reference)
}

func TestHandleEventIgnoresIrrelevantDeliveries(t *testing.T) {
	settler := &settlerStub{}
	service := newWebhookService(t, settler)
	ctx := context.Background()

	other := completedPaymentEvent(uuid.New(), 10_000)
	other.Type = "refund.created"
	require.NoError(t, service.HandleEvent(ctx, other))

	pending := completedPaymentEvent(uuid.New(), 10_000)
	pending.Data.Object.Payment.Status = "PENDING"
	require.NoError(t, service.HandleEvent(ctx, pending))

	assert.Empty(t, settler.inputs)
}

func TestHandleEventRejectsBadPayloads(t *testing.T) {
	settler := &settlerStub{}
	service := newWebhookService(t, settler)
	ctx := context.Background()

	err := service.HandleEvent(ctx, nil)
	require.Error(t, err)

	missing := completedPaymentEvent(uuid.New(), 10_000)
	missing.Data.Object.Payment = nil
	err = service.HandleEvent(ctx, missing)
	require.Error(t, err)

	badRef := completedPaymentEvent(uuid.New(), 10_000)
	badRef.Data.Object.Payment.ReferenceID = "not-a-uuid"
	err = service.HandleEvent(ctx, badRef)
	require.Error(t, err)
	domainErr := pkgerrors.As(err)
	require.NotNil(t, domainErr)
	assert.Equal(t, pkgerrors.CodeValidation, domainErr.Code())
	assert.Empty(t, settler.inputs)
}

func TestHandleEventAcksAlreadySettledOrders(t *testing.T) {
	settler := &settlerStub{err: pkgerrors.New(pkgerrors.CodeStateConflict, "order is not payable")}
	service := newWebhookService(t, settler)

	err := service.HandleEvent(context.Background(), completedPaymentEvent(uuid.New(), 10_000))
	assert.NoError(t, err, "redelivery of a settled order is acknowledged")
}

func TestHandleEventPropagatesOtherFailures(t *testing.T) {
	settler := &settlerStub{err: pkgerrors.New(pkgerrors.CodeDependency, "db down")}
	service := newWebhookService(t, settler)

	err := service.HandleEvent(context.Background(), completedPaymentEvent(uuid.New(), 10_000))
	require.Error(t, err)
}

type idempotencyStoreStub struct {
	keys map[string]string
}

func (s *idempotencyStoreStub) IdempotencyKey(scope, key string) string {
	return "idem:" + scope + ":" + key
}

func (s *idempotencyStoreStub) Get(_ context.Context, key string) (string, error) {
	return s.keys[key], nil
}

func (s *idempotencyStoreStub) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if _, exists := s.keys[key]; exists {
		return false, nil
	}
	if s.keys == nil {
		s.keys = map[string]string{}
	}
	s.keys[key] = "1"
	return true, nil
}

func (s *idempotencyStoreStub) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(s.keys, key)
	}
	return nil
}

func TestIdempotencyGuard(t *testing.T) {
	store := &idempotencyStoreStub{}
	guard, err := NewIdempotencyGuard(store, time.Hour, "square-webhook")
	require.NoError(t, err)
	ctx := context.Background()

	seen, err := guard.CheckAndMark(ctx, "evt-1")
	require.NoError(t, err)
	assert.False(t, seen)

	seen, err = guard.CheckAndMark(ctx, "evt-1")
	require.NoError(t, err)
	assert.True(t, seen)

	require.NoError(t, guard.Delete(ctx, "evt-1"))
	seen, err = guard.CheckAndMark(ctx, "evt-1")
	require.NoError(t, err)
	assert.False(t, seen)

	_, err = guard.CheckAndMark(ctx, "")
	require.Error(t, err)
}
