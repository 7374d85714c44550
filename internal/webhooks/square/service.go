package squarewebhook

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/studiohubhq/studiohub-backend/internal/orders"
	"github.com/studiohubhq/studiohub-backend/pkg/enums"
	pkgerrors "github.com/studiohubhq/studiohub-backend/pkg/errors"
)

type orderSettler interface {
	Settle(ctx context.Context, tx *gorm.DB, input orders.SettleInput) error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// ServiceParams wires the Square webhook service dependencies.
type ServiceParams struct {
	Orders            orderSettler
	TransactionRunner txRunner
}

// Service settles orders when Square reports their card payment completed.
type Service struct {
	orders   orderSettler
	txRunner txRunner
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Orders == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "order settler required")
	}
	if params.TransactionRunner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	return &Service{
		orders:   params.Orders,
		txRunner: params.TransactionRunner,
	}, nil
}

// SquareWebhookEvent is the envelope Square posts to the webhook endpoint.
type SquareWebhookEvent struct {
	EventID string            `json:"event_id"`
	Type    string            `json:"type"`
	Data    SquareWebhookData `json:"data"`
}

type SquareWebhookData struct {
	Type   string              `json:"type"`
	ID     string              `json:"id"`
	Object SquareWebhookObject `json:"object"`
}

type SquareWebhookObject struct {
	Payment *SquarePayment `json:"payment"`
}

// SquarePayment is the subset of Square's payment object the handler reads.
// reference_id carries the order UUID set when the payment was created.
type SquarePayment struct {
	ID          string            `json:"id"`
	Status      string            `json:"status"`
	ReferenceID string            `json:"reference_id"`
	AmountMoney SquareAmountMoney `json:"amount_money"`
}

type SquareAmountMoney struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

// HandleEvent settles the referenced order for completed payment events.
// Events for other types, non-final payment statuses, and orders that were
// already settled by an earlier delivery are acknowledged without effect.
func (s *Service) HandleEvent(ctx context.Context, event *SquareWebhookEvent) error {
	if event == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "square event required")
	}

	switch strings.ToLower(event.Type) {
	case "payment.created", "payment.updated":
	default:
		return nil
	}

	payment := event.Data.Object.Payment
	if payment == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "payment payload missing")
	}
	if !strings.EqualFold(payment.Status, "COMPLETED") {
		return nil
	}

	orderID, err := uuid.Parse(strings.TrimSpace(payment.ReferenceID))
	if err != nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "payment reference is not an order id")
	}

	paymentID := payment.ID
	err = s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		return s.orders.Settle(ctx, tx, orders.SettleInput{
			OrderID:        orderID,
			AmountPaidKobo: payment.AmountMoney.Amount,
			Method:         enums.PaymentMethodCard,
			Reference:      &paymentID,
		})
	})
	if err != nil {
		// A re-delivered event for an order another delivery already settled
		// is acknowledged, not retried.
		if domainErr := pkgerrors.As(err); domainErr != nil && domainErr.Code() == pkgerrors.CodeStateConflict {
			return nil
		}
		return err
	}
	return nil
}
