package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	sq "github.com/square/square-go-sdk"
	"gorm.io/gorm"

	"github.com/studiohubhq/studiohub-backend/internal/notifications"
	"github.com/studiohubhq/studiohub-backend/pkg/db/models"
	"github.com/studiohubhq/studiohub-backend/pkg/enums"
	pkgerrors "github.com/studiohubhq/studiohub-backend/pkg/errors"
	"github.com/studiohubhq/studiohub-backend/pkg/outbox"
	"github.com/studiohubhq/studiohub-backend/pkg/pagination"
	"github.com/studiohubhq/studiohub-backend/pkg/square"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type userFinder interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type notifier interface {
	Notify(ctx context.Context, tx *gorm.DB, input notifications.NotifyInput) error
}

type cardGateway interface {
	CreatePayment(ctx context.Context, params square.PaymentCreateParams) (*sq.Payment, error)
}

// Service defines the order lifecycle: admin-issued offers, member
// acceptance, settlement, and expiry.
type Service interface {
	CreateOffer(ctx context.Context, input CreateOfferInput) (*models.Order, error)
	AcceptOffer(ctx context.Context, orderID, userID uuid.UUID) (*models.Order, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Order, error)
	ListForUser(ctx context.Context, userID uuid.UUID, params ListParams) ([]models.Order, string, error)
	StartCardPayment(ctx context.Context, input StartCardPaymentInput) (*CardPayment, error)
	Settle(ctx context.Context, tx *gorm.DB, input SettleInput) error
	ExpirePastDue(ctx context.Context, batchSize int) (int, error)
}

// CreateOfferInput carries an admin-issued offer for a member.
type CreateOfferInput struct {
	UserID       uuid.UUID
	Title        string
	ServiceType  enums.ServiceType
	ProductID    *uuid.UUID
	AmountKobo   int64
	DurationDays *int
	ExpiresAt    *time.Time
	ActorID      uuid.UUID
	ActorRole    enums.UserRole
}

// StartCardPaymentInput begins a gateway card charge for an order.
type StartCardPaymentInput struct {
	OrderID  uuid.UUID
	ActorID  uuid.UUID
	SourceID string
}

// CardPayment reports the gateway charge created for an order. The order
// settles later, when the payment webhook confirms completion.
type CardPayment struct {
	PaymentID  string    `json:"payment_id"`
	Status     string    `json:"status"`
	OrderID    uuid.UUID `json:"order_id"`
	AmountKobo int64     `json:"amount_kobo"`
}

// SettleInput marks an order paid inside the caller's transaction.
type SettleInput struct {
	OrderID        uuid.UUID
	AmountPaidKobo int64
	Method         enums.PaymentMethod
	Reference      *string
	ActorID        uuid.UUID
}

// ListParams carries cursor pagination inputs.
type ListParams struct {
	Limit  int
	Cursor string
}

// ServiceParams wires the order service dependencies.
type ServiceParams struct {
	OrderRepo         Repository
	Users             userFinder
	Notifier          notifier
	Outbox            outboxEmitter
	CardGateway       cardGateway
	TransactionRunner txRunner
	ReferralPercent   int64
}

type service struct {
	repo            Repository
	users           userFinder
	notifier        notifier
	outbox          outboxEmitter
	gateway         cardGateway
	txRunner        txRunner
	referralPercent int64
}

// NewService validates dependencies and returns an order service.
func NewService(params ServiceParams) (Service, error) {
	if params.OrderRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "order repo required")
	}
	if params.Users == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "user finder required")
	}
	if params.TransactionRunner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	if params.ReferralPercent < 0 || params.ReferralPercent > 100 {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "referral percent must be between 0 and 100")
	}
	return &service{
		repo:            params.OrderRepo,
		users:           params.Users,
		notifier:        params.Notifier,
		outbox:          params.Outbox,
		gateway:         params.CardGateway,
		txRunner:        params.TransactionRunner,
		referralPercent: params.ReferralPercent,
	}, nil
}

// CreateOffer writes a pending order for the member. Admin only.
func (s *service) CreateOffer(ctx context.Context, input CreateOfferInput) (*models.Order, error) {
	if input.ActorRole != enums.UserRoleAdmin {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only admins may create offers")
	}
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if strings.TrimSpace(input.Title) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "title is required")
	}
	if !input.ServiceType.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid service type")
	}
	if input.AmountKobo <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}
	if input.DurationDays != nil && *input.DurationDays <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "duration must be positive")
	}
	if input.ExpiresAt != nil && !input.ExpiresAt.After(time.Now()) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "expiry must be in the future")
	}

	if _, err := s.users.FindByID(ctx, input.UserID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
	}

	order := &models.Order{
		UserID:       input.UserID,
		Title:        strings.TrimSpace(input.Title),
		ServiceType:  input.ServiceType,
		ProductID:    input.ProductID,
		AmountKobo:   input.AmountKobo,
		DurationDays: input.DurationDays,
		Status:       enums.OrderStatusPending,
		ExpiresAt:    input.ExpiresAt,
	}

	err := s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Create(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
		}
		return s.notify(ctx, tx, notifications.NotifyInput{
			UserID:  order.UserID,
			Type:    enums.NotificationTypeOrderAlert,
			Title:   "New offer",
			Message: fmt.Sprintf("You have a new offer: %s", order.Title),
		})
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// AcceptOffer moves the member's own pending order to accepted.
func (s *service) AcceptOffer(ctx context.Context, orderID, userID uuid.UUID) (*models.Order, error) {
	order, err := s.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != userID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only the offer recipient may accept it")
	}
	if order.Status != enums.OrderStatusPending {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "only pending offers can be accepted")
	}
	if order.ExpiresAt != nil && order.ExpiresAt.Before(time.Now()) {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "offer has expired")
	}

	order.Status = enums.OrderStatusAccepted
	err = s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Update(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order")
		}
		return s.emit(ctx, tx, enums.EventOrderAccepted, order, userID)
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	order, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}

func (s *service) ListForUser(ctx context.Context, userID uuid.UUID, params ListParams) ([]models.Order, string, error) {
	if userID == uuid.Nil {
		return nil, "", pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	orders, next, err := s.repo.ListByUser(ctx, userID, params.Limit, cursor)
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	encoded := ""
	if next != nil {
		encoded = pagination.EncodeCursor(*next)
	}
	return orders, encoded, nil
}

// StartCardPayment creates the gateway charge for a payable order owned by
// the caller. The order UUID rides in the charge reference so the payment
// webhook can route the completed payment back for settlement.
func (s *service) StartCardPayment(ctx context.Context, input StartCardPaymentInput) (*CardPayment, error) {
	if s.gateway == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "card payments are not configured")
	}
	if strings.TrimSpace(input.SourceID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment source is required")
	}
	order, err := s.Get(ctx, input.OrderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != input.ActorID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only the order owner may pay it")
	}
	if !order.Status.Payable() {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order is not payable")
	}
	if order.ExpiresAt != nil && order.ExpiresAt.Before(time.Now()) {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "offer has expired")
	}

	payment, err := s.gateway.CreatePayment(ctx, square.PaymentCreateParams{
		AmountKobo:  order.AmountKobo,
		SourceID:    strings.TrimSpace(input.SourceID),
		ReferenceID: order.ID.String(),
		Note:        order.Title,
	})
	if err != nil {
		return nil, err
	}

	result := &CardPayment{OrderID: order.ID, AmountKobo: order.AmountKobo}
	if payment != nil {
		if id := payment.GetID(); id != nil {
			result.PaymentID = *id
		}
		if status := payment.GetStatus(); status != nil {
			result.Status = *status
		}
	}
	return result, nil
}

// Settle marks the order paid inside the caller's transaction: status flip,
// payment row, buyer notification, and the referral credit when the buyer was
// referred. The order is re-read under a row lock so a second settlement
// attempt sees the paid status and is refused, keeping settlement idempotent
// at the order level.
func (s *service) Settle(ctx context.Context, tx *gorm.DB, input SettleInput) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "settlement requires a transaction")
	}
	if input.OrderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	if !input.Method.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid payment method")
	}

	repo := s.repo.WithTx(tx)

	order, err := repo.FindByIDForUpdate(ctx, input.OrderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if !order.Status.Payable() {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "order is not payable")
	}
	if input.AmountPaidKobo != order.AmountKobo {
		return pkgerrors.New(pkgerrors.CodeValidation, "payment amount does not match order total")
	}

	now := time.Now().UTC()
	order.Status = enums.OrderStatusPaid
	order.PaidAt = &now
	if err := repo.Update(ctx, order); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order")
	}

	payment := &models.Payment{
		OrderID:    order.ID,
		UserID:     order.UserID,
		AmountKobo: input.AmountPaidKobo,
		Method:     input.Method,
		Reference:  input.Reference,
	}
	if err := repo.InsertPayment(ctx, payment); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert payment")
	}

	if err := s.notify(ctx, tx, notifications.NotifyInput{
		UserID:  order.UserID,
		Type:    enums.NotificationTypeOrderAlert,
		Title:   "Order paid",
		Message: fmt.Sprintf("Payment received for %s", order.Title),
	}); err != nil {
		return err
	}

	if err := s.creditReferrer(ctx, tx, repo, order); err != nil {
		return err
	}

	return s.emit(ctx, tx, enums.EventOrderPaid, order, input.ActorID)
}

// creditReferrer appends the referral earning when the buyer was referred.
// Truncating integer division; a referral percent of zero disables credits.
func (s *service) creditReferrer(ctx context.Context, tx *gorm.DB, repo Repository, order *models.Order) error {
	if s.referralPercent == 0 {
		return nil
	}
	user, err := s.users.FindByID(ctx, order.UserID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load buyer")
	}
	if user.ReferredBy == nil {
		return nil
	}
	amount := order.AmountKobo * s.referralPercent / 100
	if amount <= 0 {
		return nil
	}
	orderID := order.ID
	earning := &models.ReferralEarning{
		ReferrerID:     *user.ReferredBy,
		ReferredUserID: order.UserID,
		OrderID:        &orderID,
		AmountKobo:     amount,
	}
	if err := repo.InsertReferralEarning(ctx, earning); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert referral earning")
	}

	if s.outbox == nil {
		return nil
	}
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventReferralEarned,
		AggregateType: enums.AggregateWallet,
		AggregateID:   earning.ReferrerID,
		Data: map[string]any{
			"referrer_id":      earning.ReferrerID,
			"referred_user_id": earning.ReferredUserID,
			"order_id":         order.ID,
			"amount_kobo":      earning.AmountKobo,
		},
		Version: 1,
	})
}

// ExpirePastDue flips payable orders whose expiry has passed. Each order is
// re-checked under its row lock inside its own transaction so a settlement
// racing the sweep wins cleanly.
func (s *service) ExpirePastDue(ctx context.Context, batchSize int) (int, error) {
	if batchSize <= 0 {
		batchSize = 100
	}
	candidates, err := s.repo.FindExpiryCandidates(ctx, time.Now().UTC(), batchSize)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find expiry candidates")
	}

	expired := 0
	for _, candidate := range candidates {
		err := s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
			repo := s.repo.WithTx(tx)
			order, err := repo.FindByIDForUpdate(ctx, candidate.ID)
			if err != nil {
				return err
			}
			if !order.Status.Payable() {
				return nil
			}
			if order.ExpiresAt == nil || order.ExpiresAt.After(time.Now().UTC()) {
				return nil
			}
			order.Status = enums.OrderStatusExpired
			if err := repo.Update(ctx, order); err != nil {
				return err
			}
			expired++
			return s.emit(ctx, tx, enums.EventOrderExpired, order, uuid.Nil)
		})
		if err != nil {
			return expired, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "expire order")
		}
	}
	return expired, nil
}

func (s *service) notify(ctx context.Context, tx *gorm.DB, input notifications.NotifyInput) error {
	if s.notifier == nil {
		return nil
	}
	return s.notifier.Notify(ctx, tx, input)
}

func (s *service) emit(ctx context.Context, tx *gorm.DB, eventType enums.OutboxEventType, order *models.Order, actorID uuid.UUID) error {
	if s.outbox == nil {
		return nil
	}
	var actor *outbox.ActorRef
	if actorID != uuid.Nil {
		actor = &outbox.ActorRef{UserID: actorID}
	}
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Actor:         actor,
		Data: map[string]any{
			"order_id":     order.ID,
			"user_id":      order.UserID,
			"title":        order.Title,
			"service_type": order.ServiceType,
			"amount_kobo":  order.AmountKobo,
			"status":       order.Status,
		},
		Version: 1,
	})
}
