package wallet

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/studiohubhq/studiohub-backend/internal/bookings"
	"github.com/studiohubhq/studiohub-backend/internal/notifications"
	"github.com/studiohubhq/studiohub-backend/internal/orders"
	"github.com/studiohubhq/studiohub-backend/pkg/db/models"
	"github.com/studiohubhq/studiohub-backend/pkg/enums"
	pkgerrors "github.com/studiohubhq/studiohub-backend/pkg/errors"
	"github.com/studiohubhq/studiohub-backend/pkg/outbox"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type orderSettler interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Order, error)
	Settle(ctx context.Context, tx *gorm.DB, input orders.SettleInput) error
}

type rentalFinder interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Rental, error)
}

type notifier interface {
	Notify(ctx context.Context, tx *gorm.DB, input notifications.NotifyInput) error
}

// Service exposes wallet reads, wallet payment, and escrow release.
type Service interface {
	Balance(ctx context.Context, userID uuid.UUID) (Breakdown, error)
	PayFromWallet(ctx context.Context, input PayInput) (*models.Order, error)
	ReleaseEscrow(ctx context.Context, input ReleaseEscrowInput) (*models.Booking, error)
}

// PayInput settles the member's own order from their wallet balance.
type PayInput struct {
	UserID  uuid.UUID
	OrderID uuid.UUID
}

// ReleaseEscrowInput releases a finished booking's escrow to the rental owner.
type ReleaseEscrowInput struct {
	BookingID uuid.UUID
	ActorID   uuid.UUID
	ActorRole enums.UserRole
}

// ServiceParams wires the wallet service dependencies.
type ServiceParams struct {
	WalletRepo         Repository
	BookingRepo        bookings.Repository
	Rentals            rentalFinder
	Orders             orderSettler
	Notifier           notifier
	Outbox             outboxEmitter
	TransactionRunner  txRunner
	PlatformFeePercent int64
}

type service struct {
	repo           Repository
	bookingRepo    bookings.Repository
	rentals        rentalFinder
	orders         orderSettler
	notifier       notifier
	outbox         outboxEmitter
	txRunner       txRunner
	platformFeePct int64
}

// NewService validates dependencies and returns a wallet service.
func NewService(params ServiceParams) (Service, error) {
	if params.WalletRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "wallet repo required")
	}
	if params.BookingRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "booking repo required")
	}
	if params.Rentals == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "rental finder required")
	}
	if params.Orders == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "order settler required")
	}
	if params.TransactionRunner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	if params.PlatformFeePercent < 0 || params.PlatformFeePercent > 100 {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "platform fee percent must be between 0 and 100")
	}
	return &service{
		repo:           params.WalletRepo,
		bookingRepo:    params.BookingRepo,
		rentals:        params.Rentals,
		orders:         params.Orders,
		notifier:       params.Notifier,
		outbox:         params.Outbox,
		txRunner:       params.TransactionRunner,
		platformFeePct: params.PlatformFeePercent,
	}, nil
}

// Balance recomputes the derived wallet position from the ledger tables.
func (s *service) Balance(ctx context.Context, userID uuid.UUID) (Breakdown, error) {
	if userID == uuid.Nil {
		return Breakdown{}, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	breakdown, err := s.repo.BalanceBreakdown(ctx, userID)
	if err != nil {
		return Breakdown{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "compute balance")
	}
	return breakdown, nil
}

// PayFromWallet debits the member's wallet and settles the order in one
// transaction. The advisory lock on the user serializes concurrent debits so
// the balance read cannot race another spend; on insufficient funds nothing
// is written — no usage row, no order change.
func (s *service) PayFromWallet(ctx context.Context, input PayInput) (*models.Order, error) {
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}

	order, err := s.orders.Get(ctx, input.OrderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != input.UserID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only the order owner may pay for it")
	}
	if !order.Status.Payable() {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order is not payable")
	}
	amount := order.AmountKobo

	err = s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		if err := repo.LockUser(ctx, input.UserID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock user")
		}

		breakdown, err := repo.BalanceBreakdown(ctx, input.UserID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "compute balance")
		}
		if breakdown.TotalKobo < amount {
			return pkgerrors.New(pkgerrors.CodeInsufficientFunds, "insufficient wallet balance")
		}

		usage := &models.WalletUsage{
			UserID:     input.UserID,
			OrderID:    order.ID,
			AmountKobo: amount,
		}
		if err := repo.InsertWalletUsage(ctx, usage); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert wallet usage")
		}

		if err := s.orders.Settle(ctx, tx, orders.SettleInput{
			OrderID:        order.ID,
			AmountPaidKobo: amount,
			Method:         enums.PaymentMethodWallet,
			ActorID:        input.UserID,
		}); err != nil {
			return err
		}

		return s.emit(ctx, tx, enums.EventWalletDebited, order.ID, input.UserID, map[string]any{
			"user_id":     input.UserID,
			"order_id":    order.ID,
			"amount_kobo": amount,
		})
	})
	if err != nil {
		return nil, err
	}

	return s.orders.Get(ctx, input.OrderID)
}

// ReleaseEscrow completes an accepted booking whose window has passed and
// credits the rental owner with the booking total minus the platform fee.
// Admin only. The rental_earnings unique index on booking_id backstops the
// already-released check.
func (s *service) ReleaseEscrow(ctx context.Context, input ReleaseEscrowInput) (*models.Booking, error) {
	if input.ActorRole != enums.UserRoleAdmin {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only admins may release escrow")
	}
	if input.BookingID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "booking id is required")
	}

	var booking *models.Booking
	err := s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		bookingRepo := s.bookingRepo.WithTx(tx)
		walletRepo := s.repo.WithTx(tx)

		loaded, err := bookingRepo.FindByID(ctx, input.BookingID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "booking not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load booking")
		}
		booking = loaded

		if booking.Status != enums.BookingStatusAccepted {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "only accepted bookings can release escrow")
		}
		if booking.EndTime.After(time.Now().UTC()) {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "booking window has not ended")
		}
		if booking.EscrowReleased {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "escrow already released")
		}
		released, err := walletRepo.HasRentalEarningForBooking(ctx, booking.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check earning")
		}
		if released {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "escrow already released")
		}

		rental, err := s.rentals.FindByID(ctx, booking.RentalID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load rental")
		}

		booking.Status = enums.BookingStatusCompleted
		booking.EscrowReleased = true
		if err := bookingRepo.Update(ctx, booking); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update booking")
		}

		fee := booking.TotalKobo * s.platformFeePct / 100
		payout := booking.TotalKobo - fee
		bookingID := booking.ID
		earning := &models.RentalEarning{
			OwnerID:    rental.OwnerID,
			BookingID:  &bookingID,
			AmountKobo: payout,
		}
		if err := walletRepo.InsertRentalEarning(ctx, earning); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert rental earning")
		}

		if s.notifier != nil {
			if err := s.notifier.Notify(ctx, tx, notifications.NotifyInput{
				UserID:  rental.OwnerID,
				Type:    enums.NotificationTypeWalletAlert,
				Title:   "Escrow released",
				Message: fmt.Sprintf("Your wallet was credited for the %s booking", rental.DeviceName),
			}); err != nil {
				return err
			}
		}

		return s.emit(ctx, tx, enums.EventEscrowReleased, booking.ID, input.ActorID, map[string]any{
			"booking_id":  booking.ID,
			"owner_id":    rental.OwnerID,
			"payout_kobo": payout,
			"fee_kobo":    fee,
		})
	})
	if err != nil {
		return nil, err
	}
	return booking, nil
}

func (s *service) emit(ctx context.Context, tx *gorm.DB, eventType enums.OutboxEventType, aggregateID, actorID uuid.UUID, data map[string]any) error {
	if s.outbox == nil {
		return nil
	}
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregateWallet,
		AggregateID:   aggregateID,
		Actor:         &outbox.ActorRef{UserID: actorID},
		Data:          data,
		Version:       1,
	})
}
