package bookings

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dbpkg "github.com/studiohubhq/studiohub-backend/pkg/db"
	"github.com/studiohubhq/studiohub-backend/pkg/db/models"
	"github.com/studiohubhq/studiohub-backend/pkg/enums"
	pkgerrors "github.com/studiohubhq/studiohub-backend/pkg/errors"
	"github.com/studiohubhq/studiohub-backend/pkg/outbox"
	"github.com/studiohubhq/studiohub-backend/pkg/pagination"
)

// Window is the closed booking interval [Start, End].
type Window struct {
	Start time.Time
	End   time.Time
}

type rentalQuoter interface {
	Quote(rental *models.Rental, start, end time.Time) (int64, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service defines the booking lifecycle operations.
type Service interface {
	Create(ctx context.Context, input CreateBookingInput) (*models.Booking, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Booking, error)
	ListForRenter(ctx context.Context, renterID uuid.UUID, params ListParams) ([]models.Booking, string, error)
	Decide(ctx context.Context, input DecideBookingInput) (*models.Booking, error)
	Cancel(ctx context.Context, bookingID, callerID uuid.UUID) (*models.Booking, error)
	FileComplaint(ctx context.Context, bookingID, callerID uuid.UUID, reason string) error
	FileDispute(ctx context.Context, bookingID, callerID uuid.UUID, reason string) error
}

// CreateBookingInput carries the renter's reservation request.
type CreateBookingInput struct {
	RentalID uuid.UUID
	RenterID uuid.UUID
	Start    time.Time
	End      time.Time
}

// DecideBookingInput captures the owner/admin decision on a pending booking.
type DecideBookingInput struct {
	BookingID uuid.UUID
	ActorID   uuid.UUID
	ActorRole enums.UserRole
	Accept    bool
}

// ListParams carries cursor pagination inputs.
type ListParams struct {
	Limit  int
	Cursor string
}

// ServiceParams wires the booking service dependencies.
type ServiceParams struct {
	BookingRepo       Repository
	RentalFinder      rentalFinder
	Quoter            rentalQuoter
	Outbox            outboxEmitter
	TransactionRunner txRunner
}

type rentalFinder interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Rental, error)
}

type service struct {
	repo     Repository
	rentals  rentalFinder
	quoter   rentalQuoter
	outbox   outboxEmitter
	txRunner txRunner
}

// NewService validates dependencies and returns a booking service.
func NewService(params ServiceParams) (Service, error) {
	if params.BookingRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "booking repo required")
	}
	if params.RentalFinder == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "rental finder required")
	}
	if params.Quoter == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "quoter required")
	}
	if params.TransactionRunner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	return &service{
		repo:     params.BookingRepo,
		rentals:  params.RentalFinder,
		quoter:   params.Quoter,
		outbox:   params.Outbox,
		txRunner: params.TransactionRunner,
	}, nil
}

// Create validates the interval, re-checks availability under an advisory
// lock, and inserts the pending booking — all in one transaction. A concurrent
// commit that slips past the check trips the bookings exclusion constraint and
// surfaces as the same Conflict.
func (s *service) Create(ctx context.Context, input CreateBookingInput) (*models.Booking, error) {
	if input.RentalID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "rental id is required")
	}
	if input.RenterID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "renter id is required")
	}
	if input.Start.IsZero() || input.End.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "start and end times are required")
	}
	if !input.End.After(input.Start) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "end time must be after start time")
	}

	var booking *models.Booking
	err := s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		if err := repo.LockRental(ctx, input.RentalID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock rental")
		}

		rental, err := s.rentals.FindByID(ctx, input.RentalID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "rental not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load rental")
		}
		if rental.Status != enums.RentalStatusApproved {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "rental is not available for booking")
		}

		window := Window{Start: input.Start, End: input.End}
		conflict, err := repo.HasConflict(ctx, input.RentalID, window)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check availability")
		}
		if conflict {
			return pkgerrors.New(pkgerrors.CodeConflict, "rental is already booked for the requested window")
		}

		total, err := s.quoter.Quote(rental, input.Start, input.End)
		if err != nil {
			return err
		}

		booking = &models.Booking{
			RentalID:  input.RentalID,
			RenterID:  input.RenterID,
			StartTime: input.Start,
			EndTime:   input.End,
			TotalKobo: total,
			Status:    enums.BookingStatusPending,
		}
		if err := repo.Create(ctx, booking); err != nil {
			if dbpkg.IsExclusionViolation(err) {
				return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "rental is already booked for the requested window")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create booking")
		}

		return s.emit(ctx, tx, enums.EventBookingCreated, booking, input.RenterID)
	})
	if err != nil {
		return nil, err
	}
	return booking, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Booking, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "booking id is required")
	}
	booking, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "booking not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load booking")
	}
	return booking, nil
}

func (s *service) ListForRenter(ctx context.Context, renterID uuid.UUID, params ListParams) ([]models.Booking, string, error) {
	if renterID == uuid.Nil {
		return nil, "", pkgerrors.New(pkgerrors.CodeValidation, "renter id is required")
	}
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	bookings, next, err := s.repo.ListByRenter(ctx, renterID, params.Limit, cursor)
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list bookings")
	}
	encoded := ""
	if next != nil {
		encoded = pagination.EncodeCursor(*next)
	}
	return bookings, encoded, nil
}

// Decide lets the rental owner (or an admin) accept or reject a pending
// booking.
func (s *service) Decide(ctx context.Context, input DecideBookingInput) (*models.Booking, error) {
	booking, err := s.Get(ctx, input.BookingID)
	if err != nil {
		return nil, err
	}

	rental, err := s.rentals.FindByID(ctx, booking.RentalID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load rental")
	}
	if rental.OwnerID != input.ActorID && input.ActorRole != enums.UserRoleAdmin {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only the rental owner may decide a booking")
	}
	if booking.Status != enums.BookingStatusPending {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "booking already decided")
	}

	if input.Accept {
		booking.Status = enums.BookingStatusAccepted
	} else {
		booking.Status = enums.BookingStatusRejected
	}

	err = s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Update(ctx, booking); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update booking")
		}
		return s.emit(ctx, tx, enums.EventBookingDecided, booking, input.ActorID)
	})
	if err != nil {
		return nil, err
	}
	return booking, nil
}

// Cancel releases a pending booking at the renter's request.
func (s *service) Cancel(ctx context.Context, bookingID, callerID uuid.UUID) (*models.Booking, error) {
	booking, err := s.Get(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.RenterID != callerID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only the renter may cancel a booking")
	}
	if booking.Status != enums.BookingStatusPending {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "only pending bookings can be cancelled")
	}

	booking.Status = enums.BookingStatusCancelled
	err = s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Update(ctx, booking); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update booking")
		}
		return s.emit(ctx, tx, enums.EventBookingCancelled, booking, callerID)
	})
	if err != nil {
		return nil, err
	}
	return booking, nil
}

// FileComplaint records the renter's complaint. Booking status is untouched.
func (s *service) FileComplaint(ctx context.Context, bookingID, callerID uuid.UUID, reason string) error {
	return s.record(ctx, bookingID, callerID, reason, false)
}

// FileDispute records the renter's dispute. Booking status is untouched.
func (s *service) FileDispute(ctx context.Context, bookingID, callerID uuid.UUID, reason string) error {
	return s.record(ctx, bookingID, callerID, reason, true)
}

func (s *service) record(ctx context.Context, bookingID, callerID uuid.UUID, reason string, dispute bool) error {
	trimmed := strings.TrimSpace(reason)
	if trimmed == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "reason is required")
	}

	booking, err := s.Get(ctx, bookingID)
	if err != nil {
		return err
	}
	if booking.RenterID != callerID {
		return pkgerrors.New(pkgerrors.CodeForbidden, "only the renter may file against a booking")
	}

	now := time.Now().UTC()
	if dispute {
		booking.DisputeReason = &trimmed
		booking.DisputeAt = &now
	} else {
		booking.ComplaintReason = &trimmed
		booking.ComplaintAt = &now
	}

	return s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Update(ctx, booking); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update booking")
		}
		if dispute {
			return s.emit(ctx, tx, enums.EventBookingDisputed, booking, callerID)
		}
		return nil
	})
}

func (s *service) emit(ctx context.Context, tx *gorm.DB, eventType enums.OutboxEventType, booking *models.Booking, actorID uuid.UUID) error {
	if s.outbox == nil {
		return nil
	}
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregateBooking,
		AggregateID:   booking.ID,
		Actor:         &outbox.ActorRef{UserID: actorID},
		Data: map[string]any{
			"booking_id": booking.ID,
			"rental_id":  booking.RentalID,
			"renter_id":  booking.RenterID,
			"status":     booking.Status,
			"start_time": booking.StartTime,
			"end_time":   booking.EndTime,
			"total_kobo": booking.TotalKobo,
		},
		Version: 1,
	})
}
