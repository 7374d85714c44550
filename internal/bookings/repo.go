package bookings

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/studiohubhq/studiohub-backend/pkg/db/models"
	"github.com/studiohubhq/studiohub-backend/pkg/enums"
	"github.com/studiohubhq/studiohub-backend/pkg/pagination"
)

// Repository manages persistence for bookings.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, booking *models.Booking) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Booking, error)
	HasConflict(ctx context.Context, rentalID uuid.UUID, window Window) (bool, error)
	ListByRenter(ctx context.Context, renterID uuid.UUID, limit int, cursor *pagination.Cursor) ([]models.Booking, *pagination.Cursor, error)
	ListByRental(ctx context.Context, rentalID uuid.UUID, limit int, cursor *pagination.Cursor) ([]models.Booking, *pagination.Cursor, error)
	Update(ctx context.Context, booking *models.Booking) error
	LockRental(ctx context.Context, rentalID uuid.UUID) error
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns a bookings repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repositoryImpl{db: tx}
}

func (r *repositoryImpl) Create(ctx context.Context, booking *models.Booking) error {
	return r.db.WithContext(ctx).Create(booking).Error
}

func (r *repositoryImpl) FindByID(ctx context.Context, id uuid.UUID) (*models.Booking, error) {
	var booking models.Booking
	if err := r.db.WithContext(ctx).First(&booking, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &booking, nil
}

// HasConflict reports whether any blocking booking overlaps the closed
// interval [window.Start, window.End]. A booking that ends exactly when the
// candidate starts (or vice versa) counts as a conflict.
func (r *repositoryImpl) HasConflict(ctx context.Context, rentalID uuid.UUID, window Window) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Booking{}).
		Where("rental_id = ?", rentalID).
		Where("status NOT IN ?", []enums.BookingStatus{enums.BookingStatusCancelled, enums.BookingStatusRejected}).
		Where("start_time <= ? AND end_time >= ?", window.End, window.Start).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repositoryImpl) ListByRenter(ctx context.Context, renterID uuid.UUID, limit int, cursor *pagination.Cursor) ([]models.Booking, *pagination.Cursor, error) {
	return r.list(ctx, "renter_id = ?", renterID, limit, cursor)
}

func (r *repositoryImpl) ListByRental(ctx context.Context, rentalID uuid.UUID, limit int, cursor *pagination.Cursor) ([]models.Booking, *pagination.Cursor, error) {
	return r.list(ctx, "rental_id = ?", rentalID, limit, cursor)
}

func (r *repositoryImpl) list(ctx context.Context, cond string, arg any, limit int, cursor *pagination.Cursor) ([]models.Booking, *pagination.Cursor, error) {
	buffered := pagination.LimitWithBuffer(limit)
	normalized := pagination.NormalizeLimit(limit)

	query := r.db.WithContext(ctx).Model(&models.Booking{}).Where(cond, arg)
	if cursor != nil {
		query = query.Where("(created_at, id) < (?, ?)", cursor.CreatedAt, cursor.ID)
	}

	var bookings []models.Booking
	if err := query.Order("created_at DESC, id DESC").Limit(buffered).Find(&bookings).Error; err != nil {
		return nil, nil, err
	}

	if len(bookings) > normalized {
		bookings = bookings[:normalized]
		last := bookings[normalized-1]
		return bookings, &pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID}, nil
	}
	return bookings, nil, nil
}

func (r *repositoryImpl) Update(ctx context.Context, booking *models.Booking) error {
	return r.db.WithContext(ctx).Save(booking).Error
}

// LockRental takes a transaction-scoped advisory lock on the rental so
// concurrent booking attempts for the same rental serialize before the
// availability check. No-op outside Postgres (sqlite tests).
func (r *repositoryImpl) LockRental(ctx context.Context, rentalID uuid.UUID) error {
	if r.db.Dialector.Name() != "postgres" {
		return nil
	}
	return r.db.WithContext(ctx).
		Exec("SELECT pg_advisory_xact_lock(hashtext(?))", rentalID.String()).Error
}
