package rentals

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/studiohubhq/studiohub-backend/pkg/db/models"
	"github.com/studiohubhq/studiohub-backend/pkg/enums"
	"github.com/studiohubhq/studiohub-backend/pkg/pagination"
)

// Repository manages persistence for rentals.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, rental *models.Rental) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Rental, error)
	List(ctx context.Context, params listRentalsParams) ([]models.Rental, *pagination.Cursor, error)
	Update(ctx context.Context, rental *models.Rental) error
	SoftDelete(ctx context.Context, id uuid.UUID) error
	Restore(ctx context.Context, id uuid.UUID) error
	FindByIDUnscoped(ctx context.Context, id uuid.UUID) (*models.Rental, error)
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns a rentals repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

type listRentalsParams struct {
	OwnerID      *uuid.UUID
	ApprovedOnly bool
	Limit        int
	Cursor       *pagination.Cursor
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repositoryImpl{db: tx}
}

func (r *repositoryImpl) Create(ctx context.Context, rental *models.Rental) error {
	return r.db.WithContext(ctx).Create(rental).Error
}

func (r *repositoryImpl) FindByID(ctx context.Context, id uuid.UUID) (*models.Rental, error) {
	var rental models.Rental
	if err := r.db.WithContext(ctx).First(&rental, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &rental, nil
}

func (r *repositoryImpl) List(ctx context.Context, params listRentalsParams) ([]models.Rental, *pagination.Cursor, error) {
	limit := pagination.LimitWithBuffer(params.Limit)
	normalized := pagination.NormalizeLimit(params.Limit)

	query := r.db.WithContext(ctx).Model(&models.Rental{})
	if params.OwnerID != nil {
		query = query.Where("owner_id = ?", *params.OwnerID)
	}
	if params.ApprovedOnly {
		query = query.Where("status = ?", enums.RentalStatusApproved)
	}
	if params.Cursor != nil {
		query = query.Where("(created_at, id) < (?, ?)", params.Cursor.CreatedAt, params.Cursor.ID)
	}

	var rentals []models.Rental
	if err := query.Order("created_at DESC, id DESC").Limit(limit).Find(&rentals).Error; err != nil {
		return nil, nil, err
	}

	if len(rentals) > normalized {
		rentals = rentals[:normalized]
		last := rentals[normalized-1]
		return rentals, &pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID}, nil
	}
	return rentals, nil, nil
}

func (r *repositoryImpl) Update(ctx context.Context, rental *models.Rental) error {
	return r.db.WithContext(ctx).Save(rental).Error
}

func (r *repositoryImpl) SoftDelete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&models.Rental{}, "id = ?", id).Error
}

func (r *repositoryImpl) Restore(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).
		Unscoped().
		Model(&models.Rental{}).
		Where("id = ?", id).
		UpdateColumn("deleted_at", nil).Error
}

func (r *repositoryImpl) FindByIDUnscoped(ctx context.Context, id uuid.UUID) (*models.Rental, error) {
	var rental models.Rental
	if err := r.db.WithContext(ctx).Unscoped().First(&rental, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &rental, nil
}
