package rentals

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/studiohubhq/studiohub-backend/pkg/db/models"
	"github.com/studiohubhq/studiohub-backend/pkg/enums"
	pkgerrors "github.com/studiohubhq/studiohub-backend/pkg/errors"
	"github.com/studiohubhq/studiohub-backend/pkg/pagination"
)

// Service defines rental lifecycle operations.
type Service interface {
	Create(ctx context.Context, input CreateRentalInput) (*models.Rental, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Rental, error)
	ListOwned(ctx context.Context, ownerID uuid.UUID, params ListParams) ([]models.Rental, string, error)
	ListApproved(ctx context.Context, params ListParams) ([]models.Rental, string, error)
	Decide(ctx context.Context, id uuid.UUID, approve bool) (*models.Rental, error)
	Delete(ctx context.Context, id, actorID uuid.UUID, actorRole enums.UserRole) error
	Restore(ctx context.Context, id, actorID uuid.UUID, actorRole enums.UserRole) error
	Quote(rental *models.Rental, start, end time.Time) (int64, error)
}

type service struct {
	repo Repository
}

// CreateRentalInput carries the owner-submitted listing fields.
type CreateRentalInput struct {
	OwnerID        uuid.UUID
	DeviceName     string
	Description    *string
	HourlyRateKobo int64
}

// ListParams carries cursor pagination inputs.
type ListParams struct {
	Limit  int
	Cursor string
}

// NewService wires a rentals service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "rentals repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Create(ctx context.Context, input CreateRentalInput) (*models.Rental, error) {
	if input.OwnerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "owner id is required")
	}
	name := strings.TrimSpace(input.DeviceName)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "device name is required")
	}
	if input.HourlyRateKobo <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "hourly rate must be positive")
	}

	rental := &models.Rental{
		OwnerID:        input.OwnerID,
		DeviceName:     name,
		Description:    input.Description,
		HourlyRateKobo: input.HourlyRateKobo,
		Status:         enums.RentalStatusPending,
	}
	if err := s.repo.Create(ctx, rental); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create rental")
	}
	return rental, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Rental, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "rental id is required")
	}
	rental, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "rental not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load rental")
	}
	return rental, nil
}

func (s *service) ListOwned(ctx context.Context, ownerID uuid.UUID, params ListParams) ([]models.Rental, string, error) {
	if ownerID == uuid.Nil {
		return nil, "", pkgerrors.New(pkgerrors.CodeValidation, "owner id is required")
	}
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rentals, next, err := s.repo.List(ctx, listRentalsParams{
		OwnerID: &ownerID,
		Limit:   params.Limit,
		Cursor:  cursor,
	})
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list rentals")
	}
	return rentals, encodeCursor(next), nil
}

func (s *service) ListApproved(ctx context.Context, params ListParams) ([]models.Rental, string, error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rentals, next, err := s.repo.List(ctx, listRentalsParams{
		ApprovedOnly: true,
		Limit:        params.Limit,
		Cursor:       cursor,
	})
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list rentals")
	}
	return rentals, encodeCursor(next), nil
}

func (s *service) Decide(ctx context.Context, id uuid.UUID, approve bool) (*models.Rental, error) {
	rental, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if rental.Status != enums.RentalStatusPending {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "rental already decided")
	}

	if approve {
		rental.Status = enums.RentalStatusApproved
	} else {
		rental.Status = enums.RentalStatusRejected
	}
	if err := s.repo.Update(ctx, rental); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update rental")
	}
	return rental, nil
}

func (s *service) Delete(ctx context.Context, id, actorID uuid.UUID, actorRole enums.UserRole) error {
	rental, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if rental.OwnerID != actorID && actorRole != enums.UserRoleAdmin {
		return pkgerrors.New(pkgerrors.CodeForbidden, "only the owner may delete a rental")
	}
	if err := s.repo.SoftDelete(ctx, id); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete rental")
	}
	return nil
}

func (s *service) Restore(ctx context.Context, id, actorID uuid.UUID, actorRole enums.UserRole) error {
	if id == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "rental id is required")
	}
	rental, err := s.repo.FindByIDUnscoped(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "rental not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load rental")
	}
	if rental.OwnerID != actorID && actorRole != enums.UserRoleAdmin {
		return pkgerrors.New(pkgerrors.CodeForbidden, "only the owner may restore a rental")
	}
	if !rental.DeletedAt.Valid {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "rental is not deleted")
	}
	if err := s.repo.Restore(ctx, id); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "restore rental")
	}
	return nil
}

// Quote prices the interval [start, end] against the rental's hourly rate.
// Partial hours are billed pro rata and the result is rounded to the nearest
// kobo.
func (s *service) Quote(rental *models.Rental, start, end time.Time) (int64, error) {
	if rental == nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "rental is required")
	}
	if !end.After(start) {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "end time must be after start time")
	}

	minutes := decimal.NewFromFloat(end.Sub(start).Minutes())
	hours := minutes.Div(decimal.NewFromInt(60))
	total := decimal.NewFromInt(rental.HourlyRateKobo).Mul(hours).Round(0)
	return total.IntPart(), nil
}

func encodeCursor(cursor *pagination.Cursor) string {
	if cursor == nil {
		return ""
	}
	return pagination.EncodeCursor(*cursor)
}
