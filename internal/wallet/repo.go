package wallet

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/studiohubhq/studiohub-backend/pkg/db/models"
)

// Breakdown is the derived wallet position for one user. All values are kobo.
type Breakdown struct {
	TotalKobo    int64 `json:"total_kobo"`
	ReferralKobo int64 `json:"referral_kobo"`
	RentalKobo   int64 `json:"rental_kobo"`
	UsedKobo     int64 `json:"used_kobo"`
}

// Repository reads and appends wallet ledger rows. The three ledger tables
// are append-only; no update or delete methods exist here on purpose.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	BalanceBreakdown(ctx context.Context, userID uuid.UUID) (Breakdown, error)
	InsertReferralEarning(ctx context.Context, earning *models.ReferralEarning) error
	InsertRentalEarning(ctx context.Context, earning *models.RentalEarning) error
	InsertWalletUsage(ctx context.Context, usage *models.WalletUsage) error
	HasRentalEarningForBooking(ctx context.Context, bookingID uuid.UUID) (bool, error)
	ListUsagesByOrder(ctx context.Context, orderID uuid.UUID) ([]models.WalletUsage, error)
	LockUser(ctx context.Context, userID uuid.UUID) error
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns a wallet ledger repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repositoryImpl{db: tx}
}

// BalanceBreakdown recomputes the derived balance from the three ledger
// sources. Users with no rows anywhere get an all-zero breakdown.
func (r *repositoryImpl) BalanceBreakdown(ctx context.Context, userID uuid.UUID) (Breakdown, error) {
	var breakdown Breakdown

	if err := r.db.WithContext(ctx).
		Model(&models.ReferralEarning{}).
		Where("referrer_id = ?", userID).
		Select("COALESCE(SUM(amount_kobo), 0)").
		Scan(&breakdown.ReferralKobo).Error; err != nil {
		return Breakdown{}, err
	}

	if err := r.db.WithContext(ctx).
		Model(&models.RentalEarning{}).
		Where("owner_id = ?", userID).
		Select("COALESCE(SUM(amount_kobo), 0)").
		Scan(&breakdown.RentalKobo).Error; err != nil {
		return Breakdown{}, err
	}

	if err := r.db.WithContext(ctx).
		Model(&models.WalletUsage{}).
		Where("user_id = ?", userID).
		Select("COALESCE(SUM(amount_kobo), 0)").
		Scan(&breakdown.UsedKobo).Error; err != nil {
		return Breakdown{}, err
	}

	breakdown.TotalKobo = breakdown.ReferralKobo + breakdown.RentalKobo - breakdown.UsedKobo
	return breakdown, nil
}

func (r *repositoryImpl) InsertReferralEarning(ctx context.Context, earning *models.ReferralEarning) error {
	return r.db.WithContext(ctx).Create(earning).Error
}

func (r *repositoryImpl) InsertRentalEarning(ctx context.Context, earning *models.RentalEarning) error {
	return r.db.WithContext(ctx).Create(earning).Error
}

func (r *repositoryImpl) InsertWalletUsage(ctx context.Context, usage *models.WalletUsage) error {
	return r.db.WithContext(ctx).Create(usage).Error
}

func (r *repositoryImpl) HasRentalEarningForBooking(ctx context.Context, bookingID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.RentalEarning{}).
		Where("booking_id = ?", bookingID).
		Count(&count).Error
	return count > 0, err
}

func (r *repositoryImpl) ListUsagesByOrder(ctx context.Context, orderID uuid.UUID) ([]models.WalletUsage, error) {
	var usages []models.WalletUsage
	if err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Find(&usages).Error; err != nil {
		return nil, err
	}
	return usages, nil
}

// LockUser takes a transaction-scoped advisory lock on the user so concurrent
// wallet debits serialize before the balance read. No-op outside Postgres
// (sqlite tests).
func (r *repositoryImpl) LockUser(ctx context.Context, userID uuid.UUID) error {
	if r.db.Dialector.Name() != "postgres" {
		return nil
	}
	return r.db.WithContext(ctx).
		Exec("SELECT pg_advisory_xact_lock(hashtext(?))", userID.String()).Error
}
