package models

import (
	"time"

	"github.com/google/uuid"
)

// The three wallet ledger tables are append-only: rows are inserted and never
// updated or deleted. A user's balance is always recomputed as
// sum(referral earnings) + sum(rental earnings) - sum(wallet usages).
// Corrections are modeled as offsetting entries.

// ReferralEarning credits a referrer when a user they referred settles an
// order.
type ReferralEarning struct {
	ID             uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ReferrerID     uuid.UUID  `gorm:"column:referrer_id;type:uuid;not null;index"`
	ReferredUserID uuid.UUID  `gorm:"column:referred_user_id;type:uuid;not null"`
	OrderID        *uuid.UUID `gorm:"column:order_id;type:uuid"`
	AmountKobo     int64      `gorm:"column:amount_kobo;not null"`
	CreatedAt      time.Time  `gorm:"column:created_at;autoCreateTime"`
}

// RentalEarning credits a rental owner when escrow for a completed booking is
// released.
type RentalEarning struct {
	ID         uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OwnerID    uuid.UUID  `gorm:"column:owner_id;type:uuid;not null;index"`
	BookingID  *uuid.UUID `gorm:"column:booking_id;type:uuid"`
	AmountKobo int64      `gorm:"column:amount_kobo;not null"`
	CreatedAt  time.Time  `gorm:"column:created_at;autoCreateTime"`
}

// WalletUsage debits a user's wallet when an order is paid from it.
type WalletUsage struct {
	ID         uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID     uuid.UUID `gorm:"column:user_id;type:uuid;not null;index"`
	OrderID    uuid.UUID `gorm:"column:order_id;type:uuid;not null"`
	AmountKobo int64     `gorm:"column:amount_kobo;not null"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
}
