package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/studiohubhq/studiohub-backend/pkg/enums"
)

// Booking reserves a rental for the interval [StartTime, EndTime). The
// bookings table carries an exclusion constraint so no two blocking bookings
// for the same rental can hold overlapping intervals regardless of what the
// application checked first.
type Booking struct {
	ID              uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	RentalID        uuid.UUID           `gorm:"column:rental_id;type:uuid;not null;index"`
	RenterID        uuid.UUID           `gorm:"column:renter_id;type:uuid;not null;index"`
	StartTime       time.Time           `gorm:"column:start_time;not null"`
	EndTime         time.Time           `gorm:"column:end_time;not null"`
	TotalKobo       int64               `gorm:"column:total_kobo;not null"`
	Status          enums.BookingStatus `gorm:"column:status;type:booking_status;not null;default:'pending'"`
	EscrowReleased  bool                `gorm:"column:escrow_released;not null;default:false"`
	ComplaintReason *string             `gorm:"column:complaint_reason;type:text"`
	ComplaintAt     *time.Time          `gorm:"column:complaint_at"`
	DisputeReason   *string             `gorm:"column:dispute_reason;type:text"`
	DisputeAt       *time.Time          `gorm:"column:dispute_at"`
	CreatedAt       time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
