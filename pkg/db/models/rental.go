package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/studiohubhq/studiohub-backend/pkg/enums"
)

// Rental is an owned, bookable piece of studio equipment. Rates are stored in
// kobo (integer minor currency units). Soft deletion keeps the row so past
// bookings and earnings stay resolvable.
type Rental struct {
	ID             uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OwnerID        uuid.UUID          `gorm:"column:owner_id;type:uuid;not null;index"`
	DeviceName     string             `gorm:"column:device_name;type:text;not null"`
	Description    *string            `gorm:"column:description;type:text"`
	HourlyRateKobo int64              `gorm:"column:hourly_rate_kobo;not null"`
	Status         enums.RentalStatus `gorm:"column:status;type:rental_status;not null;default:'pending'"`
	CreatedAt      time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time          `gorm:"column:updated_at;autoUpdateTime"`
	DeletedAt      gorm.DeletedAt     `gorm:"column:deleted_at;index"`
}
