package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/studiohubhq/studiohub-backend/pkg/enums"
)

// Order is a payable unit of work: a course enrollment or a custom project
// offer. Amounts are kobo.
type Order struct {
	ID           uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID       uuid.UUID         `gorm:"column:user_id;type:uuid;not null;index"`
	Title        string            `gorm:"column:title;type:text;not null"`
	ServiceType  enums.ServiceType `gorm:"column:service_type;type:service_type;not null"`
	ProductID    *uuid.UUID        `gorm:"column:product_id;type:uuid"`
	AmountKobo   int64             `gorm:"column:amount_kobo;not null"`
	DurationDays *int              `gorm:"column:duration_days"`
	Status       enums.OrderStatus `gorm:"column:status;type:order_status;not null;default:'pending'"`
	ExpiresAt    *time.Time        `gorm:"column:expires_at"`
	PaidAt       *time.Time        `gorm:"column:paid_at"`
	CreatedAt    time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}
