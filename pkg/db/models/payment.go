package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/studiohubhq/studiohub-backend/pkg/enums"
)

// Payment records funds received against an order. Rows are append-only;
// cumulative paid amounts are derived by summing them.
type Payment struct {
	ID         uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID    uuid.UUID           `gorm:"column:order_id;type:uuid;not null;index"`
	UserID     uuid.UUID           `gorm:"column:user_id;type:uuid;not null;index"`
	AmountKobo int64               `gorm:"column:amount_kobo;not null"`
	Method     enums.PaymentMethod `gorm:"column:method;type:payment_method;not null"`
	Reference  *string             `gorm:"column:reference;type:text"`
	CreatedAt  time.Time           `gorm:"column:created_at;autoCreateTime"`
}
