// Package payloads defines the typed payload schemas carried inside outbox
// event envelopes. The publisher decodes each row against these before
// dispatching so malformed rows dead-letter instead of reaching subscribers.
package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/studiohubhq/studiohub-backend/pkg/enums"
)

// BookingEvent is the snapshot published for booking lifecycle changes.
type BookingEvent struct {
	BookingID uuid.UUID           `json:"booking_id"`
	RentalID  uuid.UUID           `json:"rental_id"`
	RenterID  uuid.UUID           `json:"renter_id"`
	Status    enums.BookingStatus `json:"status"`
	StartTime time.Time           `json:"start_time"`
	EndTime   time.Time           `json:"end_time"`
	TotalKobo int64               `json:"total_kobo"`
}

type (
	BookingCreatedEvent   = BookingEvent
	BookingDecidedEvent   = BookingEvent
	BookingCancelledEvent = BookingEvent
	BookingDisputedEvent  = BookingEvent
)

// OrderEvent is the snapshot published for order lifecycle changes.
type OrderEvent struct {
	OrderID     uuid.UUID         `json:"order_id"`
	UserID      uuid.UUID         `json:"user_id"`
	Title       string            `json:"title"`
	ServiceType enums.ServiceType `json:"service_type"`
	AmountKobo  int64             `json:"amount_kobo"`
	Status      enums.OrderStatus `json:"status"`
}

type (
	OrderPaidEvent     = OrderEvent
	OrderExpiredEvent  = OrderEvent
	OrderAcceptedEvent = OrderEvent
)

// WalletDebitedEvent records a wallet payment against an order.
type WalletDebitedEvent struct {
	UserID     uuid.UUID `json:"user_id"`
	OrderID    uuid.UUID `json:"order_id"`
	AmountKobo int64     `json:"amount_kobo"`
}

// EscrowReleasedEvent records an owner payout after a completed booking.
type EscrowReleasedEvent struct {
	BookingID  uuid.UUID `json:"booking_id"`
	OwnerID    uuid.UUID `json:"owner_id"`
	PayoutKobo int64     `json:"payout_kobo"`
	FeeKobo    int64     `json:"fee_kobo"`
}

// ReferralEarnedEvent records a referral credit on a settled order.
type ReferralEarnedEvent struct {
	ReferrerID     uuid.UUID `json:"referrer_id"`
	ReferredUserID uuid.UUID `json:"referred_user_id"`
	OrderID        uuid.UUID `json:"order_id"`
	AmountKobo     int64     `json:"amount_kobo"`
}

// NotificationRequestedEvent asks downstream channels to deliver an in-app
// notification that was already persisted.
type NotificationRequestedEvent struct {
	NotificationID uuid.UUID              `json:"notification_id"`
	UserID         uuid.UUID              `json:"user_id"`
	Type           enums.NotificationType `json:"type"`
	Title          string                 `json:"title"`
	Message        string                 `json:"message"`
	Link           *string                `json:"link"`
}
