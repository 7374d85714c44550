package enums

import "fmt"

// BookingStatus maps to the booking_status enum in Postgres.
type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "pending"
	BookingStatusAccepted  BookingStatus = "accepted"
	BookingStatusRejected  BookingStatus = "rejected"
	BookingStatusCancelled BookingStatus = "cancelled"
	BookingStatusCompleted BookingStatus = "completed"
)

var validBookingStatuses = []BookingStatus{
	BookingStatusPending,
	BookingStatusAccepted,
	BookingStatusRejected,
	BookingStatusCancelled,
	BookingStatusCompleted,
}

// NonBlockingBookingStatuses are the statuses whose bookings never block a
// rental's availability.
var NonBlockingBookingStatuses = []BookingStatus{
	BookingStatusCancelled,
	BookingStatusRejected,
}

// Blocks reports whether a booking in this status holds the rental's interval.
func (b BookingStatus) Blocks() bool {
	for _, candidate := range NonBlockingBookingStatuses {
		if candidate == b {
			return false
		}
	}
	return true
}

// IsValid reports whether the value matches the canonical booking_status enum.
func (b BookingStatus) IsValid() bool {
	for _, candidate := range validBookingStatuses {
		if candidate == b {
			return true
		}
	}
	return false
}

// ParseBookingStatus converts raw input into BookingStatus.
func ParseBookingStatus(value string) (BookingStatus, error) {
	for _, candidate := range validBookingStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid booking status %q", value)
}
