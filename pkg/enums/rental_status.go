package enums

import "fmt"

// RentalStatus maps to the rental_status enum in Postgres.
type RentalStatus string

const (
	RentalStatusPending  RentalStatus = "pending"
	RentalStatusApproved RentalStatus = "approved"
	RentalStatusRejected RentalStatus = "rejected"
)

var validRentalStatuses = []RentalStatus{
	RentalStatusPending,
	RentalStatusApproved,
	RentalStatusRejected,
}

// IsValid reports whether the value matches the canonical rental_status enum.
func (r RentalStatus) IsValid() bool {
	for _, candidate := range validRentalStatuses {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseRentalStatus converts raw input into RentalStatus.
func ParseRentalStatus(value string) (RentalStatus, error) {
	for _, candidate := range validRentalStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid rental status %q", value)
}
