package controllers

import (
	"net/http"

	"github.com/studiohubhq/studiohub-backend/api/responses"
	"github.com/studiohubhq/studiohub-backend/api/validators"
	"github.com/studiohubhq/studiohub-backend/internal/rentals"
	"github.com/studiohubhq/studiohub-backend/pkg/db/models"
	pkgerrors "github.com/studiohubhq/studiohub-backend/pkg/errors"
	"github.com/studiohubhq/studiohub-backend/pkg/logger"
)

type createRentalBody struct {
	DeviceName     string  `json:"device_name" validate:"required,min=2,max=120"`
	Description    *string `json:"description,omitempty"`
	HourlyRateKobo int64   `json:"hourly_rate_kobo" validate:"required,gt=0"`
}

type decideRentalBody struct {
	Approve bool `json:"approve"`
}

// CreateRental lists a new device for the calling owner. The listing stays
// pending until an admin approves it.
func CreateRental(svc rentals.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "rentals service unavailable"))
			return
		}

		caller, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body createRentalBody
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		rental, err := svc.Create(r.Context(), rentals.CreateRentalInput{
			OwnerID:        caller,
			DeviceName:     body.DeviceName,
			Description:    body.Description,
			HourlyRateKobo: body.HourlyRateKobo,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, rental)
	}
}

// GetRental returns a single rental by id.
func GetRental(svc rentals.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "rentals service unavailable"))
			return
		}

		id, err := uuidParam(r, "rentalID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		rental, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, rental)
	}
}

// ListRentals returns approved rentals, or the caller's own listings when
// mine=true.
func ListRentals(svc rentals.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "rentals service unavailable"))
			return
		}

		limit, err := limitFromQuery(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params := rentals.ListParams{Limit: limit, Cursor: cursorFromQuery(r)}

		var (
			items []models.Rental
			next  string
		)
		if r.URL.Query().Get("mine") == "true" {
			caller, err := callerID(r)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			items, next, err = svc.ListOwned(r.Context(), caller, params)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		} else {
			items, next, err = svc.ListApproved(r.Context(), params)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}

		responses.WriteSuccess(w, map[string]any{
			"items":       items,
			"next_cursor": next,
		})
	}
}

// DecideRental approves or rejects a pending listing. Admin only (enforced by
// the route group).
func DecideRental(svc rentals.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "rentals service unavailable"))
			return
		}

		id, err := uuidParam(r, "rentalID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body decideRentalBody
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		rental, err := svc.Decide(r.Context(), id, body.Approve)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, rental)
	}
}

// DeleteRental soft-deletes the caller's listing.
func DeleteRental(svc rentals.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "rentals service unavailable"))
			return
		}

		id, err := uuidParam(r, "rentalID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		caller, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Delete(r.Context(), id, caller, callerRole(r)); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, nil)
	}
}

// RestoreRental undoes a soft delete on the caller's listing.
func RestoreRental(svc rentals.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "rentals service unavailable"))
			return
		}

		id, err := uuidParam(r, "rentalID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		caller, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Restore(r.Context(), id, caller, callerRole(r)); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, nil)
	}
}
