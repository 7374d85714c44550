package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/studiohubhq/studiohub-backend/api/responses"
	"github.com/studiohubhq/studiohub-backend/api/validators"
	"github.com/studiohubhq/studiohub-backend/internal/orders"
	"github.com/studiohubhq/studiohub-backend/pkg/enums"
	pkgerrors "github.com/studiohubhq/studiohub-backend/pkg/errors"
	"github.com/studiohubhq/studiohub-backend/pkg/logger"
)

type createOfferBody struct {
	UserID       string     `json:"user_id" validate:"required,uuid"`
	Title        string     `json:"title" validate:"required,min=2,max=200"`
	ServiceType  string     `json:"service_type" validate:"required"`
	ProductID    *string    `json:"product_id,omitempty"`
	AmountKobo   int64      `json:"amount_kobo" validate:"required,gt=0"`
	DurationDays *int       `json:"duration_days,omitempty"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
}

// CreateOffer writes an admin-issued offer for a member. Admin only (enforced
// by the route group).
func CreateOffer(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		caller, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body createOfferBody
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		userID, err := parseUUIDField(body.UserID, "user_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		serviceType, err := enums.ParseServiceType(body.ServiceType)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid service type"))
			return
		}
		var productID *uuid.UUID
		if body.ProductID != nil {
			parsed, err := parseUUIDField(*body.ProductID, "product_id")
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			productID = &parsed
		}

		order, err := svc.CreateOffer(r.Context(), orders.CreateOfferInput{
			UserID:       userID,
			Title:        body.Title,
			ServiceType:  serviceType,
			ProductID:    productID,
			AmountKobo:   body.AmountKobo,
			DurationDays: body.DurationDays,
			ExpiresAt:    body.ExpiresAt,
			ActorID:      caller,
			ActorRole:    callerRole(r),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, order)
	}
}

// AcceptOffer moves the caller's pending offer to accepted.
func AcceptOffer(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		id, err := uuidParam(r, "orderID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		caller, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.AcceptOffer(r.Context(), id, caller)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

type payCardBody struct {
	SourceID string `json:"source_id" validate:"required"`
}

// PayOrderByCard starts a gateway card charge for the caller's order. The
// order settles when the payment webhook reports the charge completed.
func PayOrderByCard(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		id, err := uuidParam(r, "orderID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		caller, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body payCardBody
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		payment, err := svc.StartCardPayment(r.Context(), orders.StartCardPaymentInput{
			OrderID:  id,
			ActorID:  caller,
			SourceID: body.SourceID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusAccepted, payment)
	}
}

// GetOrder returns a single order. Non-admin callers may only read their own.
func GetOrder(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		id, err := uuidParam(r, "orderID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		caller, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if order.UserID != caller && callerRole(r) != enums.UserRoleAdmin {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "order not found"))
			return
		}
		responses.WriteSuccess(w, order)
	}
}

// ListOrders returns the caller's orders, newest first.
func ListOrders(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		caller, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		limit, err := limitFromQuery(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items, next, err := svc.ListForUser(r.Context(), caller, orders.ListParams{
			Limit:  limit,
			Cursor: cursorFromQuery(r),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"items":       items,
			"next_cursor": next,
		})
	}
}
