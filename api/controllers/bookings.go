package controllers

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/fundi-app/fundi-backend/api/responses"
	"github.com/fundi-app/fundi-backend/api/validators"
	"github.com/fundi-app/fundi-backend/internal/bookings"
	"github.com/fundi-app/fundi-backend/internal/payments"
	"github.com/fundi-app/fundi-backend/pkg/enums"
	pkgerrors "github.com/fundi-app/fundi-backend/pkg/errors"
	"github.com/fundi-app/fundi-backend/pkg/logger"
)

type createBookingRequest struct {
	ProviderID       string `json:"providerId" validate:"required,uuid4"`
	ServiceID        string `json:"serviceId" validate:"required,uuid4"`
	TotalAmountCents int64  `json:"totalAmountCents" validate:"required,gt=0"`
	PaymentMethod    string `json:"paymentMethod" validate:"required,oneof=card cash"`
	ScheduledDate    string `json:"scheduledDate" validate:"required"`
}

// CreateBooking opens a booking with its pending payment in one shot.
func CreateBooking(svc bookings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, role, err := actorFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req createBookingRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		providerID, err := uuid.Parse(req.ProviderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid provider id"))
			return
		}
		serviceID, err := uuid.Parse(req.ServiceID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid service id"))
			return
		}
		scheduled, err := time.Parse(time.RFC3339, req.ScheduledDate)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "scheduledDate must be RFC3339"))
			return
		}
		method, err := enums.ParsePaymentMethod(req.PaymentMethod)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment method"))
			return
		}

		booking, err := svc.Create(r.Context(), bookings.Actor{UserID: userID, Role: role}, bookings.CreateInput{
			ProviderID:       providerID,
			ServiceID:        serviceID,
			TotalAmountCents: req.TotalAmountCents,
			PaymentMethod:    method,
			ScheduledDate:    scheduled,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, booking)
	}
}

// ListBookings returns the caller's bookings, newest first.
func ListBookings(svc bookings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, role, err := actorFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		params := bookings.ListParams{
			Status: strings.TrimSpace(r.URL.Query().Get("status")),
			Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
		}
		if limitStr := strings.TrimSpace(r.URL.Query().Get("limit")); limitStr != "" {
			value, err := strconv.Atoi(limitStr)
			if err != nil || value <= 0 {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "limit must be a positive integer"))
				return
			}
			params.Limit = value
		}

		result, err := svc.List(r.Context(), bookings.Actor{UserID: userID, Role: role}, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// GetBooking returns one booking with its payment and proof preloaded.
func GetBooking(svc bookings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, role, err := actorFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		bookingID, err := bookingIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		booking, err := svc.Get(r.Context(), bookings.Actor{UserID: userID, Role: role}, bookingID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, booking)
	}
}

// ConfirmBooking is the provider accepting the job.
func ConfirmBooking(svc bookings.Service, logg *logger.Logger) http.HandlerFunc {
	return bookingAction(svc.Confirm, logg)
}

// StartBooking moves an accepted, funded booking into execution.
func StartBooking(svc bookings.Service, logg *logger.Logger) http.HandlerFunc {
	return bookingAction(svc.Start, logg)
}

// CancelBooking cancels and, when funds are escrowed, kicks off the refund.
func CancelBooking(svc bookings.Service, logg *logger.Logger) http.HandlerFunc {
	return bookingAction(svc.Cancel, logg)
}

// ConfirmCashPayment records an out-of-band cash settlement.
func ConfirmCashPayment(svc bookings.Service, logg *logger.Logger) http.HandlerFunc {
	return bookingAction(svc.ConfirmCash, logg)
}

// DisputeBooking freezes the booking pending an operator decision.
func DisputeBooking(svc bookings.Service, logg *logger.Logger) http.HandlerFunc {
	return bookingAction(svc.Dispute, logg)
}

// GetBookingPayment returns the payment attached to a booking.
func GetBookingPayment(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, role, err := actorFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		bookingID, err := bookingIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		payment, err := svc.GetByBookingID(r.Context(), payments.Actor{UserID: userID, Role: role}, bookingID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, payment)
	}
}

type bookingActionFunc func(ctx context.Context, actor bookings.Actor, bookingID uuid.UUID) error

func bookingAction(action bookingActionFunc, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, role, err := actorFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		bookingID, err := bookingIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := action(r.Context(), bookings.Actor{UserID: userID, Role: role}, bookingID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, nil)
	}
}

func bookingIDParam(r *http.Request) (uuid.UUID, error) {
	raw := chi.URLParam(r, "bookingId")
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid booking id")
	}
	return id, nil
}
