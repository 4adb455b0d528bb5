package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/fundi-app/fundi-backend/api/responses"
	"github.com/fundi-app/fundi-backend/api/validators"
	"github.com/fundi-app/fundi-backend/internal/settlement"
	pkgerrors "github.com/fundi-app/fundi-backend/pkg/errors"
	"github.com/fundi-app/fundi-backend/pkg/logger"
)

// AdminRetryPayout re-dispatches a pending or failed payout.
func AdminRetryPayout(svc settlement.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payoutID, err := uuid.Parse(chi.URLParam(r, "payoutId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payout id"))
			return
		}

		if err := svc.RetryPayout(r.Context(), payoutID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, nil)
	}
}

type resolveDisputeRequest struct {
	Resolution string `json:"resolution" validate:"required,oneof=settle refund"`
}

// AdminResolveDispute settles or refunds a disputed booking.
func AdminResolveDispute(svc settlement.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		bookingID, err := bookingIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req resolveDisputeRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.ResolveDispute(r.Context(), bookingID, settlement.DisputeResolution(req.Resolution)); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, nil)
	}
}
