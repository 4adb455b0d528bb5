package controllers

import (
	"net/http"

	"github.com/fundi-app/fundi-backend/api/responses"
	"github.com/fundi-app/fundi-backend/api/validators"
	"github.com/fundi-app/fundi-backend/internal/jobproofs"
	"github.com/fundi-app/fundi-backend/pkg/logger"
)

type submitProofRequest struct {
	Photos []string `json:"photos" validate:"omitempty,max=10,dive,url"`
	Notes  *string  `json:"notes" validate:"omitempty,max=2000"`
}

// SubmitJobProof records the provider's completion evidence and starts the
// auto-confirm clock.
func SubmitJobProof(svc jobproofs.Service, logg *logger.Logger) http.HandlerFunc {
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

		var req submitProofRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		proof, err := svc.Submit(r.Context(), jobproofs.Actor{UserID: userID, Role: role}, jobproofs.SubmitInput{
			BookingID: bookingID,
			Photos:    req.Photos,
			Notes:     req.Notes,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, proof)
	}
}

// ConfirmJobProof is the client accepting the work; this releases escrow.
func ConfirmJobProof(svc jobproofs.Service, logg *logger.Logger) http.HandlerFunc {
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

		if err := svc.Confirm(r.Context(), jobproofs.Actor{UserID: userID, Role: role}, bookingID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, nil)
	}
}

// GetJobProof returns the proof attached to a booking.
func GetJobProof(svc jobproofs.Service, logg *logger.Logger) http.HandlerFunc {
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

		proof, err := svc.Get(r.Context(), jobproofs.Actor{UserID: userID, Role: role}, bookingID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, proof)
	}
}
