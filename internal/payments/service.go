package payments

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/fundi-app/fundi-backend/pkg/db/models"
	"github.com/fundi-app/fundi-backend/pkg/enums"
	pkgerrors "github.com/fundi-app/fundi-backend/pkg/errors"
)

// Actor identifies the authenticated caller for ownership checks.
type Actor struct {
	UserID uuid.UUID
	Role   enums.ActorRole
}

// CanAccessBooking reports whether the actor may read money records attached
// to the booking. Admins see everything.
func (a Actor) CanAccessBooking(booking *models.Booking) bool {
	if a.Role == enums.ActorRoleAdmin {
		return true
	}
	return booking.ClientID == a.UserID || booking.ProviderID == a.UserID
}

type bookingFinder interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Booking, error)
}

// Service exposes payment reads with per-actor visibility.
type Service interface {
	GetByBookingID(ctx context.Context, actor Actor, bookingID uuid.UUID) (*models.Payment, error)
}

type service struct {
	repo     Repository
	bookings bookingFinder
}

// ServiceParams bundles the service dependencies.
type ServiceParams struct {
	Repo     Repository
	Bookings bookingFinder
}

// NewService builds a payments service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("payments repository required")
	}
	if params.Bookings == nil {
		return nil, fmt.Errorf("booking finder required")
	}
	return &service{repo: params.Repo, bookings: params.Bookings}, nil
}

func (s *service) GetByBookingID(ctx context.Context, actor Actor, bookingID uuid.UUID) (*models.Payment, error) {
	if bookingID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "booking id required")
	}
	if actor.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}

	booking, err := s.bookings.FindByID(ctx, bookingID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "booking not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load booking")
	}
	if !actor.CanAccessBooking(booking) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "booking does not belong to caller")
	}

	payment, err := s.repo.FindByBookingID(ctx, bookingID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
	}
	return payment, nil
}
