package jobproofs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/fundi-app/fundi-backend/internal/bookings"
	"github.com/fundi-app/fundi-backend/internal/notifications"
	"github.com/fundi-app/fundi-backend/internal/settlement"
	"github.com/fundi-app/fundi-backend/pkg/config"
	"github.com/fundi-app/fundi-backend/pkg/db"
	"github.com/fundi-app/fundi-backend/pkg/db/models"
	"github.com/fundi-app/fundi-backend/pkg/enums"
	pkgerrors "github.com/fundi-app/fundi-backend/pkg/errors"
	"github.com/fundi-app/fundi-backend/pkg/logger"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type notifier interface {
	EmitTx(ctx context.Context, tx *gorm.DB, input notifications.EmitInput) error
}

// Actor identifies the authenticated caller.
type Actor struct {
	UserID uuid.UUID
	Role   enums.ActorRole
}

// SubmitInput is the provider's completion evidence.
type SubmitInput struct {
	BookingID uuid.UUID
	Photos    []string
	Notes     *string
}

// Service defines job proof submission and confirmation. Confirmation is
// what releases escrow: by the client directly, or by the auto-confirm
// sweep once the grace period runs out.
type Service interface {
	Submit(ctx context.Context, actor Actor, input SubmitInput) (*models.JobProof, error)
	Confirm(ctx context.Context, actor Actor, bookingID uuid.UUID) error
	// AutoConfirm confirms on the client's behalf after the grace period.
	// Callers are expected to have found the proof via the due query.
	AutoConfirm(ctx context.Context, bookingID uuid.UUID) error
	Get(ctx context.Context, actor Actor, bookingID uuid.UUID) (*models.JobProof, error)
}

type service struct {
	repo       Repository
	bookings   bookings.Repository
	settlement settlement.Service
	tx         txRunner
	notifier   notifier
	escrow     config.EscrowConfig
	logger     *logger.Logger
}

// ServiceParams bundles the job proof service dependencies.
type ServiceParams struct {
	Repo       Repository
	Bookings   bookings.Repository
	Settlement settlement.Service
	Tx         txRunner
	Notifier   notifier
	Escrow     config.EscrowConfig
	Logger     *logger.Logger
}

// NewService builds a job proof service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("job proofs repository required")
	}
	if params.Bookings == nil {
		return nil, fmt.Errorf("bookings repository required")
	}
	if params.Settlement == nil {
		return nil, fmt.Errorf("settlement service required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Notifier == nil {
		return nil, fmt.Errorf("notifier required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:       params.Repo,
		bookings:   params.Bookings,
		settlement: params.Settlement,
		tx:         params.Tx,
		notifier:   params.Notifier,
		escrow:     params.Escrow,
		logger:     params.Logger,
	}, nil
}

func (s *service) Submit(ctx context.Context, actor Actor, input SubmitInput) (*models.JobProof, error) {
	if input.BookingID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "booking id required")
	}
	if actor.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}

	now := time.Now().UTC()
	proof := &models.JobProof{
		ID:            uuid.New(),
		BookingID:     input.BookingID,
		ProviderID:    actor.UserID,
		Photos:        input.Photos,
		Notes:         input.Notes,
		CompletedAt:   now,
		AutoConfirmAt: now.Add(s.escrow.AutoConfirmGrace),
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		booking, err := s.bookings.WithTx(tx).FindByIDForUpdate(ctx, input.BookingID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "booking not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load booking")
		}
		if booking.ProviderID != actor.UserID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "booking does not belong to provider")
		}
		if err := bookings.EnsureTransition(booking.Status, enums.BookingStatusAwaitingConfirmation); err != nil {
			return err
		}

		if _, err := s.repo.WithTx(tx).Create(ctx, proof); err != nil {
			if db.IsUniqueViolation(err, "ux_job_proofs_booking_id") {
				return pkgerrors.New(pkgerrors.CodeConflict, "job proof already submitted")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create job proof")
		}
		if err := s.bookings.WithTx(tx).UpdateStatus(ctx, booking.ID, enums.BookingStatusAwaitingConfirmation); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update booking status")
		}

		return s.notifier.EmitTx(ctx, tx, notifications.EmitInput{
			UserID: booking.ClientID,
			Type:   enums.NotificationJobProofSubmitted,
			Title:  "Job marked complete",
			Body:   "The provider has submitted completion proof. Confirm to release payment.",
			Metadata: map[string]any{
				"booking_id": booking.ID.String(),
			},
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info(s.logger.WithBookingID(ctx, proof.BookingID.String()), "job proof submitted")
	return proof, nil
}

func (s *service) Confirm(ctx context.Context, actor Actor, bookingID uuid.UUID) error {
	if actor.UserID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	return s.confirm(ctx, bookingID, &actor)
}

func (s *service) AutoConfirm(ctx context.Context, bookingID uuid.UUID) error {
	return s.confirm(ctx, bookingID, nil)
}

// confirm flips the proof exactly once and settles inside the same
// transaction. A nil actor means the auto-confirm sweep is calling.
func (s *service) confirm(ctx context.Context, bookingID uuid.UUID, actor *Actor) error {
	if bookingID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "booking id required")
	}

	var payout *models.Payout
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		proof, err := s.repo.WithTx(tx).FindByBookingIDForUpdate(ctx, bookingID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "job proof not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load job proof")
		}
		if proof.ClientConfirmed {
			return nil
		}

		booking, err := s.bookings.WithTx(tx).FindByIDForUpdate(ctx, bookingID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load booking")
		}
		if actor != nil && booking.ClientID != actor.UserID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "only the client may confirm")
		}
		if booking.Status == enums.BookingStatusDisputed {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "booking is disputed")
		}

		if err := s.repo.WithTx(tx).MarkConfirmed(ctx, proof.ID, time.Now().UTC()); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark proof confirmed")
		}

		// Cash bookings settle outside escrow; nothing to release.
		if booking.PaymentMethod == enums.PaymentMethodCash {
			return nil
		}

		payout, err = s.settlement.SettleWithin(ctx, tx, bookingID)
		return err
	})
	if err != nil {
		return err
	}

	if payout != nil {
		s.settlement.DispatchTransferAsync(ctx, payout.ID)
	}
	return nil
}

func (s *service) Get(ctx context.Context, actor Actor, bookingID uuid.UUID) (*models.JobProof, error) {
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
	if actor.Role != enums.ActorRoleAdmin &&
		booking.ClientID != actor.UserID && booking.ProviderID != actor.UserID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "booking does not belong to caller")
	}

	proof, err := s.repo.FindByBookingID(ctx, bookingID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "job proof not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load job proof")
	}
	return proof, nil
}
