package bookings

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/fundi-app/fundi-backend/internal/notifications"
	"github.com/fundi-app/fundi-backend/internal/payments"
	"github.com/fundi-app/fundi-backend/pkg/config"
	"github.com/fundi-app/fundi-backend/pkg/db/models"
	"github.com/fundi-app/fundi-backend/pkg/enums"
	pkgerrors "github.com/fundi-app/fundi-backend/pkg/errors"
	"github.com/fundi-app/fundi-backend/pkg/logger"
	"github.com/fundi-app/fundi-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type notifier interface {
	EmitTx(ctx context.Context, tx *gorm.DB, input notifications.EmitInput) error
}

// refundInitiator asks the processor to return an escrowed charge. The
// refund.processed webhook carries the outcome; initiating is all that
// happens here.
type refundInitiator interface {
	CreateRefund(ctx context.Context, transactionRef string) error
}

// Actor identifies the authenticated caller.
type Actor struct {
	UserID uuid.UUID
	Role   enums.ActorRole
}

// CreateInput captures a client's booking request.
type CreateInput struct {
	ProviderID       uuid.UUID
	ServiceID        uuid.UUID
	TotalAmountCents int64
	PaymentMethod    enums.PaymentMethod
	ScheduledDate    time.Time
}

// ListParams configures a booking listing for one caller.
type ListParams struct {
	Status string
	Limit  int
	Cursor string
}

// ListResult wraps returned bookings and the cursor for the next page.
type ListResult struct {
	Items  []models.Booking `json:"items"`
	Cursor string           `json:"cursor"`
}

// Service defines booking workflow operations.
type Service interface {
	Create(ctx context.Context, actor Actor, input CreateInput) (*models.Booking, error)
	Get(ctx context.Context, actor Actor, bookingID uuid.UUID) (*models.Booking, error)
	List(ctx context.Context, actor Actor, params ListParams) (*ListResult, error)
	Confirm(ctx context.Context, actor Actor, bookingID uuid.UUID) error
	Start(ctx context.Context, actor Actor, bookingID uuid.UUID) error
	Cancel(ctx context.Context, actor Actor, bookingID uuid.UUID) error
	ConfirmCash(ctx context.Context, actor Actor, bookingID uuid.UUID) error
	Dispute(ctx context.Context, actor Actor, bookingID uuid.UUID) error
}

type service struct {
	repo     Repository
	payments payments.Repository
	tx       txRunner
	notifier notifier
	refunds  refundInitiator
	escrow   config.EscrowConfig
	logger   *logger.Logger
}

// ServiceParams bundles the booking service dependencies.
type ServiceParams struct {
	Repo     Repository
	Payments payments.Repository
	Tx       txRunner
	Notifier notifier
	Refunds  refundInitiator
	Escrow   config.EscrowConfig
	Logger   *logger.Logger
}

// NewService builds a booking service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("bookings repository required")
	}
	if params.Payments == nil {
		return nil, fmt.Errorf("payments repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Notifier == nil {
		return nil, fmt.Errorf("notifier required")
	}
	if params.Refunds == nil {
		return nil, fmt.Errorf("refund initiator required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:     params.Repo,
		payments: params.Payments,
		tx:       params.Tx,
		notifier: params.Notifier,
		refunds:  params.Refunds,
		escrow:   params.Escrow,
		logger:   params.Logger,
	}, nil
}

func (s *service) Create(ctx context.Context, actor Actor, input CreateInput) (*models.Booking, error) {
	if actor.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if actor.Role != enums.ActorRoleClient {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only clients create bookings")
	}
	if input.ProviderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "provider id required")
	}
	if input.ProviderID == actor.UserID {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cannot book yourself")
	}
	if input.ServiceID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "service id required")
	}
	if !input.PaymentMethod.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment method required")
	}
	if input.ScheduledDate.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "scheduled date required")
	}

	split, err := payments.ComputeFeeSplit(input.TotalAmountCents, s.escrow.FeePercent())
	if err != nil {
		return nil, err
	}

	booking := &models.Booking{
		ID:               uuid.New(),
		ClientID:         actor.UserID,
		ProviderID:       input.ProviderID,
		ServiceID:        input.ServiceID,
		Status:           enums.BookingStatusPending,
		TotalAmountCents: input.TotalAmountCents,
		PlatformFeeCents: split.FeeCents,
		PaymentMethod:    input.PaymentMethod,
		ScheduledDate:    input.ScheduledDate.UTC(),
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if _, err := s.repo.WithTx(tx).Create(ctx, booking); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create booking")
		}
		payment := &models.Payment{
			ID:                uuid.New(),
			BookingID:         booking.ID,
			AmountCents:       input.TotalAmountCents,
			EscrowAmountCents: split.EscrowCents,
			PlatformFeeCents:  split.FeeCents,
			Currency:          s.escrow.Currency,
			Status:            enums.PaymentStatusPending,
		}
		if _, err := s.payments.WithTx(tx).Create(ctx, payment); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create payment")
		}
		booking.Payment = payment
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info(s.logger.WithBookingID(ctx, booking.ID.String()), "booking created")
	return booking, nil
}

func (s *service) Get(ctx context.Context, actor Actor, bookingID uuid.UUID) (*models.Booking, error) {
	booking, err := s.loadAuthorized(ctx, actor, bookingID)
	if err != nil {
		return nil, err
	}
	return booking, nil
}

func (s *service) List(ctx context.Context, actor Actor, params ListParams) (*ListResult, error) {
	if actor.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}

	filter := ListFilter{Limit: params.Limit}
	switch actor.Role {
	case enums.ActorRoleClient:
		filter.ClientID = &actor.UserID
	case enums.ActorRoleProvider:
		filter.ProviderID = &actor.UserID
	case enums.ActorRoleAdmin:
	default:
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "unknown role")
	}

	if params.Status != "" {
		status, err := enums.ParseBookingStatus(params.Status)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status filter")
		}
		filter.Status = &status
	}
	if params.Cursor != "" {
		cursor, err := pagination.ParseCursor(params.Cursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		filter.Cursor = cursor
	}

	rows, next, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list bookings")
	}

	cursor := ""
	if next != nil {
		cursor = pagination.EncodeCursor(*next)
	}
	return &ListResult{Items: rows, Cursor: cursor}, nil
}

// Confirm is the provider accepting the booking request.
func (s *service) Confirm(ctx context.Context, actor Actor, bookingID uuid.UUID) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		booking, err := findForUpdate(ctx, repo, bookingID)
		if err != nil {
			return err
		}
		if booking.ProviderID != actor.UserID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "booking does not belong to provider")
		}
		if err := EnsureTransition(booking.Status, enums.BookingStatusConfirmed); err != nil {
			return err
		}
		if err := repo.UpdateStatus(ctx, booking.ID, enums.BookingStatusConfirmed); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update booking status")
		}

		// A card payment may already sit in escrow when the provider gets
		// around to confirming; catch the booking up in the same commit.
		payment, err := s.payments.WithTx(tx).FindByBookingID(ctx, booking.ID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
		}
		if payment != nil && payment.Status == enums.PaymentStatusEscrow {
			if err := repo.UpdateStatus(ctx, booking.ID, enums.BookingStatusPendingExecution); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "advance booking to pending execution")
			}
		}
		return nil
	})
}

// Start is the provider beginning work on the scheduled day.
func (s *service) Start(ctx context.Context, actor Actor, bookingID uuid.UUID) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		booking, err := findForUpdate(ctx, repo, bookingID)
		if err != nil {
			return err
		}
		if booking.ProviderID != actor.UserID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "booking does not belong to provider")
		}
		if err := EnsureTransition(booking.Status, enums.BookingStatusInProgress); err != nil {
			return err
		}
		if err := repo.UpdateStatus(ctx, booking.ID, enums.BookingStatusInProgress); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update booking status")
		}
		return nil
	})
}

// Cancel tears down a booking before work starts. Escrowed card payments
// get a refund initiated at the processor; the payment itself moves to
// refunded only when the refund.processed webhook lands.
func (s *service) Cancel(ctx context.Context, actor Actor, bookingID uuid.UUID) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		booking, err := findForUpdate(ctx, repo, bookingID)
		if err != nil {
			return err
		}
		if booking.ClientID != actor.UserID && booking.ProviderID != actor.UserID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "booking does not belong to caller")
		}
		switch booking.Status {
		case enums.BookingStatusPending, enums.BookingStatusConfirmed, enums.BookingStatusPendingExecution:
		default:
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("booking cannot be cancelled from %s", booking.Status))
		}

		payment, err := s.payments.WithTx(tx).FindByBookingIDForUpdate(ctx, booking.ID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
		}
		if payment != nil && payment.Status == enums.PaymentStatusEscrow {
			if payment.ExternalRef == nil {
				return pkgerrors.New(pkgerrors.CodeInternal, "escrowed payment missing external reference")
			}
			if err := s.refunds.CreateRefund(ctx, *payment.ExternalRef); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "initiate refund")
			}
		}

		if err := repo.MarkCancelled(ctx, booking.ID, time.Now().UTC()); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel booking")
		}

		counterparty := booking.ProviderID
		if actor.UserID == booking.ProviderID {
			counterparty = booking.ClientID
		}
		return s.notifier.EmitTx(ctx, tx, notifications.EmitInput{
			UserID: counterparty,
			Type:   enums.NotificationBookingCancelled,
			Title:  "Booking cancelled",
			Body:   "The booking has been cancelled.",
			Metadata: map[string]any{
				"booking_id": booking.ID.String(),
			},
		})
	})
}

// ConfirmCash records in-person payment for a cash booking and closes it
// out. No escrow or payout follows; the platform fee is tracked for billing
// outside this flow.
func (s *service) ConfirmCash(ctx context.Context, actor Actor, bookingID uuid.UUID) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		booking, err := findForUpdate(ctx, repo, bookingID)
		if err != nil {
			return err
		}
		if booking.ProviderID != actor.UserID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "booking does not belong to provider")
		}
		if booking.PaymentMethod != enums.PaymentMethodCash {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "booking is not a cash booking")
		}

		payment, err := s.payments.WithTx(tx).FindByBookingIDForUpdate(ctx, booking.ID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
		}
		// Replayed confirmation is a no-op, not an error.
		if payment.Status == enums.PaymentStatusCashReceived {
			return nil
		}
		if err := EnsureTransition(booking.Status, enums.BookingStatusCompleted); err != nil {
			return err
		}
		if err := payments.EnsureTransition(payment.Status, enums.PaymentStatusCashReceived); err != nil {
			return err
		}

		if err := s.payments.WithTx(tx).MarkCashReceived(ctx, payment.ID, time.Now().UTC()); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark cash received")
		}
		if err := repo.UpdateStatus(ctx, booking.ID, enums.BookingStatusCompleted); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "complete booking")
		}
		return nil
	})
}

// Dispute freezes settlement while the parties disagree about the work.
func (s *service) Dispute(ctx context.Context, actor Actor, bookingID uuid.UUID) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		booking, err := findForUpdate(ctx, repo, bookingID)
		if err != nil {
			return err
		}
		if booking.ClientID != actor.UserID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "only the client may dispute")
		}
		if err := EnsureTransition(booking.Status, enums.BookingStatusDisputed); err != nil {
			return err
		}
		if err := repo.MarkDisputed(ctx, booking.ID, time.Now().UTC()); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "dispute booking")
		}
		return s.notifier.EmitTx(ctx, tx, notifications.EmitInput{
			UserID: booking.ProviderID,
			Type:   enums.NotificationBookingDisputed,
			Title:  "Booking disputed",
			Body:   "The client has disputed the completed work. Settlement is on hold.",
			Metadata: map[string]any{
				"booking_id": booking.ID.String(),
			},
		})
	})
}

func (s *service) loadAuthorized(ctx context.Context, actor Actor, bookingID uuid.UUID) (*models.Booking, error) {
	if bookingID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "booking id required")
	}
	if actor.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	booking, err := s.repo.FindByID(ctx, bookingID)
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
	return booking, nil
}

func findForUpdate(ctx context.Context, repo Repository, bookingID uuid.UUID) (*models.Booking, error) {
	if bookingID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "booking id required")
	}
	booking, err := repo.FindByIDForUpdate(ctx, bookingID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "booking not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load booking")
	}
	return booking, nil
}
