package settlement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/fundi-app/fundi-backend/internal/bankdetails"
	"github.com/fundi-app/fundi-backend/internal/bookings"
	"github.com/fundi-app/fundi-backend/internal/notifications"
	"github.com/fundi-app/fundi-backend/internal/payments"
	"github.com/fundi-app/fundi-backend/pkg/config"
	"github.com/fundi-app/fundi-backend/pkg/db"
	"github.com/fundi-app/fundi-backend/pkg/db/models"
	"github.com/fundi-app/fundi-backend/pkg/enums"
	pkgerrors "github.com/fundi-app/fundi-backend/pkg/errors"
	"github.com/fundi-app/fundi-backend/pkg/logger"
	"github.com/fundi-app/fundi-backend/pkg/paystack"
)

const dispatchTimeout = 30 * time.Second

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type notifier interface {
	EmitTx(ctx context.Context, tx *gorm.DB, input notifications.EmitInput) error
}

// processorClient is the transfer surface of the payment processor.
type processorClient interface {
	CreateTransferRecipient(ctx context.Context, req paystack.TransferRecipientRequest) (string, error)
	InitiateTransfer(ctx context.Context, req paystack.TransferRequest) (string, error)
	CreateRefund(ctx context.Context, transactionRef string) error
}

// DisputeResolution is the admin's verdict on a disputed booking.
type DisputeResolution string

const (
	DisputeResolutionSettle DisputeResolution = "settle"
	DisputeResolutionRefund DisputeResolution = "refund"
)

// Service owns escrow release: moving a confirmed booking's payment into
// processing and getting the provider's money out the door.
type Service interface {
	// SettleWithin runs the settlement state change inside the caller's
	// transaction. It returns the payout to dispatch after commit. A payout
	// that already exists for the payment is returned as-is; settlement is
	// idempotent at the database level.
	SettleWithin(ctx context.Context, tx *gorm.DB, bookingID uuid.UUID) (*models.Payout, error)
	// DispatchTransfer initiates the processor transfer for a pending payout.
	// Failures leave the payout pending with the error recorded; the transfer
	// reference never changes, so re-dispatching cannot double-pay.
	DispatchTransfer(ctx context.Context, payoutID uuid.UUID) error
	// DispatchTransferAsync runs DispatchTransfer on a detached context so
	// callers can return as soon as their transaction commits.
	DispatchTransferAsync(ctx context.Context, payoutID uuid.UUID)
	RetryPayout(ctx context.Context, payoutID uuid.UUID) error
	ResolveDispute(ctx context.Context, bookingID uuid.UUID, resolution DisputeResolution) error
}

type service struct {
	repo        Repository
	bookings    bookings.Repository
	payments    payments.Repository
	bankDetails bankdetails.Repository
	tx          txRunner
	notifier    notifier
	processor   processorClient
	escrow      config.EscrowConfig
	logger      *logger.Logger
}

// ServiceParams bundles the settlement service dependencies.
type ServiceParams struct {
	Repo        Repository
	Bookings    bookings.Repository
	Payments    payments.Repository
	BankDetails bankdetails.Repository
	Tx          txRunner
	Notifier    notifier
	Processor   processorClient
	Escrow      config.EscrowConfig
	Logger      *logger.Logger
}

// NewService builds a settlement service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("payouts repository required")
	}
	if params.Bookings == nil {
		return nil, fmt.Errorf("bookings repository required")
	}
	if params.Payments == nil {
		return nil, fmt.Errorf("payments repository required")
	}
	if params.BankDetails == nil {
		return nil, fmt.Errorf("bank details repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Notifier == nil {
		return nil, fmt.Errorf("notifier required")
	}
	if params.Processor == nil {
		return nil, fmt.Errorf("processor client required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:        params.Repo,
		bookings:    params.Bookings,
		payments:    params.Payments,
		bankDetails: params.BankDetails,
		tx:          params.Tx,
		notifier:    params.Notifier,
		processor:   params.Processor,
		escrow:      params.Escrow,
		logger:      params.Logger,
	}, nil
}

func newPayoutRef() string {
	return "PYT-" + uuid.NewString()
}

func (s *service) SettleWithin(ctx context.Context, tx *gorm.DB, bookingID uuid.UUID) (*models.Payout, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "settlement requires a transaction")
	}

	booking, err := s.bookings.WithTx(tx).FindByIDForUpdate(ctx, bookingID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "booking not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load booking")
	}

	payment, err := s.payments.WithTx(tx).FindByBookingIDForUpdate(ctx, bookingID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
	}

	// Already settled: hand back the existing payout so callers can
	// re-dispatch if the first dispatch never happened.
	if payment.Status == enums.PaymentStatusProcessingRelease || payment.Status == enums.PaymentStatusReleased {
		existing, err := s.repo.WithTx(tx).FindByPaymentID(ctx, payment.ID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load existing payout")
		}
		return existing, nil
	}

	if err := bookings.EnsureTransition(booking.Status, enums.BookingStatusPaymentProcessing); err != nil {
		return nil, err
	}
	if err := payments.EnsureTransition(payment.Status, enums.PaymentStatusProcessingRelease); err != nil {
		return nil, err
	}

	if err := s.payments.WithTx(tx).UpdateStatus(ctx, payment.ID, enums.PaymentStatusProcessingRelease); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update payment status")
	}
	if err := s.bookings.WithTx(tx).UpdateStatus(ctx, booking.ID, enums.BookingStatusPaymentProcessing); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update booking status")
	}

	payout := &models.Payout{
		ID:          uuid.New(),
		PaymentID:   payment.ID,
		ProviderID:  booking.ProviderID,
		AmountCents: payment.EscrowAmountCents,
		ExternalRef: newPayoutRef(),
		Status:      enums.PayoutStatusPending,
	}
	if _, err := s.repo.WithTx(tx).Create(ctx, payout); err != nil {
		// The unique index on payment_id is the last line of defense against
		// double settlement. Losing the race means the work is already done.
		if db.IsUniqueViolation(err, "ux_payouts_payment_id") {
			existing, findErr := s.repo.WithTx(tx).FindByPaymentID(ctx, payment.ID)
			if findErr != nil {
				return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, findErr, "load existing payout")
			}
			return existing, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create payout")
	}

	return payout, nil
}

func (s *service) DispatchTransfer(ctx context.Context, payoutID uuid.UUID) error {
	if payoutID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "payout id required")
	}

	payout, err := s.repo.FindByID(ctx, payoutID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "payout not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payout")
	}
	if payout.Status != enums.PayoutStatusPending {
		return pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("payout is %s, not pending", payout.Status))
	}

	ctx = s.logger.WithField(ctx, "payout_id", payout.ID.String())

	recipientCode, err := s.ensureRecipient(ctx, payout.ProviderID)
	if err != nil {
		s.recordDispatchFailure(ctx, payout.ID, err)
		return err
	}

	transferCode, err := s.processor.InitiateTransfer(ctx, paystack.TransferRequest{
		AmountCents: payout.AmountCents,
		Recipient:   recipientCode,
		Reference:   payout.ExternalRef,
		Reason:      "Escrow release",
		Currency:    s.escrow.Currency,
	})
	if err != nil {
		s.recordDispatchFailure(ctx, payout.ID, err)
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "initiate transfer")
	}

	if err := s.repo.RecordDispatch(ctx, payout.ID, transferCode, recipientCode); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record transfer dispatch")
	}

	s.logger.Info(ctx, "payout transfer dispatched")
	return nil
}

func (s *service) DispatchTransferAsync(ctx context.Context, payoutID uuid.UUID) {
	go func() {
		detached, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
		defer cancel()
		if err := s.DispatchTransfer(detached, payoutID); err != nil {
			s.logger.Error(detached, "payout dispatch failed", err)
		}
	}()
}

// RetryPayout re-issues the transfer for a stuck or failed payout. A failed
// payout gets a fresh reference because the processor will not accept the
// old one again; a pending payout keeps its reference so a transfer that
// actually went through is not duplicated.
func (s *service) RetryPayout(ctx context.Context, payoutID uuid.UUID) error {
	if payoutID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "payout id required")
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		payout, err := s.repo.WithTx(tx).FindByIDForUpdate(ctx, payoutID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "payout not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payout")
		}
		switch payout.Status {
		case enums.PayoutStatusCompleted:
			return pkgerrors.New(pkgerrors.CodeStateConflict, "payout already completed")
		case enums.PayoutStatusFailed:
			if err := s.repo.WithTx(tx).ResetForRetry(ctx, payout.ID, newPayoutRef()); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reset payout for retry")
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	return s.DispatchTransfer(ctx, payoutID)
}

func (s *service) ResolveDispute(ctx context.Context, bookingID uuid.UUID, resolution DisputeResolution) error {
	if bookingID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "booking id required")
	}

	switch resolution {
	case DisputeResolutionSettle:
		var payout *models.Payout
		err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			booking, err := s.bookings.WithTx(tx).FindByIDForUpdate(ctx, bookingID)
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return pkgerrors.New(pkgerrors.CodeNotFound, "booking not found")
				}
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load booking")
			}
			if booking.Status != enums.BookingStatusDisputed {
				return pkgerrors.New(pkgerrors.CodeStateConflict, "booking is not disputed")
			}
			payout, err = s.SettleWithin(ctx, tx, bookingID)
			return err
		})
		if err != nil {
			return err
		}
		if payout != nil {
			s.DispatchTransferAsync(ctx, payout.ID)
		}
		return nil

	case DisputeResolutionRefund:
		return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			booking, err := s.bookings.WithTx(tx).FindByIDForUpdate(ctx, bookingID)
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return pkgerrors.New(pkgerrors.CodeNotFound, "booking not found")
				}
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load booking")
			}
			if booking.Status != enums.BookingStatusDisputed {
				return pkgerrors.New(pkgerrors.CodeStateConflict, "booking is not disputed")
			}

			payment, err := s.payments.WithTx(tx).FindByBookingIDForUpdate(ctx, bookingID)
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
				}
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
			}
			if payment.Status != enums.PaymentStatusEscrow {
				return pkgerrors.New(pkgerrors.CodeStateConflict, "payment is not held in escrow")
			}
			if payment.ExternalRef == nil {
				return pkgerrors.New(pkgerrors.CodeInternal, "escrowed payment missing external reference")
			}

			if err := s.processor.CreateRefund(ctx, *payment.ExternalRef); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "initiate refund")
			}
			if err := s.bookings.WithTx(tx).MarkCancelled(ctx, booking.ID, time.Now().UTC()); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel booking")
			}
			return s.notifier.EmitTx(ctx, tx, notifications.EmitInput{
				UserID: booking.ClientID,
				Type:   enums.NotificationBookingCancelled,
				Title:  "Dispute resolved",
				Body:   "The dispute was resolved in your favor. A refund has been initiated.",
				Metadata: map[string]any{
					"booking_id": booking.ID.String(),
				},
			})
		})

	default:
		return pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("unknown dispute resolution %q", resolution))
	}
}

// ensureRecipient returns the provider's transfer recipient code, creating
// and caching one at the processor when missing.
func (s *service) ensureRecipient(ctx context.Context, providerID uuid.UUID) (string, error) {
	details, err := s.bankDetails.FindByProviderID(ctx, providerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", pkgerrors.New(pkgerrors.CodeStateConflict, "provider has no bank details on file")
		}
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load bank details")
	}
	if details.RecipientCode != nil && *details.RecipientCode != "" {
		return *details.RecipientCode, nil
	}

	code, err := s.processor.CreateTransferRecipient(ctx, paystack.TransferRecipientRequest{
		Name:          details.AccountName,
		AccountNumber: details.AccountNumber,
		BankCode:      details.BankCode,
		Currency:      s.escrow.Currency,
	})
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create transfer recipient")
	}
	if err := s.bankDetails.CacheRecipientCode(ctx, details.ID, code); err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cache recipient code")
	}
	return code, nil
}

func (s *service) recordDispatchFailure(ctx context.Context, payoutID uuid.UUID, cause error) {
	if err := s.repo.RecordDispatchError(ctx, payoutID, cause.Error()); err != nil {
		s.logger.Error(ctx, "recording payout dispatch error failed", err)
	}
}
