package reconciliation

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/fundi-app/fundi-backend/internal/bookings"
	"github.com/fundi-app/fundi-backend/internal/payments"
	"github.com/fundi-app/fundi-backend/pkg/db/models"
	"github.com/fundi-app/fundi-backend/pkg/enums"
	"github.com/fundi-app/fundi-backend/pkg/logger"
)

const defaultBatchSize = 200

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type proofFinder interface {
	FindDueForAutoConfirm(ctx context.Context, now time.Time, limit int) ([]models.JobProof, error)
}

type autoConfirmer interface {
	AutoConfirm(ctx context.Context, bookingID uuid.UUID) error
}

// SweepSummary counts what a reconciliation pass changed.
type SweepSummary struct {
	AutoConfirmed int
	Repaired      int
	Failed        int
}

// ServiceParams bundle the reconciliation dependencies.
type ServiceParams struct {
	Repo      Repository
	Bookings  bookings.Repository
	Payments  payments.Repository
	Proofs    proofFinder
	Confirmer autoConfirmer
	Tx        txRunner
	BatchSize int
	Logger    *logger.Logger
}

// Service is the periodic safety net: it confirms overdue job proofs on the
// client's behalf and repairs bookings that a lost webhook left behind their
// payment.
type Service struct {
	repo      Repository
	bookings  bookings.Repository
	payments  payments.Repository
	proofs    proofFinder
	confirmer autoConfirmer
	tx        txRunner
	batchSize int
	logger    *logger.Logger
	now       func() time.Time
}

// NewService builds a reconciliation service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("reconciliation repository required")
	}
	if params.Bookings == nil {
		return nil, fmt.Errorf("bookings repository required")
	}
	if params.Payments == nil {
		return nil, fmt.Errorf("payments repository required")
	}
	if params.Proofs == nil {
		return nil, fmt.Errorf("proof finder required")
	}
	if params.Confirmer == nil {
		return nil, fmt.Errorf("auto confirmer required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultBatchSize
	}
	return &Service{
		repo:      params.Repo,
		bookings:  params.Bookings,
		payments:  params.Payments,
		proofs:    params.Proofs,
		confirmer: params.Confirmer,
		tx:        params.Tx,
		batchSize: batch,
		logger:    params.Logger,
		now:       time.Now,
	}, nil
}

// Run executes one full reconciliation pass. A row that fails is logged and
// skipped so one bad booking cannot stall the whole sweep.
func (s *Service) Run(ctx context.Context) (SweepSummary, error) {
	var summary SweepSummary
	var errs []error

	if err := s.sweepAutoConfirm(ctx, &summary); err != nil {
		errs = append(errs, err)
	}
	if err := s.repairDivergences(ctx, &summary); err != nil {
		errs = append(errs, err)
	}

	s.logger.Info(s.logger.WithFields(ctx, map[string]any{
		"auto_confirmed": summary.AutoConfirmed,
		"repaired":       summary.Repaired,
		"failed":         summary.Failed,
	}), "reconciliation pass complete")
	return summary, multierr.Combine(errs...)
}

func (s *Service) sweepAutoConfirm(ctx context.Context, summary *SweepSummary) error {
	due, err := s.proofs.FindDueForAutoConfirm(ctx, s.now().UTC(), s.batchSize)
	if err != nil {
		return fmt.Errorf("query due job proofs: %w", err)
	}
	for _, proof := range due {
		if err := s.confirmer.AutoConfirm(ctx, proof.BookingID); err != nil {
			summary.Failed++
			s.logger.Error(s.logger.WithBookingID(ctx, proof.BookingID.String()), "auto confirm failed", err)
			continue
		}
		summary.AutoConfirmed++
	}
	return nil
}

func (s *Service) repairDivergences(ctx context.Context, summary *SweepSummary) error {
	divergent, err := s.repo.FindDivergent(ctx, s.batchSize)
	if err != nil {
		return fmt.Errorf("query divergent payments: %w", err)
	}
	for _, payment := range divergent {
		repaired, err := s.repairOne(ctx, payment.BookingID)
		if err != nil {
			summary.Failed++
			s.logger.Error(s.logger.WithBookingID(ctx, payment.BookingID.String()), "divergence repair failed", err)
			continue
		}
		if repaired {
			summary.Repaired++
		}
	}
	return nil
}

// repairOne re-reads both rows under lock and applies the booking-side fix.
// The payment is the source of truth: money state never moves here. Every
// applied repair is logged with the booking's before and after status.
func (s *Service) repairOne(ctx context.Context, bookingID uuid.UUID) (bool, error) {
	var (
		repaired      bool
		paymentStatus enums.PaymentStatus
		fromStatus    enums.BookingStatus
		toStatus      enums.BookingStatus
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		booking, err := s.bookings.WithTx(tx).FindByIDForUpdate(ctx, bookingID)
		if err != nil {
			return err
		}
		payment, err := s.payments.WithTx(tx).FindByBookingIDForUpdate(ctx, bookingID)
		if err != nil {
			return err
		}

		target, ok := repairTarget(payment.Status, booking.Status)
		if !ok {
			return nil
		}

		if target == enums.BookingStatusCancelled {
			if err := s.bookings.WithTx(tx).MarkCancelled(ctx, booking.ID, s.now().UTC()); err != nil {
				return err
			}
		} else {
			if err := s.bookings.WithTx(tx).UpdateStatus(ctx, booking.ID, target); err != nil {
				return err
			}
		}
		repaired = true
		paymentStatus = payment.Status
		fromStatus = booking.Status
		toStatus = target
		return nil
	})
	if err != nil || !repaired {
		return repaired, err
	}

	s.logger.Info(s.logger.WithFields(ctx, map[string]any{
		"booking_id":     bookingID.String(),
		"payment_status": paymentStatus.String(),
		"from_status":    fromStatus.String(),
		"to_status":      toStatus.String(),
	}), "booking repaired")
	return true, nil
}

// repairTarget maps a divergent pair to the booking status it should hold.
func repairTarget(paymentStatus enums.PaymentStatus, bookingStatus enums.BookingStatus) (enums.BookingStatus, bool) {
	switch paymentStatus {
	case enums.PaymentStatusCashReceived:
		if bookingStatus != enums.BookingStatusCompleted && bookingStatus != enums.BookingStatusCancelled {
			return enums.BookingStatusCompleted, true
		}
	case enums.PaymentStatusReleased:
		if bookingStatus == enums.BookingStatusPaymentProcessing {
			return enums.BookingStatusCompleted, true
		}
	case enums.PaymentStatusEscrow:
		if bookingStatus == enums.BookingStatusConfirmed {
			return enums.BookingStatusPendingExecution, true
		}
	case enums.PaymentStatusRefunded:
		if bookingStatus != enums.BookingStatusCancelled {
			return enums.BookingStatusCancelled, true
		}
	}
	return "", false
}
