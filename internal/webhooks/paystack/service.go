package paystackwebhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/fundi-app/fundi-backend/internal/bookings"
	"github.com/fundi-app/fundi-backend/internal/notifications"
	"github.com/fundi-app/fundi-backend/internal/payments"
	"github.com/fundi-app/fundi-backend/internal/settlement"
	"github.com/fundi-app/fundi-backend/pkg/config"
	"github.com/fundi-app/fundi-backend/pkg/db"
	"github.com/fundi-app/fundi-backend/pkg/db/models"
	"github.com/fundi-app/fundi-backend/pkg/enums"
	pkgerrors "github.com/fundi-app/fundi-backend/pkg/errors"
	"github.com/fundi-app/fundi-backend/pkg/logger"
	"github.com/fundi-app/fundi-backend/pkg/metrics"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type notifier interface {
	EmitTx(ctx context.Context, tx *gorm.DB, input notifications.EmitInput) error
}

// eventEnvelope is the outer shape of every processor notification.
type eventEnvelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// eventData covers the fields the handlers read across all event types.
// Charge events carry reference; refund events carry transaction_reference.
type eventData struct {
	Reference            string `json:"reference"`
	TransactionReference string `json:"transaction_reference"`
	Status               string `json:"status"`
	Amount               int64  `json:"amount"`
	Reason               string `json:"reason"`
	Metadata             struct {
		BookingID string `json:"booking_id"`
	} `json:"metadata"`
}

// ServiceParams bundles the webhook service dependencies.
type ServiceParams struct {
	Repo              Repository
	Payments          payments.Repository
	Bookings          bookings.Repository
	Payouts           settlement.Repository
	Notifier          notifier
	TransactionRunner txRunner
	Metrics           *metrics.WebhookMetrics
	Escrow            config.EscrowConfig
	Logger            *logger.Logger
}

// Service turns verified processor notifications into state transitions.
// Every delivery is recorded in the webhook event ledger exactly once; the
// business transaction and the processed flag commit together.
type Service struct {
	repo           Repository
	payments       payments.Repository
	bookings       bookings.Repository
	payouts        settlement.Repository
	notifier       notifier
	txRunner       txRunner
	metrics        *metrics.WebhookMetrics
	retryThreshold int
	logger         *logger.Logger
}

// NewService wires the webhook service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("webhook repository required")
	}
	if params.Payments == nil {
		return nil, fmt.Errorf("payments repository required")
	}
	if params.Bookings == nil {
		return nil, fmt.Errorf("bookings repository required")
	}
	if params.Payouts == nil {
		return nil, fmt.Errorf("payouts repository required")
	}
	if params.Notifier == nil {
		return nil, fmt.Errorf("notifier required")
	}
	if params.TransactionRunner == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	threshold := params.Escrow.WebhookRetryThreshold
	if threshold <= 0 {
		threshold = 5
	}
	return &Service{
		repo:           params.Repo,
		payments:       params.Payments,
		bookings:       params.Bookings,
		payouts:        params.Payouts,
		notifier:       params.Notifier,
		txRunner:       params.TransactionRunner,
		metrics:        params.Metrics,
		retryThreshold: threshold,
		logger:         params.Logger,
	}, nil
}

// Ingest processes one verified delivery. The raw payload is stored as
// received. A non-nil return means the caller should answer non-2xx so the
// processor redelivers.
func (s *Service) Ingest(ctx context.Context, payload []byte) error {
	var envelope eventEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		s.metrics.IncRejected()
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "malformed webhook payload")
	}

	eventType, err := enums.ParseWebhookEventType(envelope.Event)
	if err != nil {
		s.metrics.IncRejected()
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unsupported event type")
	}

	var data eventData
	if err := json.Unmarshal(envelope.Data, &data); err != nil {
		s.metrics.IncRejected()
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "malformed event data")
	}

	externalRef := data.Reference
	if eventType == enums.WebhookEventRefundProcessed && data.TransactionReference != "" {
		externalRef = data.TransactionReference
	}
	if externalRef == "" {
		s.metrics.IncRejected()
		return pkgerrors.New(pkgerrors.CodeValidation, "event reference missing")
	}

	ctx = s.logger.WithFields(ctx, map[string]any{
		"event_type":   eventType.String(),
		"external_ref": externalRef,
	})

	event, err := s.claimEvent(ctx, eventType, externalRef, payload)
	if err != nil {
		return err
	}
	if event.Processed {
		s.metrics.IncDuplicate(eventType.String())
		s.logger.Info(ctx, "duplicate webhook delivery acknowledged")
		return nil
	}

	if err := s.processEvent(ctx, event, eventType, data); err != nil {
		s.handleFailure(ctx, event, eventType, err)
		return err
	}

	s.metrics.IncReceived(eventType.String())
	s.logger.Info(ctx, "webhook event processed")
	return nil
}

// claimEvent finds or creates the ledger row in its own transaction so the
// delivery record and retry counts survive a handler rollback.
func (s *Service) claimEvent(ctx context.Context, eventType enums.WebhookEventType, externalRef string, payload []byte) (*models.WebhookEvent, error) {
	var event *models.WebhookEvent
	err := s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		found, err := repo.FindByTypeAndRef(ctx, eventType, externalRef)
		if err == nil {
			event = found
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load webhook event")
		}

		event = &models.WebhookEvent{
			ID:          uuid.New(),
			EventType:   eventType,
			ExternalRef: externalRef,
			Payload:     json.RawMessage(payload),
		}
		if _, err := repo.Create(ctx, event); err != nil {
			// A concurrent delivery won the insert race; its row is ours now.
			if db.IsUniqueViolation(err, "ux_webhook_events_type_ref") {
				event, err = repo.FindByTypeAndRef(ctx, eventType, externalRef)
				if err != nil {
					return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload webhook event")
				}
				return nil
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record webhook event")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return event, nil
}

// processEvent runs the handler and the processed flag in one transaction,
// re-checking the lock-held row so concurrent deliveries cannot both apply.
func (s *Service) processEvent(ctx context.Context, event *models.WebhookEvent, eventType enums.WebhookEventType, data eventData) error {
	return s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		current, err := repo.FindByTypeAndRefForUpdate(ctx, eventType, event.ExternalRef)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock webhook event")
		}
		if current.Processed {
			return nil
		}
		event.RetryCount = current.RetryCount

		if err := s.dispatch(ctx, tx, eventType, data); err != nil {
			return err
		}
		return repo.MarkProcessed(ctx, current.ID, time.Now().UTC())
	})
}

func (s *Service) dispatch(ctx context.Context, tx *gorm.DB, eventType enums.WebhookEventType, data eventData) error {
	switch eventType {
	case enums.WebhookEventChargeSuccess:
		return s.handleChargeSuccess(ctx, tx, data)
	case enums.WebhookEventTransferSuccess:
		return s.handleTransferSuccess(ctx, tx, data)
	case enums.WebhookEventTransferFailed:
		return s.handleTransferFailed(ctx, tx, data)
	case enums.WebhookEventRefundProcessed:
		return s.handleRefundProcessed(ctx, tx, data)
	default:
		return pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("no handler for event type %s", eventType))
	}
}

// handleFailure records the failed attempt outside the rolled-back business
// transaction so the retry count survives.
func (s *Service) handleFailure(ctx context.Context, event *models.WebhookEvent, eventType enums.WebhookEventType, cause error) {
	s.metrics.IncFailed(eventType.String())
	if event == nil || event.ID == uuid.Nil {
		return
	}

	escalate := event.RetryCount+1 >= s.retryThreshold
	err := s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		return s.repo.WithTx(tx).RecordFailure(ctx, event.ID, cause.Error(), escalate)
	})
	if err != nil {
		s.logger.Error(ctx, "recording webhook failure", err)
		return
	}
	if escalate {
		s.metrics.IncEscalated(eventType.String())
		s.logger.Error(ctx, "webhook event escalated for manual review", cause)
	}
}

// handleChargeSuccess moves the payment into escrow. The booking advances to
// pending execution only if the provider has already confirmed; otherwise the
// confirm flow catches it up later. Row locks are taken booking first, then
// payment, matching the settlement and repair paths.
func (s *Service) handleChargeSuccess(ctx context.Context, tx *gorm.DB, data eventData) error {
	bookingID, err := s.chargeBookingID(ctx, tx, data)
	if err != nil {
		return err
	}

	booking, err := s.bookings.WithTx(tx).FindByIDForUpdate(ctx, bookingID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load booking")
	}
	payment, err := s.payments.WithTx(tx).FindByBookingIDForUpdate(ctx, bookingID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
	}

	// Redelivery after the escrow write already landed.
	if payment.Status != enums.PaymentStatusPending {
		return nil
	}

	if data.Amount > 0 && data.Amount != payment.AmountCents {
		return pkgerrors.New(pkgerrors.CodeConflict,
			fmt.Sprintf("charge amount %d does not match payment amount %d", data.Amount, payment.AmountCents))
	}

	if err := s.payments.WithTx(tx).MarkEscrowed(ctx, payment.ID, data.Reference, time.Now().UTC()); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark payment escrowed")
	}

	if booking.Status == enums.BookingStatusConfirmed {
		if err := s.bookings.WithTx(tx).UpdateStatus(ctx, booking.ID, enums.BookingStatusPendingExecution); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "advance booking")
		}
	}

	return s.notifier.EmitTx(ctx, tx, notifications.EmitInput{
		UserID: booking.ProviderID,
		Type:   enums.NotificationPaymentReceived,
		Title:  "Payment received",
		Body:   "The client has paid. Funds are held in escrow until the job is confirmed.",
		Metadata: map[string]any{
			"booking_id": booking.ID.String(),
		},
	})
}

// chargeBookingID resolves which booking the charge belongs to using plain
// reads only, so the caller can take row locks in the canonical order.
func (s *Service) chargeBookingID(ctx context.Context, tx *gorm.DB, data eventData) (uuid.UUID, error) {
	repo := s.payments.WithTx(tx)

	payment, err := repo.FindByExternalRef(ctx, data.Reference)
	if err == nil {
		return payment.BookingID, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment by reference")
	}

	if data.Metadata.BookingID != "" {
		bookingID, parseErr := uuid.Parse(data.Metadata.BookingID)
		if parseErr != nil {
			return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, parseErr, "invalid booking id in metadata")
		}
		if _, err := repo.FindByBookingID(ctx, bookingID); err == nil {
			return bookingID, nil
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment by booking")
		}
	}

	return uuid.Nil, pkgerrors.New(pkgerrors.CodeNotFound, "no payment matches charge reference")
}

// handleTransferSuccess finishes the settlement: payout completed, escrow
// released, booking closed out.
func (s *Service) handleTransferSuccess(ctx context.Context, tx *gorm.DB, data eventData) error {
	payout, err := s.payouts.WithTx(tx).FindByExternalRef(ctx, data.Reference)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "no payout matches transfer reference")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payout")
	}
	if payout.Status == enums.PayoutStatusCompleted {
		return nil
	}

	if err := s.payouts.WithTx(tx).MarkCompleted(ctx, payout.ID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark payout completed")
	}

	payment, err := s.payments.WithTx(tx).FindByID(ctx, payout.PaymentID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
	}
	if payment.Status == enums.PaymentStatusProcessingRelease {
		if err := s.payments.WithTx(tx).UpdateStatus(ctx, payment.ID, enums.PaymentStatusReleased); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "release payment")
		}
	}

	booking, err := s.bookings.WithTx(tx).FindByIDForUpdate(ctx, payment.BookingID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load booking")
	}
	if booking.Status == enums.BookingStatusPaymentProcessing {
		if err := s.bookings.WithTx(tx).UpdateStatus(ctx, booking.ID, enums.BookingStatusCompleted); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "complete booking")
		}
	}

	return s.notifier.EmitTx(ctx, tx, notifications.EmitInput{
		UserID: payout.ProviderID,
		Type:   enums.NotificationPayoutCompleted,
		Title:  "Payout completed",
		Body:   "Your earnings have been transferred to your bank account.",
		Metadata: map[string]any{
			"booking_id": booking.ID.String(),
			"payout_id":  payout.ID.String(),
		},
	})
}

// handleTransferFailed marks the payout failed and freezes the payment and
// booking where they are; an operator retries the payout from the admin
// surface.
func (s *Service) handleTransferFailed(ctx context.Context, tx *gorm.DB, data eventData) error {
	payout, err := s.payouts.WithTx(tx).FindByExternalRef(ctx, data.Reference)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "no payout matches transfer reference")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payout")
	}
	switch payout.Status {
	case enums.PayoutStatusFailed:
		return nil
	case enums.PayoutStatusCompleted:
		return pkgerrors.New(pkgerrors.CodeConflict, "transfer already completed")
	}

	reason := data.Reason
	if reason == "" {
		reason = "transfer failed at processor"
	}
	if err := s.payouts.WithTx(tx).MarkFailed(ctx, payout.ID, reason); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark payout failed")
	}

	return s.notifier.EmitTx(ctx, tx, notifications.EmitInput{
		UserID: payout.ProviderID,
		Type:   enums.NotificationSettlementFailed,
		Title:  "Payout failed",
		Body:   "Your payout could not be completed. Support is looking into it.",
		Metadata: map[string]any{
			"payout_id": payout.ID.String(),
		},
	})
}

// handleRefundProcessed closes the money loop on a cancelled booking.
func (s *Service) handleRefundProcessed(ctx context.Context, tx *gorm.DB, data eventData) error {
	ref := data.TransactionReference
	if ref == "" {
		ref = data.Reference
	}

	payment, err := s.payments.WithTx(tx).FindByExternalRef(ctx, ref)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "no payment matches refund reference")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
	}
	if payment.Status == enums.PaymentStatusRefunded {
		return nil
	}
	if err := payments.EnsureTransition(payment.Status, enums.PaymentStatusRefunded); err != nil {
		return err
	}

	if err := s.payments.WithTx(tx).UpdateStatus(ctx, payment.ID, enums.PaymentStatusRefunded); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark payment refunded")
	}

	booking, err := s.bookings.WithTx(tx).FindByIDForUpdate(ctx, payment.BookingID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load booking")
	}
	if booking.Status != enums.BookingStatusCancelled {
		if err := s.bookings.WithTx(tx).MarkCancelled(ctx, booking.ID, time.Now().UTC()); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel booking")
		}
	}
	return nil
}
