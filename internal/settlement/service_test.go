package settlement

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/fundi-app/fundi-backend/internal/bankdetails"
	"github.com/fundi-app/fundi-backend/internal/bookings"
	"github.com/fundi-app/fundi-backend/internal/notifications"
	"github.com/fundi-app/fundi-backend/internal/payments"
	"github.com/fundi-app/fundi-backend/pkg/config"
	"github.com/fundi-app/fundi-backend/pkg/db/models"
	"github.com/fundi-app/fundi-backend/pkg/enums"
	pkgerrors "github.com/fundi-app/fundi-backend/pkg/errors"
	"github.com/fundi-app/fundi-backend/pkg/logger"
	"github.com/fundi-app/fundi-backend/pkg/paystack"
)

func setupSettlementTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	statements := []string{`
CREATE TABLE IF NOT EXISTS bookings (
  id TEXT PRIMARY KEY,
  client_id TEXT NOT NULL,
  provider_id TEXT NOT NULL,
  service_id TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending',
  total_amount_cents INTEGER NOT NULL,
  platform_fee_cents INTEGER NOT NULL,
  payment_method TEXT NOT NULL DEFAULT 'card',
  scheduled_date DATETIME NOT NULL,
  cancelled_at DATETIME,
  disputed_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`, `
CREATE TABLE IF NOT EXISTS payments (
  id TEXT PRIMARY KEY,
  booking_id TEXT NOT NULL,
  amount_cents INTEGER NOT NULL,
  escrow_amount_cents INTEGER NOT NULL,
  platform_fee_cents INTEGER NOT NULL,
  currency TEXT NOT NULL DEFAULT 'NGN',
  status TEXT NOT NULL DEFAULT 'pending',
  external_ref TEXT,
  paid_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME,
  CONSTRAINT ux_payments_booking_id UNIQUE (booking_id),
  CONSTRAINT ux_payments_external_ref UNIQUE (external_ref)
);`, `
CREATE TABLE IF NOT EXISTS payouts (
  id TEXT PRIMARY KEY,
  payment_id TEXT NOT NULL,
  provider_id TEXT NOT NULL,
  amount_cents INTEGER NOT NULL,
  external_ref TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending',
  transfer_code TEXT,
  recipient_code TEXT,
  error TEXT,
  created_at DATETIME,
  updated_at DATETIME,
  CONSTRAINT ux_payouts_payment_id UNIQUE (payment_id),
  CONSTRAINT ux_payouts_external_ref UNIQUE (external_ref)
);`, `
CREATE TABLE IF NOT EXISTS provider_bank_details (
  id TEXT PRIMARY KEY,
  provider_id TEXT NOT NULL,
  bank_name TEXT NOT NULL,
  bank_code TEXT NOT NULL,
  account_number TEXT NOT NULL,
  account_name TEXT NOT NULL,
  recipient_code TEXT,
  created_at DATETIME,
  updated_at DATETIME,
  deleted_at DATETIME,
  CONSTRAINT ux_provider_bank_details_provider_id UNIQUE (provider_id)
);`, `
CREATE TABLE IF NOT EXISTS notifications (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  type TEXT NOT NULL,
  title TEXT NOT NULL,
  body TEXT NOT NULL,
  metadata TEXT,
  read_at DATETIME,
  created_at DATETIME
);`}
	for _, stmt := range statements {
		require.NoError(t, db.Exec(stmt).Error)
	}
	return db
}

type testTxRunner struct {
	db *gorm.DB
}

func (r testTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

type fakeProcessor struct {
	recipients  int
	transfers   []paystack.TransferRequest
	refunds     []string
	transferErr error
}

func (f *fakeProcessor) CreateTransferRecipient(ctx context.Context, req paystack.TransferRecipientRequest) (string, error) {
	f.recipients++
	return fmt.Sprintf("RCP_%d", f.recipients), nil
}

func (f *fakeProcessor) InitiateTransfer(ctx context.Context, req paystack.TransferRequest) (string, error) {
	if f.transferErr != nil {
		return "", f.transferErr
	}
	f.transfers = append(f.transfers, req)
	return fmt.Sprintf("TRF_%d", len(f.transfers)), nil
}

func (f *fakeProcessor) CreateRefund(ctx context.Context, transactionRef string) error {
	f.refunds = append(f.refunds, transactionRef)
	return nil
}

func newTestService(t *testing.T, db *gorm.DB, processor *fakeProcessor) Service {
	t.Helper()

	notifSvc, err := notifications.NewService(notifications.NewRepository(db))
	require.NoError(t, err)

	svc, err := NewService(ServiceParams{
		Repo:        NewRepository(db),
		Bookings:    bookings.NewRepository(db),
		Payments:    payments.NewRepository(db),
		BankDetails: bankdetails.NewRepository(db),
		Tx:          testTxRunner{db: db},
		Notifier:    notifSvc,
		Processor:   processor,
		Escrow: config.EscrowConfig{
			PlatformFeePercent:    "10",
			AutoConfirmGrace:      72 * time.Hour,
			Currency:              "NGN",
			WebhookRetryThreshold: 5,
		},
		Logger: logger.New(logger.Options{ServiceName: "test", Level: zerolog.Disabled}),
	})
	require.NoError(t, err)
	return svc
}

func seedSettleableBooking(t *testing.T, db *gorm.DB, bookingStatus enums.BookingStatus, paymentStatus enums.PaymentStatus) (*models.Booking, *models.Payment) {
	t.Helper()

	booking := &models.Booking{
		ID:               uuid.New(),
		ClientID:         uuid.New(),
		ProviderID:       uuid.New(),
		ServiceID:        uuid.New(),
		Status:           bookingStatus,
		TotalAmountCents: 10000,
		PlatformFeeCents: 1000,
		PaymentMethod:    enums.PaymentMethodCard,
		ScheduledDate:    time.Now().UTC(),
	}
	require.NoError(t, db.Create(booking).Error)

	ref := "PSK-" + uuid.NewString()
	payment := &models.Payment{
		ID:                uuid.New(),
		BookingID:         booking.ID,
		AmountCents:       10000,
		EscrowAmountCents: 9000,
		PlatformFeeCents:  1000,
		Currency:          "NGN",
		Status:            paymentStatus,
		ExternalRef:       &ref,
	}
	require.NoError(t, db.Create(payment).Error)
	return booking, payment
}

func seedBankDetails(t *testing.T, db *gorm.DB, providerID uuid.UUID, recipientCode *string) *models.ProviderBankDetails {
	t.Helper()

	details := &models.ProviderBankDetails{
		ID:            uuid.New(),
		ProviderID:    providerID,
		BankName:      "Access Bank",
		BankCode:      "044",
		AccountNumber: "0123456789",
		AccountName:   "Test Provider",
		RecipientCode: recipientCode,
	}
	require.NoError(t, db.Create(details).Error)
	return details
}

func settleBooking(t *testing.T, db *gorm.DB, svc Service, bookingID uuid.UUID) *models.Payout {
	t.Helper()

	var payout *models.Payout
	err := testTxRunner{db: db}.WithTx(context.Background(), func(tx *gorm.DB) error {
		var err error
		payout, err = svc.SettleWithin(context.Background(), tx, bookingID)
		return err
	})
	require.NoError(t, err)
	require.NotNil(t, payout)
	return payout
}

func TestSettleWithin(t *testing.T) {
	db := setupSettlementTestDB(t)
	svc := newTestService(t, db, &fakeProcessor{})
	booking, payment := seedSettleableBooking(t, db, enums.BookingStatusAwaitingConfirmation, enums.PaymentStatusEscrow)

	payout := settleBooking(t, db, svc, booking.ID)
	assert.Equal(t, payment.ID, payout.PaymentID)
	assert.Equal(t, booking.ProviderID, payout.ProviderID)
	assert.Equal(t, int64(9000), payout.AmountCents)
	assert.Equal(t, enums.PayoutStatusPending, payout.Status)

	var gotPayment models.Payment
	require.NoError(t, db.First(&gotPayment, "id = ?", payment.ID).Error)
	assert.Equal(t, enums.PaymentStatusProcessingRelease, gotPayment.Status)

	var gotBooking models.Booking
	require.NoError(t, db.First(&gotBooking, "id = ?", booking.ID).Error)
	assert.Equal(t, enums.BookingStatusPaymentProcessing, gotBooking.Status)
}

func TestSettleWithinIsIdempotent(t *testing.T) {
	db := setupSettlementTestDB(t)
	svc := newTestService(t, db, &fakeProcessor{})
	booking, payment := seedSettleableBooking(t, db, enums.BookingStatusAwaitingConfirmation, enums.PaymentStatusEscrow)

	first := settleBooking(t, db, svc, booking.ID)
	second := settleBooking(t, db, svc, booking.ID)
	assert.Equal(t, first.ID, second.ID)

	var count int64
	require.NoError(t, db.Model(&models.Payout{}).Where("payment_id = ?", payment.ID).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestSettleWithinRejectsUnsettledPayment(t *testing.T) {
	db := setupSettlementTestDB(t)
	svc := newTestService(t, db, &fakeProcessor{})
	booking, _ := seedSettleableBooking(t, db, enums.BookingStatusAwaitingConfirmation, enums.PaymentStatusPending)

	err := testTxRunner{db: db}.WithTx(context.Background(), func(tx *gorm.DB) error {
		_, err := svc.SettleWithin(context.Background(), tx, booking.ID)
		return err
	})
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeStateConflict, typed.Code())
}

func TestDispatchTransfer(t *testing.T) {
	db := setupSettlementTestDB(t)
	processor := &fakeProcessor{}
	svc := newTestService(t, db, processor)
	booking, _ := seedSettleableBooking(t, db, enums.BookingStatusAwaitingConfirmation, enums.PaymentStatusEscrow)
	details := seedBankDetails(t, db, booking.ProviderID, nil)

	payout := settleBooking(t, db, svc, booking.ID)
	require.NoError(t, svc.DispatchTransfer(context.Background(), payout.ID))

	require.Len(t, processor.transfers, 1)
	assert.Equal(t, payout.ExternalRef, processor.transfers[0].Reference)
	assert.Equal(t, int64(9000), processor.transfers[0].AmountCents)

	var gotPayout models.Payout
	require.NoError(t, db.First(&gotPayout, "id = ?", payout.ID).Error)
	require.NotNil(t, gotPayout.TransferCode)
	assert.Equal(t, "TRF_1", *gotPayout.TransferCode)
	assert.Equal(t, enums.PayoutStatusPending, gotPayout.Status)

	// recipient code is cached for the next settlement
	var gotDetails models.ProviderBankDetails
	require.NoError(t, db.First(&gotDetails, "id = ?", details.ID).Error)
	require.NotNil(t, gotDetails.RecipientCode)
	assert.Equal(t, "RCP_1", *gotDetails.RecipientCode)
}

func TestDispatchTransferReusesCachedRecipient(t *testing.T) {
	db := setupSettlementTestDB(t)
	processor := &fakeProcessor{}
	svc := newTestService(t, db, processor)
	booking, _ := seedSettleableBooking(t, db, enums.BookingStatusAwaitingConfirmation, enums.PaymentStatusEscrow)
	cached := "RCP_CACHED"
	seedBankDetails(t, db, booking.ProviderID, &cached)

	payout := settleBooking(t, db, svc, booking.ID)
	require.NoError(t, svc.DispatchTransfer(context.Background(), payout.ID))

	assert.Zero(t, processor.recipients)
	require.Len(t, processor.transfers, 1)
	assert.Equal(t, "RCP_CACHED", processor.transfers[0].Recipient)
}

func TestDispatchTransferWithoutBankDetails(t *testing.T) {
	db := setupSettlementTestDB(t)
	svc := newTestService(t, db, &fakeProcessor{})
	booking, _ := seedSettleableBooking(t, db, enums.BookingStatusAwaitingConfirmation, enums.PaymentStatusEscrow)

	payout := settleBooking(t, db, svc, booking.ID)
	err := svc.DispatchTransfer(context.Background(), payout.ID)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeStateConflict, typed.Code())

	// failure is recorded but the payout stays pending for retry
	var gotPayout models.Payout
	require.NoError(t, db.First(&gotPayout, "id = ?", payout.ID).Error)
	assert.Equal(t, enums.PayoutStatusPending, gotPayout.Status)
	require.NotNil(t, gotPayout.Error)
}

func TestRetryPayoutAfterFailure(t *testing.T) {
	db := setupSettlementTestDB(t)
	processor := &fakeProcessor{}
	svc := newTestService(t, db, processor)
	booking, _ := seedSettleableBooking(t, db, enums.BookingStatusAwaitingConfirmation, enums.PaymentStatusEscrow)
	seedBankDetails(t, db, booking.ProviderID, nil)

	payout := settleBooking(t, db, svc, booking.ID)
	require.NoError(t, NewRepository(db).MarkFailed(context.Background(), payout.ID, "transfer failed"))

	require.NoError(t, svc.RetryPayout(context.Background(), payout.ID))

	var gotPayout models.Payout
	require.NoError(t, db.First(&gotPayout, "id = ?", payout.ID).Error)
	assert.Equal(t, enums.PayoutStatusPending, gotPayout.Status)
	assert.NotEqual(t, payout.ExternalRef, gotPayout.ExternalRef)

	require.Len(t, processor.transfers, 1)
	assert.Equal(t, gotPayout.ExternalRef, processor.transfers[0].Reference)
}

func TestRetryPayoutRejectsCompleted(t *testing.T) {
	db := setupSettlementTestDB(t)
	svc := newTestService(t, db, &fakeProcessor{})
	booking, _ := seedSettleableBooking(t, db, enums.BookingStatusAwaitingConfirmation, enums.PaymentStatusEscrow)

	payout := settleBooking(t, db, svc, booking.ID)
	require.NoError(t, NewRepository(db).MarkCompleted(context.Background(), payout.ID))

	err := svc.RetryPayout(context.Background(), payout.ID)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeStateConflict, typed.Code())
}

func TestResolveDisputeRefund(t *testing.T) {
	db := setupSettlementTestDB(t)
	processor := &fakeProcessor{}
	svc := newTestService(t, db, processor)
	booking, payment := seedSettleableBooking(t, db, enums.BookingStatusDisputed, enums.PaymentStatusEscrow)

	require.NoError(t, svc.ResolveDispute(context.Background(), booking.ID, DisputeResolutionRefund))

	require.Len(t, processor.refunds, 1)
	assert.Equal(t, *payment.ExternalRef, processor.refunds[0])

	var gotBooking models.Booking
	require.NoError(t, db.First(&gotBooking, "id = ?", booking.ID).Error)
	assert.Equal(t, enums.BookingStatusCancelled, gotBooking.Status)

	// payment flips to refunded only when the webhook lands
	var gotPayment models.Payment
	require.NoError(t, db.First(&gotPayment, "id = ?", payment.ID).Error)
	assert.Equal(t, enums.PaymentStatusEscrow, gotPayment.Status)
}

func TestResolveDisputeSettle(t *testing.T) {
	db := setupSettlementTestDB(t)
	svc := newTestService(t, db, &fakeProcessor{})
	booking, payment := seedSettleableBooking(t, db, enums.BookingStatusDisputed, enums.PaymentStatusEscrow)

	require.NoError(t, svc.ResolveDispute(context.Background(), booking.ID, DisputeResolutionSettle))

	var gotBooking models.Booking
	require.NoError(t, db.First(&gotBooking, "id = ?", booking.ID).Error)
	assert.Equal(t, enums.BookingStatusPaymentProcessing, gotBooking.Status)

	var count int64
	require.NoError(t, db.Model(&models.Payout{}).Where("payment_id = ?", payment.ID).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestResolveDisputeRejectsNonDisputed(t *testing.T) {
	db := setupSettlementTestDB(t)
	svc := newTestService(t, db, &fakeProcessor{})
	booking, _ := seedSettleableBooking(t, db, enums.BookingStatusAwaitingConfirmation, enums.PaymentStatusEscrow)

	err := svc.ResolveDispute(context.Background(), booking.ID, DisputeResolutionRefund)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeStateConflict, typed.Code())
}
