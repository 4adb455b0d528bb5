package bookings

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/fundi-app/fundi-backend/internal/notifications"
	"github.com/fundi-app/fundi-backend/internal/payments"
	"github.com/fundi-app/fundi-backend/pkg/config"
	"github.com/fundi-app/fundi-backend/pkg/db/models"
	"github.com/fundi-app/fundi-backend/pkg/enums"
	pkgerrors "github.com/fundi-app/fundi-backend/pkg/errors"
	"github.com/fundi-app/fundi-backend/pkg/logger"
)

func setupBookingsTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	bookingsSQL := `
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
);`
	paymentsSQL := `
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
);`
	payoutsSQL := `
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
);`
	notificationsSQL := `
CREATE TABLE IF NOT EXISTS notifications (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  type TEXT NOT NULL,
  title TEXT NOT NULL,
  body TEXT NOT NULL,
  metadata TEXT,
  read_at DATETIME,
  created_at DATETIME
);`
	require.NoError(t, db.Exec(bookingsSQL).Error)
	require.NoError(t, db.Exec(paymentsSQL).Error)
	require.NoError(t, db.Exec(payoutsSQL).Error)
	require.NoError(t, db.Exec(notificationsSQL).Error)
	return db
}

type testTxRunner struct {
	db *gorm.DB
}

func (r testTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

type fakeRefunder struct {
	refs []string
	err  error
}

func (f *fakeRefunder) CreateRefund(ctx context.Context, transactionRef string) error {
	if f.err != nil {
		return f.err
	}
	f.refs = append(f.refs, transactionRef)
	return nil
}

func testEscrowConfig() config.EscrowConfig {
	return config.EscrowConfig{
		PlatformFeePercent:    "10",
		AutoConfirmGrace:      72 * time.Hour,
		Currency:              "NGN",
		WebhookRetryThreshold: 5,
	}
}

func newTestService(t *testing.T, db *gorm.DB, refunder *fakeRefunder) Service {
	t.Helper()

	notifSvc, err := notifications.NewService(notifications.NewRepository(db))
	require.NoError(t, err)

	svc, err := NewService(ServiceParams{
		Repo:     NewRepository(db),
		Payments: payments.NewRepository(db),
		Tx:       testTxRunner{db: db},
		Notifier: notifSvc,
		Refunds:  refunder,
		Escrow:   testEscrowConfig(),
		Logger:   logger.New(logger.Options{ServiceName: "test", Level: zerolog.Disabled}),
	})
	require.NoError(t, err)
	return svc
}

func seedBooking(t *testing.T, db *gorm.DB, bookingStatus enums.BookingStatus, paymentStatus enums.PaymentStatus, method enums.PaymentMethod) *models.Booking {
	t.Helper()

	booking := &models.Booking{
		ID:               uuid.New(),
		ClientID:         uuid.New(),
		ProviderID:       uuid.New(),
		ServiceID:        uuid.New(),
		Status:           bookingStatus,
		TotalAmountCents: 10000,
		PlatformFeeCents: 1000,
		PaymentMethod:    method,
		ScheduledDate:    time.Now().Add(24 * time.Hour).UTC(),
	}
	require.NoError(t, db.Create(booking).Error)

	payment := &models.Payment{
		ID:                uuid.New(),
		BookingID:         booking.ID,
		AmountCents:       10000,
		EscrowAmountCents: 9000,
		PlatformFeeCents:  1000,
		Currency:          "NGN",
		Status:            paymentStatus,
	}
	if paymentStatus == enums.PaymentStatusEscrow {
		ref := "PSK-" + uuid.NewString()
		payment.ExternalRef = &ref
	}
	require.NoError(t, db.Create(payment).Error)

	booking.Payment = payment
	return booking
}

func TestCreateBooking(t *testing.T) {
	db := setupBookingsTestDB(t)
	svc := newTestService(t, db, &fakeRefunder{})

	client := uuid.New()
	booking, err := svc.Create(context.Background(), Actor{UserID: client, Role: enums.ActorRoleClient}, CreateInput{
		ProviderID:       uuid.New(),
		ServiceID:        uuid.New(),
		TotalAmountCents: 25000,
		PaymentMethod:    enums.PaymentMethodCard,
		ScheduledDate:    time.Now().Add(48 * time.Hour),
	})
	require.NoError(t, err)
	assert.Equal(t, enums.BookingStatusPending, booking.Status)
	assert.Equal(t, int64(2500), booking.PlatformFeeCents)

	require.NotNil(t, booking.Payment)
	assert.Equal(t, enums.PaymentStatusPending, booking.Payment.Status)
	assert.Equal(t, int64(22500), booking.Payment.EscrowAmountCents)
	assert.Equal(t, booking.Payment.AmountCents,
		booking.Payment.EscrowAmountCents+booking.Payment.PlatformFeeCents)
}

func TestCreateBookingRejectsNonClient(t *testing.T) {
	db := setupBookingsTestDB(t)
	svc := newTestService(t, db, &fakeRefunder{})

	_, err := svc.Create(context.Background(), Actor{UserID: uuid.New(), Role: enums.ActorRoleProvider}, CreateInput{
		ProviderID:       uuid.New(),
		ServiceID:        uuid.New(),
		TotalAmountCents: 1000,
		PaymentMethod:    enums.PaymentMethodCard,
		ScheduledDate:    time.Now(),
	})
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeForbidden, typed.Code())
}

func TestConfirmBooking(t *testing.T) {
	db := setupBookingsTestDB(t)
	svc := newTestService(t, db, &fakeRefunder{})
	booking := seedBooking(t, db, enums.BookingStatusPending, enums.PaymentStatusPending, enums.PaymentMethodCard)

	err := svc.Confirm(context.Background(), Actor{UserID: booking.ProviderID, Role: enums.ActorRoleProvider}, booking.ID)
	require.NoError(t, err)

	var got models.Booking
	require.NoError(t, db.First(&got, "id = ?", booking.ID).Error)
	assert.Equal(t, enums.BookingStatusConfirmed, got.Status)
}

func TestConfirmBookingCatchesUpEscrowedPayment(t *testing.T) {
	db := setupBookingsTestDB(t)
	svc := newTestService(t, db, &fakeRefunder{})
	booking := seedBooking(t, db, enums.BookingStatusPending, enums.PaymentStatusEscrow, enums.PaymentMethodCard)

	err := svc.Confirm(context.Background(), Actor{UserID: booking.ProviderID, Role: enums.ActorRoleProvider}, booking.ID)
	require.NoError(t, err)

	var got models.Booking
	require.NoError(t, db.First(&got, "id = ?", booking.ID).Error)
	assert.Equal(t, enums.BookingStatusPendingExecution, got.Status)
}

func TestConfirmBookingWrongProvider(t *testing.T) {
	db := setupBookingsTestDB(t)
	svc := newTestService(t, db, &fakeRefunder{})
	booking := seedBooking(t, db, enums.BookingStatusPending, enums.PaymentStatusPending, enums.PaymentMethodCard)

	err := svc.Confirm(context.Background(), Actor{UserID: uuid.New(), Role: enums.ActorRoleProvider}, booking.ID)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeForbidden, typed.Code())
}

func TestStartBooking(t *testing.T) {
	db := setupBookingsTestDB(t)
	svc := newTestService(t, db, &fakeRefunder{})
	booking := seedBooking(t, db, enums.BookingStatusPendingExecution, enums.PaymentStatusEscrow, enums.PaymentMethodCard)

	err := svc.Start(context.Background(), Actor{UserID: booking.ProviderID, Role: enums.ActorRoleProvider}, booking.ID)
	require.NoError(t, err)

	var got models.Booking
	require.NoError(t, db.First(&got, "id = ?", booking.ID).Error)
	assert.Equal(t, enums.BookingStatusInProgress, got.Status)
}

func TestStartBookingBeforePaymentIsRejected(t *testing.T) {
	db := setupBookingsTestDB(t)
	svc := newTestService(t, db, &fakeRefunder{})
	booking := seedBooking(t, db, enums.BookingStatusConfirmed, enums.PaymentStatusPending, enums.PaymentMethodCard)

	err := svc.Start(context.Background(), Actor{UserID: booking.ProviderID, Role: enums.ActorRoleProvider}, booking.ID)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeStateConflict, typed.Code())
}

func TestCancelBookingBeforePayment(t *testing.T) {
	db := setupBookingsTestDB(t)
	refunder := &fakeRefunder{}
	svc := newTestService(t, db, refunder)
	booking := seedBooking(t, db, enums.BookingStatusPending, enums.PaymentStatusPending, enums.PaymentMethodCard)

	err := svc.Cancel(context.Background(), Actor{UserID: booking.ClientID, Role: enums.ActorRoleClient}, booking.ID)
	require.NoError(t, err)

	var got models.Booking
	require.NoError(t, db.First(&got, "id = ?", booking.ID).Error)
	assert.Equal(t, enums.BookingStatusCancelled, got.Status)
	assert.NotNil(t, got.CancelledAt)
	assert.Empty(t, refunder.refs)

	var count int64
	require.NoError(t, db.Model(&models.Notification{}).
		Where("user_id = ? AND type = ?", booking.ProviderID, enums.NotificationBookingCancelled).
		Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestCancelBookingWithEscrowInitiatesRefund(t *testing.T) {
	db := setupBookingsTestDB(t)
	refunder := &fakeRefunder{}
	svc := newTestService(t, db, refunder)
	booking := seedBooking(t, db, enums.BookingStatusPendingExecution, enums.PaymentStatusEscrow, enums.PaymentMethodCard)

	err := svc.Cancel(context.Background(), Actor{UserID: booking.ClientID, Role: enums.ActorRoleClient}, booking.ID)
	require.NoError(t, err)

	require.Len(t, refunder.refs, 1)
	assert.Equal(t, *booking.Payment.ExternalRef, refunder.refs[0])

	// payment stays escrowed until the refund.processed webhook lands
	var payment models.Payment
	require.NoError(t, db.First(&payment, "booking_id = ?", booking.ID).Error)
	assert.Equal(t, enums.PaymentStatusEscrow, payment.Status)
}

func TestCancelBookingAfterWorkStartsIsRejected(t *testing.T) {
	db := setupBookingsTestDB(t)
	svc := newTestService(t, db, &fakeRefunder{})
	booking := seedBooking(t, db, enums.BookingStatusInProgress, enums.PaymentStatusEscrow, enums.PaymentMethodCard)

	err := svc.Cancel(context.Background(), Actor{UserID: booking.ClientID, Role: enums.ActorRoleClient}, booking.ID)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeStateConflict, typed.Code())
}

func TestConfirmCash(t *testing.T) {
	db := setupBookingsTestDB(t)
	svc := newTestService(t, db, &fakeRefunder{})
	booking := seedBooking(t, db, enums.BookingStatusInProgress, enums.PaymentStatusPending, enums.PaymentMethodCash)

	actor := Actor{UserID: booking.ProviderID, Role: enums.ActorRoleProvider}
	require.NoError(t, svc.ConfirmCash(context.Background(), actor, booking.ID))

	var got models.Booking
	require.NoError(t, db.First(&got, "id = ?", booking.ID).Error)
	assert.Equal(t, enums.BookingStatusCompleted, got.Status)

	var payment models.Payment
	require.NoError(t, db.First(&payment, "booking_id = ?", booking.ID).Error)
	assert.Equal(t, enums.PaymentStatusCashReceived, payment.Status)
	assert.NotNil(t, payment.PaidAt)

	// replay is a no-op
	require.NoError(t, svc.ConfirmCash(context.Background(), actor, booking.ID))
}

func TestConfirmCashRejectsCardBooking(t *testing.T) {
	db := setupBookingsTestDB(t)
	svc := newTestService(t, db, &fakeRefunder{})
	booking := seedBooking(t, db, enums.BookingStatusInProgress, enums.PaymentStatusEscrow, enums.PaymentMethodCard)

	err := svc.ConfirmCash(context.Background(), Actor{UserID: booking.ProviderID, Role: enums.ActorRoleProvider}, booking.ID)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeStateConflict, typed.Code())
}

func TestDispute(t *testing.T) {
	db := setupBookingsTestDB(t)
	svc := newTestService(t, db, &fakeRefunder{})
	booking := seedBooking(t, db, enums.BookingStatusAwaitingConfirmation, enums.PaymentStatusEscrow, enums.PaymentMethodCard)

	err := svc.Dispute(context.Background(), Actor{UserID: booking.ClientID, Role: enums.ActorRoleClient}, booking.ID)
	require.NoError(t, err)

	var got models.Booking
	require.NoError(t, db.First(&got, "id = ?", booking.ID).Error)
	assert.Equal(t, enums.BookingStatusDisputed, got.Status)
	assert.NotNil(t, got.DisputedAt)

	var count int64
	require.NoError(t, db.Model(&models.Notification{}).
		Where("user_id = ? AND type = ?", booking.ProviderID, enums.NotificationBookingDisputed).
		Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestDisputeOnlyClient(t *testing.T) {
	db := setupBookingsTestDB(t)
	svc := newTestService(t, db, &fakeRefunder{})
	booking := seedBooking(t, db, enums.BookingStatusAwaitingConfirmation, enums.PaymentStatusEscrow, enums.PaymentMethodCard)

	err := svc.Dispute(context.Background(), Actor{UserID: booking.ProviderID, Role: enums.ActorRoleProvider}, booking.ID)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeForbidden, typed.Code())
}
