package reconciliation

import (
	"context"

	"gorm.io/gorm"

	"github.com/fundi-app/fundi-backend/pkg/db/models"
	"github.com/fundi-app/fundi-backend/pkg/enums"
)

// Repository surfaces payment rows whose booking disagrees with them.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindDivergent(ctx context.Context, limit int) ([]models.Payment, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a reconciliation repository bound to the provided DB.
func NewRepository(database *gorm.DB) Repository {
	return &repository{db: database}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// FindDivergent returns payments stuck ahead of their booking. Each clause
// pairs a settled payment state with the booking states a lost webhook or a
// crashed handler can leave behind.
func (r *repository) FindDivergent(ctx context.Context, limit int) ([]models.Payment, error) {
	var payments []models.Payment
	query := r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Select("payments.*").
		Joins("JOIN bookings ON bookings.id = payments.booking_id").
		Where(`(payments.status = ? AND bookings.status NOT IN ?)
			OR (payments.status = ? AND bookings.status = ?)
			OR (payments.status = ? AND bookings.status = ?)
			OR (payments.status = ? AND bookings.status <> ?)`,
			enums.PaymentStatusCashReceived, []enums.BookingStatus{enums.BookingStatusCompleted, enums.BookingStatusCancelled},
			enums.PaymentStatusReleased, enums.BookingStatusPaymentProcessing,
			enums.PaymentStatusEscrow, enums.BookingStatusConfirmed,
			enums.PaymentStatusRefunded, enums.BookingStatusCancelled,
		).
		Order("payments.created_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&payments).Error; err != nil {
		return nil, err
	}
	return payments, nil
}
