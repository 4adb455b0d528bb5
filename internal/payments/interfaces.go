package payments

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/fundi-app/fundi-backend/pkg/db/models"
	"github.com/fundi-app/fundi-backend/pkg/enums"
)

// Repository defines persistence operations for payments.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, payment *models.Payment) (*models.Payment, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Payment, error)
	FindByBookingID(ctx context.Context, bookingID uuid.UUID) (*models.Payment, error)
	FindByBookingIDForUpdate(ctx context.Context, bookingID uuid.UUID) (*models.Payment, error)
	FindByExternalRef(ctx context.Context, externalRef string) (*models.Payment, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status enums.PaymentStatus) error
	MarkEscrowed(ctx context.Context, id uuid.UUID, externalRef string, paidAt time.Time) error
	MarkCashReceived(ctx context.Context, id uuid.UUID, paidAt time.Time) error
}
