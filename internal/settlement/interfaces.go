package settlement

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/fundi-app/fundi-backend/pkg/db/models"
)

// Repository defines persistence operations for payouts.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, payout *models.Payout) (*models.Payout, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Payout, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Payout, error)
	FindByPaymentID(ctx context.Context, paymentID uuid.UUID) (*models.Payout, error)
	FindByExternalRef(ctx context.Context, externalRef string) (*models.Payout, error)
	RecordDispatch(ctx context.Context, id uuid.UUID, transferCode, recipientCode string) error
	RecordDispatchError(ctx context.Context, id uuid.UUID, message string) error
	MarkCompleted(ctx context.Context, id uuid.UUID) error
	MarkFailed(ctx context.Context, id uuid.UUID, message string) error
	ResetForRetry(ctx context.Context, id uuid.UUID, newExternalRef string) error
}
