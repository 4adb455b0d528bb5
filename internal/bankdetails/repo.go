package bankdetails

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/fundi-app/fundi-backend/pkg/db/models"
)

// Repository reads provider bank accounts and caches processor recipient
// codes. Account data itself is written during onboarding, outside this
// system.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByProviderID(ctx context.Context, providerID uuid.UUID) (*models.ProviderBankDetails, error)
	CacheRecipientCode(ctx context.Context, id uuid.UUID, recipientCode string) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a bank details repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindByProviderID(ctx context.Context, providerID uuid.UUID) (*models.ProviderBankDetails, error) {
	var details models.ProviderBankDetails
	err := r.db.WithContext(ctx).
		Where("provider_id = ? AND deleted_at IS NULL", providerID).
		First(&details).Error
	if err != nil {
		return nil, err
	}
	return &details, nil
}

func (r *repository) CacheRecipientCode(ctx context.Context, id uuid.UUID, recipientCode string) error {
	return r.db.WithContext(ctx).
		Model(&models.ProviderBankDetails{}).
		Where("id = ?", id).
		Update("recipient_code", recipientCode).Error
}
