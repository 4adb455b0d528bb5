package jobproofs

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/fundi-app/fundi-backend/pkg/db"
	"github.com/fundi-app/fundi-backend/pkg/db/models"
	"github.com/fundi-app/fundi-backend/pkg/enums"
)

// Repository defines persistence operations for job proofs.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, proof *models.JobProof) (*models.JobProof, error)
	FindByBookingID(ctx context.Context, bookingID uuid.UUID) (*models.JobProof, error)
	FindByBookingIDForUpdate(ctx context.Context, bookingID uuid.UUID) (*models.JobProof, error)
	MarkConfirmed(ctx context.Context, id uuid.UUID, at time.Time) error
	FindDueForAutoConfirm(ctx context.Context, now time.Time, limit int) ([]models.JobProof, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a job proofs repository bound to the provided DB.
func NewRepository(database *gorm.DB) Repository {
	return &repository{db: database}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, proof *models.JobProof) (*models.JobProof, error) {
	if err := r.db.WithContext(ctx).Create(proof).Error; err != nil {
		return nil, err
	}
	return proof, nil
}

func (r *repository) FindByBookingID(ctx context.Context, bookingID uuid.UUID) (*models.JobProof, error) {
	var proof models.JobProof
	err := r.db.WithContext(ctx).
		Where("booking_id = ?", bookingID).
		First(&proof).Error
	if err != nil {
		return nil, err
	}
	return &proof, nil
}

func (r *repository) FindByBookingIDForUpdate(ctx context.Context, bookingID uuid.UUID) (*models.JobProof, error) {
	var proof models.JobProof
	err := db.LockForUpdate(r.db.WithContext(ctx)).
		Where("booking_id = ?", bookingID).
		First(&proof).Error
	if err != nil {
		return nil, err
	}
	return &proof, nil
}

func (r *repository) MarkConfirmed(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.JobProof{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"client_confirmed": true,
			"confirmed_at":     at,
		}).Error
}

// FindDueForAutoConfirm returns unconfirmed proofs past their deadline whose
// booking still awaits the client. Disputed or already-settled bookings are
// excluded so the sweep never retries rows confirm() would reject.
func (r *repository) FindDueForAutoConfirm(ctx context.Context, now time.Time, limit int) ([]models.JobProof, error) {
	var proofs []models.JobProof
	query := r.db.WithContext(ctx).
		Model(&models.JobProof{}).
		Select("job_proofs.*").
		Joins("JOIN bookings ON bookings.id = job_proofs.booking_id").
		Where("job_proofs.client_confirmed = ? AND job_proofs.auto_confirm_at <= ?", false, now).
		Where("bookings.status = ?", enums.BookingStatusAwaitingConfirmation).
		Order("job_proofs.auto_confirm_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&proofs).Error; err != nil {
		return nil, err
	}
	return proofs, nil
}
