package paystackwebhook

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/fundi-app/fundi-backend/pkg/db"
	"github.com/fundi-app/fundi-backend/pkg/db/models"
	"github.com/fundi-app/fundi-backend/pkg/enums"
)

// Repository is the append-only webhook event ledger.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, event *models.WebhookEvent) (*models.WebhookEvent, error)
	FindByTypeAndRef(ctx context.Context, eventType enums.WebhookEventType, externalRef string) (*models.WebhookEvent, error)
	FindByTypeAndRefForUpdate(ctx context.Context, eventType enums.WebhookEventType, externalRef string) (*models.WebhookEvent, error)
	MarkProcessed(ctx context.Context, id uuid.UUID, at time.Time) error
	RecordFailure(ctx context.Context, id uuid.UUID, message string, escalate bool) error
	ListEscalated(ctx context.Context, limit int) ([]models.WebhookEvent, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a webhook event repository bound to the provided DB.
func NewRepository(database *gorm.DB) Repository {
	return &repository{db: database}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, event *models.WebhookEvent) (*models.WebhookEvent, error) {
	if err := r.db.WithContext(ctx).Create(event).Error; err != nil {
		return nil, err
	}
	return event, nil
}

func (r *repository) FindByTypeAndRef(ctx context.Context, eventType enums.WebhookEventType, externalRef string) (*models.WebhookEvent, error) {
	var event models.WebhookEvent
	err := r.db.WithContext(ctx).
		Where("event_type = ? AND external_ref = ?", eventType, externalRef).
		First(&event).Error
	if err != nil {
		return nil, err
	}
	return &event, nil
}

func (r *repository) FindByTypeAndRefForUpdate(ctx context.Context, eventType enums.WebhookEventType, externalRef string) (*models.WebhookEvent, error) {
	var event models.WebhookEvent
	err := db.LockForUpdate(r.db.WithContext(ctx)).
		Where("event_type = ? AND external_ref = ?", eventType, externalRef).
		First(&event).Error
	if err != nil {
		return nil, err
	}
	return &event, nil
}

func (r *repository) MarkProcessed(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.WebhookEvent{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"processed":    true,
			"processed_at": at,
			"error":        nil,
		}).Error
}

func (r *repository) RecordFailure(ctx context.Context, id uuid.UUID, message string, escalate bool) error {
	updates := map[string]any{
		"retry_count": gorm.Expr("retry_count + 1"),
		"error":       message,
	}
	if escalate {
		updates["escalated"] = true
	}
	return r.db.WithContext(ctx).
		Model(&models.WebhookEvent{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *repository) ListEscalated(ctx context.Context, limit int) ([]models.WebhookEvent, error) {
	var events []models.WebhookEvent
	query := r.db.WithContext(ctx).
		Where("escalated = ? AND processed = ?", true, false).
		Order("created_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}
