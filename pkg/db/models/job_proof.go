package models

import (
	"time"

	"github.com/google/uuid"
)

// JobProof is the provider-submitted evidence of a completed job, exactly one
// per booking. ClientConfirmed flips exactly once, by the client or by the
// auto-confirm sweep when AutoConfirmAt has passed.
type JobProof struct {
	ID              uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	BookingID       uuid.UUID  `gorm:"column:booking_id;type:uuid;not null;uniqueIndex:ux_job_proofs_booking_id"`
	ProviderID      uuid.UUID  `gorm:"column:provider_id;type:uuid;not null;index"`
	Photos          []string   `gorm:"column:photos;type:jsonb;serializer:json"`
	Notes           *string    `gorm:"column:notes"`
	CompletedAt     time.Time  `gorm:"column:completed_at;not null"`
	ClientConfirmed bool       `gorm:"column:client_confirmed;not null;default:false"`
	ConfirmedAt     *time.Time `gorm:"column:confirmed_at"`
	AutoConfirmAt   time.Time  `gorm:"column:auto_confirm_at;not null;index"`
	CreatedAt       time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}
