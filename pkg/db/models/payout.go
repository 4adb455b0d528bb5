package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/fundi-app/fundi-backend/pkg/enums"
)

// Payout records money released to a provider, at most one per payment.
// The unique index on payment_id is the final backstop against double
// settlement; a violated insert means "already settled", not an error.
type Payout struct {
	ID            uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	PaymentID     uuid.UUID          `gorm:"column:payment_id;type:uuid;not null;uniqueIndex:ux_payouts_payment_id"`
	ProviderID    uuid.UUID          `gorm:"column:provider_id;type:uuid;not null;index"`
	AmountCents   int64              `gorm:"column:amount_cents;not null"`
	ExternalRef   string             `gorm:"column:external_ref;not null;uniqueIndex:ux_payouts_external_ref"`
	Status        enums.PayoutStatus `gorm:"column:status;type:payout_status;not null;default:'pending'"`
	TransferCode  *string            `gorm:"column:transfer_code"`
	RecipientCode *string            `gorm:"column:recipient_code"`
	Error         *string            `gorm:"column:error"`
	CreatedAt     time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}
