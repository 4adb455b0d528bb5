package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/fundi-app/fundi-backend/pkg/enums"
)

// Payment holds the money side of a booking, exactly one per booking.
// Invariant: EscrowAmountCents + PlatformFeeCents == AmountCents (±1 cent).
type Payment struct {
	ID                uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	BookingID         uuid.UUID           `gorm:"column:booking_id;type:uuid;not null;uniqueIndex:ux_payments_booking_id"`
	AmountCents       int64               `gorm:"column:amount_cents;not null"`
	EscrowAmountCents int64               `gorm:"column:escrow_amount_cents;not null"`
	PlatformFeeCents  int64               `gorm:"column:platform_fee_cents;not null"`
	Currency          string              `gorm:"column:currency;not null;default:'NGN'"`
	Status            enums.PaymentStatus `gorm:"column:status;type:payment_status;not null;default:'pending'"`
	ExternalRef       *string             `gorm:"column:external_ref;uniqueIndex:ux_payments_external_ref"`
	PaidAt            *time.Time          `gorm:"column:paid_at"`
	Payout            *Payout             `gorm:"foreignKey:PaymentID"`
	CreatedAt         time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
