package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/fundi-app/fundi-backend/pkg/enums"
)

// Booking is a scheduled service engagement between a client and a provider.
// Bookings are never deleted; cancellation is a status.
type Booking struct {
	ID               uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ClientID         uuid.UUID           `gorm:"column:client_id;type:uuid;not null;index"`
	ProviderID       uuid.UUID           `gorm:"column:provider_id;type:uuid;not null;index"`
	ServiceID        uuid.UUID           `gorm:"column:service_id;type:uuid;not null"`
	Status           enums.BookingStatus `gorm:"column:status;type:booking_status;not null;default:'pending'"`
	TotalAmountCents int64               `gorm:"column:total_amount_cents;not null"`
	PlatformFeeCents int64               `gorm:"column:platform_fee_cents;not null"`
	PaymentMethod    enums.PaymentMethod `gorm:"column:payment_method;type:payment_method;not null;default:'card'"`
	ScheduledDate    time.Time           `gorm:"column:scheduled_date;not null"`
	CancelledAt      *time.Time          `gorm:"column:cancelled_at"`
	DisputedAt       *time.Time          `gorm:"column:disputed_at"`
	Payment          *Payment            `gorm:"foreignKey:BookingID"`
	JobProof         *JobProof           `gorm:"foreignKey:BookingID"`
	CreatedAt        time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
