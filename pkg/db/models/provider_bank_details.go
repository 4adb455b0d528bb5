package models

import (
	"time"

	"github.com/google/uuid"
)

// ProviderBankDetails is the read-only bank account record settlements draw
// on. The engine consumes it as-is; validation happens at onboarding, outside
// this system. RecipientCode is cached after the first transfer-recipient
// creation at the processor.
type ProviderBankDetails struct {
	ID            uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ProviderID    uuid.UUID  `gorm:"column:provider_id;type:uuid;not null;uniqueIndex:ux_provider_bank_details_provider_id"`
	BankName      string     `gorm:"column:bank_name;not null"`
	BankCode      string     `gorm:"column:bank_code;not null"`
	AccountNumber string     `gorm:"column:account_number;not null"`
	AccountName   string     `gorm:"column:account_name;not null"`
	RecipientCode *string    `gorm:"column:recipient_code"`
	CreatedAt     time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time  `gorm:"column:updated_at;autoUpdateTime"`
	DeletedAt     *time.Time `gorm:"column:deleted_at;index"`
}
