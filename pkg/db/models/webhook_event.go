package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/fundi-app/fundi-backend/pkg/enums"
)

// WebhookEvent is an append-only ledger of inbound processor notifications.
// The (event_type, external_ref) unique index collapses duplicate deliveries
// into one row; concurrent duplicate writers lose on the constraint and treat
// the existing row as theirs.
type WebhookEvent struct {
	ID          uuid.UUID              `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	EventType   enums.WebhookEventType `gorm:"column:event_type;type:webhook_event_type;not null;uniqueIndex:ux_webhook_events_type_ref,priority:1"`
	ExternalRef string                 `gorm:"column:external_ref;not null;uniqueIndex:ux_webhook_events_type_ref,priority:2"`
	Payload     json.RawMessage        `gorm:"column:payload;type:jsonb;not null"`
	Processed   bool                   `gorm:"column:processed;not null;default:false;index"`
	RetryCount  int                    `gorm:"column:retry_count;not null;default:0"`
	Escalated   bool                   `gorm:"column:escalated;not null;default:false"`
	Error       *string                `gorm:"column:error"`
	ProcessedAt *time.Time             `gorm:"column:processed_at"`
	CreatedAt   time.Time              `gorm:"column:created_at;autoCreateTime"`
}
