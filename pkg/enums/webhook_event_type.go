package enums

import "fmt"

// WebhookEventType is the closed set of processor notifications the gateway
// dispatches. Unknown types are rejected before any ledger write.
type WebhookEventType string

const (
	WebhookEventChargeSuccess   WebhookEventType = "charge.success"
	WebhookEventTransferSuccess WebhookEventType = "transfer.success"
	WebhookEventTransferFailed  WebhookEventType = "transfer.failed"
	WebhookEventRefundProcessed WebhookEventType = "refund.processed"
)

var validWebhookEventTypes = []WebhookEventType{
	WebhookEventChargeSuccess,
	WebhookEventTransferSuccess,
	WebhookEventTransferFailed,
	WebhookEventRefundProcessed,
}

// String implements fmt.Stringer.
func (w WebhookEventType) String() string {
	return string(w)
}

// IsValid reports whether the value is a known WebhookEventType.
func (w WebhookEventType) IsValid() bool {
	for _, candidate := range validWebhookEventTypes {
		if candidate == w {
			return true
		}
	}
	return false
}

// ParseWebhookEventType converts raw input into a WebhookEventType.
func ParseWebhookEventType(value string) (WebhookEventType, error) {
	for _, candidate := range validWebhookEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("unknown webhook event type %q", value)
}
