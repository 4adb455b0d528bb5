package enums

import "fmt"

// NotificationType identifies user-facing notification templates.
type NotificationType string

const (
	NotificationPaymentReceived   NotificationType = "payment_received"
	NotificationPayoutCompleted   NotificationType = "payout_completed"
	NotificationSettlementFailed  NotificationType = "settlement_failed"
	NotificationJobProofSubmitted NotificationType = "job_proof_submitted"
	NotificationBookingCancelled  NotificationType = "booking_cancelled"
	NotificationBookingDisputed   NotificationType = "booking_disputed"
)

var validNotificationTypes = []NotificationType{
	NotificationPaymentReceived,
	NotificationPayoutCompleted,
	NotificationSettlementFailed,
	NotificationJobProofSubmitted,
	NotificationBookingCancelled,
	NotificationBookingDisputed,
}

// String implements fmt.Stringer.
func (n NotificationType) String() string {
	return string(n)
}

// IsValid reports whether the value is a known NotificationType.
func (n NotificationType) IsValid() bool {
	for _, candidate := range validNotificationTypes {
		if candidate == n {
			return true
		}
	}
	return false
}

// ParseNotificationType converts raw input into a NotificationType.
func ParseNotificationType(value string) (NotificationType, error) {
	for _, candidate := range validNotificationTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid notification type %q", value)
}
