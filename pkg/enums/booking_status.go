package enums

import "fmt"

// BookingStatus tracks the workflow side of a service engagement.
type BookingStatus string

const (
	BookingStatusPending              BookingStatus = "pending"
	BookingStatusConfirmed            BookingStatus = "confirmed"
	BookingStatusPendingExecution     BookingStatus = "pending_execution"
	BookingStatusInProgress           BookingStatus = "in_progress"
	BookingStatusAwaitingConfirmation BookingStatus = "awaiting_confirmation"
	BookingStatusPaymentProcessing    BookingStatus = "payment_processing"
	BookingStatusCompleted            BookingStatus = "completed"
	BookingStatusCancelled            BookingStatus = "cancelled"
	BookingStatusDisputed             BookingStatus = "disputed"
)

var validBookingStatuses = []BookingStatus{
	BookingStatusPending,
	BookingStatusConfirmed,
	BookingStatusPendingExecution,
	BookingStatusInProgress,
	BookingStatusAwaitingConfirmation,
	BookingStatusPaymentProcessing,
	BookingStatusCompleted,
	BookingStatusCancelled,
	BookingStatusDisputed,
}

// String implements fmt.Stringer.
func (b BookingStatus) String() string {
	return string(b)
}

// IsValid reports whether the value is a known BookingStatus.
func (b BookingStatus) IsValid() bool {
	for _, candidate := range validBookingStatuses {
		if candidate == b {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the booking can no longer move.
func (b BookingStatus) IsTerminal() bool {
	return b == BookingStatusCompleted || b == BookingStatusCancelled
}

// ParseBookingStatus converts raw input into a BookingStatus.
func ParseBookingStatus(value string) (BookingStatus, error) {
	for _, candidate := range validBookingStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid booking status %q", value)
}
