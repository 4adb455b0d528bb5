package enums

import "fmt"

// PaymentStatus tracks the escrow lifecycle of a payment.
type PaymentStatus string

const (
	PaymentStatusPending           PaymentStatus = "pending"
	PaymentStatusEscrow            PaymentStatus = "escrow"
	PaymentStatusProcessingRelease PaymentStatus = "processing_release"
	PaymentStatusReleased          PaymentStatus = "released"
	PaymentStatusCashReceived      PaymentStatus = "cash_received"
	PaymentStatusRefunded          PaymentStatus = "refunded"
	PaymentStatusFailed            PaymentStatus = "failed"
)

var validPaymentStatuses = []PaymentStatus{
	PaymentStatusPending,
	PaymentStatusEscrow,
	PaymentStatusProcessingRelease,
	PaymentStatusReleased,
	PaymentStatusCashReceived,
	PaymentStatusRefunded,
	PaymentStatusFailed,
}

// String implements fmt.Stringer.
func (p PaymentStatus) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PaymentStatus.
func (p PaymentStatus) IsValid() bool {
	for _, candidate := range validPaymentStatuses {
		if candidate == p {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition may leave this status.
func (p PaymentStatus) IsTerminal() bool {
	switch p {
	case PaymentStatusReleased, PaymentStatusCashReceived, PaymentStatusRefunded, PaymentStatusFailed:
		return true
	default:
		return false
	}
}

// ParsePaymentStatus converts raw input into a PaymentStatus.
func ParsePaymentStatus(value string) (PaymentStatus, error) {
	for _, candidate := range validPaymentStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment status %q", value)
}
