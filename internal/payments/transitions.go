package payments

import (
	"fmt"

	pkgerrors "github.com/fundi-app/fundi-backend/pkg/errors"

	"github.com/fundi-app/fundi-backend/pkg/enums"
)

// allowedTransitions encodes the payment state machine. Terminal statuses
// (released, cash_received, refunded, failed) have no outgoing edges.
var allowedTransitions = map[enums.PaymentStatus][]enums.PaymentStatus{
	enums.PaymentStatusPending: {
		enums.PaymentStatusEscrow,
		enums.PaymentStatusCashReceived,
		enums.PaymentStatusFailed,
	},
	enums.PaymentStatusEscrow: {
		enums.PaymentStatusProcessingRelease,
		enums.PaymentStatusRefunded,
	},
	enums.PaymentStatusProcessingRelease: {
		enums.PaymentStatusReleased,
	},
}

// CanTransition reports whether from -> to is a legal payment transition.
func CanTransition(from, to enums.PaymentStatus) bool {
	for _, candidate := range allowedTransitions[from] {
		if candidate == to {
			return true
		}
	}
	return false
}

// EnsureTransition returns a state-conflict error when from -> to is not a
// legal payment transition.
func EnsureTransition(from, to enums.PaymentStatus) error {
	if CanTransition(from, to) {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeStateConflict,
		fmt.Sprintf("payment cannot move from %s to %s", from, to))
}
