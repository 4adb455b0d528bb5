package bookings

import (
	"fmt"

	"github.com/fundi-app/fundi-backend/pkg/enums"
	pkgerrors "github.com/fundi-app/fundi-backend/pkg/errors"
)

// allowedTransitions encodes the booking state machine. Completed and
// cancelled are terminal. The edges into completed from pre-settlement
// states exist only for the cash flow, where the provider confirms receipt
// in person and no escrow release follows.
var allowedTransitions = map[enums.BookingStatus][]enums.BookingStatus{
	enums.BookingStatusPending: {
		enums.BookingStatusConfirmed,
		enums.BookingStatusCancelled,
	},
	enums.BookingStatusConfirmed: {
		enums.BookingStatusPendingExecution,
		enums.BookingStatusCancelled,
		enums.BookingStatusCompleted,
	},
	enums.BookingStatusPendingExecution: {
		enums.BookingStatusInProgress,
		enums.BookingStatusCancelled,
		enums.BookingStatusCompleted,
	},
	enums.BookingStatusInProgress: {
		enums.BookingStatusAwaitingConfirmation,
		enums.BookingStatusCompleted,
	},
	enums.BookingStatusAwaitingConfirmation: {
		enums.BookingStatusPaymentProcessing,
		enums.BookingStatusDisputed,
		enums.BookingStatusCompleted,
	},
	enums.BookingStatusPaymentProcessing: {
		enums.BookingStatusCompleted,
		enums.BookingStatusDisputed,
	},
	enums.BookingStatusDisputed: {
		enums.BookingStatusPaymentProcessing,
		enums.BookingStatusCancelled,
	},
}

// CanTransition reports whether from -> to is a legal booking transition.
func CanTransition(from, to enums.BookingStatus) bool {
	for _, candidate := range allowedTransitions[from] {
		if candidate == to {
			return true
		}
	}
	return false
}

// EnsureTransition returns a state-conflict error when from -> to is not a
// legal booking transition.
func EnsureTransition(from, to enums.BookingStatus) error {
	if CanTransition(from, to) {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeStateConflict,
		fmt.Sprintf("booking cannot move from %s to %s", from, to))
}
