package shift

import "fmt"

// Stable rejection reasons.
const (
	ReasonDepartsBeforeLeave    = "DepartsBeforeLeave"
	ReasonInvalidContinuation   = "InvalidContinuation"
	ReasonInvalidTransferWindow = "InvalidTransferWindow"
	ReasonReturnTooEarly        = "ReturnTooEarly"
	ReasonIllegalTransition     = "IllegalTransition"
	ReasonTripNotFound          = "TripNotFound"
	ReasonDepotNotFound         = "DepotNotFound"
	ReasonDepotRequired         = "DepotRequired"
	ReasonShiftNameRequired     = "ShiftNameRequired"
)

type RejectionError struct {
	Reason string
	Detail string
}

func (e *RejectionError) Error() string {
	if e.Detail == "" {
		return e.Reason
	}
	return e.Reason + ": " + e.Detail
}

func (e *RejectionError) Is(target error) bool {
	t, ok := target.(*RejectionError)
	return ok && t.Reason == e.Reason
}

var (
	ErrDepartsBeforeLeave    = &RejectionError{Reason: ReasonDepartsBeforeLeave}
	ErrInvalidContinuation   = &RejectionError{Reason: ReasonInvalidContinuation}
	ErrInvalidTransferWindow = &RejectionError{Reason: ReasonInvalidTransferWindow}
	ErrReturnTooEarly        = &RejectionError{Reason: ReasonReturnTooEarly}
	ErrIllegalTransition     = &RejectionError{Reason: ReasonIllegalTransition}
	ErrTripNotFound          = &RejectionError{Reason: ReasonTripNotFound}
	ErrDepotNotFound         = &RejectionError{Reason: ReasonDepotNotFound}
	ErrDepotRequired         = &RejectionError{Reason: ReasonDepotRequired}
)

func reject(reason, format string, args ...any) error {
	return &RejectionError{Reason: reason, Detail: fmt.Sprintf(format, args...)}
}

func illegal(action string, from State) error {
	return reject(ReasonIllegalTransition, "cannot %s in state %s", action, from)
}
