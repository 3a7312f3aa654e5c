package auxtrip

// Error is a synthesis validation failure with a stable reason code.
// Validation errors are never retried.
type Error struct {
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Reason
	}
	return e.Reason + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Reason == e.Reason
}

var (
	ErrIdenticalStops    = &Error{Reason: "IdenticalStops"}
	ErrInvalidTimeWindow = &Error{Reason: "InvalidTimeWindow"}
	ErrUnknownLegKind    = &Error{Reason: "UnknownLegKind"}
	ErrStopNotFound      = &Error{Reason: "StopNotFound"}
	ErrCalendarNotFound  = &Error{Reason: "CalendarNotFound"}
	ErrTripNotFound      = &Error{Reason: "TripNotFound"}
	ErrNoShape           = &Error{Reason: "NoShape"}
)

func fail(kind *Error, err error) error {
	return &Error{Reason: kind.Reason, Err: err}
}
