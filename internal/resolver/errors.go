package resolver

import (
	"errors"
	"fmt"
	"net"
	"net/http"
)

// Error is a typed resolver failure. Errors compare equal under errors.Is
// when their reasons match, so callers test against the Err* values.
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
	ErrRoutingUnavailable   = &Error{Reason: "RoutingUnavailable"}
	ErrElevationUnavailable = &Error{Reason: "ElevationUnavailable"}
	ErrRoutingDegenerate    = &Error{Reason: "RoutingDegenerate"}
	ErrResolverData         = &Error{Reason: "ResolverDataError"}
)

func wrap(kind *Error, err error) error {
	return &Error{Reason: kind.Reason, Err: err}
}

// Reason returns the stable reason code of a resolver error, or "".
func Reason(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Reason
	}
	return ""
}

// transientError marks a collaborator failure worth retrying.
type transientError struct {
	err error
}

func (t *transientError) Error() string { return t.err.Error() }
func (t *transientError) Unwrap() error { return t.err }

func transient(err error) error {
	return &transientError{err: err}
}

// IsTransient reports whether err is a network failure, a timeout, a 5xx or a 429.
func IsTransient(err error) bool {
	var t *transientError
	return errors.As(err, &t)
}

// statusError is a non-2xx answer from a collaborator. It maps to the
// collaborator's unavailable kind, never to ResolverDataError.
type statusError struct {
	Code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status code: %d", e.Code)
}

// checkStatus maps a collaborator response status to nil, a transient
// status error (429 and 5xx), or a permanent one.
func checkStatus(resp *http.Response) error {
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return transient(&statusError{Code: resp.StatusCode})
	default:
		return &statusError{Code: resp.StatusCode}
	}
}

// classifyTransport treats every transport failure as transient; context
// cancellation is checked by the retry loop.
func classifyTransport(err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return transient(fmt.Errorf("timeout: %w", err))
	}
	return transient(fmt.Errorf("executing request: %w", err))
}
