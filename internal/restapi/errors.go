package restapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"shiftplanner.ebus.dev/internal/auxtrip"
	"shiftplanner.ebus.dev/internal/logging"
	"shiftplanner.ebus.dev/internal/resolver"
	"shiftplanner.ebus.dev/internal/shift"
)

const maxBodyBytes = 1 << 20

// ErrorData carries the stable reason code of a rejected request.
type ErrorData struct {
	Reason string `json:"reason"`
	Detail string `json:"detail,omitempty"`
}

func (api *RestAPI) serverErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	logging.LogError(api.Logger, "internal server error", err,
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("request_id", GetRequestID(r.Context())))
	api.sendError(w, r, http.StatusInternalServerError, "internal server error", nil)
}

func (api *RestAPI) badRequest(w http.ResponseWriter, r *http.Request, format string, args ...any) {
	api.sendError(w, r, http.StatusBadRequest, fmt.Sprintf(format, args...), nil)
}

// domainErrorResponse maps engine errors to a status and reason code.
func (api *RestAPI) domainErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	status, data := classifyError(err)
	if deadlineExceeded(r) {
		// the resolver reports its own expiry as unavailability
		status, data = http.StatusGatewayTimeout, &ErrorData{Reason: "Timeout", Detail: err.Error()}
	}
	if status == http.StatusInternalServerError {
		api.serverErrorResponse(w, r, err)
		return
	}
	if status >= 500 {
		logging.LogError(api.Logger, "request failed", err,
			slog.String("path", r.URL.Path),
			slog.String("request_id", GetRequestID(r.Context())))
	}
	api.sendError(w, r, status, http.StatusText(status), data)
}

func classifyError(err error) (int, *ErrorData) {
	var res *resolver.Error
	var rej *shift.RejectionError
	var aux *auxtrip.Error

	switch {
	case errors.As(err, &res):
		data := &ErrorData{Reason: res.Reason, Detail: detail(res.Err)}
		switch res.Reason {
		case resolver.ErrRoutingUnavailable.Reason, resolver.ErrElevationUnavailable.Reason:
			return http.StatusServiceUnavailable, data
		case resolver.ErrRoutingDegenerate.Reason:
			return http.StatusUnprocessableEntity, data
		default:
			return http.StatusBadGateway, data
		}
	case errors.As(err, &rej):
		return http.StatusUnprocessableEntity, &ErrorData{Reason: rej.Reason, Detail: rej.Detail}
	case errors.As(err, &aux):
		data := &ErrorData{Reason: aux.Reason, Detail: detail(aux.Err)}
		switch aux.Reason {
		case auxtrip.ErrStopNotFound.Reason, auxtrip.ErrCalendarNotFound.Reason, auxtrip.ErrTripNotFound.Reason:
			return http.StatusNotFound, data
		default:
			return http.StatusUnprocessableEntity, data
		}
	case errors.Is(err, shift.ErrShiftNotFound):
		return http.StatusNotFound, &ErrorData{Reason: "ShiftNotFound", Detail: err.Error()}
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, &ErrorData{Reason: "Timeout"}
	case errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable, &ErrorData{Reason: "Canceled"}
	}
	return http.StatusInternalServerError, nil
}

func detail(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// decodeJSON reads a bounded JSON body into dst and answers 400 itself
// when it cannot.
func (api *RestAPI) decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			api.badRequest(w, r, "request body is empty")
		case errors.As(err, &tooLarge):
			api.sendError(w, r, http.StatusRequestEntityTooLarge, "request body too large", nil)
		default:
			api.badRequest(w, r, "invalid request body: %v", err)
		}
		return false
	}
	return true
}

var (
	errRequired   = errors.New("is required")
	errNotANumber = errors.New("must be a number")
)

func outOfRange(lo, hi float64) error {
	return fmt.Errorf("must be between %g and %g", lo, hi)
}
