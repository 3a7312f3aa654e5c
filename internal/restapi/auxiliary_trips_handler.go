package restapi

import (
	"net/http"

	"shiftplanner.ebus.dev/internal/auxtrip"
	"shiftplanner.ebus.dev/internal/models"
)

type auxiliaryTripRequest struct {
	Kind            models.LegKind `json:"kind"`
	DepartureStopID string         `json:"departure_stop_id"`
	ArrivalStopID   string         `json:"arrival_stop_id"`
	DepartureTime   serviceTime    `json:"departure_time"`
	ArrivalTime     serviceTime    `json:"arrival_time"`
	RouteID         string         `json:"route_id,omitempty"`
	CalendarKey     string         `json:"calendar_key,omitempty"`
}

// auxiliaryTripHandler synthesizes a single depot or transfer leg.
func (api *RestAPI) auxiliaryTripHandler(w http.ResponseWriter, r *http.Request) {
	var req auxiliaryTripRequest
	if !api.decodeJSON(w, r, &req) {
		return
	}

	trip, err := api.Synthesizer.Synthesize(r.Context(), auxtrip.Request{
		Kind:            req.Kind,
		DepartureStopID: req.DepartureStopID,
		ArrivalStopID:   req.ArrivalStopID,
		DepartureTime:   int64(req.DepartureTime),
		ArrivalTime:     int64(req.ArrivalTime),
		RouteID:         req.RouteID,
		CalendarKey:     req.CalendarKey,
	})
	if err != nil {
		api.domainErrorResponse(w, r, err)
		return
	}
	api.sendResponseStatus(w, r, http.StatusCreated, models.NewEntryResponse(trip, api.Clock))
}
