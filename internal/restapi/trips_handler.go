package restapi

import (
	"errors"
	"net/http"

	"shiftplanner.ebus.dev/internal/models"
	"shiftplanner.ebus.dev/internal/shift"
)

func (api *RestAPI) tripHandler(w http.ResponseWriter, r *http.Request) {
	trip, err := api.Committer.LookupTrip(r.Context(), r.PathValue("id"))
	if errors.Is(err, shift.ErrTripNotFound) {
		api.sendNotFound(w, r)
		return
	}
	if err != nil {
		api.serverErrorResponse(w, r, err)
		return
	}
	api.sendResponse(w, r, models.NewEntryResponse(trip, api.Clock))
}

// tripsForRouteHandler lists the trips of a route ordered by departure.
// An optional kind filter narrows the list to one trip kind.
func (api *RestAPI) tripsForRouteHandler(w http.ResponseWriter, r *http.Request) {
	var kind models.TripKind
	if k := r.URL.Query().Get("kind"); k != "" {
		parsed, err := models.ParseTripKind(k)
		if err != nil {
			api.badRequest(w, r, "%v", err)
			return
		}
		kind = parsed
	}

	rows, err := api.DB.Queries.ListTripSummariesForRoute(r.Context(), r.PathValue("id"))
	if err != nil {
		api.serverErrorResponse(w, r, err)
		return
	}

	trips := make([]models.TripSummary, 0, len(rows))
	for _, row := range rows {
		trip, err := models.TripSummaryFromRow(row)
		if err != nil {
			api.serverErrorResponse(w, r, err)
			return
		}
		if kind != 0 && trip.Kind != kind {
			continue
		}
		trips = append(trips, trip)
	}
	api.sendResponse(w, r, models.NewListResponse(trips, false, api.Clock))
}

type profileSummary struct {
	TripID         string  `json:"trip_id"`
	ShapeID        string  `json:"shape_id"`
	Points         int     `json:"points"`
	TotalDistanceM float64 `json:"total_distance_m"`
}

// backfillProfileHandler resolves and stores the elevation profile of a
// trip that has a shape but no profile yet.
func (api *RestAPI) backfillProfileHandler(w http.ResponseWriter, r *http.Request) {
	tripID := r.PathValue("id")
	profile, err := api.Synthesizer.BackfillProfile(r.Context(), tripID)
	if err != nil {
		api.domainErrorResponse(w, r, err)
		return
	}
	api.sendResponseStatus(w, r, http.StatusCreated, models.NewEntryResponse(profileSummary{
		TripID:         tripID,
		ShapeID:        profile.ShapeID,
		Points:         len(profile.Points),
		TotalDistanceM: profile.TotalDistance(),
	}, api.Clock))
}
