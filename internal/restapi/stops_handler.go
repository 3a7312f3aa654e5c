package restapi

import (
	"net/http"
	"strconv"
	"strings"

	"shiftplanner.ebus.dev/gtfsdb"
	"shiftplanner.ebus.dev/internal/models"
)

const (
	defaultNearbyRadius = 500.0
	maxNearbyRadius     = 10_000.0
	defaultListLimit    = 50
	maxListLimit        = 250
)

// nearbyStopsHandler finds stops around a point, closest first.
func (api *RestAPI) nearbyStopsHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	lat, err := parseFloatParam(q.Get("lat"), -90, 90)
	if err != nil {
		api.badRequest(w, r, "lat: %v", err)
		return
	}
	lon, err := parseFloatParam(q.Get("lon"), -180, 180)
	if err != nil {
		api.badRequest(w, r, "lon: %v", err)
		return
	}
	radius := defaultNearbyRadius
	if v := q.Get("radius"); v != "" {
		if radius, err = parseFloatParam(v, 1, maxNearbyRadius); err != nil {
			api.badRequest(w, r, "radius: %v", err)
			return
		}
	}
	limit, err := parseLimit(q.Get("limit"))
	if err != nil {
		api.badRequest(w, r, "limit: %v", err)
		return
	}

	found := api.Stops.Nearby(lat, lon, radius, limit+1)
	exceeded := len(found) > limit
	if exceeded {
		found = found[:limit]
	}
	api.sendResponse(w, r, models.NewListResponse(found, exceeded, api.Clock))
}

// searchStopsHandler matches stop names case-insensitively.
func (api *RestAPI) searchStopsHandler(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		api.badRequest(w, r, "q is required")
		return
	}
	limit, err := parseLimit(r.URL.Query().Get("limit"))
	if err != nil {
		api.badRequest(w, r, "limit: %v", err)
		return
	}

	rows, err := api.DB.Queries.SearchStopsByName(r.Context(), gtfsdb.SearchStopsByNameParams{
		SearchQuery: query,
		Limit:       int64(limit) + 1,
	})
	if err != nil {
		api.serverErrorResponse(w, r, err)
		return
	}

	exceeded := len(rows) > limit
	if exceeded {
		rows = rows[:limit]
	}
	stops := make([]models.Stop, len(rows))
	for i, row := range rows {
		stops[i] = models.StopFromRow(row)
	}
	api.sendResponse(w, r, models.NewListResponse(stops, exceeded, api.Clock))
}

func parseFloatParam(v string, lo, hi float64) (float64, error) {
	if v == "" {
		return 0, errRequired
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, errNotANumber
	}
	if f < lo || f > hi {
		return 0, outOfRange(lo, hi)
	}
	return f, nil
}

func parseLimit(v string) (int, error) {
	if v == "" {
		return defaultListLimit, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, errNotANumber
	}
	if n < 1 || n > maxListLimit {
		return 0, outOfRange(1, maxListLimit)
	}
	return n, nil
}
