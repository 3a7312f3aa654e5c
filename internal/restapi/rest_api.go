package restapi

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"shiftplanner.ebus.dev/internal/app"
)

// RestAPI serves the planner over HTTP. Handlers reach the engine through
// the embedded Application.
type RestAPI struct {
	*app.Application
	rateLimiter *RateLimitMiddleware
	compress    func(http.Handler) http.Handler
}

func NewRestAPI(a *app.Application) *RestAPI {
	return &RestAPI{
		Application: a,
		rateLimiter: NewRateLimitMiddleware(a.Config.RateLimit, time.Second, nil, a.Clock, a.Metrics),
		compress:    CompressionMiddleware(),
	}
}

// Shutdown stops background work owned by the API. The Application is
// closed separately.
func (api *RestAPI) Shutdown() {
	api.rateLimiter.Stop()
}

// Handler returns the routed mux wrapped in the middleware chain. Metrics
// sits innermost so it sees the pattern the mux matched.
func (api *RestAPI) Handler() http.Handler {
	mux := http.NewServeMux()
	api.SetRoutes(mux)

	var h http.Handler = mux
	h = MetricsHandler(api.Metrics)(h)
	h = api.apiKeyMiddleware(h)
	h = api.rateLimiter.Handler()(h)
	h = NewRequestLoggingMiddleware(api.Logger)(h)
	h = RequestIDMiddleware(h)
	return h
}

func (api *RestAPI) SetRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", api.healthHandler)
	if api.Metrics != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(api.Metrics.Registry, promhttp.HandlerOpts{}))
	}

	cached := func(seconds int, h http.HandlerFunc) http.Handler {
		return CacheControlMiddleware(seconds, api.compress(h))
	}
	requestTimeout := func() time.Duration { return api.Config.RequestTimeout }
	bounded := func(h http.HandlerFunc) http.HandlerFunc {
		return RequestDeadlineMiddleware(requestTimeout, h).ServeHTTP
	}

	mux.Handle("GET /api/v1/routes/{id}/trips", cached(60, api.tripsForRouteHandler))
	mux.Handle("GET /api/v1/trips/{id}", cached(60, api.tripHandler))
	mux.Handle("POST /api/v1/trips/{id}/profile", cached(0, bounded(api.backfillProfileHandler)))

	mux.Handle("GET /api/v1/stops/nearby", cached(300, api.nearbyStopsHandler))
	mux.Handle("GET /api/v1/stops/search", cached(300, api.searchStopsHandler))

	mux.Handle("POST /api/v1/drafts/transition", cached(0, api.draftTransitionHandler))
	mux.Handle("POST /api/v1/shifts", cached(0, bounded(api.commitShiftHandler)))
	mux.Handle("GET /api/v1/shifts/{id}", cached(0, api.shiftHandler))
	mux.Handle("POST /api/v1/auxiliary-trips", cached(0, bounded(api.auxiliaryTripHandler)))

	mux.Handle("POST /api/v1/trip-statistics", cached(0, api.tripStatisticsHandler))
	// websocket upgrades bypass compression and cache headers
	mux.HandleFunc("GET /api/v1/trip-statistics/stream", api.tripStatisticsStreamHandler)
}
