package restapi

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCacheControlHeaders(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name           string
		method         string
		endpoint       string
		body           any
		expectedHeader string
	}{
		{
			name:           "Stop lookups (long cache)",
			method:         http.MethodGet,
			endpoint:       "/api/v1/stops/search?q=alpha",
			expectedHeader: "public, max-age=300",
		},
		{
			name:           "Trip data (short cache)",
			method:         http.MethodGet,
			endpoint:       "/api/v1/trips/t1",
			expectedHeader: "public, max-age=60",
		},
		{
			name:           "Computations (no cache)",
			method:         http.MethodPost,
			endpoint:       "/api/v1/trip-statistics",
			body:           tripStatisticsRequest{TripIDs: []string{"t1"}},
			expectedHeader: noStore,
		},
		{
			name:           "Error response (no cache on 404)",
			method:         http.MethodGet,
			endpoint:       "/api/v1/trips/nonexistent_trip_123",
			expectedHeader: noStore,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := env.request(t, tt.method, tt.endpoint, tt.body)
			assert.Equal(t, tt.expectedHeader, resp.Header.Get("Cache-Control"), "Cache-Control header mismatch for %s", tt.endpoint)
		})
	}
}

func TestCacheControlImplicitOK(t *testing.T) {
	h := CacheControlMiddleware(30, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("body"))
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, "public, max-age=30", rec.Header().Get("Cache-Control"))
	assert.Equal(t, "body", rec.Body.String())
}
