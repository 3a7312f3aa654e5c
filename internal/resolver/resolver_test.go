package resolver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-polyline"
	"shiftplanner.ebus.dev/internal/metrics"
	"shiftplanner.ebus.dev/internal/models"
)

var (
	origin = models.Coordinate{Lat: 0, Lon: 0}
	dest   = models.Coordinate{Lat: 0, Lon: 0.02}
)

func testConfig() Config {
	return Config{Timeout: time.Second, MaxAttempts: 3, BaseBackoff: time.Millisecond}
}

func osrmServer(t *testing.T, calls *atomic.Int32, handler func(n int32, w http.ResponseWriter)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasPrefix(r.URL.Path, "/route/v1/driving/"))
		assert.Equal(t, "full", r.URL.Query().Get("overview"))
		handler(calls.Add(1), w)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func writeRoute(w http.ResponseWriter, coords [][]float64) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"code":   "Ok",
		"routes": []map[string]any{{"geometry": string(polyline.EncodeCoords(coords)), "distance": 2000}},
	})
}

func elevationServer(t *testing.T, received *atomic.Int32, altitude func(i int) float64) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/lookup", r.URL.Path)

		var req elevationRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		received.Store(int32(len(req.Locations)))

		results := make([]map[string]any, len(req.Locations))
		for i, loc := range req.Locations {
			results[i] = map[string]any{"latitude": loc.Latitude, "longitude": loc.Longitude, "elevation": altitude(i)}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"results": results})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestResolveHappyPath(t *testing.T) {
	var routeCalls, elevPoints atomic.Int32
	routing := osrmServer(t, &routeCalls, func(_ int32, w http.ResponseWriter) {
		writeRoute(w, [][]float64{{0, 0}, {0, 0.01}, {0, 0.01}, {0, 0.02}})
	})
	elevation := elevationServer(t, &elevPoints, func(i int) float64 { return 100 + float64(i)*10 })

	m := metrics.New()
	r := New(NewOSRMClient(routing.URL, time.Second), NewOpenElevationClient(elevation.URL, time.Second), testConfig(), m, nil)

	profile, err := r.Resolve(context.Background(), origin, dest)
	require.NoError(t, err)

	assert.EqualValues(t, 1, routeCalls.Load())
	assert.EqualValues(t, 3, elevPoints.Load(), "duplicate point collapsed before lookup")
	require.Len(t, profile.Points, 3)
	assert.NoError(t, profile.Validate())
	assert.Equal(t, 0.0, profile.Points[0].CumulativeDistance)
	assert.InDelta(t, 2223.9, profile.TotalDistance(), 1.0)
	assert.Equal(t, []float64{100, 110, 120}, profile.Altitudes())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ResolverCallsTotal.WithLabelValues("routing", "ok")))
}

func TestResolveRetriesTransientFailures(t *testing.T) {
	var calls, elevPoints atomic.Int32
	routing := osrmServer(t, &calls, func(n int32, w http.ResponseWriter) {
		if n < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		writeRoute(w, [][]float64{{0, 0}, {0, 0.02}})
	})
	elevation := elevationServer(t, &elevPoints, func(int) float64 { return 5 })

	m := metrics.New()
	r := New(NewOSRMClient(routing.URL, time.Second), NewOpenElevationClient(elevation.URL, time.Second), testConfig(), m, nil)

	_, err := r.Resolve(context.Background(), origin, dest)
	require.NoError(t, err)
	assert.EqualValues(t, 3, calls.Load())
	assert.Equal(t, 2.0, testutil.ToFloat64(m.ResolverRetriesTotal.WithLabelValues("routing")))
}

func TestResolveFailures(t *testing.T) {
	tests := []struct {
		name      string
		routing   func(n int32, w http.ResponseWriter)
		wantErr   error
		wantCalls int32
	}{
		{
			name:      "retries exhausted",
			routing:   func(_ int32, w http.ResponseWriter) { w.WriteHeader(http.StatusBadGateway) },
			wantErr:   ErrRoutingUnavailable,
			wantCalls: 3,
		},
		{
			name:      "rate limited is retried",
			routing:   func(_ int32, w http.ResponseWriter) { w.WriteHeader(http.StatusTooManyRequests) },
			wantErr:   ErrRoutingUnavailable,
			wantCalls: 3,
		},
		{
			name:      "client error is not retried",
			routing:   func(_ int32, w http.ResponseWriter) { w.WriteHeader(http.StatusBadRequest) },
			wantErr:   ErrRoutingUnavailable,
			wantCalls: 1,
		},
		{
			name:      "not found is unavailable",
			routing:   func(_ int32, w http.ResponseWriter) { w.WriteHeader(http.StatusNotFound) },
			wantErr:   ErrRoutingUnavailable,
			wantCalls: 1,
		},
		{
			name:      "forbidden is unavailable",
			routing:   func(_ int32, w http.ResponseWriter) { w.WriteHeader(http.StatusForbidden) },
			wantErr:   ErrRoutingUnavailable,
			wantCalls: 1,
		},
		{
			name: "no route",
			routing: func(_ int32, w http.ResponseWriter) {
				w.WriteHeader(http.StatusBadRequest)
				_, _ = w.Write([]byte(`{"code":"NoRoute","message":"Impossible route"}`))
			},
			wantErr:   ErrRoutingDegenerate,
			wantCalls: 1,
		},
		{
			name:      "single point",
			routing:   func(_ int32, w http.ResponseWriter) { writeRoute(w, [][]float64{{0, 0}}) },
			wantErr:   ErrRoutingDegenerate,
			wantCalls: 1,
		},
		{
			name:      "zero length",
			routing:   func(_ int32, w http.ResponseWriter) { writeRoute(w, [][]float64{{0, 0}, {0, 0}}) },
			wantErr:   ErrResolverData,
			wantCalls: 1,
		},
		{
			name:      "malformed body",
			routing:   func(_ int32, w http.ResponseWriter) { _, _ = w.Write([]byte(`{"code":`)) },
			wantErr:   ErrResolverData,
			wantCalls: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls, elevPoints atomic.Int32
			routing := osrmServer(t, &calls, tt.routing)
			elevation := elevationServer(t, &elevPoints, func(int) float64 { return 1 })

			r := New(NewOSRMClient(routing.URL, time.Second), NewOpenElevationClient(elevation.URL, time.Second), testConfig(), nil, nil)
			_, err := r.Resolve(context.Background(), origin, dest)

			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, tt.wantCalls, calls.Load())
			assert.EqualValues(t, 0, elevPoints.Load())
		})
	}
}

type fakeRouting struct {
	path []models.Coordinate
}

func (f fakeRouting) Route(context.Context, models.Coordinate, models.Coordinate) ([]models.Coordinate, error) {
	return f.path, nil
}

type fakeElevation struct {
	calls atomic.Int32
	fn    func(points []models.Coordinate) ([]float64, error)
}

func (f *fakeElevation) Elevations(_ context.Context, points []models.Coordinate) ([]float64, error) {
	f.calls.Add(1)
	return f.fn(points)
}

func TestElevationFailures(t *testing.T) {
	path := []models.Coordinate{origin, {Lat: 0, Lon: 0.01}, dest}

	t.Run("unavailable after retries", func(t *testing.T) {
		elev := &fakeElevation{fn: func([]models.Coordinate) ([]float64, error) {
			return nil, transient(errors.New("connection refused"))
		}}
		r := New(fakeRouting{path: path}, elev, testConfig(), nil, nil)

		_, err := r.Resolve(context.Background(), origin, dest)
		assert.ErrorIs(t, err, ErrElevationUnavailable)
		assert.Equal(t, "ElevationUnavailable", Reason(err))
		assert.EqualValues(t, 3, elev.calls.Load())
	})

	t.Run("forbidden is unavailable without retry", func(t *testing.T) {
		var requests atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requests.Add(1)
			w.WriteHeader(http.StatusForbidden)
		}))
		defer srv.Close()

		r := New(fakeRouting{path: path}, NewOpenElevationClient(srv.URL, time.Second), testConfig(), nil, nil)
		_, err := r.Resolve(context.Background(), origin, dest)
		assert.ErrorIs(t, err, ErrElevationUnavailable)
		assert.NotErrorIs(t, err, ErrResolverData)
		assert.EqualValues(t, 1, requests.Load())
	})

	t.Run("mismatched batch", func(t *testing.T) {
		var points atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			points.Add(1)
			_, _ = w.Write([]byte(`{"results":[{"latitude":0,"longitude":0,"elevation":1}]}`))
		}))
		defer srv.Close()

		r := New(fakeRouting{path: path}, NewOpenElevationClient(srv.URL, time.Second), testConfig(), nil, nil)
		_, err := r.Resolve(context.Background(), origin, dest)
		assert.ErrorIs(t, err, ErrResolverData)
		assert.EqualValues(t, 1, points.Load())
	})
}

func TestResolveHonoursCancellation(t *testing.T) {
	elev := &fakeElevation{fn: func([]models.Coordinate) ([]float64, error) {
		return nil, transient(errors.New("down"))
	}}
	cfg := testConfig()
	cfg.BaseBackoff = time.Hour

	r := New(fakeRouting{path: []models.Coordinate{origin, dest}}, elev, cfg, nil, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := r.Resolve(ctx, origin, dest)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.ErrorIs(t, err, ErrElevationUnavailable)
	assert.EqualValues(t, 1, elev.calls.Load())
}

func TestPerAttemptTimeoutIsRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	defer srv.Close()

	cfg := testConfig()
	cfg.Timeout = 20 * time.Millisecond
	cfg.MaxAttempts = 2

	r := New(NewOSRMClient(srv.URL, time.Second), &fakeElevation{}, cfg, nil, nil)
	_, err := r.Resolve(context.Background(), origin, dest)
	assert.ErrorIs(t, err, ErrRoutingUnavailable)
	assert.EqualValues(t, 2, calls.Load())
}

func TestBuildProfile(t *testing.T) {
	points := []models.Coordinate{{Lat: 0, Lon: 0}, {Lat: 0, Lon: 0.01}}

	profile, err := BuildProfile(points, []float64{10, 20})
	require.NoError(t, err)
	assert.InDelta(t, 1111.95, profile.Points[1].CumulativeDistance, 0.01)
	assert.Equal(t, 1, profile.Points[1].PointNumber)

	_, err = BuildProfile(points, []float64{10})
	assert.Error(t, err)

	_, err = BuildProfile([]models.Coordinate{{Lat: 1, Lon: 1}, {Lat: 1, Lon: 1}}, []float64{1, 1})
	assert.ErrorIs(t, err, models.ErrProfileNotMonotonic)
}

func TestProfileFromPolylineZeroLength(t *testing.T) {
	elev := &fakeElevation{fn: func(p []models.Coordinate) ([]float64, error) { return make([]float64, len(p)), nil }}
	r := New(nil, elev, testConfig(), nil, nil)

	_, err := r.ProfileFromPolyline(context.Background(), []models.Coordinate{origin, origin, origin})
	assert.ErrorIs(t, err, ErrResolverData)
	assert.EqualValues(t, 0, elev.calls.Load())
}
