package restapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"shiftplanner.ebus.dev/gtfsdb"
	"shiftplanner.ebus.dev/internal/app"
	"shiftplanner.ebus.dev/internal/appconf"
	"shiftplanner.ebus.dev/internal/artifacts"
	"shiftplanner.ebus.dev/internal/auxtrip"
	"shiftplanner.ebus.dev/internal/clock"
	"shiftplanner.ebus.dev/internal/events"
	"shiftplanner.ebus.dev/internal/metrics"
	"shiftplanner.ebus.dev/internal/models"
	"shiftplanner.ebus.dev/internal/resolver"
	"shiftplanner.ebus.dev/internal/shift"
	"shiftplanner.ebus.dev/internal/stopindex"
	"shiftplanner.ebus.dev/internal/tripstats"
)

const testAPIKey = "test"

func hms(h, m int) int64 { return int64(h*3600 + m*60) }

// stubResolver builds straight-line profiles climbing one meter per point.
type stubResolver struct {
	mu    sync.Mutex
	err   error
	stall bool
}

func (s *stubResolver) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// hang makes every call wait until its context ends.
func (s *stubResolver) hang() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stall = true
}

func (s *stubResolver) Resolve(ctx context.Context, from, to models.Coordinate) (models.ElevationProfile, error) {
	return s.ProfileFromPolyline(ctx, []models.Coordinate{from, to})
}

func (s *stubResolver) ProfileFromPolyline(ctx context.Context, path []models.Coordinate) (models.ElevationProfile, error) {
	s.mu.Lock()
	err, stall := s.err, s.stall
	s.mu.Unlock()
	if stall {
		<-ctx.Done()
		return models.ElevationProfile{}, &resolver.Error{Reason: resolver.ErrRoutingUnavailable.Reason, Err: ctx.Err()}
	}
	if err != nil {
		return models.ElevationProfile{}, err
	}
	alts := make([]float64, len(path))
	for i := range alts {
		alts[i] = 100 + float64(i)
	}
	return resolver.BuildProfile(path, alts)
}

type testEnv struct {
	api      *RestAPI
	server   *httptest.Server
	db       *gtfsdb.Client
	resolver *stubResolver
	events   *events.Recorder
	metrics  *metrics.Metrics
}

// createTestApi wires a RestAPI over an in-memory database holding a depot,
// five stops on the equator and three scheduled trips on route r1.
func createTestApi(t *testing.T) *RestAPI {
	return newTestEnv(t).api
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWithConfig(t, nil)
}

// newTestEnvWithConfig lets a test adjust the application config before the
// server starts.
func newTestEnvWithConfig(t *testing.T, configure func(*appconf.Config)) *testEnv {
	t.Helper()
	ctx := context.Background()

	db, err := gtfsdb.NewClient(gtfsdb.NewConfig("sqlite3", ":memory:", appconf.Test, false))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	for _, s := range []gtfsdb.Stop{
		{ID: "yard", Name: "North Yard", Lat: 0, Lon: 0},
		{ID: "a", Name: "Alpha", Lat: 0, Lon: 0.01},
		{ID: "b", Name: "Bravo", Lat: 0, Lon: 0.02},
		{ID: "c", Name: "Charlie", Lat: 0, Lon: 0.03},
		{ID: "d", Name: "Delta", Lat: 0, Lon: 0.04},
	} {
		require.NoError(t, db.Queries.UpsertStop(ctx, s))
	}
	require.NoError(t, db.Queries.UpsertDepot(ctx, gtfsdb.Depot{ID: "d1", Name: "North", StopID: "yard"}))

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	_, err = db.EnsureService(ctx, auxtrip.DefaultCalendarKey, start, start.AddDate(1, 0, 0))
	require.NoError(t, err)

	for _, s := range []struct {
		id       string
		from, to string
		dep, arr int64
	}{
		{"t1", "a", "b", hms(8, 0), hms(8, 20)},
		{"t2", "b", "c", hms(8, 30), hms(8, 50)},
		{"t3", "d", "a", hms(9, 30), hms(10, 0)},
	} {
		require.NoError(t, db.Queries.CreateTrip(ctx, gtfsdb.Trip{ID: s.id, RouteID: "r1", ServiceID: "wk", Kind: "scheduled"}))
		require.NoError(t, db.Queries.CreateStopTime(ctx, gtfsdb.StopTime{TripID: s.id, StopID: s.from, StopSequence: 1, ArrivalTime: s.dep, DepartureTime: s.dep}))
		require.NoError(t, db.Queries.CreateStopTime(ctx, gtfsdb.StopTime{TripID: s.id, StopID: s.to, StopSequence: 2, ArrivalTime: s.arr, DepartureTime: s.arr}))
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	c := clock.NewMockClock(time.UnixMilli(1_700_000_000_000))
	m := metrics.New()
	rec := &events.Recorder{}
	res := &stubResolver{}
	profiles := artifacts.NewProfileStore(artifacts.NewMemoryStore(), logger)

	idx, err := stopindex.Load(ctx, db, logger)
	require.NoError(t, err)

	cfg := appconf.Config{
		ApiKeys:         []string{testAPIKey},
		RateLimit:       100,
		ArtifactBackend: "file",
	}
	if configure != nil {
		configure(&cfg)
	}

	synth := auxtrip.NewSynthesizer(db, res, profiles, c, rec, m, logger, auxtrip.Config{})
	a := &app.Application{
		Config:      cfg,
		Logger:      logger,
		DB:          db,
		Clock:       c,
		Metrics:     m,
		Profiles:    profiles,
		Events:      rec,
		Synthesizer: synth,
		Committer:   shift.NewCommitter(db, synth, c, rec, m, logger),
		Stats:       tripstats.NewEngine(db, profiles, 4, m, logger),
		Stops:       idx,
	}

	api := NewRestAPI(a)
	server := httptest.NewServer(api.Handler())
	t.Cleanup(func() {
		server.Close()
		api.Shutdown()
	})

	return &testEnv{api: api, server: server, db: db, resolver: res, events: rec, metrics: m}
}

// envelope mirrors models.ResponseModel with a typed payload.
type envelope[T any] struct {
	Code int    `json:"code"`
	Text string `json:"text"`
	Data T      `json:"data"`
}

type entry[T any] struct {
	Entry T `json:"entry"`
}

type list[T any] struct {
	List          []T  `json:"list"`
	LimitExceeded bool `json:"limitExceeded"`
}

func (e *testEnv) request(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, e.server.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("X-API-Key", testAPIKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

// call performs a request and decodes the response envelope.
func call[T any](t *testing.T, e *testEnv, method, path string, body any) (*http.Response, envelope[T]) {
	t.Helper()
	resp := e.request(t, method, path, body)
	var env envelope[T]
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	return resp, env
}
