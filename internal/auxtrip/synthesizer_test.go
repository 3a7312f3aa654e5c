package auxtrip

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"shiftplanner.ebus.dev/gtfsdb"
	"shiftplanner.ebus.dev/internal/appconf"
	"shiftplanner.ebus.dev/internal/artifacts"
	"shiftplanner.ebus.dev/internal/clock"
	"shiftplanner.ebus.dev/internal/events"
	"shiftplanner.ebus.dev/internal/metrics"
	"shiftplanner.ebus.dev/internal/models"
	"shiftplanner.ebus.dev/internal/resolver"
)

type fakeResolver struct {
	calls atomic.Int32
	err   error
}

func (f *fakeResolver) Resolve(ctx context.Context, from, to models.Coordinate) (models.ElevationProfile, error) {
	return f.ProfileFromPolyline(ctx, []models.Coordinate{from, to})
}

func (f *fakeResolver) ProfileFromPolyline(_ context.Context, path []models.Coordinate) (models.ElevationProfile, error) {
	f.calls.Add(1)
	if f.err != nil {
		return models.ElevationProfile{}, f.err
	}
	alts := make([]float64, len(path))
	for i := range alts {
		alts[i] = 100 + float64(i)
	}
	return resolver.BuildProfile(path, alts)
}

type fixture struct {
	db       *gtfsdb.Client
	store    *artifacts.MemoryStore
	resolver *fakeResolver
	events   *events.Recorder
	metrics  *metrics.Metrics
	synth    *Synthesizer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	db, err := gtfsdb.NewClient(gtfsdb.NewConfig("sqlite3", ":memory:", appconf.Test, false))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	for _, s := range []gtfsdb.Stop{
		{ID: "yard", Name: "North Yard", Lat: 0, Lon: 0},
		{ID: "a", Name: "Alpha", Lat: 0, Lon: 0.01},
		{ID: "b", Name: "Bravo", Lat: 0, Lon: 0.02},
	} {
		require.NoError(t, db.Queries.UpsertStop(ctx, s))
	}
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	_, err = db.EnsureService(ctx, DefaultCalendarKey, start, start.AddDate(1, 0, 0))
	require.NoError(t, err)

	f := &fixture{
		db:       db,
		store:    artifacts.NewMemoryStore(),
		resolver: &fakeResolver{},
		events:   &events.Recorder{},
		metrics:  metrics.New(),
	}
	f.synth = NewSynthesizer(db, f.resolver, artifacts.NewProfileStore(f.store, nil),
		clock.NewMockClock(time.UnixMilli(1_700_000_000_000)), f.events, f.metrics, nil, Config{})
	return f
}

func (f *fixture) count(t *testing.T, table string) int {
	t.Helper()
	var n int
	require.NoError(t, f.db.DB.QueryRowContext(context.Background(), "SELECT COUNT(*) FROM "+table).Scan(&n))
	return n
}

func validRequest() Request {
	return Request{
		Kind:            models.LegDepotOut,
		DepartureStopID: "yard",
		ArrivalStopID:   "a",
		DepartureTime:   7*3600 + 30*60,
		ArrivalTime:     7*3600 + 45*60,
		RouteID:         "r1",
	}
}

func TestSynthesize(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	summary, err := f.synth.Synthesize(ctx, validRequest())
	require.NoError(t, err)

	assert.Equal(t, models.TripKindDepot, summary.Kind)
	assert.Equal(t, "North Yard", summary.StartStopName)
	assert.Equal(t, "Alpha", summary.EndStopName)
	assert.Equal(t, DefaultCalendarKey, summary.ServiceID)
	assert.True(t, strings.HasPrefix(summary.ShapeID, "depot-out_r1_yard_a_"))

	trip, err := f.db.FetchTrip(ctx, summary.ID)
	require.NoError(t, err)
	assert.Equal(t, "depot", trip.Kind)
	assert.Equal(t, summary.ShapeID, trip.ShapeID.String)
	assert.Equal(t, int64(1_700_000_000_000), trip.CreatedAt)

	stopTimes, err := f.db.Queries.GetStopTimesForTrip(ctx, summary.ID)
	require.NoError(t, err)
	require.Len(t, stopTimes, 2)
	assert.Equal(t, int64(1), stopTimes[0].StopSequence)
	assert.Equal(t, "yard", stopTimes[0].StopID)
	assert.Equal(t, int64(7*3600+30*60), stopTimes[0].DepartureTime)
	assert.Equal(t, int64(2), stopTimes[1].StopSequence)
	assert.Equal(t, "a", stopTimes[1].StopID)
	assert.Equal(t, int64(7*3600+45*60), stopTimes[1].ArrivalTime)

	fromDB, err := f.db.FetchTripSummary(ctx, summary.ID)
	require.NoError(t, err)
	assert.Equal(t, summary.DepartureTime, fromDB.DepartureTime)
	assert.Equal(t, summary.ArrivalTime, fromDB.ArrivalTime)

	profile, err := artifacts.NewProfileStore(f.store, nil).Load(ctx, summary.ShapeID)
	require.NoError(t, err)
	assert.Len(t, profile.Points, 2)

	assert.Equal(t, []string{events.TypeAuxiliaryTripSynthesized}, f.events.Types())
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.AuxiliaryTripsTotal.WithLabelValues("depot")))
}

func TestSynthesizeTransferKind(t *testing.T) {
	f := newFixture(t)

	req := validRequest()
	req.Kind = models.LegTransfer
	req.DepartureStopID, req.ArrivalStopID = "a", "b"

	summary, err := f.synth.Synthesize(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, models.TripKindTransfer, summary.Kind)
	assert.True(t, strings.HasPrefix(summary.ID, "transfer_"))
}

func TestSynthesizeValidation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(r *Request)
		wantErr error
	}{
		{name: "identical stops", mutate: func(r *Request) { r.ArrivalStopID = r.DepartureStopID }, wantErr: ErrIdenticalStops},
		{name: "arrival before departure", mutate: func(r *Request) { r.ArrivalTime = r.DepartureTime - 1 }, wantErr: ErrInvalidTimeWindow},
		{name: "unknown leg kind", mutate: func(r *Request) { r.Kind = 0 }, wantErr: ErrUnknownLegKind},
		{name: "unknown stop", mutate: func(r *Request) { r.ArrivalStopID = "nowhere" }, wantErr: ErrStopNotFound},
		{name: "missing calendar", mutate: func(r *Request) { r.CalendarKey = "holidays" }, wantErr: ErrCalendarNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			req := validRequest()
			tt.mutate(&req)

			_, err := f.synth.Synthesize(context.Background(), req)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)

			assert.EqualValues(t, 0, f.resolver.calls.Load())
			assert.Equal(t, 0, f.count(t, "trips"))
			assert.Equal(t, 0, f.store.Len())
		})
	}
}

func TestSynthesizeEqualTimesAllowed(t *testing.T) {
	f := newFixture(t)
	req := validRequest()
	req.ArrivalTime = req.DepartureTime

	_, err := f.synth.Synthesize(context.Background(), req)
	assert.NoError(t, err)
}

func TestSynthesizeResolverFailureWritesNothing(t *testing.T) {
	f := newFixture(t)
	f.resolver.err = &resolver.Error{Reason: "RoutingUnavailable", Err: errors.New("connection refused")}

	_, err := f.synth.Synthesize(context.Background(), validRequest())
	require.Error(t, err)
	assert.ErrorIs(t, err, resolver.ErrRoutingUnavailable)

	assert.Equal(t, 0, f.count(t, "trips"))
	assert.Equal(t, 0, f.count(t, "stop_times"))
	assert.Equal(t, 0, f.store.Len())
	assert.Empty(t, f.events.Types())
}

func TestSynthesizeTransactionFailureRollsBack(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Second insert of the pair fails, after the trip row was written.
	_, err := f.db.DB.ExecContext(ctx, "DROP TABLE stop_times")
	require.NoError(t, err)

	_, err = f.synth.Synthesize(ctx, validRequest())
	require.Error(t, err)

	assert.Equal(t, 0, f.count(t, "trips"))
	assert.Equal(t, 0, f.store.Len(), "orphaned profile removed")
	assert.Empty(t, f.events.Types())
}

func TestShapeID(t *testing.T) {
	assert.Equal(t, "depot-return_r-1_st-a_b_abcd1234",
		ShapeID(models.LegDepotReturn, "r_1", "st a", "b", "abcd1234"))
	assert.Equal(t, "transfer_route-x_a-b_c_1", ShapeID(models.LegTransfer, "route/x", "a.b", "c", "1"))
}
