package restapi

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"shiftplanner.ebus.dev/internal/appconf"
	"shiftplanner.ebus.dev/internal/auxtrip"
	"shiftplanner.ebus.dev/internal/events"
	"shiftplanner.ebus.dev/internal/models"
	"shiftplanner.ebus.dev/internal/resolver"
)

func TestAuxiliaryTripHandler(t *testing.T) {
	env := newTestEnv(t)

	resp, got := call[entry[models.TripSummary]](t, env, http.MethodPost, "/api/v1/auxiliary-trips", map[string]any{
		"kind":              "depot_out",
		"departure_stop_id": "yard",
		"arrival_stop_id":   "a",
		"departure_time":    "07:30:00",
		"arrival_time":      hms(7, 45),
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, got.Text)

	trip := got.Data.Entry
	assert.NotEmpty(t, trip.ID)
	assert.Equal(t, models.TripKindDepot, trip.Kind)
	assert.Equal(t, auxtrip.DefaultCalendarKey, trip.ServiceID)
	assert.Equal(t, "North Yard", trip.StartStopName)
	assert.Equal(t, "Alpha", trip.EndStopName)
	assert.Equal(t, hms(7, 30), trip.DepartureTime)
	assert.Equal(t, hms(7, 45), trip.ArrivalTime)
	assert.NotEmpty(t, trip.ShapeID)

	assert.Equal(t, []string{events.TypeAuxiliaryTripSynthesized}, env.events.Types())
	assert.Equal(t, 1.0, testutil.ToFloat64(env.metrics.AuxiliaryTripsTotal.WithLabelValues("depot")))

	// the new trip is immediately readable
	resp, _ = call[entry[models.TripSummary]](t, env, http.MethodGet, "/api/v1/trips/"+trip.ID, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAuxiliaryTripHandlerRejections(t *testing.T) {
	tests := []struct {
		name        string
		body        map[string]any
		resolverErr error
		wantStatus  int
		wantReason  string
	}{
		{
			name:       "identical stops",
			body:       map[string]any{"kind": "transfer", "departure_stop_id": "a", "arrival_stop_id": "a", "departure_time": 100, "arrival_time": 200},
			wantStatus: http.StatusUnprocessableEntity,
			wantReason: auxtrip.ErrIdenticalStops.Reason,
		},
		{
			name:       "arrival before departure",
			body:       map[string]any{"kind": "transfer", "departure_stop_id": "a", "arrival_stop_id": "b", "departure_time": "09:00:00", "arrival_time": "08:00:00"},
			wantStatus: http.StatusUnprocessableEntity,
			wantReason: auxtrip.ErrInvalidTimeWindow.Reason,
		},
		{
			name:       "missing kind",
			body:       map[string]any{"departure_stop_id": "a", "arrival_stop_id": "b", "departure_time": 100, "arrival_time": 200},
			wantStatus: http.StatusUnprocessableEntity,
			wantReason: auxtrip.ErrUnknownLegKind.Reason,
		},
		{
			name:       "unknown kind",
			body:       map[string]any{"kind": "deadhead", "departure_stop_id": "a", "arrival_stop_id": "b", "departure_time": 100, "arrival_time": 200},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "unknown stop",
			body:       map[string]any{"kind": "depot_return", "departure_stop_id": "a", "arrival_stop_id": "ghost", "departure_time": 100, "arrival_time": 200},
			wantStatus: http.StatusNotFound,
			wantReason: auxtrip.ErrStopNotFound.Reason,
		},
		{
			name:       "unknown calendar",
			body:       map[string]any{"kind": "transfer", "departure_stop_id": "a", "arrival_stop_id": "b", "departure_time": 100, "arrival_time": 200, "calendar_key": "weekend"},
			wantStatus: http.StatusNotFound,
			wantReason: auxtrip.ErrCalendarNotFound.Reason,
		},
		{
			name:        "routing outage",
			body:        map[string]any{"kind": "transfer", "departure_stop_id": "a", "arrival_stop_id": "b", "departure_time": 100, "arrival_time": 200},
			resolverErr: &resolver.Error{Reason: resolver.ErrRoutingUnavailable.Reason, Err: errors.New("connection refused")},
			wantStatus:  http.StatusServiceUnavailable,
			wantReason:  "RoutingUnavailable",
		},
		{
			name:        "degenerate route",
			body:        map[string]any{"kind": "transfer", "departure_stop_id": "a", "arrival_stop_id": "b", "departure_time": 100, "arrival_time": 200},
			resolverErr: &resolver.Error{Reason: resolver.ErrRoutingDegenerate.Reason, Err: errors.New("single point")},
			wantStatus:  http.StatusUnprocessableEntity,
			wantReason:  "RoutingDegenerate",
		},
		{
			name:        "malformed collaborator reply",
			body:        map[string]any{"kind": "transfer", "departure_stop_id": "a", "arrival_stop_id": "b", "departure_time": 100, "arrival_time": 200},
			resolverErr: &resolver.Error{Reason: resolver.ErrResolverData.Reason, Err: errors.New("2 elevations for 3 points")},
			wantStatus:  http.StatusBadGateway,
			wantReason:  "ResolverDataError",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			env.resolver.fail(tt.resolverErr)

			resp, got := call[ErrorData](t, env, http.MethodPost, "/api/v1/auxiliary-trips", tt.body)
			require.Equal(t, tt.wantStatus, resp.StatusCode, got.Text)
			assert.Equal(t, tt.wantReason, got.Data.Reason)
			assert.Empty(t, env.events.Types())
		})
	}
}

func TestAuxiliaryTripHandlerDeadline(t *testing.T) {
	env := newTestEnvWithConfig(t, func(cfg *appconf.Config) { cfg.RequestTimeout = 50 * time.Millisecond })
	env.resolver.hang()

	resp, got := call[ErrorData](t, env, http.MethodPost, "/api/v1/auxiliary-trips", map[string]any{
		"kind": "transfer", "departure_stop_id": "a", "arrival_stop_id": "b", "departure_time": 100, "arrival_time": 200,
	})
	require.Equal(t, http.StatusGatewayTimeout, resp.StatusCode, got.Text)
	assert.Equal(t, "Timeout", got.Data.Reason)
	assert.Empty(t, env.events.Types())
}
