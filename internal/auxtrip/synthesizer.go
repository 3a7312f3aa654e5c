// Package auxtrip synthesizes depot and transfer trips. A synthesized trip
// gets an elevation profile from the resolver, stored as an artifact, and
// is written as one trip row plus two stop times in a single transaction.
package auxtrip

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"shiftplanner.ebus.dev/gtfsdb"
	"shiftplanner.ebus.dev/internal/artifacts"
	"shiftplanner.ebus.dev/internal/clock"
	"shiftplanner.ebus.dev/internal/events"
	"shiftplanner.ebus.dev/internal/logging"
	"shiftplanner.ebus.dev/internal/metrics"
	"shiftplanner.ebus.dev/internal/models"
)

const DefaultCalendarKey = "auxiliary"

type ProfileResolver interface {
	Resolve(ctx context.Context, from, to models.Coordinate) (models.ElevationProfile, error)
	ProfileFromPolyline(ctx context.Context, path []models.Coordinate) (models.ElevationProfile, error)
}

type Request struct {
	Kind            models.LegKind `json:"kind"`
	DepartureStopID string         `json:"departure_stop_id"`
	ArrivalStopID   string         `json:"arrival_stop_id"`
	DepartureTime   int64          `json:"departure_time"`
	ArrivalTime     int64          `json:"arrival_time"`
	RouteID         string         `json:"route_id"`
	CalendarKey     string         `json:"calendar_key,omitempty"`
}

// Validate checks the request without touching any store.
func (r Request) Validate() error {
	if _, err := r.Kind.TripKind(); err != nil {
		return fail(ErrUnknownLegKind, err)
	}
	if strings.TrimSpace(r.DepartureStopID) == "" || strings.TrimSpace(r.ArrivalStopID) == "" {
		return fail(ErrStopNotFound, errors.New("stop id is required"))
	}
	if r.DepartureStopID == r.ArrivalStopID {
		return fail(ErrIdenticalStops, fmt.Errorf("departure and arrival stop are both %q", r.DepartureStopID))
	}
	if r.ArrivalTime < r.DepartureTime {
		return fail(ErrInvalidTimeWindow, fmt.Errorf("arrival %s before departure %s",
			clock.FormatServiceTime(r.ArrivalTime), clock.FormatServiceTime(r.DepartureTime)))
	}
	return nil
}

// Prepared is a resolved leg whose profile is already stored. Insert writes
// its rows; Discard removes the orphaned profile when the rows are not written.
type Prepared struct {
	Trip      gtfsdb.Trip
	StopTimes [2]gtfsdb.StopTime
	Profile   models.ElevationProfile
	Summary   models.TripSummary
	Leg       models.LegKind
}

type Config struct {
	CalendarKey string
	RouteID     string
}

type Synthesizer struct {
	db       *gtfsdb.Client
	resolver ProfileResolver
	profiles *artifacts.ProfileStore
	clock    clock.Clock
	events   events.Publisher
	metrics  *metrics.Metrics
	logger   *slog.Logger
	config   Config
}

func NewSynthesizer(
	db *gtfsdb.Client,
	resolver ProfileResolver,
	profiles *artifacts.ProfileStore,
	c clock.Clock,
	publisher events.Publisher,
	m *metrics.Metrics,
	logger *slog.Logger,
	config Config,
) *Synthesizer {
	if config.CalendarKey == "" {
		config.CalendarKey = DefaultCalendarKey
	}
	if config.RouteID == "" {
		config.RouteID = DefaultCalendarKey
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Synthesizer{
		db:       db,
		resolver: resolver,
		profiles: profiles,
		clock:    c,
		events:   publisher,
		metrics:  m,
		logger:   logger.With(slog.String("component", "auxtrip")),
		config:   config,
	}
}

// Synthesize creates one auxiliary trip. On any failure nothing is left in
// the database.
func (s *Synthesizer) Synthesize(ctx context.Context, req Request) (models.TripSummary, error) {
	p, err := s.Prepare(ctx, req)
	if err != nil {
		return models.TripSummary{}, err
	}

	if err := s.db.WithTransaction(ctx, func(q *gtfsdb.Queries) error {
		return p.Insert(ctx, q)
	}); err != nil {
		s.Discard(ctx, p)
		return models.TripSummary{}, fmt.Errorf("inserting auxiliary trip: %w", err)
	}

	s.Committed(ctx, p)
	return p.Summary, nil
}

// Prepare validates the request, resolves the leg geometry and stores its
// profile. It writes nothing to the database.
func (s *Synthesizer) Prepare(ctx context.Context, req Request) (*Prepared, error) {
	if req.CalendarKey == "" {
		req.CalendarKey = s.config.CalendarKey
	}
	if req.RouteID == "" {
		req.RouteID = s.config.RouteID
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	tripKind, _ := req.Kind.TripKind()

	from, err := s.stop(ctx, req.DepartureStopID)
	if err != nil {
		return nil, err
	}
	to, err := s.stop(ctx, req.ArrivalStopID)
	if err != nil {
		return nil, err
	}
	if _, err := s.db.FindService(ctx, req.CalendarKey); err != nil {
		if errors.Is(err, gtfsdb.ErrNotFound) {
			return nil, fail(ErrCalendarNotFound, err)
		}
		return nil, err
	}

	profile, err := s.resolver.Resolve(ctx,
		models.Coordinate{Lat: from.Lat, Lon: from.Lon},
		models.Coordinate{Lat: to.Lat, Lon: to.Lon})
	if err != nil {
		logging.LogError(s.logger, "failed to resolve auxiliary leg", err,
			slog.String("leg", req.Kind.String()),
			slog.String("from", from.ID),
			slog.String("to", to.ID))
		return nil, err
	}

	suffix := uuid.NewString()
	profile.ShapeID = ShapeID(req.Kind, req.RouteID, from.ID, to.ID, suffix[:8])
	if err := s.profiles.Save(ctx, profile); err != nil {
		return nil, fmt.Errorf("storing profile: %w", err)
	}

	trip := gtfsdb.Trip{
		ID:        tripKind.String() + "_" + suffix,
		RouteID:   req.RouteID,
		ServiceID: req.CalendarKey,
		Kind:      tripKind.String(),
		Headsign:  gtfsdb.ToNullString(to.Name),
		ShapeID:   gtfsdb.ToNullString(profile.ShapeID),
		CreatedAt: s.clock.NowUnixMilli(),
	}

	return &Prepared{
		Trip: trip,
		StopTimes: [2]gtfsdb.StopTime{
			{TripID: trip.ID, StopID: from.ID, StopSequence: 1, ArrivalTime: req.DepartureTime, DepartureTime: req.DepartureTime},
			{TripID: trip.ID, StopID: to.ID, StopSequence: 2, ArrivalTime: req.ArrivalTime, DepartureTime: req.ArrivalTime},
		},
		Profile: profile,
		Leg:     req.Kind,
		Summary: models.TripSummary{
			ID:            trip.ID,
			RouteID:       trip.RouteID,
			ServiceID:     trip.ServiceID,
			Kind:          tripKind,
			StartStopID:   from.ID,
			StartStopName: from.Name,
			EndStopID:     to.ID,
			EndStopName:   to.Name,
			DepartureTime: req.DepartureTime,
			ArrivalTime:   req.ArrivalTime,
			ShapeID:       profile.ShapeID,
		},
	}, nil
}

// Insert writes the trip and its two stop times using q, which is expected
// to be bound to a transaction.
func (p *Prepared) Insert(ctx context.Context, q *gtfsdb.Queries) error {
	if err := q.CreateTrip(ctx, p.Trip); err != nil {
		return fmt.Errorf("creating trip %s: %w", p.Trip.ID, err)
	}
	for _, st := range p.StopTimes {
		if err := q.CreateStopTime(ctx, st); err != nil {
			return fmt.Errorf("creating stop time %d of trip %s: %w", st.StopSequence, p.Trip.ID, err)
		}
	}
	return nil
}

// Discard deletes the stored profile of a leg whose rows were not written.
func (s *Synthesizer) Discard(ctx context.Context, p *Prepared) {
	if p == nil {
		return
	}
	if err := s.profiles.Remove(context.WithoutCancel(ctx), p.Profile.ShapeID); err != nil {
		logging.LogError(s.logger, "failed to remove orphaned profile", err,
			slog.String("shape_id", p.Profile.ShapeID))
	}
}

// Committed records a leg whose rows are durable.
func (s *Synthesizer) Committed(ctx context.Context, p *Prepared) {
	s.metrics.IncAuxiliaryTrip(p.Summary.Kind.String())
	logging.LogOperation(s.logger, "auxiliary_trip_synthesized",
		slog.String("trip_id", p.Trip.ID),
		slog.String("leg", p.Leg.String()),
		slog.String("shape_id", p.Profile.ShapeID),
		slog.Float64("distance_m", p.Profile.TotalDistance()))
	events.Emit(ctx, s.events, s.logger,
		events.NewEvent(events.TypeAuxiliaryTripSynthesized, s.clock.Now(), p.Summary))
}

func (s *Synthesizer) stop(ctx context.Context, id string) (gtfsdb.Stop, error) {
	stop, err := s.db.FetchStop(ctx, id)
	if errors.Is(err, gtfsdb.ErrNotFound) {
		return gtfsdb.Stop{}, fail(ErrStopNotFound, err)
	}
	return stop, err
}

var shapeIDReplacer = strings.NewReplacer(" ", "-", "/", "-", "\\", "-", ".", "-", "_", "-")

// ShapeID builds <leg>_<route>_<from>_<to>_<suffix>. Underscores inside the
// parts are replaced so the id splits unambiguously.
func ShapeID(kind models.LegKind, routeID, fromStopID, toStopID, suffix string) string {
	parts := []string{kind.String(), routeID, fromStopID, toStopID, suffix}
	for i := range parts {
		parts[i] = shapeIDReplacer.Replace(strings.TrimSpace(parts[i]))
	}
	return strings.Join(parts, "_")
}
