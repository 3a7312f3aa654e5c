package shift

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"shiftplanner.ebus.dev/gtfsdb"
	"shiftplanner.ebus.dev/internal/auxtrip"
	"shiftplanner.ebus.dev/internal/clock"
	"shiftplanner.ebus.dev/internal/events"
	"shiftplanner.ebus.dev/internal/logging"
	"shiftplanner.ebus.dev/internal/metrics"
	"shiftplanner.ebus.dev/internal/models"
)

var ErrShiftNotFound = errors.New("shift not found")

// Shift is a committed duty: every trip the vehicle runs, in order,
// including the synthesized depot and transfer trips.
type Shift struct {
	ID        string               `json:"id"`
	Name      string               `json:"name"`
	VehicleID string               `json:"vehicle_id,omitempty"`
	CreatedAt int64                `json:"created_at"`
	Trips     []models.TripSummary `json:"trips"`
}

type Committer struct {
	db      *gtfsdb.Client
	synth   *auxtrip.Synthesizer
	clock   clock.Clock
	events  events.Publisher
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func NewCommitter(db *gtfsdb.Client, synth *auxtrip.Synthesizer, c clock.Clock, publisher events.Publisher, m *metrics.Metrics, logger *slog.Logger) *Committer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Committer{
		db:      db,
		synth:   synth,
		clock:   c,
		events:  publisher,
		metrics: m,
		logger:  logger.With(slog.String("component", "shift_committer")),
	}
}

// ResolveDepot fills in the stop of a depot leg.
func (c *Committer) ResolveDepot(ctx context.Context, leg DepotLeg) (DepotLeg, error) {
	depot, err := c.db.FetchDepot(ctx, leg.DepotID)
	if errors.Is(err, gtfsdb.ErrNotFound) {
		return leg, reject(ReasonDepotNotFound, "depot %q does not exist", leg.DepotID)
	}
	if err != nil {
		return leg, err
	}
	stop, err := c.db.FetchStop(ctx, depot.StopID)
	if err != nil {
		return leg, fmt.Errorf("depot %q: %w", leg.DepotID, err)
	}
	leg.StopID = stop.ID
	leg.StopName = stop.Name
	return leg, nil
}

// LookupTrip loads the current summary of a trip.
func (c *Committer) LookupTrip(ctx context.Context, id string) (models.TripSummary, error) {
	row, err := c.db.FetchTripSummary(ctx, id)
	if errors.Is(err, gtfsdb.ErrNotFound) {
		return models.TripSummary{}, reject(ReasonTripNotFound, "trip %q does not exist or has no stops", id)
	}
	if err != nil {
		return models.TripSummary{}, err
	}
	return models.TripSummaryFromRow(row)
}

// plannedLeg is one element of the committed chain: either an existing trip
// or an auxiliary leg still to be synthesized.
type plannedLeg struct {
	trip    *models.TripSummary
	request *auxtrip.Request
}

// Commit synthesizes the depot and transfer legs of a finished draft and
// stores the whole chain as a shift. Either everything is written or
// nothing is; the caller keeps its draft for a retry.
func (c *Committer) Commit(ctx context.Context, draft Draft, name, vehicleID string) (Shift, error) {
	if st := draft.State(); st != StateDepotReturned {
		return Shift{}, illegal("commit", st)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return Shift{}, reject(ReasonShiftNameRequired, "shift name is required")
	}

	leave, err := c.ResolveDepot(ctx, *draft.LeaveDepot)
	if err != nil {
		return Shift{}, err
	}
	ret, err := c.ResolveDepot(ctx, *draft.ReturnDepot)
	if err != nil {
		return Shift{}, err
	}
	draft.LeaveDepot, draft.ReturnDepot = &leave, &ret

	checked, err := draft.Replay(func(t models.TripSummary) (models.TripSummary, error) {
		return c.LookupTrip(ctx, t.ID)
	})
	if err != nil {
		return Shift{}, err
	}

	chain := planChain(checked)

	var prepared []*auxtrip.Prepared
	discardAll := func() {
		for _, p := range prepared {
			c.synth.Discard(ctx, p)
		}
	}

	preparedByIndex := make(map[int]*auxtrip.Prepared)
	for i, leg := range chain {
		if leg.request == nil {
			continue
		}
		p, err := c.synth.Prepare(ctx, *leg.request)
		if err != nil {
			discardAll()
			return Shift{}, fmt.Errorf("preparing %s leg: %w", leg.request.Kind, err)
		}
		prepared = append(prepared, p)
		preparedByIndex[i] = p
	}

	shift := Shift{
		ID:        uuid.NewString(),
		Name:      name,
		VehicleID: strings.TrimSpace(vehicleID),
		CreatedAt: c.clock.NowUnixMilli(),
		Trips:     make([]models.TripSummary, 0, len(chain)),
	}
	for i, leg := range chain {
		if p, ok := preparedByIndex[i]; ok {
			shift.Trips = append(shift.Trips, p.Summary)
			continue
		}
		shift.Trips = append(shift.Trips, *leg.trip)
	}

	err = c.db.WithTransaction(ctx, func(q *gtfsdb.Queries) error {
		for _, p := range prepared {
			if err := p.Insert(ctx, q); err != nil {
				return err
			}
		}
		if err := q.CreateShift(ctx, gtfsdb.Shift{
			ID:        shift.ID,
			Name:      shift.Name,
			VehicleID: shift.VehicleID,
			CreatedAt: shift.CreatedAt,
		}); err != nil {
			return fmt.Errorf("creating shift: %w", err)
		}
		for pos, trip := range shift.Trips {
			if err := q.CreateShiftTrip(ctx, gtfsdb.ShiftTrip{
				ShiftID:  shift.ID,
				Position: int64(pos),
				TripID:   trip.ID,
			}); err != nil {
				return fmt.Errorf("adding trip %s to shift: %w", trip.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		discardAll()
		logging.LogError(c.logger, "failed to commit shift", err, slog.String("name", name))
		return Shift{}, err
	}

	for _, p := range prepared {
		c.synth.Committed(ctx, p)
	}
	c.metrics.IncShiftCommitted()
	logging.LogOperation(c.logger, "shift_committed",
		slog.String("shift_id", shift.ID),
		slog.Int("trips", len(shift.Trips)),
		slog.Int("auxiliary_trips", len(prepared)))
	events.Emit(ctx, c.events, c.logger, events.NewEvent(events.TypeShiftCommitted, c.clock.Now(), shift))

	return shift, nil
}

// planChain lays out the committed order: leave-depot leg, then each trip
// preceded by its transfer leg, then the return-depot leg. Legs that start
// and end at the same stop need no movement and are left out.
func planChain(d Draft) []plannedLeg {
	var chain []plannedLeg
	add := func(kind models.LegKind, fromStop, toStop string, dep, arr int64, routeID string) {
		if fromStop == toStop {
			return
		}
		chain = append(chain, plannedLeg{request: &auxtrip.Request{
			Kind:            kind,
			DepartureStopID: fromStop,
			ArrivalStopID:   toStop,
			DepartureTime:   dep,
			ArrivalTime:     arr,
			RouteID:         routeID,
		}})
	}

	first := d.Legs[0].Trip
	add(models.LegDepotOut, d.LeaveDepot.StopID, first.StartStopID, d.LeaveDepot.Time, first.DepartureTime, first.RouteID)

	for i, leg := range d.Legs {
		if leg.Transfer != nil && i > 0 {
			prev := d.Legs[i-1].Trip
			add(models.LegTransfer, prev.EndStopID, leg.Trip.StartStopID,
				leg.Transfer.DepartureTime, leg.Transfer.ArrivalTime, leg.Trip.RouteID)
		}
		trip := leg.Trip
		chain = append(chain, plannedLeg{trip: &trip})
	}

	last := d.Legs[len(d.Legs)-1].Trip
	add(models.LegDepotReturn, last.EndStopID, d.ReturnDepot.StopID, last.ArrivalTime, d.ReturnDepot.Time, last.RouteID)
	return chain
}

// Get loads a committed shift with its trips in order.
func (c *Committer) Get(ctx context.Context, id string) (Shift, error) {
	row, err := c.db.FetchShift(ctx, id)
	if errors.Is(err, gtfsdb.ErrNotFound) {
		return Shift{}, fmt.Errorf("%w: %s", ErrShiftNotFound, id)
	}
	if err != nil {
		return Shift{}, err
	}
	members, err := c.db.Queries.ListShiftTrips(ctx, id)
	if err != nil {
		return Shift{}, err
	}

	shift := Shift{
		ID:        row.ID,
		Name:      row.Name,
		VehicleID: row.VehicleID,
		CreatedAt: row.CreatedAt,
		Trips:     make([]models.TripSummary, 0, len(members)),
	}
	for _, m := range members {
		trip, err := c.LookupTrip(ctx, m.TripID)
		if err != nil {
			return Shift{}, err
		}
		shift.Trips = append(shift.Trips, trip)
	}
	return shift, nil
}
