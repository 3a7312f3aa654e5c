// Package tripstats computes per-trip timing, distance and elevation
// features for a batch of trips. Trips are processed independently on a
// bounded worker pool; a failing trip only fills its own result slot.
package tripstats

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
	"shiftplanner.ebus.dev/gtfsdb"
	"shiftplanner.ebus.dev/internal/artifacts"
	"shiftplanner.ebus.dev/internal/logging"
	"shiftplanner.ebus.dev/internal/metrics"
	"shiftplanner.ebus.dev/internal/models"
)

// ErrNoStops is reported for unknown trips and trips without stop times.
var ErrNoStops = errors.New("No stops found for trip") //nolint:staticcheck // exact text is part of the result contract

type Result struct {
	TripID     string      `json:"trip_id"`
	Statistics *Statistics `json:"statistics"`
	Error      *string     `json:"error"`
}

func failed(tripID string, err error) Result {
	msg := err.Error()
	return Result{TripID: tripID, Error: &msg}
}

type Engine struct {
	db       *gtfsdb.Client
	profiles *artifacts.ProfileStore
	workers  int
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

func NewEngine(db *gtfsdb.Client, profiles *artifacts.ProfileStore, workers int, m *metrics.Metrics, logger *slog.Logger) *Engine {
	if workers < 1 {
		workers = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		db:       db,
		profiles: profiles,
		workers:  workers,
		metrics:  m,
		logger:   logger.With(slog.String("component", "tripstats")),
	}
}

// Compute returns one result per id, in input order. Trips not finished
// when ctx ends carry the context error.
func (e *Engine) Compute(ctx context.Context, tripIDs []string) []Result {
	results := make([]Result, len(tripIDs))
	e.run(ctx, tripIDs, func(i int, r Result) {
		results[i] = r
	})
	return results
}

// Stream calls emit with each result as soon as it is ready. emit runs on
// the calling goroutine; an emit error stops the batch.
func (e *Engine) Stream(ctx context.Context, tripIDs []string, emit func(Result) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	ch := make(chan Result)
	done := make(chan struct{})
	go func() {
		defer close(done)
		e.run(ctx, tripIDs, func(_ int, r Result) {
			select {
			case ch <- r:
			case <-ctx.Done():
			}
		})
		close(ch)
	}()

	var emitErr error
	for r := range ch {
		if emitErr != nil {
			continue
		}
		if err := emit(r); err != nil {
			emitErr = err
			cancel()
		}
	}
	<-done
	return emitErr
}

func (e *Engine) run(ctx context.Context, tripIDs []string, deliver func(int, Result)) {
	start := time.Now()
	var ok, bad int
	tally := make(chan bool, len(tripIDs))

	var g errgroup.Group
	g.SetLimit(e.workers)
	for i, id := range tripIDs {
		g.Go(func() error {
			var r Result
			if err := ctx.Err(); err != nil {
				r = failed(id, err)
			} else {
				r = e.computeOne(ctx, id)
			}
			tally <- r.Error == nil
			deliver(i, r)
			return nil
		})
	}
	_ = g.Wait()
	close(tally)

	for success := range tally {
		if success {
			ok++
		} else {
			bad++
		}
	}
	e.metrics.ObserveStatsBatch(ok, bad, time.Since(start))
	logging.LogOperation(e.logger, "trip_statistics_computed",
		slog.Int("trips", len(tripIDs)),
		slog.Int("failed", bad),
		slog.Int64("duration_ms", time.Since(start).Milliseconds()))
}

func (e *Engine) computeOne(ctx context.Context, tripID string) Result {
	stats, err := e.ComputeTrip(ctx, tripID)
	if err != nil {
		if !errors.Is(err, ErrNoStops) {
			logging.LogError(e.logger, "failed to compute trip statistics", err, slog.String("trip_id", tripID))
		}
		return failed(tripID, err)
	}
	return Result{TripID: tripID, Statistics: &stats}
}

// ComputeTrip computes the statistics of a single trip.
func (e *Engine) ComputeTrip(ctx context.Context, tripID string) (Statistics, error) {
	stops, err := e.db.Queries.GetStopTimesForTrip(ctx, tripID)
	if err != nil {
		return Statistics{}, fmt.Errorf("loading stop times: %w", err)
	}
	if len(stops) == 0 {
		return Statistics{}, ErrNoStops
	}

	trip, err := e.db.FetchTrip(ctx, tripID)
	if err != nil {
		return Statistics{}, err
	}
	kind, err := models.ParseTripKind(trip.Kind)
	if err != nil {
		return Statistics{}, err
	}

	var profile *models.ElevationProfile
	if trip.ShapeID.Valid && trip.ShapeID.String != "" && e.profiles != nil {
		p, err := e.profiles.Load(ctx, trip.ShapeID.String)
		switch {
		case err == nil:
			profile = &p
		case errors.Is(err, artifacts.ErrNotFound):
		default:
			return Statistics{}, fmt.Errorf("loading profile %q: %w", trip.ShapeID.String, err)
		}
	}

	return Compute(kind, stops, profile), nil
}
