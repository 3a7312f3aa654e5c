// Package resolver turns a pair of coordinates into an elevation profile by
// asking a routing service for the driving path and an elevation service
// for the altitude of every path point.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"
	"shiftplanner.ebus.dev/internal/logging"
	"shiftplanner.ebus.dev/internal/metrics"
	"shiftplanner.ebus.dev/internal/models"
	"shiftplanner.ebus.dev/internal/utils"
)

const (
	collaboratorRouting   = "routing"
	collaboratorElevation = "elevation"
)

type RoutingService interface {
	Route(ctx context.Context, from, to models.Coordinate) ([]models.Coordinate, error)
}

type ElevationService interface {
	Elevations(ctx context.Context, points []models.Coordinate) ([]float64, error)
}

type Config struct {
	// Timeout bounds each single collaborator request.
	Timeout     time.Duration
	MaxAttempts int
	BaseBackoff time.Duration
	// RequestsPerSecond throttles outbound requests; 0 disables throttling.
	RequestsPerSecond float64
}

type Resolver struct {
	routing   RoutingService
	elevation ElevationService
	config    Config
	limiter   *rate.Limiter
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

func New(routing RoutingService, elevation ElevationService, config Config, m *metrics.Metrics, logger *slog.Logger) *Resolver {
	if config.MaxAttempts < 1 {
		config.MaxAttempts = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	r := &Resolver{
		routing:   routing,
		elevation: elevation,
		config:    config,
		metrics:   m,
		logger:    logger.With(slog.String("component", "resolver")),
	}
	if config.RequestsPerSecond > 0 {
		r.limiter = rate.NewLimiter(rate.Limit(config.RequestsPerSecond), 1)
	}
	return r
}

// Resolve returns the elevation profile of the driving path between from
// and to. The returned profile has no shape id.
func (r *Resolver) Resolve(ctx context.Context, from, to models.Coordinate) (models.ElevationProfile, error) {
	var path []models.Coordinate
	err := r.call(ctx, collaboratorRouting, func(ctx context.Context) error {
		var err error
		path, err = r.routing.Route(ctx, from, to)
		return err
	})
	if err != nil {
		return models.ElevationProfile{}, r.failure(ErrRoutingUnavailable, err)
	}
	if len(path) < 2 {
		return models.ElevationProfile{}, wrap(ErrRoutingDegenerate,
			fmt.Errorf("route has %d points", len(path)))
	}
	return r.ProfileFromPolyline(ctx, path)
}

// ProfileFromPolyline samples altitudes for a known path and assembles the
// profile. Consecutive duplicate points are dropped before the lookup.
func (r *Resolver) ProfileFromPolyline(ctx context.Context, path []models.Coordinate) (models.ElevationProfile, error) {
	if len(path) < 2 {
		return models.ElevationProfile{}, wrap(ErrRoutingDegenerate,
			fmt.Errorf("path has %d points", len(path)))
	}
	points := collapseDuplicates(path)
	if len(points) < 2 {
		return models.ElevationProfile{}, wrap(ErrResolverData, errors.New("path has zero length"))
	}

	var alts []float64
	err := r.call(ctx, collaboratorElevation, func(ctx context.Context) error {
		var err error
		alts, err = r.elevation.Elevations(ctx, points)
		return err
	})
	if err != nil {
		return models.ElevationProfile{}, r.failure(ErrElevationUnavailable, err)
	}

	profile, err := BuildProfile(points, alts)
	if err != nil {
		return models.ElevationProfile{}, wrap(ErrResolverData, err)
	}
	logging.LogOperation(r.logger, "profile_resolved",
		slog.Int("points", len(profile.Points)),
		slog.Float64("distance_m", profile.TotalDistance()))
	return profile, nil
}

// BuildProfile pairs points with altitudes and assigns cumulative
// great-circle distance, starting at 0.
func BuildProfile(points []models.Coordinate, alts []float64) (models.ElevationProfile, error) {
	if len(points) != len(alts) {
		return models.ElevationProfile{}, fmt.Errorf("elevation batch size mismatch: %d points, %d altitudes", len(points), len(alts))
	}
	lats := make([]float64, len(points))
	lons := make([]float64, len(points))
	for i, p := range points {
		lats[i], lons[i] = p.Lat, p.Lon
	}
	dists := utils.CumulativeDistances(lats, lons)

	profile := models.ElevationProfile{Points: make([]models.ProfilePoint, len(points))}
	for i, p := range points {
		profile.Points[i] = models.ProfilePoint{
			PointNumber:        i,
			Latitude:           p.Lat,
			Longitude:          p.Lon,
			Altitude:           alts[i],
			CumulativeDistance: dists[i],
		}
	}
	if err := profile.Validate(); err != nil {
		return models.ElevationProfile{}, err
	}
	return profile, nil
}

func collapseDuplicates(path []models.Coordinate) []models.Coordinate {
	out := make([]models.Coordinate, 0, len(path))
	for _, p := range path {
		if n := len(out); n > 0 && utils.Distance(out[n-1].Lat, out[n-1].Lon, p.Lat, p.Lon) == 0 {
			continue
		}
		out = append(out, p)
	}
	return out
}

// failure maps a collaborator error onto the resolver taxonomy.
func (r *Resolver) failure(unavailable *Error, err error) error {
	var typed *Error
	if errors.As(err, &typed) {
		return err
	}
	if IsTransient(err) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return wrap(unavailable, err)
	}
	var status *statusError
	if errors.As(err, &status) {
		return wrap(unavailable, err)
	}
	return wrap(ErrResolverData, err)
}

// call runs fn with a per-attempt timeout and retries transient failures
// with exponential backoff.
func (r *Resolver) call(ctx context.Context, collaborator string, fn func(context.Context) error) error {
	backoff := r.config.BaseBackoff
	for attempt := 1; ; attempt++ {
		if r.limiter != nil {
			if err := r.limiter.Wait(ctx); err != nil {
				return err
			}
		}

		callCtx, cancel := ctx, context.CancelFunc(func() {})
		if r.config.Timeout > 0 {
			callCtx, cancel = context.WithTimeout(ctx, r.config.Timeout)
		}
		start := time.Now()
		err := fn(callCtx)
		cancel()

		r.metrics.ObserveResolverCall(collaborator, outcome(err), time.Since(start))
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) && !IsTransient(err) {
			err = transient(err)
		}
		if !IsTransient(err) || attempt >= r.config.MaxAttempts {
			return err
		}

		r.metrics.IncResolverRetry(collaborator)
		r.logger.Warn("collaborator call failed, retrying",
			slog.String("collaborator", collaborator),
			slog.Int("attempt", attempt),
			slog.Duration("backoff", backoff),
			slog.String("error", err.Error()))

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		backoff *= 2
	}
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case IsTransient(err):
		return "unavailable"
	default:
		return "error"
	}
}
