package auxtrip

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"shiftplanner.ebus.dev/gtfsdb"
	"shiftplanner.ebus.dev/internal/logging"
	"shiftplanner.ebus.dev/internal/models"
)

// BackfillProfile samples elevations along the GTFS shape of a trip and
// stores the profile under the shape id, so scheduled trips get the same
// elevation statistics as synthesized ones.
func (s *Synthesizer) BackfillProfile(ctx context.Context, tripID string) (models.ElevationProfile, error) {
	trip, err := s.db.FetchTrip(ctx, tripID)
	if errors.Is(err, gtfsdb.ErrNotFound) {
		return models.ElevationProfile{}, fail(ErrTripNotFound, err)
	}
	if err != nil {
		return models.ElevationProfile{}, err
	}
	if !trip.ShapeID.Valid || trip.ShapeID.String == "" {
		return models.ElevationProfile{}, fail(ErrNoShape, fmt.Errorf("trip %q has no shape", tripID))
	}

	points, err := s.db.Queries.GetShapePoints(ctx, trip.ShapeID.String)
	if err != nil {
		return models.ElevationProfile{}, fmt.Errorf("loading shape %q: %w", trip.ShapeID.String, err)
	}
	if len(points) == 0 {
		return models.ElevationProfile{}, fail(ErrNoShape, fmt.Errorf("shape %q has no points", trip.ShapeID.String))
	}

	path := make([]models.Coordinate, len(points))
	for i, p := range points {
		path[i] = models.Coordinate{Lat: p.Lat, Lon: p.Lon}
	}

	profile, err := s.resolver.ProfileFromPolyline(ctx, path)
	if err != nil {
		return models.ElevationProfile{}, err
	}
	profile.ShapeID = trip.ShapeID.String
	if err := s.profiles.Save(ctx, profile); err != nil {
		return models.ElevationProfile{}, fmt.Errorf("storing profile: %w", err)
	}

	logging.LogOperation(s.logger, "profile_backfilled",
		slog.String("trip_id", tripID),
		slog.String("shape_id", profile.ShapeID),
		slog.Int("points", len(profile.Points)))
	return profile, nil
}
