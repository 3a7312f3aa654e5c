package gtfsdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned by the lookup helpers when no row matches.
var ErrNotFound = errors.New("not found")

func notFound(err error, what, id string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s %q: %w", what, id, ErrNotFound)
	}
	return fmt.Errorf("fetching %s %q: %w", what, id, err)
}

// FetchStop returns the stop with the given id.
func (c *Client) FetchStop(ctx context.Context, id string) (Stop, error) {
	stop, err := c.Queries.GetStop(ctx, id)
	if err != nil {
		return Stop{}, notFound(err, "stop", id)
	}
	return stop, nil
}

// FetchDepot returns the depot with the given id.
func (c *Client) FetchDepot(ctx context.Context, id string) (Depot, error) {
	depot, err := c.Queries.GetDepot(ctx, id)
	if err != nil {
		return Depot{}, notFound(err, "depot", id)
	}
	return depot, nil
}

// FindService returns the calendar entry registered under key.
func (c *Client) FindService(ctx context.Context, key string) (Calendar, error) {
	cal, err := c.Queries.GetCalendar(ctx, key)
	if err != nil {
		return Calendar{}, notFound(err, "service", key)
	}
	return cal, nil
}

// EnsureService registers an every-day calendar entry under key unless one
// exists. It reports whether a row was created.
func (c *Client) EnsureService(ctx context.Context, key string, start, end time.Time) (bool, error) {
	n, err := c.Queries.InsertCalendarIfMissing(ctx, Calendar{
		ID:        key,
		Monday:    1,
		Tuesday:   1,
		Wednesday: 1,
		Thursday:  1,
		Friday:    1,
		Saturday:  1,
		Sunday:    1,
		StartDate: start.Format("20060102"),
		EndDate:   end.Format("20060102"),
	})
	if err != nil {
		return false, fmt.Errorf("ensuring service %q: %w", key, err)
	}
	return n > 0, nil
}

// FetchTripSummary returns the trip with its first and last stop.
func (c *Client) FetchTripSummary(ctx context.Context, id string) (GetTripSummaryRow, error) {
	row, err := c.Queries.GetTripSummary(ctx, id)
	if err != nil {
		return GetTripSummaryRow{}, notFound(err, "trip", id)
	}
	return row, nil
}

// FetchTrip returns the trip row with the given id.
func (c *Client) FetchTrip(ctx context.Context, id string) (Trip, error) {
	trip, err := c.Queries.GetTrip(ctx, id)
	if err != nil {
		return Trip{}, notFound(err, "trip", id)
	}
	return trip, nil
}

// FetchShift returns the shift row with the given id.
func (c *Client) FetchShift(ctx context.Context, id string) (Shift, error) {
	shift, err := c.Queries.GetShift(ctx, id)
	if err != nil {
		return Shift{}, notFound(err, "shift", id)
	}
	return shift, nil
}
