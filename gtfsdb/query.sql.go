package gtfsdb

import (
	"context"
	"database/sql"
)

const upsertRoute = `-- name: UpsertRoute :exec
INSERT INTO routes (id, agency_id, short_name, long_name, type)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT (id) DO UPDATE SET
    agency_id = excluded.agency_id,
    short_name = excluded.short_name,
    long_name = excluded.long_name,
    type = excluded.type
`

type UpsertRouteParams struct {
	ID        string
	AgencyID  string
	ShortName sql.NullString
	LongName  sql.NullString
	Type      int64
}

func (q *Queries) UpsertRoute(ctx context.Context, arg UpsertRouteParams) error {
	_, err := q.exec(ctx, upsertRoute, arg.ID, arg.AgencyID, arg.ShortName, arg.LongName, arg.Type)
	return err
}

const upsertCalendar = `-- name: UpsertCalendar :exec
INSERT INTO calendar (id, monday, tuesday, wednesday, thursday, friday, saturday, sunday, start_date, end_date)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (id) DO UPDATE SET
    monday = excluded.monday,
    tuesday = excluded.tuesday,
    wednesday = excluded.wednesday,
    thursday = excluded.thursday,
    friday = excluded.friday,
    saturday = excluded.saturday,
    sunday = excluded.sunday,
    start_date = excluded.start_date,
    end_date = excluded.end_date
`

type UpsertCalendarParams = Calendar

func (q *Queries) UpsertCalendar(ctx context.Context, arg UpsertCalendarParams) error {
	_, err := q.exec(ctx, upsertCalendar,
		arg.ID, arg.Monday, arg.Tuesday, arg.Wednesday, arg.Thursday,
		arg.Friday, arg.Saturday, arg.Sunday, arg.StartDate, arg.EndDate,
	)
	return err
}

const insertCalendarIfMissing = `-- name: InsertCalendarIfMissing :execrows
INSERT INTO calendar (id, monday, tuesday, wednesday, thursday, friday, saturday, sunday, start_date, end_date)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (id) DO NOTHING
`

func (q *Queries) InsertCalendarIfMissing(ctx context.Context, arg Calendar) (int64, error) {
	result, err := q.exec(ctx, insertCalendarIfMissing,
		arg.ID, arg.Monday, arg.Tuesday, arg.Wednesday, arg.Thursday,
		arg.Friday, arg.Saturday, arg.Sunday, arg.StartDate, arg.EndDate,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const getCalendar = `-- name: GetCalendar :one
SELECT id, monday, tuesday, wednesday, thursday, friday, saturday, sunday, start_date, end_date
FROM calendar
WHERE id = ?
`

func (q *Queries) GetCalendar(ctx context.Context, id string) (Calendar, error) {
	row := q.queryRow(ctx, getCalendar, id)
	var i Calendar
	err := row.Scan(
		&i.ID, &i.Monday, &i.Tuesday, &i.Wednesday, &i.Thursday,
		&i.Friday, &i.Saturday, &i.Sunday, &i.StartDate, &i.EndDate,
	)
	return i, err
}

const upsertStop = `-- name: UpsertStop :exec
INSERT INTO stops (id, code, name, lat, lon)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT (id) DO UPDATE SET
    code = excluded.code,
    name = excluded.name,
    lat = excluded.lat,
    lon = excluded.lon
`

type UpsertStopParams = Stop

func (q *Queries) UpsertStop(ctx context.Context, arg UpsertStopParams) error {
	_, err := q.exec(ctx, upsertStop, arg.ID, arg.Code, arg.Name, arg.Lat, arg.Lon)
	return err
}

const getStop = `-- name: GetStop :one
SELECT id, code, name, lat, lon FROM stops WHERE id = ?
`

func (q *Queries) GetStop(ctx context.Context, id string) (Stop, error) {
	row := q.queryRow(ctx, getStop, id)
	var i Stop
	err := row.Scan(&i.ID, &i.Code, &i.Name, &i.Lat, &i.Lon)
	return i, err
}

const listStops = `-- name: ListStops :many
SELECT id, code, name, lat, lon FROM stops ORDER BY id
`

func (q *Queries) ListStops(ctx context.Context) ([]Stop, error) {
	rows, err := q.query(ctx, listStops)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck
	var items []Stop
	for rows.Next() {
		var i Stop
		if err := rows.Scan(&i.ID, &i.Code, &i.Name, &i.Lat, &i.Lon); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const upsertDepot = `-- name: UpsertDepot :exec
INSERT INTO depots (id, name, stop_id)
VALUES (?, ?, ?)
ON CONFLICT (id) DO UPDATE SET
    name = excluded.name,
    stop_id = excluded.stop_id
`

func (q *Queries) UpsertDepot(ctx context.Context, arg Depot) error {
	_, err := q.exec(ctx, upsertDepot, arg.ID, arg.Name, arg.StopID)
	return err
}

const getDepot = `-- name: GetDepot :one
SELECT id, name, stop_id FROM depots WHERE id = ?
`

func (q *Queries) GetDepot(ctx context.Context, id string) (Depot, error) {
	row := q.queryRow(ctx, getDepot, id)
	var i Depot
	err := row.Scan(&i.ID, &i.Name, &i.StopID)
	return i, err
}

const listDepots = `-- name: ListDepots :many
SELECT id, name, stop_id FROM depots ORDER BY id
`

func (q *Queries) ListDepots(ctx context.Context) ([]Depot, error) {
	rows, err := q.query(ctx, listDepots)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck
	var items []Depot
	for rows.Next() {
		var i Depot
		if err := rows.Scan(&i.ID, &i.Name, &i.StopID); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const createTrip = `-- name: CreateTrip :exec
INSERT INTO trips (id, route_id, service_id, kind, headsign, block_id, direction_id, shape_id, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
`

type CreateTripParams = Trip

func (q *Queries) CreateTrip(ctx context.Context, arg CreateTripParams) error {
	_, err := q.exec(ctx, createTrip,
		arg.ID, arg.RouteID, arg.ServiceID, arg.Kind, arg.Headsign,
		arg.BlockID, arg.DirectionID, arg.ShapeID, arg.CreatedAt,
	)
	return err
}

const upsertTrip = `-- name: UpsertTrip :exec
INSERT INTO trips (id, route_id, service_id, kind, headsign, block_id, direction_id, shape_id, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (id) DO UPDATE SET
    route_id = excluded.route_id,
    service_id = excluded.service_id,
    headsign = excluded.headsign,
    block_id = excluded.block_id,
    direction_id = excluded.direction_id,
    shape_id = excluded.shape_id
`

func (q *Queries) UpsertTrip(ctx context.Context, arg CreateTripParams) error {
	_, err := q.exec(ctx, upsertTrip,
		arg.ID, arg.RouteID, arg.ServiceID, arg.Kind, arg.Headsign,
		arg.BlockID, arg.DirectionID, arg.ShapeID, arg.CreatedAt,
	)
	return err
}

const getTrip = `-- name: GetTrip :one
SELECT id, route_id, service_id, kind, headsign, block_id, direction_id, shape_id, created_at
FROM trips
WHERE id = ?
`

func (q *Queries) GetTrip(ctx context.Context, id string) (Trip, error) {
	row := q.queryRow(ctx, getTrip, id)
	var i Trip
	err := row.Scan(
		&i.ID, &i.RouteID, &i.ServiceID, &i.Kind, &i.Headsign,
		&i.BlockID, &i.DirectionID, &i.ShapeID, &i.CreatedAt,
	)
	return i, err
}

const tripSummarySelect = `
SELECT
    t.id,
    t.route_id,
    t.service_id,
    t.kind,
    t.shape_id,
    f.stop_id,
    fs.name,
    l.stop_id,
    ls.name,
    f.departure_time,
    l.arrival_time
FROM trips t
JOIN stop_times f ON f.trip_id = t.id
    AND f.stop_sequence = (SELECT MIN(stop_sequence) FROM stop_times WHERE trip_id = t.id)
JOIN stop_times l ON l.trip_id = t.id
    AND l.stop_sequence = (SELECT MAX(stop_sequence) FROM stop_times WHERE trip_id = t.id)
JOIN stops fs ON fs.id = f.stop_id
JOIN stops ls ON ls.id = l.stop_id
`

const getTripSummary = `-- name: GetTripSummary :one` + tripSummarySelect + `WHERE t.id = ?
`

type GetTripSummaryRow struct {
	ID            string
	RouteID       string
	ServiceID     string
	Kind          string
	ShapeID       sql.NullString
	StartStopID   string
	StartStopName string
	EndStopID     string
	EndStopName   string
	DepartureTime int64
	ArrivalTime   int64
}

func scanTripSummary(row interface{ Scan(...any) error }) (GetTripSummaryRow, error) {
	var i GetTripSummaryRow
	err := row.Scan(
		&i.ID, &i.RouteID, &i.ServiceID, &i.Kind, &i.ShapeID,
		&i.StartStopID, &i.StartStopName, &i.EndStopID, &i.EndStopName,
		&i.DepartureTime, &i.ArrivalTime,
	)
	return i, err
}

func (q *Queries) GetTripSummary(ctx context.Context, id string) (GetTripSummaryRow, error) {
	return scanTripSummary(q.queryRow(ctx, getTripSummary, id))
}

const listTripSummariesForRoute = `-- name: ListTripSummariesForRoute :many` + tripSummarySelect + `WHERE t.route_id = ?
ORDER BY f.departure_time, t.id
`

func (q *Queries) ListTripSummariesForRoute(ctx context.Context, routeID string) ([]GetTripSummaryRow, error) {
	rows, err := q.query(ctx, listTripSummariesForRoute, routeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck
	var items []GetTripSummaryRow
	for rows.Next() {
		i, err := scanTripSummary(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const createStopTime = `-- name: CreateStopTime :exec
INSERT INTO stop_times (trip_id, stop_id, stop_sequence, arrival_time, departure_time, shape_dist_traveled)
VALUES (?, ?, ?, ?, ?, ?)
`

type CreateStopTimeParams = StopTime

func (q *Queries) CreateStopTime(ctx context.Context, arg CreateStopTimeParams) error {
	_, err := q.exec(ctx, createStopTime,
		arg.TripID, arg.StopID, arg.StopSequence, arg.ArrivalTime, arg.DepartureTime, arg.ShapeDistTraveled,
	)
	return err
}

const getStopTimesForTrip = `-- name: GetStopTimesForTrip :many
SELECT
    st.trip_id,
    st.stop_id,
    st.stop_sequence,
    st.arrival_time,
    st.departure_time,
    s.name,
    s.lat,
    s.lon
FROM stop_times st
JOIN stops s ON s.id = st.stop_id
WHERE st.trip_id = ?
ORDER BY st.stop_sequence
`

type GetStopTimesForTripRow struct {
	TripID        string
	StopID        string
	StopSequence  int64
	ArrivalTime   int64
	DepartureTime int64
	StopName      string
	StopLat       float64
	StopLon       float64
}

func (q *Queries) GetStopTimesForTrip(ctx context.Context, tripID string) ([]GetStopTimesForTripRow, error) {
	rows, err := q.query(ctx, getStopTimesForTrip, tripID)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck
	var items []GetStopTimesForTripRow
	for rows.Next() {
		var i GetStopTimesForTripRow
		if err := rows.Scan(
			&i.TripID, &i.StopID, &i.StopSequence, &i.ArrivalTime,
			&i.DepartureTime, &i.StopName, &i.StopLat, &i.StopLon,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const createShapePoint = `-- name: CreateShapePoint :exec
INSERT INTO shapes (shape_id, lat, lon, shape_pt_sequence, shape_dist_traveled)
VALUES (?, ?, ?, ?, ?)
`

type CreateShapePointParams = Shape

func (q *Queries) CreateShapePoint(ctx context.Context, arg CreateShapePointParams) error {
	_, err := q.exec(ctx, createShapePoint, arg.ShapeID, arg.Lat, arg.Lon, arg.ShapePtSequence, arg.ShapeDistTraveled)
	return err
}

const getShapePoints = `-- name: GetShapePoints :many
SELECT shape_id, lat, lon, shape_pt_sequence, shape_dist_traveled
FROM shapes
WHERE shape_id = ?
ORDER BY shape_pt_sequence
`

func (q *Queries) GetShapePoints(ctx context.Context, shapeID string) ([]Shape, error) {
	rows, err := q.query(ctx, getShapePoints, shapeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck
	var items []Shape
	for rows.Next() {
		var i Shape
		if err := rows.Scan(&i.ShapeID, &i.Lat, &i.Lon, &i.ShapePtSequence, &i.ShapeDistTraveled); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const createShift = `-- name: CreateShift :exec
INSERT INTO shifts (id, name, vehicle_id, created_at)
VALUES (?, ?, ?, ?)
`

func (q *Queries) CreateShift(ctx context.Context, arg Shift) error {
	_, err := q.exec(ctx, createShift, arg.ID, arg.Name, arg.VehicleID, arg.CreatedAt)
	return err
}

const getShift = `-- name: GetShift :one
SELECT id, name, vehicle_id, created_at FROM shifts WHERE id = ?
`

func (q *Queries) GetShift(ctx context.Context, id string) (Shift, error) {
	row := q.queryRow(ctx, getShift, id)
	var i Shift
	err := row.Scan(&i.ID, &i.Name, &i.VehicleID, &i.CreatedAt)
	return i, err
}

const createShiftTrip = `-- name: CreateShiftTrip :exec
INSERT INTO shift_trips (shift_id, position, trip_id)
VALUES (?, ?, ?)
`

func (q *Queries) CreateShiftTrip(ctx context.Context, arg ShiftTrip) error {
	_, err := q.exec(ctx, createShiftTrip, arg.ShiftID, arg.Position, arg.TripID)
	return err
}

const listShiftTrips = `-- name: ListShiftTrips :many
SELECT shift_id, position, trip_id
FROM shift_trips
WHERE shift_id = ?
ORDER BY position
`

func (q *Queries) ListShiftTrips(ctx context.Context, shiftID string) ([]ShiftTrip, error) {
	rows, err := q.query(ctx, listShiftTrips, shiftID)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck
	var items []ShiftTrip
	for rows.Next() {
		var i ShiftTrip
		if err := rows.Scan(&i.ShiftID, &i.Position, &i.TripID); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const getImportMetadata = `-- name: GetImportMetadata :one
SELECT id, file_hash, import_time, file_source FROM import_metadata WHERE id = 1
`

func (q *Queries) GetImportMetadata(ctx context.Context) (ImportMetadatum, error) {
	row := q.queryRow(ctx, getImportMetadata)
	var i ImportMetadatum
	err := row.Scan(&i.ID, &i.FileHash, &i.ImportTime, &i.FileSource)
	return i, err
}

const upsertImportMetadata = `-- name: UpsertImportMetadata :exec
INSERT INTO import_metadata (id, file_hash, import_time, file_source)
VALUES (1, ?, ?, ?)
ON CONFLICT (id) DO UPDATE SET
    file_hash = excluded.file_hash,
    import_time = excluded.import_time,
    file_source = excluded.file_source
`

type UpsertImportMetadataParams struct {
	FileHash   string
	ImportTime int64
	FileSource string
}

func (q *Queries) UpsertImportMetadata(ctx context.Context, arg UpsertImportMetadataParams) error {
	_, err := q.exec(ctx, upsertImportMetadata, arg.FileHash, arg.ImportTime, arg.FileSource)
	return err
}

const clearScheduledStopTimes = `-- name: ClearScheduledStopTimes :exec
DELETE FROM stop_times
WHERE trip_id IN (
    SELECT id FROM trips
    WHERE kind = 'scheduled'
      AND id NOT IN (SELECT trip_id FROM shift_trips)
)
`

func (q *Queries) ClearScheduledStopTimes(ctx context.Context) error {
	_, err := q.exec(ctx, clearScheduledStopTimes)
	return err
}

const clearScheduledTrips = `-- name: ClearScheduledTrips :exec
DELETE FROM trips
WHERE kind = 'scheduled'
  AND id NOT IN (SELECT trip_id FROM shift_trips)
`

func (q *Queries) ClearScheduledTrips(ctx context.Context) error {
	_, err := q.exec(ctx, clearScheduledTrips)
	return err
}

const clearShapes = `-- name: ClearShapes :exec
DELETE FROM shapes
`

func (q *Queries) ClearShapes(ctx context.Context) error {
	_, err := q.exec(ctx, clearShapes)
	return err
}
