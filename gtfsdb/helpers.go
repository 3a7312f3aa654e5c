package gtfsdb

import (
	"context"
	"crypto/sha256"
	"database/sql"
	_ "embed"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/OneBusAway/go-gtfs"
	"shiftplanner.ebus.dev/internal/appconf"
	"shiftplanner.ebus.dev/internal/logging"
)

//go:embed schema.sql
var ddl string

// createDB opens the database for the configured driver and migrates it.
func createDB(config Config) (*sql.DB, error) {
	if config.Env == appconf.Test && config.isSQLite() && config.DBPath != ":memory:" {
		return nil, fmt.Errorf("test database must use in-memory storage, got path: %s", config.DBPath)
	}

	db, err := sql.Open(config.Driver, config.DBPath)
	if err != nil {
		return nil, err
	}

	// Pool limits go first: every :memory: connection is a separate database.
	configureConnectionPool(db, config)

	ctx := context.Background()
	if config.isSQLite() {
		if err := configureSQLitePerformance(ctx, db); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("error configuring SQLite performance: %w", err)
		}
	}

	if err := performDatabaseMigration(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("error performing database migration: %w", err)
	}

	return db, nil
}

func performDatabaseMigration(ctx context.Context, db *sql.DB) error {
	statements := strings.Split(ddl, "-- migrate")
	for _, stmt := range statements {
		trimmedStmt := strings.TrimSpace(stmt)
		if trimmedStmt == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, trimmedStmt); err != nil {
			return fmt.Errorf("error executing DDL statement [%s]: %w", trimmedStmt, err)
		}
	}
	return nil
}

func (c *Client) processAndStoreGTFSDataWithSource(ctx context.Context, b []byte, source string) error {
	logger := slog.Default().With(slog.String("component", "gtfs_importer"))

	startTime := time.Now()
	defer func() {
		c.importRuntime = time.Since(startTime)
		logging.LogOperation(logger, "gtfs_data_import_completed",
			slog.Duration("duration", c.importRuntime),
			slog.String("source", source))
	}()

	hash := sha256.Sum256(b)
	hashStr := hex.EncodeToString(hash[:])

	existingMetadata, err := c.Queries.GetImportMetadata(ctx)
	switch {
	case err == nil:
		if existingMetadata.FileHash == hashStr && existingMetadata.FileSource == source {
			logging.LogOperation(logger, "gtfs_data_unchanged_skipping_import",
				slog.String("hash", hashStr[:8]))
			return nil
		}
		logging.LogOperation(logger, "gtfs_data_changed_reimporting",
			slog.String("old_hash", shortHash(existingMetadata.FileHash)),
			slog.String("new_hash", hashStr[:8]))
	case errors.Is(err, sql.ErrNoRows):
		// first import
	default:
		return fmt.Errorf("error checking import metadata: %w", err)
	}

	staticData, err := gtfs.ParseStatic(b, gtfs.ParseStaticOptions{})
	if err != nil {
		return err
	}

	logging.LogOperation(logger, "gtfs_static_parsed",
		slog.Int("warnings", len(staticData.Warnings)),
		slog.Int("routes", len(staticData.Routes)),
		slog.Int("stops", len(staticData.Stops)),
		slog.Int("trips", len(staticData.Trips)),
		slog.Int("shapes", len(staticData.Shapes)))

	// One transaction for the whole feed: readers never see half an import.
	err = c.WithTransaction(ctx, func(q *Queries) error {
		if err := clearScheduledData(ctx, q); err != nil {
			return fmt.Errorf("error clearing existing GTFS data: %w", err)
		}
		if err := insertStaticData(ctx, q, staticData); err != nil {
			return err
		}
		return q.UpsertImportMetadata(ctx, UpsertImportMetadataParams{
			FileHash:   hashStr,
			ImportTime: time.Now().Unix(),
			FileSource: source,
		})
	})
	if err != nil {
		logging.LogError(logger, "GTFS import failed", err, slog.String("source", source))
		return err
	}

	counts, err := c.TableCounts(ctx)
	if err != nil {
		return fmt.Errorf("failed to get table counts: %w", err)
	}
	attrs := make([]slog.Attr, 0, len(counts))
	for k, v := range counts {
		attrs = append(attrs, slog.Int(k, v))
	}
	logging.LogOperation(logger, "import_metadata_updated_successfully", attrs...)

	return nil
}

func shortHash(h string) string {
	if len(h) > 8 {
		return h[:8]
	}
	return h
}

// clearScheduledData removes imported rows. Scheduled trips referenced by a
// committed shift are kept so the shift stays readable.
func clearScheduledData(ctx context.Context, q *Queries) error {
	if err := q.ClearScheduledStopTimes(ctx); err != nil {
		return fmt.Errorf("error clearing stop_times: %w", err)
	}
	if err := q.ClearScheduledTrips(ctx); err != nil {
		return fmt.Errorf("error clearing trips: %w", err)
	}
	if err := q.ClearShapes(ctx); err != nil {
		return fmt.Errorf("error clearing shapes: %w", err)
	}
	return nil
}

func insertStaticData(ctx context.Context, q *Queries, staticData *gtfs.Static) error {
	logger := slog.Default().With(slog.String("component", "bulk_insert"))

	singleAgencyID := ""
	if len(staticData.Agencies) == 1 {
		singleAgencyID = staticData.Agencies[0].Id
	}

	for _, r := range staticData.Routes {
		agencyID := singleAgencyID
		if r.Agency != nil {
			agencyID = pickFirstAvailable(r.Agency.Id, singleAgencyID)
		}
		err := q.UpsertRoute(ctx, UpsertRouteParams{
			ID:        r.Id,
			AgencyID:  agencyID,
			ShortName: toNullString(r.ShortName),
			LongName:  toNullString(r.LongName),
			Type:      int64(r.Type),
		})
		if err != nil {
			return fmt.Errorf("unable to create route: %w", err)
		}
	}

	for _, s := range staticData.Services {
		err := q.UpsertCalendar(ctx, UpsertCalendarParams{
			ID:        s.Id,
			Monday:    boolToInt(s.Monday),
			Tuesday:   boolToInt(s.Tuesday),
			Wednesday: boolToInt(s.Wednesday),
			Thursday:  boolToInt(s.Thursday),
			Friday:    boolToInt(s.Friday),
			Saturday:  boolToInt(s.Saturday),
			Sunday:    boolToInt(s.Sunday),
			StartDate: s.StartDate.Format("20060102"),
			EndDate:   s.EndDate.Format("20060102"),
		})
		if err != nil {
			return fmt.Errorf("unable to create calendar: %w", err)
		}
	}

	stopCount := 0
	for _, s := range staticData.Stops {
		// Generic nodes and boarding areas may lack coordinates; the planner
		// cannot route to them.
		if s.Latitude == nil || s.Longitude == nil {
			continue
		}
		err := q.UpsertStop(ctx, UpsertStopParams{
			ID:   s.Id,
			Code: toNullString(s.Code),
			Name: s.Name,
			Lat:  *s.Latitude,
			Lon:  *s.Longitude,
		})
		if err != nil {
			return fmt.Errorf("unable to create stop: %w", err)
		}
		stopCount++
	}
	logging.LogOperation(logger, "stops_inserted", slog.Int("count", stopCount))

	var stopTimes []CreateStopTimeParams
	for _, t := range staticData.Trips {
		var shapeID string
		if t.Shape != nil {
			shapeID = t.Shape.ID
		}

		err := q.UpsertTrip(ctx, CreateTripParams{
			ID:          t.ID,
			RouteID:     t.Route.Id,
			ServiceID:   t.Service.Id,
			Kind:        "scheduled",
			Headsign:    toNullString(t.Headsign),
			BlockID:     toNullString(t.BlockID),
			DirectionID: toNullInt64(int64(t.DirectionId)),
			ShapeID:     toNullString(shapeID),
		})
		if err != nil {
			return fmt.Errorf("unable to create trip: %w", err)
		}

		for _, st := range t.StopTimes {
			var shapeDistTraveled float64
			if st.ShapeDistanceTraveled != nil {
				shapeDistTraveled = *st.ShapeDistanceTraveled
			}
			stopTimes = append(stopTimes, CreateStopTimeParams{
				TripID:            t.ID,
				StopID:            st.Stop.Id,
				StopSequence:      int64(st.StopSequence),
				ArrivalTime:       int64(st.ArrivalTime / time.Second),
				DepartureTime:     int64(st.DepartureTime / time.Second),
				ShapeDistTraveled: toNullFloat64(shapeDistTraveled),
			})
		}
	}
	logging.LogOperation(logger, "trips_inserted", slog.Int("count", len(staticData.Trips)))

	if err := bulkUpsertStopTimes(ctx, q, stopTimes); err != nil {
		return fmt.Errorf("unable to create stop times: %w", err)
	}

	var shapes []CreateShapePointParams
	for _, s := range staticData.Shapes {
		for idx, pt := range s.Points {
			var distance float64
			if pt.Distance != nil {
				distance = *pt.Distance
			}
			shapes = append(shapes, CreateShapePointParams{
				ShapeID:           s.ID,
				Lat:               pt.Latitude,
				Lon:               pt.Longitude,
				ShapePtSequence:   int64(idx),
				ShapeDistTraveled: toNullFloat64(distance),
			})
		}
	}
	if err := bulkInsertShapes(ctx, q, shapes); err != nil {
		return fmt.Errorf("unable to create shapes: %w", err)
	}

	return nil
}

// stopTimeBatchSize keeps each multi-row insert below SQLite's default
// limit of 32766 bound variables (6 per row).
const stopTimeBatchSize = 1000

func bulkUpsertStopTimes(ctx context.Context, q *Queries, stopTimes []CreateStopTimeParams) error {
	logger := slog.Default().With(slog.String("component", "bulk_insert"))

	for start := 0; start < len(stopTimes); start += stopTimeBatchSize {
		end := min(start+stopTimeBatchSize, len(stopTimes))
		batch := stopTimes[start:end]

		var b strings.Builder
		b.WriteString("INSERT INTO stop_times (trip_id, stop_id, stop_sequence, arrival_time, departure_time, shape_dist_traveled) VALUES ")
		args := make([]interface{}, 0, len(batch)*6)
		for i, st := range batch {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString("(?, ?, ?, ?, ?, ?)")
			args = append(args, st.TripID, st.StopID, st.StopSequence, st.ArrivalTime, st.DepartureTime, st.ShapeDistTraveled)
		}
		b.WriteString(` ON CONFLICT (trip_id, stop_sequence) DO UPDATE SET
    stop_id = excluded.stop_id,
    arrival_time = excluded.arrival_time,
    departure_time = excluded.departure_time,
    shape_dist_traveled = excluded.shape_dist_traveled`)

		if _, err := q.exec(ctx, b.String(), args...); err != nil {
			return err
		}
	}

	logging.LogOperation(logger, "stop_times_inserted", slog.Int("count", len(stopTimes)))
	return nil
}

const shapeBatchSize = 1000

func bulkInsertShapes(ctx context.Context, q *Queries, shapes []CreateShapePointParams) error {
	logger := slog.Default().With(slog.String("component", "bulk_insert"))

	for start := 0; start < len(shapes); start += shapeBatchSize {
		end := min(start+shapeBatchSize, len(shapes))
		batch := shapes[start:end]

		var b strings.Builder
		b.WriteString("INSERT INTO shapes (shape_id, lat, lon, shape_pt_sequence, shape_dist_traveled) VALUES ")
		args := make([]interface{}, 0, len(batch)*5)
		for i, s := range batch {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString("(?, ?, ?, ?, ?)")
			args = append(args, s.ShapeID, s.Lat, s.Lon, s.ShapePtSequence, s.ShapeDistTraveled)
		}

		if _, err := q.exec(ctx, b.String(), args...); err != nil {
			return err
		}
	}

	logging.LogOperation(logger, "shapes_inserted", slog.Int("count", len(shapes)))
	return nil
}

// configureSQLitePerformance applies PRAGMA settings for bulk imports and
// enforces foreign keys.
func configureSQLitePerformance(ctx context.Context, db *sql.DB) error {
	pragmas := []struct {
		name        string
		description string
	}{
		{"PRAGMA foreign_keys=ON", "Enforce foreign keys"},
		// negative value means KB
		{"PRAGMA cache_size=-64000", "Set cache size to 64MB"},
		{"PRAGMA temp_store=MEMORY", "Store temporary data in memory"},
	}

	logger := slog.Default().With(slog.String("component", "sqlite_performance"))

	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma.name); err != nil {
			logging.LogError(logger, fmt.Sprintf("Failed to set %s", pragma.description), err)
			return fmt.Errorf("failed to execute %s: %w", pragma.name, err)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}

	logging.LogOperation(logger, "sqlite_performance_settings_applied",
		slog.Int("pragma_count", len(pragmas)))

	return nil
}

// configureConnectionPool sizes the pool for the driver in use.
//
// :memory: SQLite databases are limited to one connection, since each
// connection would otherwise open its own empty database. This serializes all
// access, which is fine for tests and small deployments.
func configureConnectionPool(db *sql.DB, config Config) {
	switch {
	case config.isSQLite() && config.DBPath == ":memory:":
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	case config.isSQLite():
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
	default:
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(10)
		db.SetConnMaxLifetime(30 * time.Minute)
	}
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

func toNullInt64(i int64) sql.NullInt64 {
	if i != 0 {
		return sql.NullInt64{Int64: i, Valid: true}
	}
	return sql.NullInt64{}
}

func toNullFloat64(f float64) sql.NullFloat64 {
	if f != 0 {
		return sql.NullFloat64{Float64: f, Valid: true}
	}
	return sql.NullFloat64{}
}

func toNullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// ToNullString converts a string to sql.NullString, with empty strings becoming NULL.
func ToNullString(s string) sql.NullString {
	return toNullString(s)
}

func pickFirstAvailable(a, b string) string {
	if a != "" {
		return a
	}
	return b
}
