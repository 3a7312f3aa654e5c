package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"shiftplanner.ebus.dev/gtfsdb"
	"shiftplanner.ebus.dev/internal/app"
	"shiftplanner.ebus.dev/internal/appconf"
	"shiftplanner.ebus.dev/internal/artifacts"
	"shiftplanner.ebus.dev/internal/auxtrip"
	"shiftplanner.ebus.dev/internal/clock"
	"shiftplanner.ebus.dev/internal/events"
	"shiftplanner.ebus.dev/internal/logging"
	"shiftplanner.ebus.dev/internal/metrics"
	"shiftplanner.ebus.dev/internal/resolver"
	"shiftplanner.ebus.dev/internal/restapi"
	"shiftplanner.ebus.dev/internal/shift"
	"shiftplanner.ebus.dev/internal/stopindex"
	"shiftplanner.ebus.dev/internal/tripstats"
	"shiftplanner.ebus.dev/internal/webui"
)

const (
	startupTimeout         = 5 * time.Minute
	dbStatsInterval        = 15 * time.Second
	shutdownGracePeriod    = 30 * time.Second
	auxiliaryCalendarYears = 5
)

// ParseAPIKeys splits a comma-separated key list. An empty string yields
// no keys.
func ParseAPIKeys(apiKeysFlag string) []string {
	if apiKeysFlag == "" {
		return []string{}
	}
	keys := strings.Split(apiKeysFlag, ",")
	for i := range keys {
		keys[i] = strings.TrimSpace(keys[i])
	}
	return keys
}

func newLogger(cfg appconf.Config) *slog.Logger {
	level := logging.ParseLevel(cfg.LogLevel)
	if cfg.Verbose {
		level = slog.LevelDebug
	}
	if cfg.Env == appconf.Production {
		return logging.NewStructuredLogger(os.Stdout, level)
	}
	return logging.NewTextLogger(os.Stdout, level)
}

// BuildApplication opens every backing service and wires the engine. On
// error, whatever was already opened is closed again.
func BuildApplication(cfg appconf.Config) (*app.Application, error) {
	logger := newLogger(cfg)
	slog.SetDefault(logger)

	coreApp := &app.Application{
		Config: cfg,
		Logger: logger,
		Clock:  clock.RealClock{},
	}
	built := false
	defer func() {
		if !built {
			coreApp.Close()
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	defer cancel()

	db, err := gtfsdb.NewClient(gtfsdb.NewConfig(cfg.DBDriver, cfg.DBPath, cfg.Env, cfg.Verbose))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	coreApp.DB = db
	coreApp.OnClose(func() { logging.SafeCloseWithLogging(db, logger, "database") })

	if err := loadStaticData(ctx, db, cfg, logger); err != nil {
		return nil, err
	}

	coreApp.Metrics = metrics.NewWithLogger(logger)
	coreApp.Metrics.StartDBStatsCollector(db.DB, dbStatsInterval)
	coreApp.OnClose(coreApp.Metrics.Shutdown)

	var publisher *events.NATSPublisher
	if cfg.NatsURL != "" {
		publisher, err = events.NewNATSPublisher(cfg.NatsURL, cfg.EventsSubject, coreApp.Metrics, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to NATS: %w", err)
		}
		coreApp.Events = publisher
		coreApp.OnClose(publisher.Close)
	} else {
		coreApp.Events = events.Nop{}
	}

	store, err := openArtifactStore(ctx, coreApp, publisher)
	if err != nil {
		return nil, err
	}
	coreApp.Profiles = artifacts.NewProfileStore(store, logger)

	profileResolver := resolver.New(
		resolver.NewOSRMClient(cfg.RoutingURL, cfg.ResolverTimeout),
		resolver.NewOpenElevationClient(cfg.ElevationURL, cfg.ResolverTimeout),
		resolver.Config{
			Timeout:           cfg.ResolverTimeout,
			MaxAttempts:       cfg.ResolverMaxAttempts,
			BaseBackoff:       cfg.ResolverBaseBackoff,
			RequestsPerSecond: float64(cfg.ResolverRequestsPerSecond),
		},
		coreApp.Metrics, logger)

	coreApp.Synthesizer = auxtrip.NewSynthesizer(db, profileResolver, coreApp.Profiles, coreApp.Clock,
		coreApp.Events, coreApp.Metrics, logger,
		auxtrip.Config{CalendarKey: cfg.AuxiliaryCalendar, RouteID: cfg.AuxiliaryRouteID})
	coreApp.Committer = shift.NewCommitter(db, coreApp.Synthesizer, coreApp.Clock, coreApp.Events, coreApp.Metrics, logger)
	coreApp.Stats = tripstats.NewEngine(db, coreApp.Profiles, cfg.StatsWorkers, coreApp.Metrics, logger)

	if coreApp.Stops, err = stopindex.Load(ctx, db, logger); err != nil {
		return nil, fmt.Errorf("failed to build stop index: %w", err)
	}

	built = true
	return coreApp, nil
}

// loadStaticData imports the GTFS feed when one is configured, then
// registers depots and the auxiliary calendar.
func loadStaticData(ctx context.Context, db *gtfsdb.Client, cfg appconf.Config, logger *slog.Logger) error {
	if cfg.GTFSPath != "" {
		var err error
		if strings.HasPrefix(cfg.GTFSPath, "http://") || strings.HasPrefix(cfg.GTFSPath, "https://") {
			err = db.DownloadAndStore(ctx, cfg.GTFSPath, "", "")
		} else {
			err = db.ImportFromFile(ctx, cfg.GTFSPath)
		}
		if err != nil {
			return fmt.Errorf("failed to import GTFS feed: %w", err)
		}
		logging.LogOperation(logger, "gtfs_feed_loaded",
			slog.String("source", cfg.GTFSPath),
			slog.Duration("runtime", db.ImportRuntime()))
	}

	for _, d := range cfg.Depots {
		if _, err := db.FetchStop(ctx, d.StopID); err != nil {
			if errors.Is(err, gtfsdb.ErrNotFound) {
				return fmt.Errorf("depot %q references unknown stop %q", d.ID, d.StopID)
			}
			return err
		}
		if err := db.Queries.UpsertDepot(ctx, gtfsdb.Depot{ID: d.ID, Name: d.Name, StopID: d.StopID}); err != nil {
			return fmt.Errorf("registering depot %q: %w", d.ID, err)
		}
	}

	start := time.Now().UTC().Truncate(24 * time.Hour)
	created, err := db.EnsureService(ctx, cfg.AuxiliaryCalendar, start, start.AddDate(auxiliaryCalendarYears, 0, 0))
	if err != nil {
		return fmt.Errorf("creating auxiliary calendar: %w", err)
	}
	if created {
		logging.LogOperation(logger, "auxiliary_calendar_created", slog.String("service_id", cfg.AuxiliaryCalendar))
	}
	return nil
}

// openArtifactStore picks the profile blob store. The nats backend reuses
// the event publisher's connection.
func openArtifactStore(ctx context.Context, coreApp *app.Application, publisher *events.NATSPublisher) (artifacts.Store, error) {
	cfg := coreApp.Config
	switch cfg.ArtifactBackend {
	case appconf.ArtifactBackendRedis:
		store, err := artifacts.NewRedisStore(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, coreApp.Logger)
		if err != nil {
			return nil, err
		}
		coreApp.OnClose(func() { logging.SafeCloseWithLogging(store, coreApp.Logger, "redis artifact store") })
		return store, nil
	case appconf.ArtifactBackendNATS:
		if publisher == nil {
			return nil, errors.New("the nats artifact backend needs nats-url")
		}
		return artifacts.NewNATSObjectStore(ctx, publisher.Conn(), cfg.ArtifactBucket)
	default:
		return artifacts.NewFileStore(cfg.ArtifactDir)
	}
}

// CreateServer wires the REST API and the debug pages into an http.Server.
// The returned RestAPI must be shut down by the caller.
func CreateServer(coreApp *app.Application, cfg appconf.Config) (*http.Server, *restapi.RestAPI) {
	api := restapi.NewRestAPI(coreApp)

	mux := http.NewServeMux()
	webui.New(coreApp).SetRoutes(mux)
	mux.Handle("/", api.Handler())

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      mux,
		IdleTimeout:  time.Minute,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: cfg.WriteTimeout,
	}
	return srv, api
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func Run(ctx context.Context, srv *http.Server, coreApp *app.Application, api *restapi.RestAPI) error {
	errCh := make(chan error, 1)
	go func() {
		logging.LogOperation(coreApp.Logger, "http_server_starting",
			slog.String("addr", srv.Addr),
			slog.String("env", coreApp.Config.Env.String()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	coreApp.Logger.Info("shutdown signal received")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGracePeriod)
	defer cancel()

	err := srv.Shutdown(shutdownCtx)
	api.Shutdown()
	coreApp.Close()
	if err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	coreApp.Logger.Info("shutdown complete")
	return nil
}
