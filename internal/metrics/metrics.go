// Package metrics provides Prometheus metrics for the shift planner.
package metrics

import (
	"context"
	"database/sql"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "shiftplanner"

// Metrics holds all Prometheus metrics for the application.
// Every Observe/Inc helper is safe to call on a nil *Metrics.
type Metrics struct {
	// Registry is the Prometheus registry for this metrics instance
	Registry *prometheus.Registry

	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	RateLimitedTotal    *prometheus.CounterVec

	// Database metrics
	DBConnectionsOpen  prometheus.Gauge
	DBConnectionsInUse prometheus.Gauge
	DBConnectionsIdle  prometheus.Gauge
	DBWaitSecondsTotal prometheus.Counter

	// Resolver collaborator calls, labelled by collaborator (routing, elevation)
	ResolverCallsTotal   *prometheus.CounterVec
	ResolverRetriesTotal *prometheus.CounterVec
	ResolverCallDuration *prometheus.HistogramVec

	// Planner metrics
	AuxiliaryTripsTotal  *prometheus.CounterVec
	ShiftsCommittedTotal prometheus.Counter
	DraftRejectionsTotal *prometheus.CounterVec
	StatsTripsTotal      *prometheus.CounterVec
	StatsBatchDuration   prometheus.Histogram
	EventsPublishedTotal *prometheus.CounterVec

	logger *slog.Logger

	// collectorStarted prevents spawning multiple collector goroutines
	collectorStarted atomic.Bool

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates and registers all application metrics with a new registry.
func New() *Metrics {
	return NewWithLogger(nil)
}

// NewWithLogger creates metrics with a logger for error reporting.
func NewWithLogger(logger *slog.Logger) *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		Registry: registry,
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),
		RateLimitedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_rate_limited_total",
			Help:      "Requests rejected by the per-key rate limiter",
		}, []string{"client"}),
		DBConnectionsOpen: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "db_connections_open",
			Help:      "Number of open database connections",
		}),
		DBConnectionsInUse: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "db_connections_in_use",
			Help:      "Number of database connections currently in use",
		}),
		DBConnectionsIdle: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "db_connections_idle",
			Help:      "Number of idle database connections",
		}),
		DBWaitSecondsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "db_wait_seconds_total",
			Help:      "Total time blocked waiting for a database connection",
		}),
		ResolverCallsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resolver_calls_total",
			Help:      "Calls to the routing and elevation services by outcome",
		}, []string{"collaborator", "outcome"}),
		ResolverRetriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resolver_retries_total",
			Help:      "Retried calls to the routing and elevation services",
		}, []string{"collaborator"}),
		ResolverCallDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "resolver_call_duration_seconds",
			Help:      "Latency of single routing and elevation requests",
			Buckets:   prometheus.DefBuckets,
		}, []string{"collaborator"}),
		AuxiliaryTripsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auxiliary_trips_total",
			Help:      "Synthesized depot and transfer trips",
		}, []string{"kind"}),
		ShiftsCommittedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "shifts_committed_total",
			Help:      "Committed shifts",
		}),
		DraftRejectionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "draft_rejections_total",
			Help:      "Rejected shift draft transitions by reason",
		}, []string{"reason"}),
		StatsTripsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "trip_statistics_total",
			Help:      "Trips processed by the statistics engine by outcome",
		}, []string{"outcome"}),
		StatsBatchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "trip_statistics_batch_duration_seconds",
			Help:      "Time to compute one statistics batch",
			Buckets:   prometheus.DefBuckets,
		}),
		EventsPublishedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Domain events published to NATS by outcome",
		}, []string{"subject", "outcome"}),
		logger: logger,
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.RateLimitedTotal,
		m.DBConnectionsOpen,
		m.DBConnectionsInUse,
		m.DBConnectionsIdle,
		m.DBWaitSecondsTotal,
		m.ResolverCallsTotal,
		m.ResolverRetriesTotal,
		m.ResolverCallDuration,
		m.AuxiliaryTripsTotal,
		m.ShiftsCommittedTotal,
		m.DraftRejectionsTotal,
		m.StatsTripsTotal,
		m.StatsBatchDuration,
		m.EventsPublishedTotal,
	)

	return m
}

func (m *Metrics) ObserveResolverCall(collaborator, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.ResolverCallsTotal.WithLabelValues(collaborator, outcome).Inc()
	m.ResolverCallDuration.WithLabelValues(collaborator).Observe(d.Seconds())
}

func (m *Metrics) IncResolverRetry(collaborator string) {
	if m == nil {
		return
	}
	m.ResolverRetriesTotal.WithLabelValues(collaborator).Inc()
}

// IncRateLimited counts a rejected request. Keys are not used as labels.
func (m *Metrics) IncRateLimited(anonymous bool) {
	if m == nil {
		return
	}
	client := "keyed"
	if anonymous {
		client = "anonymous"
	}
	m.RateLimitedTotal.WithLabelValues(client).Inc()
}

func (m *Metrics) IncAuxiliaryTrip(kind string) {
	if m == nil {
		return
	}
	m.AuxiliaryTripsTotal.WithLabelValues(kind).Inc()
}

func (m *Metrics) IncShiftCommitted() {
	if m == nil {
		return
	}
	m.ShiftsCommittedTotal.Inc()
}

func (m *Metrics) IncDraftRejection(reason string) {
	if m == nil {
		return
	}
	m.DraftRejectionsTotal.WithLabelValues(reason).Inc()
}

func (m *Metrics) ObserveStatsBatch(ok, failed int, d time.Duration) {
	if m == nil {
		return
	}
	m.StatsTripsTotal.WithLabelValues("ok").Add(float64(ok))
	m.StatsTripsTotal.WithLabelValues("error").Add(float64(failed))
	m.StatsBatchDuration.Observe(d.Seconds())
}

func (m *Metrics) IncEventPublished(subject string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.EventsPublishedTotal.WithLabelValues(subject, outcome).Inc()
}

// StartDBStatsCollector starts a goroutine that periodically copies the
// connection pool statistics of db into the DB gauges. Calling it more than
// once has no effect. Call Shutdown to stop the collector.
func (m *Metrics) StartDBStatsCollector(db *sql.DB, interval time.Duration) {
	if db == nil {
		return
	}

	if !m.collectorStarted.CompareAndSwap(false, true) {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())

	var lastWaitDuration time.Duration

	// Add to WaitGroup before exposing cancel to avoid a race with Shutdown
	m.wg.Add(1)
	m.cancel = cancel

	go func() {
		defer m.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				if m.logger != nil {
					m.logger.Error("panic in DB stats collector", "error", r)
				}
			}
		}()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				stats := db.Stats()
				m.DBConnectionsOpen.Set(float64(stats.OpenConnections))
				m.DBConnectionsInUse.Set(float64(stats.InUse))
				m.DBConnectionsIdle.Set(float64(stats.Idle))

				waitDelta := stats.WaitDuration - lastWaitDuration
				if waitDelta > 0 {
					m.DBWaitSecondsTotal.Add(waitDelta.Seconds())
				}
				lastWaitDuration = stats.WaitDuration

			case <-ctx.Done():
				return
			}
		}
	}()
}

// Shutdown stops the DB stats collector goroutine and waits for it to exit.
// Safe to call multiple times.
func (m *Metrics) Shutdown() {
	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()
}
