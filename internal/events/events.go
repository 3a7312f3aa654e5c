// Package events publishes planner domain events. Delivery is best effort:
// a failed publish is logged and counted, never surfaced to the caller.
package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"shiftplanner.ebus.dev/internal/logging"
	"shiftplanner.ebus.dev/internal/metrics"
)

const (
	TypeAuxiliaryTripSynthesized = "auxtrip.synthesized"
	TypeShiftCommitted           = "shift.committed"
)

type Event struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	OccurredAt time.Time `json:"occurredAt"`
	Data       any       `json:"data"`
}

func NewEvent(typ string, at time.Time, data any) Event {
	return Event{ID: uuid.NewString(), Type: typ, OccurredAt: at.UTC(), Data: data}
}

type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// Emit publishes ev and logs a failure instead of returning it.
func Emit(ctx context.Context, p Publisher, logger *slog.Logger, ev Event) {
	if p == nil {
		return
	}
	if err := p.Publish(ctx, ev); err != nil {
		logging.LogError(logger, "failed to publish event", err,
			slog.String("event_type", ev.Type),
			slog.String("event_id", ev.ID))
	}
}

// Nop drops every event. Used when no NATS server is configured.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }

// NATSPublisher publishes events as JSON on <prefix>.<event type>.
type NATSPublisher struct {
	nc      *nats.Conn
	prefix  string
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func NewNATSPublisher(url, prefix string, m *metrics.Metrics, logger *slog.Logger) (*NATSPublisher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "events"))

	nc, err := nats.Connect(url,
		nats.Name("shiftplanner"),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("nats disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			logger.Info("nats reconnected")
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			logger.Info("nats closed")
		}),
	)
	if err != nil {
		return nil, err
	}
	return &NATSPublisher{nc: nc, prefix: prefix, metrics: m, logger: logger}, nil
}

// Conn exposes the connection so the artifact store can share it.
func (p *NATSPublisher) Conn() *nats.Conn {
	return p.nc
}

func (p *NATSPublisher) Publish(_ context.Context, ev Event) error {
	subject := p.prefix + "." + ev.Type
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	err = p.nc.Publish(subject, b)
	p.metrics.IncEventPublished(subject, err)
	return err
}

func (p *NATSPublisher) Close() {
	if p.nc != nil {
		_ = p.nc.Drain()
		p.nc.Close()
	}
}

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Publish(_ context.Context, ev Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Types returns the type of every recorded event in publish order.
func (r *Recorder) Types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Type
	}
	return out
}
