package app

import (
	"log/slog"

	"shiftplanner.ebus.dev/gtfsdb"
	"shiftplanner.ebus.dev/internal/appconf"
	"shiftplanner.ebus.dev/internal/artifacts"
	"shiftplanner.ebus.dev/internal/auxtrip"
	"shiftplanner.ebus.dev/internal/clock"
	"shiftplanner.ebus.dev/internal/events"
	"shiftplanner.ebus.dev/internal/metrics"
	"shiftplanner.ebus.dev/internal/shift"
	"shiftplanner.ebus.dev/internal/stopindex"
	"shiftplanner.ebus.dev/internal/tripstats"
)

// Application holds the dependencies shared by HTTP handlers, helpers and
// middleware. Close releases everything that owns a connection.
type Application struct {
	Config      appconf.Config
	Logger      *slog.Logger
	DB          *gtfsdb.Client
	Clock       clock.Clock
	Metrics     *metrics.Metrics
	Profiles    *artifacts.ProfileStore
	Events      events.Publisher
	Synthesizer *auxtrip.Synthesizer
	Committer   *shift.Committer
	Stats       *tripstats.Engine
	Stops       *stopindex.Index

	closers []func()
}

// OnClose registers fn to run on Close, in reverse registration order.
func (app *Application) OnClose(fn func()) {
	app.closers = append(app.closers, fn)
}

func (app *Application) Close() {
	for i := len(app.closers) - 1; i >= 0; i-- {
		app.closers[i]()
	}
	app.closers = nil
}
