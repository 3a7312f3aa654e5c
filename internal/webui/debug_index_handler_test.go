package webui

import (
	"context"
	"html/template"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"shiftplanner.ebus.dev/gtfsdb"
	"shiftplanner.ebus.dev/internal/app"
	"shiftplanner.ebus.dev/internal/appconf"
	"shiftplanner.ebus.dev/internal/models"
	"shiftplanner.ebus.dev/internal/stopindex"
)

func newTestWebUI(t *testing.T, env appconf.Environment) *WebUI {
	t.Helper()
	db, err := gtfsdb.NewClient(gtfsdb.NewConfig("sqlite3", ":memory:", appconf.Test, false))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	ctx := context.Background()
	require.NoError(t, db.Queries.UpsertStop(ctx, gtfsdb.UpsertStopParams{ID: "yard", Name: "North Yard"}))
	require.NoError(t, db.Queries.UpsertDepot(ctx, gtfsdb.Depot{ID: "d1", Name: "North Depot", StopID: "yard"}))

	return New(&app.Application{
		Config: appconf.Config{Env: env, ApiKeys: []string{"test"}},
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		DB:     db,
		Stops:  stopindex.New([]models.Stop{{ID: "yard", Name: "North Yard"}}),
	})
}

func serveDebug(webUI *WebUI, query string) *httptest.ResponseRecorder {
	mux := http.NewServeMux()
	webUI.SetRoutes(mux)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/debug?key=test&"+query, nil))
	return rr
}

func TestDebugIndexHandler_ProductionReturns404(t *testing.T) {
	webUI := &WebUI{
		Application: &app.Application{
			Config: appconf.Config{Env: appconf.Production},
		},
	}

	rr := serveDebug(webUI, "dataType=tables")
	assert.Equal(t, http.StatusNotFound, rr.Code, "Should return 404 in Production")
}

func TestDebugIndexHandler_RequiresAPIKey(t *testing.T) {
	webUI := newTestWebUI(t, appconf.Development)

	mux := http.NewServeMux()
	webUI.SetRoutes(mux)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/debug?dataType=tables", nil))

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestDebugIndexHandler_DataTypes(t *testing.T) {
	webUI := newTestWebUI(t, appconf.Development)

	tests := []struct {
		dataType string
		title    string
		contains string
	}{
		{dataType: "tables", title: "Planner tables - row counts", contains: `"depots"`},
		{dataType: "trip_kinds", title: "Trips by kind", contains: "map[string]int"},
		{dataType: "depots", title: "Depots", contains: "North Depot"},
		{dataType: "import", title: "Last GTFS import", contains: "no feed imported"},
		{dataType: "stop_index", title: "Stop index", contains: "indexed_stops"},
		{dataType: "", title: "Choose a data type", contains: "Please use one of the following"},
	}

	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			rr := serveDebug(webUI, "dataType="+tt.dataType)
			require.Equal(t, http.StatusOK, rr.Code)
			assert.Equal(t, "text/html; charset=utf-8", rr.Header().Get("Content-Type"))

			body := rr.Body.String()
			assert.Contains(t, body, "<title>"+tt.title+"</title>")
			// spew output is HTML-escaped inside the pre block
			assert.Contains(t, body, template.HTMLEscapeString(tt.contains))
		})
	}
}
