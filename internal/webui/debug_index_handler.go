package webui

import (
	"database/sql"
	"errors"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/davecgh/go-spew/spew"
	"shiftplanner.ebus.dev/internal/app"
	"shiftplanner.ebus.dev/internal/appconf"
)

var debugTemplate = template.Must(template.New("debug").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>{{.Title}}</title></head>
<body>
<h1>{{.Title}}</h1>
<p>
<a href="?dataType=tables">tables</a> |
<a href="?dataType=trip_kinds">trip kinds</a> |
<a href="?dataType=depots">depots</a> |
<a href="?dataType=import">import</a> |
<a href="?dataType=stop_index">stop index</a>
</p>
<pre>{{.Pre}}</pre>
</body>
</html>
`))

// WebUI serves the developer pages that sit next to the REST API.
type WebUI struct {
	*app.Application
}

func New(a *app.Application) *WebUI {
	return &WebUI{Application: a}
}

// SetRoutes mounts the debug page on mux. The page is never served in
// production.
func (webUI *WebUI) SetRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /debug", webUI.debugIndexHandler)
}

type debugData struct {
	Title string
	Pre   string
}

func writeDebugData(w http.ResponseWriter, title string, data interface{}) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	err := debugTemplate.Execute(w, debugData{Title: title, Pre: spew.Sdump(data)})
	if err != nil {
		slog.Error("failed to execute debug template", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

func (webUI *WebUI) debugIndexHandler(w http.ResponseWriter, r *http.Request) {
	if webUI.Config.Env == appconf.Production {
		http.NotFound(w, r)
		return
	}
	if webUI.RequestHasInvalidAPIKey(r) {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	if webUI.DB == nil {
		http.Error(w, "database not initialized", http.StatusServiceUnavailable)
		return
	}

	ctx := r.Context()
	var (
		data  interface{}
		title string
		err   error
	)

	switch r.URL.Query().Get("dataType") {
	case "tables":
		data, err = webUI.DB.TableCounts(ctx)
		title = "Planner tables - row counts"
	case "trip_kinds":
		data, err = webUI.DB.TripKindCounts(ctx)
		title = "Trips by kind"
	case "depots":
		data, err = webUI.DB.Queries.ListDepots(ctx)
		title = "Depots"
	case "import":
		data, err = webUI.DB.Queries.GetImportMetadata(ctx)
		if errors.Is(err, sql.ErrNoRows) {
			data, err = map[string]string{"status": "no feed imported"}, nil
		}
		title = "Last GTFS import"
	case "stop_index":
		size := 0
		if webUI.Stops != nil {
			size = webUI.Stops.Len()
		}
		data = map[string]int{"indexed_stops": size}
		title = "Stop index"
	default:
		data = map[string]string{
			"error": "Please use one of the following: tables, trip_kinds, depots, import, stop_index.",
		}
		title = "Choose a data type"
	}

	if err != nil {
		webUI.Logger.Error("debug page query failed", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	writeDebugData(w, title, data)
}
