package restapi

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"shiftplanner.ebus.dev/internal/logging"
	"shiftplanner.ebus.dev/internal/models"
	"shiftplanner.ebus.dev/internal/tripstats"
)

const (
	maxStatisticsBatch = 1000
	wsWriteTimeout     = 5 * time.Second
)

type tripStatisticsRequest struct {
	TripIDs []string `json:"trip_ids"`
}

func (api *RestAPI) tripStatisticsHandler(w http.ResponseWriter, r *http.Request) {
	var req tripStatisticsRequest
	if !api.decodeJSON(w, r, &req) {
		return
	}
	if !api.validBatch(w, r, req.TripIDs) {
		return
	}

	results := api.Stats.Compute(r.Context(), req.TripIDs)
	api.sendResponse(w, r, models.NewListResponse(results, false, api.Clock))
}

// tripStatisticsStreamHandler upgrades to a websocket and sends one JSON
// result per trip as soon as it is computed, then closes normally.
// Trip ids come from repeated trip_id parameters or a comma-separated
// trip_ids parameter.
func (api *RestAPI) tripStatisticsStreamHandler(w http.ResponseWriter, r *http.Request) {
	ids := streamTripIDs(r)
	if !api.validBatch(w, r, ids) {
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		logging.LogError(api.Logger, "websocket accept failed", err)
		return
	}
	defer func() { _ = conn.CloseNow() }()

	// CloseRead handles control frames and cancels ctx once the peer leaves.
	ctx := conn.CloseRead(r.Context())

	err = api.Stats.Stream(ctx, ids, func(res tripstats.Result) error {
		writeCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
		defer cancel()
		return wsjson.Write(writeCtx, conn, res)
	})
	if err != nil {
		api.Logger.Debug("trip statistics stream ended early",
			slog.String("error", err.Error()),
			slog.String("request_id", GetRequestID(r.Context())))
		_ = conn.Close(websocket.StatusInternalError, "stream aborted")
		return
	}
	_ = conn.Close(websocket.StatusNormalClosure, "done")
}

func streamTripIDs(r *http.Request) []string {
	q := r.URL.Query()
	ids := append([]string(nil), q["trip_id"]...)
	for _, part := range strings.Split(q.Get("trip_ids"), ",") {
		if p := strings.TrimSpace(part); p != "" {
			ids = append(ids, p)
		}
	}
	return ids
}

func (api *RestAPI) validBatch(w http.ResponseWriter, r *http.Request, ids []string) bool {
	switch {
	case len(ids) == 0:
		api.badRequest(w, r, "at least one trip id is required")
		return false
	case len(ids) > maxStatisticsBatch:
		api.badRequest(w, r, "at most %d trip ids per request", maxStatisticsBatch)
		return false
	}
	return true
}
