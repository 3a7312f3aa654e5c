package restapi

import (
	"encoding/json"
	"net/http"

	"shiftplanner.ebus.dev/internal/logging"
)

// HealthResponse is the body of /healthz.
type HealthResponse struct {
	Status  string `json:"status"`
	Detail  string `json:"detail,omitempty"`
	Stops   int    `json:"stops,omitempty"`
	Backend string `json:"artifact_backend,omitempty"`
}

// healthHandler answers 503 until the database is reachable.
func (api *RestAPI) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if api.Application == nil || api.DB == nil || api.DB.DB == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(HealthResponse{
			Status: "unavailable",
			Detail: "database not initialized",
		})
		return
	}

	if err := api.DB.DB.PingContext(r.Context()); err != nil {
		logging.LogError(api.Logger, "database ping failed", err)
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(HealthResponse{
			Status: "unavailable",
			Detail: "database connection failed",
		})
		return
	}

	resp := HealthResponse{Status: "ok", Backend: api.Config.ArtifactBackend}
	if api.Stops != nil {
		resp.Stops = api.Stops.Len()
	}
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(resp)
}
