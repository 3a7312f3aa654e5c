package restapi

import (
	"net/http"

	"shiftplanner.ebus.dev/internal/models"
	"shiftplanner.ebus.dev/internal/shift"
)

type commitShiftRequest struct {
	Draft     shift.Draft `json:"draft"`
	Name      string      `json:"name"`
	VehicleID string      `json:"vehicle_id"`
}

func (api *RestAPI) commitShiftHandler(w http.ResponseWriter, r *http.Request) {
	var req commitShiftRequest
	if !api.decodeJSON(w, r, &req) {
		return
	}

	s, err := api.Committer.Commit(r.Context(), req.Draft, req.Name, req.VehicleID)
	if err != nil {
		api.rejectDraft(w, r, err)
		return
	}
	api.sendResponseStatus(w, r, http.StatusCreated, models.NewEntryResponse(s, api.Clock))
}

func (api *RestAPI) shiftHandler(w http.ResponseWriter, r *http.Request) {
	s, err := api.Committer.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		api.domainErrorResponse(w, r, err)
		return
	}
	api.sendResponse(w, r, models.NewEntryResponse(s, api.Clock))
}
