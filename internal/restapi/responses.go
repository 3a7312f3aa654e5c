package restapi

import (
	"encoding/json"
	"net/http"

	"shiftplanner.ebus.dev/internal/models"
)

func (api *RestAPI) sendResponse(w http.ResponseWriter, r *http.Request, response models.ResponseModel) {
	api.sendResponseStatus(w, r, http.StatusOK, response)
}

func (api *RestAPI) sendResponseStatus(w http.ResponseWriter, r *http.Request, status int, response models.ResponseModel) {
	body, err := json.Marshal(response)
	if err != nil {
		api.serverErrorResponse(w, r, err)
		return
	}
	setJSONResponseType(&w)
	w.WriteHeader(status)
	_, _ = w.Write(append(body, '\n'))
}

func (api *RestAPI) sendNotFound(w http.ResponseWriter, r *http.Request) {
	api.sendError(w, r, http.StatusNotFound, "resource not found", nil)
}

func (api *RestAPI) sendUnauthorized(w http.ResponseWriter, r *http.Request) {
	api.sendError(w, r, http.StatusUnauthorized, "permission denied", nil)
}

func setJSONResponseType(w *http.ResponseWriter) {
	(*w).Header().Set("Content-Type", "application/json")
}

func (api *RestAPI) sendError(w http.ResponseWriter, r *http.Request, code int, message string, data any) {
	setJSONResponseType(&w)
	w.WriteHeader(code)

	response := models.NewErrorResponse(code, message, data, api.Clock)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		api.Logger.Error("failed to encode error response", "error", err, "path", r.URL.Path)
	}
}
