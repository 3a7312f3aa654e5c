package restapi

import (
	"net/http"
	"strings"
)

// apiKeyMiddleware guards /api/ paths. Health and metrics stay open for
// probes and scrapers.
func (api *RestAPI) apiKeyMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api/") && api.RequestHasInvalidAPIKey(r) {
			api.sendUnauthorized(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}
