package app

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// APIKeyFromRequest reads the key from the "key" query parameter or the
// X-API-Key header.
func APIKeyFromRequest(r *http.Request) string {
	if key := r.URL.Query().Get("key"); key != "" {
		return key
	}
	return strings.TrimSpace(r.Header.Get("X-API-Key"))
}

func (app *Application) RequestHasInvalidAPIKey(r *http.Request) bool {
	return app.IsInvalidAPIKey(APIKeyFromRequest(r))
}

// IsInvalidAPIKey reports whether key is rejected. With no keys configured
// every request is accepted.
func (app *Application) IsInvalidAPIKey(key string) bool {
	validKeys := app.Config.ApiKeys
	if len(validKeys) == 0 {
		return false
	}
	if key == "" {
		return true
	}

	for _, validKey := range validKeys {
		// constant-time to avoid leaking key prefixes
		if subtle.ConstantTimeCompare([]byte(key), []byte(validKey)) == 1 {
			return false
		}
	}

	return true
}
