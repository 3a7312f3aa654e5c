package restapi

import (
	"context"
	"net/http"
	"time"
)

// RequestDeadlineMiddleware bounds the request context of handlers that wait
// on the routing and elevation services. timeout is read per request; zero
// or less leaves the context alone.
func RequestDeadlineMiddleware(timeout func() time.Duration, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		d := timeout()
		if d <= 0 {
			next.ServeHTTP(w, r)
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), d)
		defer cancel()
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// deadlineExceeded reports whether the request ran out of time, whatever
// error the engine wrapped the expiry in.
func deadlineExceeded(r *http.Request) bool {
	return r.Context().Err() == context.DeadlineExceeded
}
