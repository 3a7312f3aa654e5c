package restapi

import (
	"net/http"

	"github.com/klauspost/compress/gzhttp"
)

// CompressionMiddleware gzips responses of 1 KiB and more when the client
// accepts it.
func CompressionMiddleware() func(http.Handler) http.Handler {
	wrapper, err := gzhttp.NewWrapper(
		gzhttp.MinSize(1024),
		gzhttp.CompressionLevel(6),
	)
	if err != nil {
		return func(next http.Handler) http.Handler { return next }
	}
	return func(next http.Handler) http.Handler {
		return wrapper(next)
	}
}
