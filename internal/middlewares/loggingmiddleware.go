package middlewares

import (
	"net/http"
	"time"

	"github.com/the127/stevedore/internal/logging"

	"github.com/gorilla/mux"
)

func LoggingMiddleware() mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Chunk uploads are long-lived, log the duration as well.
			start := time.Now()
			logging.Logger.Infof("API Request: %s %s", r.Method, r.URL.Path)
			next.ServeHTTP(w, r)
			logging.Logger.Infof("API Request done: %s %s (%s)", r.Method, r.URL.Path, time.Since(start))
		})
	}
}
