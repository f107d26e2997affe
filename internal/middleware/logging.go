package middleware

import (
	"net/http"
	"time"

	"github.com/CLDWare/labtrack-backend/pkg/logger"
)

// LoggingMiddleware logs every request with its duration.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		logger.Info(r.Method, r.URL.Path, time.Since(start))
	})
}
