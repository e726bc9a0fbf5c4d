// Package middleware provides HTTP middleware for metrics collection.
package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/nadmax/fitsync/internal/metrics"
)

var recordHTTPRequest = metrics.RecordHTTPRequest

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &responseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		next.ServeHTTP(wrapped, r)

		duration := time.Since(start)
		endpoint := normalizeEndpoint(r.URL.Path)
		status := strconv.Itoa(wrapped.statusCode)

		recordHTTPRequest(r.Method, endpoint, status, duration)
	})
}

// normalizeEndpoint collapses path parameters so label cardinality stays bounded.
// Paths with empty or extra segments are not routes and keep their raw form.
func normalizeEndpoint(path string) string {
	switch {
	case strings.HasPrefix(path, "/api/batches/"):
		id := strings.TrimPrefix(path, "/api/batches/")
		if id != "" && !strings.Contains(id, "/") {
			return "/api/batches/:id"
		}
		return path
	case strings.HasPrefix(path, "/api/months/"):
		parts := strings.Split(strings.TrimPrefix(path, "/api/months/"), "/")
		if len(parts) == 2 && parts[0] != "" && parts[1] != "" {
			return "/api/months/:year/:month"
		}
		return path
	default:
		return path
	}
}
