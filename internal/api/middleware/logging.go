// Package middleware holds the HTTP middleware for the read API.
package middleware

import (
	"log/slog"
	"net/http"
	"time"
)

// statusWriter captures the status code and body size a handler writes.
type statusWriter struct {
	http.ResponseWriter
	status int
	size   int
}

func (sw *statusWriter) WriteHeader(code int) {
	sw.status = code
	sw.ResponseWriter.WriteHeader(code)
}

func (sw *statusWriter) Write(b []byte) (int, error) {
	n, err := sw.ResponseWriter.Write(b)
	sw.size += n
	return n, err
}

// RequestLogging logs every HTTP request with method, path, status, duration,
// and response size. Health probes log at debug so liveness checks do not
// flood the log; server errors log at error.
func RequestLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		sw := &statusWriter{
			ResponseWriter: w,
			status:         http.StatusOK,
		}

		next.ServeHTTP(sw, r)

		level := slog.LevelInfo
		switch {
		case sw.status >= http.StatusInternalServerError:
			level = slog.LevelError
		case r.URL.Path == "/api/health":
			level = slog.LevelDebug
		}

		slog.Log(r.Context(), level, "http request",
			"method", r.Method,
			"path", r.URL.Path,
			"query", r.URL.RawQuery,
			"status", sw.status,
			"duration", time.Since(start).Round(time.Millisecond).String(),
			"size", sw.size,
			"remoteAddr", r.RemoteAddr,
		)
	})
}
