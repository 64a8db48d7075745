package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Route patterns reported as the path label.
const (
	routeLeaderboard   = "/v1/markets/{marketID}/leaderboard"
	routeLeaderboardMe = "/v1/markets/{marketID}/leaderboard/me"
	routeOther         = "other"
)

var staticRoutes = map[string]bool{
	"/v1/dimensions": true,
	"/v1/markets":    true,
	"/health":        true,
	"/ready":         true,
	"/metrics":       true,
}

// normalizePath maps a request path to its route pattern so that market ids
// do not become label values. Unknown paths collapse to "other".
func normalizePath(path string) string {
	if staticRoutes[path] {
		return path
	}

	parts := strings.Split(strings.TrimPrefix(path, "/"), "/")
	if len(parts) >= 4 && parts[0] == "v1" && parts[1] == "markets" && parts[2] != "" && parts[3] == "leaderboard" {
		switch {
		case len(parts) == 4:
			return routeLeaderboard
		case len(parts) == 5 && parts[4] == "me":
			return routeLeaderboardMe
		}
	}
	return routeOther
}

// metricsResponseWriter wraps http.ResponseWriter to capture status code and response size.
type metricsResponseWriter struct {
	http.ResponseWriter
	statusCode  int
	size        int64
	wroteHeader bool
}

func (mrw *metricsResponseWriter) WriteHeader(code int) {
	if mrw.wroteHeader {
		return
	}
	mrw.statusCode = code
	mrw.wroteHeader = true
	mrw.ResponseWriter.WriteHeader(code)
}

func (mrw *metricsResponseWriter) Write(b []byte) (int, error) {
	if !mrw.wroteHeader {
		mrw.WriteHeader(http.StatusOK)
	}
	n, err := mrw.ResponseWriter.Write(b)
	mrw.size += int64(n)
	return n, err
}

func (mrw *metricsResponseWriter) Unwrap() http.ResponseWriter {
	return mrw.ResponseWriter
}

// HTTPMetrics records duration, request and response size and a request
// count per method, route and status. /health and /ready are not recorded.
func HTTPMetrics(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/health" || r.URL.Path == "/ready" {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			mrw := &metricsResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			requestSize := r.ContentLength
			if requestSize < 0 {
				requestSize = 0
			}

			next.ServeHTTP(mrw, r)

			metrics.ObserveHTTPRequest(
				r.Method,
				normalizePath(r.URL.Path),
				strconv.Itoa(mrw.statusCode),
				time.Since(start).Seconds(),
				requestSize,
				mrw.size,
			)
		})
	}
}
