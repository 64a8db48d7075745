package api

import (
	"crypto/subtle"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// InternalTokenHeader carries the token that guards internal endpoints.
const InternalTokenHeader = "X-Internal-Token"

// MetricsHandler serves the Prometheus scrape endpoint for reg. When token
// is non-empty, requests must present it in X-Internal-Token.
func MetricsHandler(reg *prometheus.Registry, token string) http.Handler {
	return InternalAuth(token)(promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
}

// InternalAuth restricts access to requests carrying token. An empty token
// disables the check. Comparison is constant-time.
func InternalAuth(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			got := r.Header.Get(InternalTokenHeader)
			if subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				WriteError(w, r.Context(), http.StatusForbidden, ErrCodeForbidden, "Forbidden")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
