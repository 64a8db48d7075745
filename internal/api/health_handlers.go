package api

import (
	"context"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"
)

// HealthChecker defines the interface for components that can be health checked.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// DefaultReadyTimeout bounds the readiness checks.
const DefaultReadyTimeout = 3 * time.Second

// HealthHandlers provides liveness and readiness endpoints.
type HealthHandlers struct {
	checkers map[string]HealthChecker
	timeout  time.Duration
	now      func() time.Time
}

// HealthHandlersConfig configures the health check handlers.
type HealthHandlersConfig struct {
	// DBChecker is nil when running on the in-memory store.
	DBChecker HealthChecker
	// RedisChecker is nil when the KPI cache is disabled.
	RedisChecker HealthChecker
	// Timeout defaults to DefaultReadyTimeout.
	Timeout time.Duration
}

// NewHealthHandlers creates health handlers. Unconfigured dependencies are
// not reported.
func NewHealthHandlers(config HealthHandlersConfig) *HealthHandlers {
	checkers := make(map[string]HealthChecker)
	if config.DBChecker != nil {
		checkers["database"] = config.DBChecker
	}
	if config.RedisChecker != nil {
		checkers["redis"] = config.RedisChecker
	}
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = DefaultReadyTimeout
	}
	return &HealthHandlers{checkers: checkers, timeout: timeout, now: time.Now}
}

// HealthResponse represents the JSON response for health checks.
type HealthResponse struct {
	Status    string            `json:"status"`
	Checks    map[string]string `json:"checks"`
	Timestamp string            `json:"timestamp"`
}

// Health handles GET /health. It only reports that the process is serving.
func (h *HealthHandlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, HealthResponse{
		Status:    "healthy",
		Checks:    map[string]string{"runtime": "ok"},
		Timestamp: h.now().UTC().Format(time.RFC3339),
	})
}

// Ready handles GET /ready. Dependencies are checked concurrently; any
// failure yields 503.
func (h *HealthHandlers) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	names := make([]string, 0, len(h.checkers))
	for name := range h.checkers {
		names = append(names, name)
	}
	sort.Strings(names)

	results := make([]error, len(names))
	var wg sync.WaitGroup
	for i, name := range names {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = h.checkers[name].HealthCheck(ctx)
		}()
	}
	wg.Wait()

	checks := map[string]string{"metrics": "ok"}
	healthy := true
	for i, name := range names {
		if err := results[i]; err != nil {
			checks[name] = "error"
			healthy = false
			slog.WarnContext(ctx, "readiness check failed", "dependency", name, "error", err)
			continue
		}
		checks[name] = "ok"
	}

	resp := HealthResponse{
		Status:    "healthy",
		Checks:    checks,
		Timestamp: h.now().UTC().Format(time.RFC3339),
	}
	if healthy {
		writeJSON(w, r, resp)
		return
	}

	resp.Status = "unhealthy"
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusServiceUnavailable)
	if err := jsonEncode(w, resp); err != nil {
		slog.ErrorContext(ctx, "failed to encode readiness response", "error", err)
	}
}
