package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
)

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/health", "/health"},
		{"/ready", "/ready"},
		{"/metrics", "/metrics"},
		{"/v1/dimensions", "/v1/dimensions"},
		{"/v1/markets", "/v1/markets"},
		{"/v1/markets/12/leaderboard", routeLeaderboard},
		{"/v1/markets/999999/leaderboard", routeLeaderboard},
		{"/v1/markets/12/leaderboard/me", routeLeaderboardMe},
		{"/v1/markets//leaderboard", routeOther},
		{"/v1/markets/12/leaderboard/other", routeOther},
		{"/v1/markets/12", routeOther},
		{"/wp-admin/setup.php", routeOther},
		{"/", routeOther},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := normalizePath(tt.path); got != tt.want {
				t.Errorf("normalizePath(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}

func findMetric(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) *dto.Metric {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
	next:
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if want, ok := labels[lp.GetName()]; ok && want != lp.GetValue() {
					continue next
				}
			}
			return m
		}
	}
	return nil
}

func TestHTTPMetrics(t *testing.T) {
	metrics := NewMetrics()
	reg := prometheus.NewRegistry()
	if err := metrics.Register(reg); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	handler := HTTPMetrics(metrics)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		if strings.HasSuffix(r.URL.Path, "/me") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`{"podium":{}}`))
	}))

	for _, path := range []string{"/v1/markets/1/leaderboard", "/v1/markets/2/leaderboard", "/v1/markets/2/leaderboard/me", "/health"} {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, strings.NewReader("body")))
	}

	okLabels := map[string]string{"method": "GET", "path": routeLeaderboard, "status": "200"}
	if got := testutil.ToFloat64(metrics.httpRequestsTotal.With(okLabels)); got != 2 {
		t.Errorf("requests for leaderboard route = %v, want 2", got)
	}
	notFound := map[string]string{"method": "GET", "path": routeLeaderboardMe, "status": "404"}
	if got := testutil.ToFloat64(metrics.httpRequestsTotal.With(notFound)); got != 1 {
		t.Errorf("requests for me route = %v, want 1", got)
	}

	m := findMetric(t, reg, MetricHTTPResponseSizeBytes, okLabels)
	if m == nil {
		t.Fatal("response size histogram not found")
	}
	if m.GetHistogram().GetSampleCount() != 2 || m.GetHistogram().GetSampleSum() != 2*float64(len(`{"podium":{}}`)) {
		t.Errorf("unexpected response size histogram %v", m.GetHistogram())
	}

	m = findMetric(t, reg, MetricHTTPRequestSizeBytes, okLabels)
	if m == nil || m.GetHistogram().GetSampleSum() != 8 {
		t.Errorf("expected request size sum 8, got %v", m)
	}

	if findMetric(t, reg, MetricHTTPRequestsTotal, map[string]string{"path": "/health"}) != nil {
		t.Error("/health must not be recorded")
	}
}

func TestMetrics_RegisterTwiceFails(t *testing.T) {
	reg := prometheus.NewRegistry()
	if err := NewMetrics().Register(reg); err != nil {
		t.Fatalf("first Register() error = %v", err)
	}
	if err := NewMetrics().Register(reg); err == nil {
		t.Error("expected duplicate registration error")
	}
}
