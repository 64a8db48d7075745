package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
)

func TestRateLimitConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     RateLimitConfig
		wantErr bool
	}{
		{"default", DefaultLeaderboardLimit(), false},
		{"zero requests", RateLimitConfig{RequestsPerWindow: 0, WindowDuration: time.Second}, true},
		{"zero window", RateLimitConfig{RequestsPerWindow: 1}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestInMemoryRateLimitStore_Window(t *testing.T) {
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	store := NewInMemoryRateLimitStore()
	store.now = func() time.Time { return now }
	cfg := RateLimitConfig{RequestsPerWindow: 3, WindowDuration: time.Minute}
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if allowed, _, _ := store.Allow(ctx, "provider:1", cfg); !allowed {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}

	now = now.Add(20 * time.Second)
	allowed, retryAfter, err := store.Allow(ctx, "provider:1", cfg)
	if err != nil {
		t.Fatalf("Allow() error = %v", err)
	}
	if allowed {
		t.Fatal("4th request should be blocked")
	}
	if retryAfter != 40 {
		t.Errorf("retryAfter = %d, want 40", retryAfter)
	}

	if allowed, _, _ := store.Allow(ctx, "provider:2", cfg); !allowed {
		t.Error("other keys have their own window")
	}

	now = now.Add(40 * time.Second)
	if allowed, _, _ := store.Allow(ctx, "provider:1", cfg); !allowed {
		t.Error("a new window should allow requests")
	}

	now = now.Add(2 * time.Minute)
	store.Cleanup()
	if len(store.buckets) != 0 {
		t.Errorf("expected expired buckets removed, %d left", len(store.buckets))
	}
}

func TestProviderKeyFunc(t *testing.T) {
	keyFunc := ProviderKeyFunc()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.9:5555"
	if got := keyFunc(req); got != "ip:10.0.0.9" {
		t.Errorf("anonymous key = %q", got)
	}

	req.Header.Set("X-Forwarded-For", " 203.0.113.7 , 10.0.0.1")
	if got := keyFunc(req); got != "ip:203.0.113.7" {
		t.Errorf("forwarded key = %q", got)
	}

	req = req.WithContext(SetProviderID(req.Context(), "88"))
	if got := keyFunc(req); got != "provider:88" {
		t.Errorf("provider key = %q", got)
	}
}

type failingStore struct{}

func (failingStore) Allow(context.Context, string, RateLimitConfig) (bool, int, error) {
	return false, 0, errors.New("redis: connection refused")
}

func TestRateLimiter(t *testing.T) {
	metrics := NewMetrics()
	cfg := RateLimitConfig{RequestsPerWindow: 2, WindowDuration: time.Minute}
	handler := RateLimiter(NewInMemoryRateLimitStore(), cfg, ProviderKeyFunc(), metrics)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) }))

	var last *httptest.ResponseRecorder
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/v1/markets/1/leaderboard", nil)
		req = req.WithContext(SetProviderID(req.Context(), "3"))
		last = httptest.NewRecorder()
		handler.ServeHTTP(last, req)
		if i < 2 && last.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d", i+1, last.Code)
		}
	}

	if last.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", last.Code)
	}
	if ra, err := strconv.Atoi(last.Header().Get("Retry-After")); err != nil || ra <= 0 {
		t.Errorf("Retry-After = %q", last.Header().Get("Retry-After"))
	}
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(last.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if body.Error.Code != "rate_limited" {
		t.Errorf("error code = %q", body.Error.Code)
	}

	if got := testutil.ToFloat64(metrics.rateLimitRequests.WithLabelValues(routeLeaderboard)); got != 3 {
		t.Errorf("rate limit checks = %v, want 3", got)
	}
	if got := testutil.ToFloat64(metrics.rateLimitBlocked.WithLabelValues(routeLeaderboard)); got != 1 {
		t.Errorf("blocked = %v, want 1", got)
	}
}

func TestRateLimiter_FailsOpen(t *testing.T) {
	metrics := NewMetrics()
	handler := RateLimiter(failingStore{}, DefaultLeaderboardLimit(), IPKeyFunc(), metrics)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) }))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/dimensions", nil))

	if rr.Code != http.StatusNoContent {
		t.Errorf("status = %d, want request to pass through", rr.Code)
	}
	if got := testutil.ToFloat64(metrics.rateLimitStoreErrors); got != 1 {
		t.Errorf("store errors = %v, want 1", got)
	}
}

// Requires a Redis instance on localhost:6379; skipped otherwise.
func TestRedisRateLimitStore_Allow(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skip("Redis not available, skipping integration test")
	}
	defer client.Close()

	store := NewRedisRateLimitStore(client)
	cfg := RateLimitConfig{RequestsPerWindow: 5, WindowDuration: time.Minute}
	key := "test-" + strconv.FormatInt(time.Now().UnixNano(), 10)
	defer client.Del(context.Background(), store.prefix+key)

	for i := 0; i < 5; i++ {
		allowed, _, err := store.Allow(ctx, key, cfg)
		if err != nil {
			t.Fatalf("Allow() error = %v", err)
		}
		if !allowed {
			t.Errorf("request %d should be allowed", i+1)
		}
	}

	allowed, retryAfter, err := store.Allow(ctx, key, cfg)
	if err != nil {
		t.Fatalf("Allow() error = %v", err)
	}
	if allowed {
		t.Error("6th request should be blocked")
	}
	if retryAfter <= 0 || retryAfter > 60 {
		t.Errorf("expected retryAfter between 1 and 60, got %d", retryAfter)
	}
}
