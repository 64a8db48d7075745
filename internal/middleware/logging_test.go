package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

// testLogEntry represents a parsed JSON log entry for testing.
type testLogEntry struct {
	Level      string `json:"level"`
	Msg        string `json:"msg"`
	Method     string `json:"method"`
	Path       string `json:"path"`
	Status     int    `json:"status"`
	LatencyMS  int64  `json:"latency_ms"`
	Size       int    `json:"size"`
	RequestID  string `json:"request_id"`
	ProviderID string `json:"provider_id"`
	ErrorCode  string `json:"error_code"`
}

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
}

func parseLogEntry(t *testing.T, buf *bytes.Buffer) testLogEntry {
	t.Helper()
	var entry testLogEntry
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse log entry: %v, log: %s", err, buf.String())
	}
	return entry
}

func TestLogging_BasicFields(t *testing.T) {
	buf := &bytes.Buffer{}
	handler := Logging(newTestLogger(buf))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("hello"))
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/dimensions", nil)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	entry := parseLogEntry(t, buf)
	if entry.Msg != "request completed" {
		t.Errorf("msg = %q", entry.Msg)
	}
	if entry.Method != http.MethodGet || entry.Path != "/v1/dimensions" {
		t.Errorf("method/path = %s %s", entry.Method, entry.Path)
	}
	if entry.Status != http.StatusOK {
		t.Errorf("expected status 200, got %d", entry.Status)
	}
	if entry.Size != 5 {
		t.Errorf("expected size 5, got %d", entry.Size)
	}
	if entry.Level != "INFO" {
		t.Errorf("expected level INFO, got %s", entry.Level)
	}
	if entry.ProviderID != "" || entry.ErrorCode != "" {
		t.Errorf("unexpected provider_id/error_code: %+v", entry)
	}
}

func TestLogging_WithRequestID(t *testing.T) {
	buf := &bytes.Buffer{}
	handler := RequestID(Logging(newTestLogger(buf))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})))

	req := httptest.NewRequest(http.MethodGet, "/v1/dimensions", nil)
	req.Header.Set(RequestIDHeader, "req-456")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if entry := parseLogEntry(t, buf); entry.RequestID != "req-456" {
		t.Errorf("expected request_id req-456, got %s", entry.RequestID)
	}
}

// Values set by inner handlers on a derived context must reach the log line.
func TestLogging_SeesValuesSetDownstream(t *testing.T) {
	buf := &bytes.Buffer{}
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := GetProviderID(r.Context()); got != "17" {
			t.Errorf("GetProviderID() = %q, want 17", got)
		}
		SetErrorCode(r.Context(), "invalid_dimension")
		w.WriteHeader(http.StatusBadRequest)
	})
	withProvider := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		inner.ServeHTTP(w, r.WithContext(SetProviderID(r.Context(), "17")))
	})
	handler := Logging(newTestLogger(buf))(withProvider)

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/markets/1/leaderboard", nil))

	entry := parseLogEntry(t, buf)
	if entry.ProviderID != "17" {
		t.Errorf("provider_id = %q, want 17", entry.ProviderID)
	}
	if entry.ErrorCode != "invalid_dimension" {
		t.Errorf("error_code = %q, want invalid_dimension", entry.ErrorCode)
	}
	if entry.Level != "WARN" {
		t.Errorf("level = %s, want WARN", entry.Level)
	}
}

func TestLogging_Levels(t *testing.T) {
	tests := []struct {
		status    int
		code      string
		wantLevel string
		wantCode  string
	}{
		{http.StatusOK, "", "INFO", ""},
		{http.StatusOK, "ignored_on_success", "INFO", ""},
		{http.StatusNotFound, "not_found", "WARN", "not_found"},
		{http.StatusUnauthorized, "auth_failed", "WARN", "auth_failed"},
		{http.StatusInternalServerError, "internal_error", "ERROR", "internal_error"},
		{http.StatusServiceUnavailable, "", "ERROR", ""},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			buf := &bytes.Buffer{}
			handler := Logging(newTestLogger(buf))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if tt.code != "" {
					SetErrorCode(r.Context(), tt.code)
				}
				w.WriteHeader(tt.status)
			}))

			handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

			entry := parseLogEntry(t, buf)
			if entry.Level != tt.wantLevel {
				t.Errorf("level = %s, want %s", entry.Level, tt.wantLevel)
			}
			if entry.ErrorCode != tt.wantCode {
				t.Errorf("error_code = %q, want %q", entry.ErrorCode, tt.wantCode)
			}
		})
	}
}

func TestResponseWriter_FirstStatusWins(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := newResponseWriter(rec)

	rw.WriteHeader(http.StatusAccepted)
	rw.WriteHeader(http.StatusTeapot)
	_, _ = rw.Write([]byte("ok"))

	if rw.statusCode != http.StatusAccepted {
		t.Errorf("statusCode = %d, want 202", rw.statusCode)
	}
	if rec.Code != http.StatusAccepted {
		t.Errorf("recorded code = %d, want 202", rec.Code)
	}
	if rw.Unwrap() != rec {
		t.Error("Unwrap() should return the wrapped writer")
	}
}

func TestContextHelpers_WithoutLogging(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	ctx := req.Context()

	if GetProviderID(ctx) != "" || GetErrorCode(ctx) != "" || GetRequestID(ctx) != "" {
		t.Fatal("expected empty values on a bare context")
	}

	ctx = SetProviderID(ctx, "5")
	ctx = SetErrorCode(ctx, "not_found")
	if GetProviderID(ctx) != "5" {
		t.Errorf("GetProviderID() = %q", GetProviderID(ctx))
	}
	if GetErrorCode(ctx) != "not_found" {
		t.Errorf("GetErrorCode() = %q", GetErrorCode(ctx))
	}
}

func TestNewLogger(t *testing.T) {
	if _, ok := NewLogger("production").Handler().(*slog.JSONHandler); !ok {
		t.Error("expected JSON handler in production")
	}
	if _, ok := NewLogger("development").Handler().(*slog.TextHandler); !ok {
		t.Error("expected text handler outside production")
	}
	if !NewLogger("development").Enabled(context.Background(), slog.LevelDebug) {
		t.Error("expected debug logging outside production")
	}
}
