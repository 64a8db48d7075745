package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func installRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	prevTP, prevProp := otel.GetTracerProvider(), otel.GetTextMapPropagator()
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() {
		otel.SetTracerProvider(prevTP)
		otel.SetTextMapPropagator(prevProp)
		_ = tp.Shutdown(context.Background())
	})
	return recorder
}

func TestTracing_SpanNameAndRequestID(t *testing.T) {
	recorder := installRecorder(t)

	var traceID string
	handler := RequestID(Tracing("leaderhub")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID = GetTraceID(r)
	})))

	req := httptest.NewRequest(http.MethodGet, "/v1/markets/42/leaderboard?dimension=on_scene_time", nil)
	req.Header.Set(RequestIDHeader, "req-1")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if want := "GET " + routeLeaderboard; spans[0].Name() != want {
		t.Errorf("span name = %q, want %q", spans[0].Name(), want)
	}
	if traceID == "" || traceID != spans[0].SpanContext().TraceID().String() {
		t.Errorf("GetTraceID() = %q, span trace id = %s", traceID, spans[0].SpanContext().TraceID())
	}

	found := false
	for _, a := range spans[0].Attributes() {
		if a.Key == "request.id" && a.Value.AsString() == "req-1" {
			found = true
		}
	}
	if !found {
		t.Error("request.id attribute missing")
	}
}

func TestTracing_PropagatesParent(t *testing.T) {
	recorder := installRecorder(t)

	handler := Tracing("leaderhub")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	const parentTraceID = "4bf92f3577b34da6a3ce929d0e0e4736"
	req := httptest.NewRequest(http.MethodGet, "/v1/dimensions", nil)
	req.Header.Set("traceparent", "00-"+parentTraceID+"-00f067aa0ba902b7-01")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if got := spans[0].SpanContext().TraceID().String(); got != parentTraceID {
		t.Errorf("trace id = %s, want %s", got, parentTraceID)
	}
}

func TestGetTraceID_NoSpan(t *testing.T) {
	if got := GetTraceID(httptest.NewRequest(http.MethodGet, "/", nil)); got != "" {
		t.Errorf("GetTraceID() = %q, want empty", got)
	}
}
