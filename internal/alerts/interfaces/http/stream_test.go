package http

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	alertapp "pmu-monitor/internal/alerts/application"
	alerts "pmu-monitor/internal/alerts/domain"
)

type runnerFunc func(ctx context.Context, sink alertapp.Sink) error

func (f runnerFunc) Run(ctx context.Context, sink alertapp.Sink) error { return f(ctx, sink) }

func TestStreamWritesAlertEvents(t *testing.T) {
	runner := runnerFunc(func(ctx context.Context, sink alertapp.Sink) error {
		if err := sink.Push(ctx, []alerts.Alert{{PMUID: "1", Type: alerts.TypeVoltage, Value: 219, Field: "v_a_mag"}}); err != nil {
			return err
		}
		return nil
	})
	handler, err := NewStreamHandler(runner, nil)
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/alerts/stream", nil))

	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("unexpected content type: %s", ct)
	}
	body := rec.Body.String()
	if !strings.HasPrefix(body, "event: ready\n") {
		t.Fatalf("missing ready event: %q", body)
	}
	want := "event: alerts\ndata: [{\"pmu\":\"1\",\"type\":\"voltage\",\"value\":219,\"field\":\"v_a_mag\"}]\n\n"
	if !strings.Contains(body, want) {
		t.Fatalf("missing alerts event: %q", body)
	}
	if strings.Contains(body, "event: error") {
		t.Fatalf("unexpected error event: %q", body)
	}
}

func TestStreamReportsFault(t *testing.T) {
	runner := runnerFunc(func(ctx context.Context, sink alertapp.Sink) error {
		return errors.New("alert scan: influx unreachable")
	})
	handler, _ := NewStreamHandler(runner, nil)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/alerts/stream", nil))

	if !strings.Contains(rec.Body.String(), "event: error\ndata: {\"detail\":\"alert scan: influx unreachable\"}") {
		t.Fatalf("missing error event: %q", rec.Body.String())
	}
}

func TestStreamRejectsNonGet(t *testing.T) {
	handler, _ := NewStreamHandler(runnerFunc(func(context.Context, alertapp.Sink) error { return nil }), nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/alerts/stream", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}
