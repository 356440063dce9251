package main

import (
	"bufio"
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

type stubPinger struct {
	ok  bool
	err error
}

func (s stubPinger) Ping(context.Context) (bool, error) { return s.ok, s.err }

func TestHealthHandler(t *testing.T) {
	cases := []struct {
		name   string
		pinger stubPinger
		want   int
	}{
		{"up", stubPinger{ok: true}, http.StatusOK},
		{"down", stubPinger{ok: false}, http.StatusServiceUnavailable},
		{"error", stubPinger{err: errors.New("dial tcp: refused")}, http.StatusServiceUnavailable},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		healthHandler(tc.pinger)(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		if rec.Code != tc.want {
			t.Fatalf("%s: expected %d, got %d", tc.name, tc.want, rec.Code)
		}
	}
}

func TestSplitCSV(t *testing.T) {
	got := splitCSV(" http://a , ,http://b")
	if len(got) != 2 || got[0] != "http://a" || got[1] != "http://b" {
		t.Fatalf("unexpected split: %v", got)
	}
	if splitCSV("") != nil {
		t.Fatalf("empty input should yield nil")
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("INFLUX_ORG", "grid")
	t.Setenv("INFLUX_BUCKET", "pmu")
	t.Setenv("INFLUX_TIMEOUT", "250ms")
	cfg := loadConfig()
	if cfg.HTTPAddr != ":8000" || cfg.InfluxURL != "http://localhost:8086" || cfg.InfluxMeasurement != "pmu_measurements" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.InfluxTimeout != time.Second {
		t.Fatalf("timeout should be clamped to 1s, got %s", cfg.InfluxTimeout)
	}
	if len(cfg.AllowedOrigins) != 1 || cfg.AllowedOrigins[0] != "http://localhost:5173" {
		t.Fatalf("unexpected origins: %v", cfg.AllowedOrigins)
	}
	if cfg.RosterLookback != 10*time.Minute || cfg.ProtocolConfigPath != "config.ini" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

type hijackRecorder struct {
	*httptest.ResponseRecorder
	hijacked bool
}

func (h *hijackRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h.hijacked = true
	return nil, nil, nil
}

func TestLoggingMiddlewarePassesThroughCapabilities(t *testing.T) {
	var buf strings.Builder
	logger := log.New(&buf, "", 0)

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := w.(http.Flusher); !ok {
			t.Fatalf("flusher lost")
		}
		hj, ok := w.(http.Hijacker)
		if !ok {
			t.Fatalf("hijacker lost")
		}
		_, _, _ = hj.Hijack()
	})
	rec := &hijackRecorder{ResponseRecorder: httptest.NewRecorder()}
	loggingMiddleware(next, logger).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ws/alerts", nil))

	if !rec.hijacked {
		t.Fatalf("hijack not forwarded")
	}
	if !strings.Contains(buf.String(), "http GET /ws/alerts 101") {
		t.Fatalf("unexpected access log: %q", buf.String())
	}
}

func TestLoggingMiddlewareRecordsStatus(t *testing.T) {
	var buf strings.Builder
	logger := log.New(&buf, "", 0)
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	loggingMiddleware(next, logger).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/power_a", nil))
	if !strings.Contains(buf.String(), "http GET /api/power_a 404") {
		t.Fatalf("unexpected access log: %q", buf.String())
	}
}
