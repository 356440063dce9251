package ws

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	alertapp "pmu-monitor/internal/alerts/application"
	alerts "pmu-monitor/internal/alerts/domain"
	phasor "pmu-monitor/internal/phasor/domain"
)

type latestStore struct {
	mu      sync.Mutex
	samples []phasor.Sample
	err     error
}

func (s *latestStore) Query(_ context.Context, _ phasor.Query) ([]phasor.Sample, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.samples, s.err
}

type runnerFunc func(ctx context.Context, sink alertapp.Sink) error

func (f runnerFunc) Run(ctx context.Context, sink alertapp.Sink) error { return f(ctx, sink) }

func dial(t *testing.T, srv *httptest.Server, origin string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	header := http.Header{}
	if origin != "" {
		header.Set("Origin", origin)
	}
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	return conn
}

func TestHandlerPushesAlertBatches(t *testing.T) {
	store := &latestStore{samples: []phasor.Sample{
		{PMUID: "1", Values: map[string]float64{"v_a_mag": 219}},
		{PMUID: "1", Values: map[string]float64{"v_b_mag": 220.5}},
	}}
	cfg := alertapp.DefaultConfig()
	cfg.PollInterval = 20 * time.Millisecond
	scanner, err := alertapp.NewScanner(store, cfg, nil)
	if err != nil {
		t.Fatalf("new scanner: %v", err)
	}
	handler, err := NewHandler(scanner, []string{"http://localhost:5173"}, nil)
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}
	srv := httptest.NewServer(handler)
	defer srv.Close()

	conn := dial(t, srv, "http://localhost:5173")
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var batch []alerts.Alert
	if err := conn.ReadJSON(&batch); err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(batch) != 1 {
		t.Fatalf("expected 1 alert, got %+v", batch)
	}
	if batch[0].PMUID != "1" || batch[0].Type != alerts.TypeVoltage || batch[0].Value != 219 {
		t.Fatalf("unexpected alert: %+v", batch[0])
	}
}

func TestHandlerClosesWithReasonOnScanFailure(t *testing.T) {
	runner := runnerFunc(func(ctx context.Context, sink alertapp.Sink) error {
		return errors.New("alert scan: influx unreachable")
	})
	handler, _ := NewHandler(runner, nil, nil)
	srv := httptest.NewServer(handler)
	defer srv.Close()

	conn := dial(t, srv, "")
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	_, _, err := conn.ReadMessage()
	var closeErr *websocket.CloseError
	if !errors.As(err, &closeErr) {
		t.Fatalf("expected close error, got %v", err)
	}
	if closeErr.Code != websocket.CloseInternalServerErr {
		t.Fatalf("unexpected close code: %d", closeErr.Code)
	}
	if !strings.Contains(closeErr.Text, "influx unreachable") {
		t.Fatalf("close reason lost: %q", closeErr.Text)
	}
}

func TestHandlerStopsRunnerWhenPeerCloses(t *testing.T) {
	stopped := make(chan struct{})
	runner := runnerFunc(func(ctx context.Context, sink alertapp.Sink) error {
		<-ctx.Done()
		close(stopped)
		return nil
	})
	handler, _ := NewHandler(runner, nil, nil)
	srv := httptest.NewServer(handler)
	defer srv.Close()

	conn := dial(t, srv, "")
	_ = conn.Close()

	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("runner not cancelled after peer close")
	}
}

func TestHandlerRejectsUnknownOrigin(t *testing.T) {
	runner := runnerFunc(func(ctx context.Context, sink alertapp.Sink) error {
		<-ctx.Done()
		return nil
	})
	handler, _ := NewHandler(runner, []string{"http://localhost:5173"}, nil)
	srv := httptest.NewServer(handler)
	defer srv.Close()

	header := http.Header{"Origin": []string{"http://evil.example"}}
	_, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), header)
	if !errors.Is(err, websocket.ErrBadHandshake) {
		t.Fatalf("expected bad handshake, got %v", err)
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %+v", resp)
	}
}

func TestAllowOrigin(t *testing.T) {
	origins := map[string]struct{}{"http://localhost:5173": {}}
	if !allowOrigin(origins, "") {
		t.Fatalf("missing origin should pass")
	}
	if !allowOrigin(origins, "HTTP://LOCALHOST:5173") {
		t.Fatalf("origin match is case-insensitive")
	}
	if allowOrigin(origins, "http://other") {
		t.Fatalf("unexpected origin accepted")
	}
	if !allowOrigin(map[string]struct{}{"*": {}}, "http://other") {
		t.Fatalf("wildcard should accept")
	}
}

func TestNewHandlerRejectsNilRunner(t *testing.T) {
	if _, err := NewHandler(nil, nil, nil); err == nil {
		t.Fatalf("expected error")
	}
}
