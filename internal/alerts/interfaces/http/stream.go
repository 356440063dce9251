package http

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/google/uuid"

	alertapp "pmu-monitor/internal/alerts/application"
	alerts "pmu-monitor/internal/alerts/domain"
	"pmu-monitor/internal/observability/metrics"
)

const transport = "sse"

// Runner runs an alert scan loop against a sink until ctx ends.
type Runner interface {
	Run(ctx context.Context, sink alertapp.Sink) error
}

// StreamHandler serves the SSE alert stream. Each client gets its own scan
// loop; batches arrive as "alerts" events and a fault ends the stream with
// an "error" event.
type StreamHandler struct {
	runner Runner
	logger *log.Logger
}

// NewStreamHandler constructs a stream handler.
func NewStreamHandler(runner Runner, logger *log.Logger) (*StreamHandler, error) {
	if runner == nil {
		return nil, errors.New("alerts stream handler: nil runner")
	}
	return &StreamHandler{runner: runner, logger: logger}, nil
}

// ServeHTTP handles GET /api/alerts/stream.
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "stream unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	session := uuid.NewString()
	metrics.SessionOpened(transport)
	defer metrics.SessionClosed(transport)
	h.logf("alerts sse: session=%s opened remote=%s", session, r.RemoteAddr)

	_, _ = w.Write([]byte("event: ready\ndata: {}\n\n"))
	flusher.Flush()

	sink := alertapp.SinkFunc(func(_ context.Context, batch []alerts.Alert) error {
		payload, err := json.Marshal(batch)
		if err != nil {
			return err
		}
		if err := writeEvent(w, "alerts", payload); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	})

	if err := h.runner.Run(r.Context(), sink); err != nil {
		h.logf("alerts sse: session=%s closing err=%v", session, err)
		payload, _ := json.Marshal(map[string]string{"detail": err.Error()})
		_ = writeEvent(w, "error", payload)
		flusher.Flush()
		return
	}
	h.logf("alerts sse: session=%s closed", session)
}

func writeEvent(w http.ResponseWriter, event string, payload []byte) error {
	if _, err := w.Write([]byte("event: " + event + "\ndata: ")); err != nil {
		return err
	}
	if _, err := w.Write(payload); err != nil {
		return err
	}
	_, err := w.Write([]byte("\n\n"))
	return err
}

func (h *StreamHandler) logf(format string, args ...any) {
	if h.logger != nil {
		h.logger.Printf(format, args...)
	}
}
