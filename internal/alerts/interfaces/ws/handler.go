package ws

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	alertapp "pmu-monitor/internal/alerts/application"
	alerts "pmu-monitor/internal/alerts/domain"
	"pmu-monitor/internal/observability/metrics"
)

const (
	transport = "websocket"
	writeWait = 10 * time.Second
	// Close frame payloads are capped at 125 bytes, two of which hold the code.
	maxCloseReason = 123
)

// Runner runs an alert scan loop against a sink until ctx ends.
type Runner interface {
	Run(ctx context.Context, sink alertapp.Sink) error
}

// Handler serves /ws/alerts. Each connection gets its own scan loop; the
// loop stops when the peer goes away and a scan or write fault closes the
// connection with a 1011 close frame carrying the reason.
type Handler struct {
	runner   Runner
	upgrader websocket.Upgrader
	logger   *log.Logger
}

// NewHandler constructs a push handler. An empty origin list or "*" accepts any origin.
func NewHandler(runner Runner, allowedOrigins []string, logger *log.Logger) (*Handler, error) {
	if runner == nil {
		return nil, errors.New("alerts ws handler: nil runner")
	}
	origins := make(map[string]struct{}, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		origin = strings.ToLower(strings.TrimSpace(origin))
		if origin != "" {
			origins[origin] = struct{}{}
		}
	}
	h := &Handler{runner: runner, logger: logger}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     func(r *http.Request) bool { return allowOrigin(origins, r.Header.Get("Origin")) },
	}
	return h, nil
}

func allowOrigin(origins map[string]struct{}, origin string) bool {
	if origin == "" || len(origins) == 0 {
		return true
	}
	if _, ok := origins["*"]; ok {
		return true
	}
	_, ok := origins[strings.ToLower(origin)]
	return ok
}

// ServeHTTP upgrades the request and streams alert batches as JSON arrays.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logf("alerts ws: upgrade failed remote=%s err=%v", r.RemoteAddr, err)
		return
	}
	defer conn.Close()

	session := uuid.NewString()
	metrics.SessionOpened(transport)
	defer metrics.SessionClosed(transport)
	h.logf("alerts ws: session=%s opened remote=%s", session, r.RemoteAddr)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// The peer never sends anything meaningful; reading only detects close.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	sink := alertapp.SinkFunc(func(_ context.Context, batch []alerts.Alert) error {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		return conn.WriteJSON(batch)
	})

	if err := h.runner.Run(ctx, sink); err != nil {
		h.logf("alerts ws: session=%s closing err=%v", session, err)
		msg := websocket.FormatCloseMessage(websocket.CloseInternalServerErr, truncate(err.Error(), maxCloseReason))
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
		return
	}
	h.logf("alerts ws: session=%s closed", session)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return strings.ToValidUTF8(s[:n], "")
}

func (h *Handler) logf(format string, args ...any) {
	if h.logger != nil {
		h.logger.Printf(format, args...)
	}
}
