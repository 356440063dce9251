package main

import (
	"bufio"
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/cors"
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	alertapp "pmu-monitor/internal/alerts/application"
	alerthttp "pmu-monitor/internal/alerts/interfaces/http"
	alertws "pmu-monitor/internal/alerts/interfaces/ws"
	"pmu-monitor/internal/observability/metrics"
	phasorapp "pmu-monitor/internal/phasor/application"
	"pmu-monitor/internal/phasor/infrastructure/influx"
	phasorhttp "pmu-monitor/internal/phasor/interfaces/http"
	protocolapp "pmu-monitor/internal/protocol/application"
	protocolhttp "pmu-monitor/internal/protocol/interfaces/http"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("env file: %v", err)
	}
	cfg := loadConfig()
	logger := log.New(os.Stdout, "", log.LstdFlags)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := influxdb2.NewClientWithOptions(cfg.InfluxURL, cfg.InfluxToken,
		influxdb2.DefaultOptions().SetHTTPRequestTimeout(uint(cfg.InfluxTimeout/time.Second)))
	defer client.Close()
	metrics.Init(client, logger)

	store, err := influx.NewStore(client.QueryAPI(cfg.InfluxOrg), cfg.InfluxBucket, cfg.InfluxMeasurement)
	if err != nil {
		logger.Fatalf("influx store init: %v", err)
	}

	phasorService, err := phasorapp.NewService(store, phasorapp.WithRosterLookback(cfg.RosterLookback))
	if err != nil {
		logger.Fatalf("phasor service init: %v", err)
	}
	phasorHandler, err := phasorhttp.NewHandler(phasorService, logger)
	if err != nil {
		logger.Fatalf("phasor handler init: %v", err)
	}

	alertCfg, err := alertapp.LoadConfig()
	if err != nil {
		logger.Fatalf("alert config: %v", err)
	}
	scanner, err := alertapp.NewScanner(store, alertCfg, logger)
	if err != nil {
		logger.Fatalf("alert scanner init: %v", err)
	}
	wsHandler, err := alertws.NewHandler(scanner, cfg.AllowedOrigins, logger)
	if err != nil {
		logger.Fatalf("alert ws init: %v", err)
	}
	streamHandler, err := alerthttp.NewStreamHandler(scanner, logger)
	if err != nil {
		logger.Fatalf("alert stream init: %v", err)
	}

	protocolService, err := protocolapp.NewService(cfg.ProtocolConfigPath)
	if err != nil {
		logger.Fatalf("protocol service init: %v", err)
	}
	protocolHandler, err := protocolhttp.NewHandler(protocolService, logger)
	if err != nil {
		logger.Fatalf("protocol handler init: %v", err)
	}

	mux := http.NewServeMux()
	phasorHandler.Register(mux)
	mux.Handle("/api/changeprotocol", protocolHandler)
	mux.Handle("/ws/alerts", wsHandler)
	mux.Handle("/api/alerts/stream", streamHandler)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", healthHandler(client))

	corsMiddleware := cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           loggingMiddleware(corsMiddleware(mux), logger),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Printf("http listening on %s", cfg.HTTPAddr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("http server: %v", err)
		}
	case <-ctx.Done():
		logger.Printf("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Printf("http shutdown: %v", err)
		}
	}
}

type pinger interface {
	Ping(ctx context.Context) (bool, error)
}

func healthHandler(p pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()
		ok, err := p.Ping(ctx)
		if err != nil || !ok {
			http.Error(w, "influxdb unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}
}

type config struct {
	HTTPAddr           string
	InfluxURL          string
	InfluxToken        string
	InfluxOrg          string
	InfluxBucket       string
	InfluxMeasurement  string
	InfluxTimeout      time.Duration
	AllowedOrigins     []string
	ProtocolConfigPath string
	RosterLookback     time.Duration
	ShutdownTimeout    time.Duration
}

func loadConfig() config {
	cfg := config{
		HTTPAddr:           getenvDefault("HTTP_ADDR", ":8000"),
		InfluxURL:          getenvDefault("INFLUX_URL", "http://localhost:8086"),
		InfluxToken:        getenvDefault("INFLUX_TOKEN", ""),
		InfluxOrg:          getenvDefault("INFLUX_ORG", ""),
		InfluxBucket:       getenvDefault("INFLUX_BUCKET", ""),
		InfluxMeasurement:  getenvDefault("INFLUX_MEASUREMENT", influx.DefaultMeasurement),
		InfluxTimeout:      getenvDuration("INFLUX_TIMEOUT", 10*time.Second),
		AllowedOrigins:     splitCSV(getenvDefault("CORS_ALLOWED_ORIGINS", "http://localhost:5173")),
		ProtocolConfigPath: getenvDefault("PROTOCOL_CONFIG_PATH", "config.ini"),
		RosterLookback:     getenvDuration("ROSTER_LOOKBACK", phasorapp.DefaultRosterLookback),
		ShutdownTimeout:    getenvDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
	}
	if cfg.InfluxTimeout < time.Second {
		cfg.InfluxTimeout = time.Second
	}
	if cfg.InfluxOrg == "" {
		log.Fatal("INFLUX_ORG is required")
	}
	if cfg.InfluxBucket == "" {
		log.Fatal("INFLUX_BUCKET is required")
	}
	return cfg
}

func splitCSV(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func loggingMiddleware(next http.Handler, logger *log.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		resp := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(resp, r)
		logger.Printf("http %s %s %d %s", r.Method, r.URL.Path, resp.status, time.Since(start))
	})
}

// statusWriter passes Flush and Hijack through so SSE and WebSocket
// handlers keep working behind the access log.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("http: response writer does not support hijacking")
	}
	w.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
