package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	phasorapp "pmu-monitor/internal/phasor/application"
	phasor "pmu-monitor/internal/phasor/domain"
	"pmu-monitor/internal/phasor/interfaces/export"
)

const (
	defaultPMU    = "1"
	defaultStart  = "-1h"
	defaultWindow = "10s"
)

// Handler serves the phasor query endpoints.
type Handler struct {
	service *phasorapp.Service
	logger  *log.Logger
	now     func() time.Time
}

// NewHandler constructs a handler.
func NewHandler(service *phasorapp.Service, logger *log.Logger) (*Handler, error) {
	if service == nil {
		return nil, errors.New("phasor handler: nil service")
	}
	return &Handler{service: service, logger: logger, now: time.Now}, nil
}

// Register mounts the handler's routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	for _, path := range []string{"/api/power_timeseries", "/api/power_a", "/api/getpmus", "/api/data", "/api/data/export"} {
		mux.Handle(path, h)
	}
}

// ServeHTTP dispatches by path. All routes are read-only.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	switch r.URL.Path {
	case "/api/power_timeseries":
		h.handlePowerTimeSeries(w, r)
	case "/api/power_a":
		h.handlePhaseSnapshot(w, r)
	case "/api/getpmus":
		h.handleListPMUs(w, r)
	case "/api/data":
		h.handleRawSeries(w, r)
	case "/api/data/export":
		h.handleExport(w, r)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *Handler) handlePowerTimeSeries(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	pmu := queryDefault(q.Get("pmu"), defaultPMU)
	tr, err := phasor.NewTimeRange(queryDefault(q.Get("start"), defaultStart), "")
	if err != nil {
		h.writeError(w, err)
		return
	}
	points, err := h.service.PowerTimeSeries(r.Context(), pmu, tr, queryDefault(q.Get("window"), defaultWindow))
	if err != nil {
		h.writeError(w, err)
		return
	}
	out := make([]powerPoint, 0, len(points))
	for _, p := range points {
		out = append(out, toPowerPoint(p))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) handlePhaseSnapshot(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	pmu, phase, start := q.Get("pmu"), q.Get("phasor"), q.Get("start")
	if err := requireParams(map[string]string{"pmu": pmu, "phasor": phase, "start": start}); err != nil {
		h.writeError(w, err)
		return
	}
	p, err := phasor.ParsePhase(phase)
	if err != nil {
		h.writeError(w, err)
		return
	}
	tr, err := phasor.NewTimeRange(start, "")
	if err != nil {
		h.writeError(w, err)
		return
	}
	snapshot, err := h.service.PhaseSnapshot(r.Context(), pmu, p, tr)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSnapshotResponse(snapshot))
}

func (h *Handler) handleListPMUs(w http.ResponseWriter, r *http.Request) {
	pmus, err := h.service.ListPMUs(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"pmus": pmus})
}

func (h *Handler) rawSeries(r *http.Request) (string, phasor.TimeRange, []phasor.Sample, error) {
	q := r.URL.Query()
	pmu, start := q.Get("pmu"), q.Get("start")
	if err := requireParams(map[string]string{"pmu": pmu, "start": start}); err != nil {
		return "", phasor.TimeRange{}, nil, err
	}
	tr, err := phasor.NewTimeRange(start, q.Get("stop"))
	if err != nil {
		return "", phasor.TimeRange{}, nil, err
	}
	samples, err := h.service.RawSeries(r.Context(), pmu, tr)
	return pmu, tr, samples, err
}

func (h *Handler) handleRawSeries(w http.ResponseWriter, r *http.Request) {
	_, _, samples, err := h.rawSeries(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	out := make([]rawRow, 0, len(samples))
	for _, s := range samples {
		out = append(out, toRawRow(s))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	format, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	pmu, tr, samples, err := h.rawSeries(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	now := h.now()
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", format.Filename(pmu, now)))

	var data []byte
	switch format {
	case export.FormatXLSX:
		data, err = export.BuildXLSX(pmu, samples)
	case export.FormatPDF:
		data, err = export.BuildPDF(pmu, tr, samples, now)
	default:
		if err := export.WriteCSV(w, samples); err != nil {
			h.logf("phasor export: csv write failed pmu=%s err=%v", pmu, err)
		}
		return
	}
	if err != nil {
		w.Header().Del("Content-Disposition")
		h.writeError(w, fmt.Errorf("export %s: %w", format, err))
		return
	}
	_, _ = w.Write(data)
}

func queryDefault(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}

func requireParams(params map[string]string) error {
	var missing []string
	for _, name := range []string{"pmu", "phasor", "start"} {
		if value, ok := params[name]; ok && strings.TrimSpace(value) == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s is required", phasor.ErrInvalidInput, strings.Join(missing, ", "))
	}
	return nil
}

type errorResponse struct {
	Detail string `json:"detail"`
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, phasor.ErrInvalidInput), errors.Is(err, phasor.ErrInvalidPhase):
		writeJSON(w, http.StatusBadRequest, errorResponse{Detail: err.Error()})
	case errors.Is(err, phasor.ErrMissingFields):
		writeJSON(w, http.StatusNotFound, errorResponse{Detail: err.Error()})
	default:
		h.logf("phasor handler: %v", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Detail: "InfluxDB query failed: " + err.Error()})
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func (h *Handler) logf(format string, args ...any) {
	if h.logger != nil {
		h.logger.Printf(format, args...)
	}
}
