package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	protocolapp "pmu-monitor/internal/protocol/application"
)

// Handler serves /api/changeprotocol.
type Handler struct {
	service *protocolapp.Service
	logger  *log.Logger
}

// NewHandler constructs a handler.
func NewHandler(service *protocolapp.Service, logger *log.Logger) (*Handler, error) {
	if service == nil {
		return nil, errors.New("protocol handler: nil service")
	}
	return &Handler{service: service, logger: logger}, nil
}

// ServeHTTP handles POST (change) and GET (read back).
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		protocol := r.URL.Query().Get("protocol")
		if err := h.service.Change(protocol); err != nil {
			h.writeError(w, err)
			return
		}
		if h.logger != nil {
			h.logger.Printf("protocol: changed to %s", protocol)
		}
		writeJSON(w, http.StatusOK, map[string]string{"message": "Protocol changed to " + protocol})
	case http.MethodGet:
		protocol, err := h.service.Current()
		if err != nil {
			h.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"protocol": protocol})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, protocolapp.ErrInvalidProtocol):
		status = http.StatusBadRequest
	case errors.Is(err, protocolapp.ErrNotConfigured):
		status = http.StatusNotFound
	default:
		if h.logger != nil {
			h.logger.Printf("protocol: %v", err)
		}
	}
	writeJSON(w, status, map[string]string{"detail": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
