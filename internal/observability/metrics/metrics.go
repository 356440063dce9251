package metrics

import (
	"log"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "pmu_"

	resultSuccess = "success"
	resultError   = "error"
)

var (
	registerOnce sync.Once

	storeQueries      *prometheus.CounterVec
	storeQueryLatency *prometheus.HistogramVec

	alertScans     *prometheus.CounterVec
	alertsEmitted  *prometheus.CounterVec
	alertSessions  *prometheus.GaugeVec
	protocolWrites *prometheus.CounterVec
)

// Init registers observability metrics and the store health gauge.
func Init(pinger Pinger, logger *log.Logger) {
	registerOnce.Do(func() {
		storeQueries = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "store_queries_total",
				Help: "Total sample store queries by access pattern and result",
			},
			[]string{"query", "result"},
		)
		storeQueryLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "store_query_latency_seconds",
				Help:    "Sample store query latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"query"},
		)

		alertScans = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "alert_scans_total",
				Help: "Total alert scan cycles by result",
			},
			[]string{"result"},
		)
		alertsEmitted = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "alerts_emitted_total",
				Help: "Total threshold alerts pushed by type",
			},
			[]string{"type"},
		)
		alertSessions = prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: metricPrefix + "alert_sessions_active",
				Help: "Open alert push connections by transport",
			},
			[]string{"transport"},
		)
		protocolWrites = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "protocol_changes_total",
				Help: "Total protocol configuration writes by result",
			},
			[]string{"result"},
		)

		prometheus.MustRegister(
			storeQueries,
			storeQueryLatency,
			alertScans,
			alertsEmitted,
			alertSessions,
			protocolWrites,
		)

		if pinger != nil {
			registerStoreMetrics(pinger, logger)
		}
	})
}

// ObserveStoreQuery records a store query duration and result.
func ObserveStoreQuery(query, result string, duration time.Duration) {
	if query == "" {
		query = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if storeQueries != nil {
		storeQueries.WithLabelValues(query, result).Inc()
	}
	if storeQueryLatency != nil {
		storeQueryLatency.WithLabelValues(query).Observe(duration.Seconds())
	}
}

// IncAlertScan increments the scan cycle counter.
func IncAlertScan(result string) {
	if result == "" {
		result = resultSuccess
	}
	if alertScans != nil {
		alertScans.WithLabelValues(result).Inc()
	}
}

// AddAlerts increments the emitted alert counter for a type.
func AddAlerts(alertType string, count int) {
	if count <= 0 {
		return
	}
	if alertType == "" {
		alertType = "unknown"
	}
	if alertsEmitted != nil {
		alertsEmitted.WithLabelValues(alertType).Add(float64(count))
	}
}

// SessionOpened tracks a new alert connection.
func SessionOpened(transport string) {
	if alertSessions != nil {
		alertSessions.WithLabelValues(transport).Inc()
	}
}

// SessionClosed tracks a closed alert connection.
func SessionClosed(transport string) {
	if alertSessions != nil {
		alertSessions.WithLabelValues(transport).Dec()
	}
}

// IncProtocolWrite increments the protocol configuration write counter.
func IncProtocolWrite(result string) {
	if result == "" {
		result = resultSuccess
	}
	if protocolWrites != nil {
		protocolWrites.WithLabelValues(result).Inc()
	}
}

// Exported constants for callers.
const (
	ResultSuccess = resultSuccess
	ResultError   = resultError
)
