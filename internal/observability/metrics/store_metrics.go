package metrics

import (
	"context"
	"log"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const pingTimeout = 2 * time.Second

// Pinger reports whether the sample store is reachable.
type Pinger interface {
	Ping(ctx context.Context) (bool, error)
}

func registerStoreMetrics(pinger Pinger, logger *log.Logger) {
	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: metricPrefix + "store_up",
			Help: "Whether the sample store answered the last ping",
		},
		func() float64 {
			return pingStore(pinger, logger)
		},
	))
}

func pingStore(pinger Pinger, logger *log.Logger) float64 {
	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	ok, err := pinger.Ping(ctx)
	if err != nil {
		if logger != nil {
			logger.Printf("metrics store ping failed: %v", err)
		}
		return 0
	}
	if !ok {
		return 0
	}
	return 1
}
