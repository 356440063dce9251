package application

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	alerts "pmu-monitor/internal/alerts/domain"
	"pmu-monitor/internal/observability/metrics"
	phasorapp "pmu-monitor/internal/phasor/application"
	phasor "pmu-monitor/internal/phasor/domain"
)

// Sink receives non-empty alert batches.
type Sink interface {
	Push(ctx context.Context, batch []alerts.Alert) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, batch []alerts.Alert) error

// Push implements Sink.
func (f SinkFunc) Push(ctx context.Context, batch []alerts.Alert) error {
	return f(ctx, batch)
}

// Scanner polls the latest sample per PMU and evaluates thresholds.
type Scanner struct {
	store  phasorapp.SampleStore
	cfg    Config
	logger *log.Logger
}

// NewScanner constructs a Scanner.
func NewScanner(store phasorapp.SampleStore, cfg Config, logger *log.Logger) (*Scanner, error) {
	if store == nil {
		return nil, errors.New("alert scanner: nil store")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Scanner{store: store, cfg: cfg, logger: logger}, nil
}

// Scan runs one poll and evaluation cycle.
func (s *Scanner) Scan(ctx context.Context) ([]alerts.Alert, error) {
	q := phasor.Query{
		Kind:   phasor.KindAlertScan,
		Range:  phasor.Lookback(s.cfg.Lookback),
		Fields: alerts.MonitoredFields(),
		Last:   true,
	}
	start := time.Now()
	samples, err := s.store.Query(ctx, q)
	result := metrics.ResultSuccess
	if err != nil {
		result = metrics.ResultError
	}
	metrics.ObserveStoreQuery(string(q.Kind), result, time.Since(start))
	metrics.IncAlertScan(result)
	if err != nil {
		return nil, fmt.Errorf("alert scan: %w", err)
	}

	var batch []alerts.Alert
	for _, sample := range samples {
		thresholds := s.cfg.ThresholdsForPMU(sample.PMUID)
		for _, field := range q.Fields {
			value, ok := sample.Value(field)
			if !ok {
				continue
			}
			if alert, ok := thresholds.Evaluate(alerts.Reading{PMUID: sample.PMUID, Field: field, Value: value}); ok {
				batch = append(batch, alert)
			}
		}
	}
	return batch, nil
}

// Run polls until ctx is cancelled or a cycle fails. Cancellation returns
// nil; a store or sink failure is returned as is and is not retried.
func (s *Scanner) Run(ctx context.Context, sink Sink) error {
	if sink == nil {
		return errors.New("alert scanner: nil sink")
	}
	for {
		batch, err := s.Scan(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			s.logf("alert scan error: %v", err)
			return err
		}
		if len(batch) > 0 {
			if err := sink.Push(ctx, batch); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				s.logf("alert push error: %v", err)
				return fmt.Errorf("alert push: %w", err)
			}
			countByType(batch)
		}

		timer := time.NewTimer(s.cfg.PollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
	}
}

func (s *Scanner) logf(format string, args ...any) {
	if s.logger != nil {
		s.logger.Printf(format, args...)
	}
}

func countByType(batch []alerts.Alert) {
	counts := make(map[alerts.Type]int)
	for _, a := range batch {
		counts[a.Type]++
	}
	for t, n := range counts {
		metrics.AddAlerts(string(t), n)
	}
}
