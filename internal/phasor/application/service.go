package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"pmu-monitor/internal/observability/metrics"
	phasor "pmu-monitor/internal/phasor/domain"
)

const (
	// DefaultRosterLookback bounds the PMU roster query.
	DefaultRosterLookback = 10 * time.Minute

	snapshotWindow  = "1s"
	rawSeriesWindow = "10ms"
)

// SampleStore answers structured queries against the phasor sample store.
type SampleStore interface {
	Query(ctx context.Context, q phasor.Query) ([]phasor.Sample, error)
}

// PowerPoint is one aggregated sample with its derived power quantities.
type PowerPoint struct {
	Sample phasor.Sample
	Power  phasor.PowerQuantities
}

// Snapshot is the strict single-phase lookup result.
type Snapshot struct {
	PMUID  string
	Sample phasor.Sample
	Phase  phasor.PhaseQuantities
}

// Service translates the dashboard access patterns into store queries.
type Service struct {
	store          SampleStore
	rosterLookback time.Duration
}

// ServiceOption customizes the service.
type ServiceOption func(*Service)

// WithRosterLookback overrides the PMU roster lookback window.
func WithRosterLookback(d time.Duration) ServiceOption {
	return func(s *Service) {
		if d > 0 {
			s.rosterLookback = d
		}
	}
}

// NewService constructs a Service.
func NewService(store SampleStore, opts ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, errors.New("phasor service: nil store")
	}
	s := &Service{store: store, rosterLookback: DefaultRosterLookback}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// PowerTimeSeries aggregates the phasor fields of a PMU into windows and
// derives power quantities per window. Phases missing a field are skipped.
func (s *Service) PowerTimeSeries(ctx context.Context, pmuID string, tr phasor.TimeRange, window string) ([]PowerPoint, error) {
	if err := requirePMU(pmuID); err != nil {
		return nil, err
	}
	every, err := phasor.ParseWindow(window)
	if err != nil {
		return nil, err
	}
	samples, err := s.query(ctx, phasor.Query{
		Kind:   phasor.KindPowerTimeSeries,
		Range:  tr,
		PMUID:  pmuID,
		Fields: phasor.PhasorFields,
		Window: &phasor.Window{Every: every, Fn: phasor.AggregateMean},
		Pivot:  true,
	})
	if err != nil {
		return nil, err
	}
	points := make([]PowerPoint, 0, len(samples))
	for _, sample := range samples {
		points = append(points, PowerPoint{Sample: sample, Power: phasor.Derive(sample)})
	}
	return points, nil
}

// ListPMUs returns PMU identifiers seen within the roster lookback, each once.
func (s *Service) ListPMUs(ctx context.Context) ([]string, error) {
	samples, err := s.query(ctx, phasor.Query{
		Kind:        phasor.KindRoster,
		Range:       phasor.Lookback(s.rosterLookback),
		DistinctPMU: true,
	})
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(samples))
	pmus := make([]string, 0, len(samples))
	for _, sample := range samples {
		if sample.PMUID == "" {
			continue
		}
		if _, ok := seen[sample.PMUID]; ok {
			continue
		}
		seen[sample.PMUID] = struct{}{}
		pmus = append(pmus, sample.PMUID)
	}
	return pmus, nil
}

// PhaseSnapshot derives quantities for one phase from the latest 1s window.
// All twelve phasor fields must be present or ErrMissingFields is returned.
func (s *Service) PhaseSnapshot(ctx context.Context, pmuID string, phase phasor.Phase, tr phasor.TimeRange) (Snapshot, error) {
	if err := requirePMU(pmuID); err != nil {
		return Snapshot{}, err
	}
	if _, err := phasor.ParsePhase(string(phase)); err != nil {
		return Snapshot{}, err
	}
	rows, err := s.query(ctx, phasor.Query{
		Kind:   phasor.KindSnapshot,
		Range:  tr,
		PMUID:  pmuID,
		Fields: phasor.PhasorFields,
		Window: &phasor.Window{Every: snapshotWindow, Fn: phasor.AggregateMean},
	})
	if err != nil {
		return Snapshot{}, err
	}
	latest := mergeLatest(pmuID, rows)
	if missing := latest.MissingFields(phasor.PhasorFields); len(missing) > 0 {
		return Snapshot{}, fmt.Errorf("%w in DB for PMU %s: %s", phasor.ErrMissingFields, pmuID, strings.Join(missing, ", "))
	}
	pq, err := phasor.DerivePhase(latest, phase)
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{PMUID: pmuID, Sample: latest, Phase: pq}, nil
}

// RawSeries returns the phasor fields at 10ms resolution without derivation.
func (s *Service) RawSeries(ctx context.Context, pmuID string, tr phasor.TimeRange) ([]phasor.Sample, error) {
	if err := requirePMU(pmuID); err != nil {
		return nil, err
	}
	return s.query(ctx, phasor.Query{
		Kind:   phasor.KindRawSeries,
		Range:  tr,
		PMUID:  pmuID,
		Fields: phasor.PhasorFields,
		Window: &phasor.Window{Every: rawSeriesWindow, Fn: phasor.AggregateMean},
		Pivot:  true,
	})
}

func (s *Service) query(ctx context.Context, q phasor.Query) ([]phasor.Sample, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	start := time.Now()
	samples, err := s.store.Query(ctx, q)
	result := metrics.ResultSuccess
	if err != nil {
		result = metrics.ResultError
	}
	metrics.ObserveStoreQuery(string(q.Kind), result, time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("%s query: %w", q.Kind, err)
	}
	return samples, nil
}

// mergeLatest folds unpivoted field rows into one sample; later rows win.
func mergeLatest(pmuID string, rows []phasor.Sample) phasor.Sample {
	out := phasor.Sample{PMUID: pmuID, Values: make(map[string]float64)}
	for _, row := range rows {
		for field, value := range row.Values {
			out.Values[field] = value
		}
		if row.Time.After(out.Time) {
			out.Time = row.Time
		}
	}
	return out
}

func requirePMU(pmuID string) error {
	if strings.TrimSpace(pmuID) == "" {
		return fmt.Errorf("%w: pmu is required", phasor.ErrInvalidInput)
	}
	return nil
}
