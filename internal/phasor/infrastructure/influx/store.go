package influx

import (
	"context"
	"errors"
	"fmt"

	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/query"

	phasor "pmu-monitor/internal/phasor/domain"
)

// DefaultMeasurement is the measurement PMU samples are written to.
const DefaultMeasurement = "pmu_measurements"

// ErrMalformedRow indicates a store row that cannot be read as a sample.
var ErrMalformedRow = errors.New("influx: malformed row")

// Querier is the subset of api.QueryAPI the store needs.
type Querier interface {
	Query(ctx context.Context, query string) (*api.QueryTableResult, error)
}

// Store runs phasor queries against InfluxDB.
type Store struct {
	querier     Querier
	bucket      string
	measurement string
}

// NewStore constructs a Store over an injected query API.
func NewStore(querier Querier, bucket, measurement string) (*Store, error) {
	if querier == nil {
		return nil, errors.New("influx store: nil query api")
	}
	if bucket == "" {
		return nil, errors.New("influx store: empty bucket")
	}
	if measurement == "" {
		measurement = DefaultMeasurement
	}
	return &Store{querier: querier, bucket: bucket, measurement: measurement}, nil
}

// Query renders q to Flux, runs it and reshapes the records into samples.
// Rows keep the order the store returned them in.
func (s *Store) Query(ctx context.Context, q phasor.Query) ([]phasor.Sample, error) {
	flux, err := Render(s.bucket, s.measurement, q)
	if err != nil {
		return nil, err
	}
	result, err := s.querier.Query(ctx, flux)
	if err != nil {
		return nil, err
	}
	defer result.Close()

	var samples []phasor.Sample
	for result.Next() {
		sample, err := toSample(result.Record(), q)
		if err != nil {
			return nil, err
		}
		samples = append(samples, sample)
	}
	if err := result.Err(); err != nil {
		return nil, err
	}
	return samples, nil
}

func toSample(rec *query.FluxRecord, q phasor.Query) (phasor.Sample, error) {
	values := rec.Values()
	sample := phasor.Sample{Time: rec.Time()}
	if id, ok := values[pmuTag].(string); ok {
		sample.PMUID = id
	}

	if q.DistinctPMU {
		if id, ok := rec.Value().(string); ok && id != "" {
			sample.PMUID = id
		}
		return sample, nil
	}

	sample.Values = make(map[string]float64)
	if q.Pivot {
		for _, field := range q.Fields {
			raw, ok := values[field]
			if !ok || raw == nil {
				continue
			}
			v, err := toFloat(field, raw)
			if err != nil {
				return phasor.Sample{}, err
			}
			sample.Values[field] = v
		}
		return sample, nil
	}

	field := rec.Field()
	if field == "" {
		return phasor.Sample{}, fmt.Errorf("%w: row without _field", ErrMalformedRow)
	}
	if rec.Value() == nil {
		return sample, nil
	}
	v, err := toFloat(field, rec.Value())
	if err != nil {
		return phasor.Sample{}, err
	}
	sample.Values[field] = v
	return sample, nil
}

func toFloat(field string, raw interface{}) (float64, error) {
	switch v := raw.(type) {
	case float64:
		return v, nil
	case int64:
		return float64(v), nil
	case uint64:
		return float64(v), nil
	default:
		return 0, fmt.Errorf("%w: field %s has %T value", ErrMalformedRow, field, raw)
	}
}
