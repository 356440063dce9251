package phasor

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

var durationLiteral = regexp.MustCompile(`^-?([0-9]+(ns|us|µs|ms|mo|s|m|h|d|w|y))+$`)

// Bound is one end of a time range: either a duration relative to now or
// an absolute instant.
type Bound struct {
	Relative string
	Absolute time.Time
}

// IsZero reports whether the bound is unset.
func (b Bound) IsZero() bool {
	return b.Relative == "" && b.Absolute.IsZero()
}

// ParseBound accepts a duration literal such as -15m or an RFC3339 timestamp.
func ParseBound(value string) (Bound, error) {
	value = strings.TrimSpace(value)
	if !strings.ContainsAny(value, "0123456789") {
		return Bound{}, fmt.Errorf("%w: time %q has no digits", ErrInvalidInput, value)
	}
	if ts, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return Bound{Absolute: ts.UTC()}, nil
	}
	if durationLiteral.MatchString(value) {
		return Bound{Relative: value}, nil
	}
	return Bound{}, fmt.Errorf("%w: time %q is neither a duration nor RFC3339", ErrInvalidInput, value)
}

// RelativeBound returns the bound lying d before now.
func RelativeBound(d time.Duration) Bound {
	if d < 0 {
		d = -d
	}
	return Bound{Relative: "-" + FormatDuration(d)}
}

// FormatDuration renders d as a duration literal in the coarsest exact unit.
func FormatDuration(d time.Duration) string {
	switch {
	case d == 0:
		return "0s"
	case d%time.Hour == 0:
		return fmt.Sprintf("%dh", d/time.Hour)
	case d%time.Minute == 0:
		return fmt.Sprintf("%dm", d/time.Minute)
	case d%time.Second == 0:
		return fmt.Sprintf("%ds", d/time.Second)
	case d%time.Millisecond == 0:
		return fmt.Sprintf("%dms", d/time.Millisecond)
	case d%time.Microsecond == 0:
		return fmt.Sprintf("%dus", d/time.Microsecond)
	default:
		return fmt.Sprintf("%dns", int64(d))
	}
}

// TimeRange bounds a query. Stop is optional and defaults to now.
type TimeRange struct {
	Start Bound
	Stop  Bound
}

// NewTimeRange parses start and an optional stop.
func NewTimeRange(start, stop string) (TimeRange, error) {
	s, err := ParseBound(start)
	if err != nil {
		return TimeRange{}, err
	}
	tr := TimeRange{Start: s}
	if strings.TrimSpace(stop) != "" {
		e, err := ParseBound(stop)
		if err != nil {
			return TimeRange{}, err
		}
		tr.Stop = e
	}
	if !tr.Start.Absolute.IsZero() && !tr.Stop.Absolute.IsZero() && !tr.Stop.Absolute.After(tr.Start.Absolute) {
		return TimeRange{}, fmt.Errorf("%w: stop must be after start", ErrInvalidInput)
	}
	return tr, nil
}

// Lookback returns the range covering the last d.
func Lookback(d time.Duration) TimeRange {
	return TimeRange{Start: RelativeBound(d)}
}

// ParseWindow validates an aggregation window such as 10s.
func ParseWindow(value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" || strings.HasPrefix(value, "-") || !durationLiteral.MatchString(value) {
		return "", fmt.Errorf("%w: window %q", ErrInvalidInput, value)
	}
	if strings.Trim(value, "0nsuµmohdwy") == "" {
		return "", fmt.Errorf("%w: window %q must be positive", ErrInvalidInput, value)
	}
	return value, nil
}

// QueryKind names an access pattern; it labels metrics and logs.
type QueryKind string

const (
	KindPowerTimeSeries QueryKind = "power_timeseries"
	KindRoster          QueryKind = "roster"
	KindAlertScan       QueryKind = "alert_scan"
	KindSnapshot        QueryKind = "snapshot"
	KindRawSeries       QueryKind = "raw_series"
)

// AggregateFn is a window aggregation function.
type AggregateFn string

const (
	AggregateMean AggregateFn = "mean"
	AggregateLast AggregateFn = "last"
)

// Window aggregates values into fixed-width buckets.
type Window struct {
	Every string
	Fn    AggregateFn
}

// Query is a structured range/filter/aggregate request against the sample
// store. Store adapters render it; callers never build query text.
type Query struct {
	Kind   QueryKind
	Range  TimeRange
	PMUID  string
	Fields []string
	Window *Window
	// Pivot turns field rows into one record per timestamp.
	Pivot bool
	// Last keeps only the most recent row per series.
	Last bool
	// DistinctPMU returns one row per PMU identifier and nothing else.
	DistinctPMU bool
}

// Validate checks the query before it reaches a store.
func (q Query) Validate() error {
	if q.Range.Start.IsZero() {
		return fmt.Errorf("%w: range start required", ErrInvalidInput)
	}
	for _, b := range []Bound{q.Range.Start, q.Range.Stop} {
		if b.Relative != "" && !durationLiteral.MatchString(b.Relative) {
			return fmt.Errorf("%w: duration %q", ErrInvalidInput, b.Relative)
		}
	}
	for _, f := range q.Fields {
		if _, _, _, ok := ParseField(f); !ok {
			return fmt.Errorf("%w: field %q", ErrInvalidInput, f)
		}
	}
	if q.Window != nil {
		if _, err := ParseWindow(q.Window.Every); err != nil {
			return err
		}
		switch q.Window.Fn {
		case AggregateMean, AggregateLast:
		default:
			return fmt.Errorf("%w: aggregate %q", ErrInvalidInput, q.Window.Fn)
		}
	}
	if q.DistinctPMU && (q.Pivot || q.Window != nil) {
		return errors.New("phasor: distinct query cannot aggregate or pivot")
	}
	return nil
}
