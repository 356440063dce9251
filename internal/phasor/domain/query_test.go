package phasor

import (
	"errors"
	"testing"
	"time"
)

func TestParseBound(t *testing.T) {
	cases := []struct {
		in       string
		relative string
		absolute bool
		wantErr  bool
	}{
		{in: "-1h", relative: "-1h"},
		{in: "-15m", relative: "-15m"},
		{in: "-1h30m", relative: "-1h30m"},
		{in: "-10ms", relative: "-10ms"},
		{in: "2023-10-01T00:00:00Z", absolute: true},
		{in: "2023-10-01T00:00:00.125+02:00", absolute: true},
		{in: "", wantErr: true},
		{in: "now", wantErr: true},
		{in: "-1h) |> drop()", wantErr: true},
		{in: "1 hour", wantErr: true},
	}
	for _, tc := range cases {
		b, err := ParseBound(tc.in)
		if tc.wantErr {
			if !errors.Is(err, ErrInvalidInput) {
				t.Fatalf("%q: expected ErrInvalidInput, got %v", tc.in, err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("%q: unexpected error %v", tc.in, err)
		}
		if b.Relative != tc.relative {
			t.Fatalf("%q: relative %q, want %q", tc.in, b.Relative, tc.relative)
		}
		if tc.absolute && b.Absolute.IsZero() {
			t.Fatalf("%q: expected absolute bound", tc.in)
		}
	}
}

func TestNewTimeRangeRejectsInvertedBounds(t *testing.T) {
	_, err := NewTimeRange("2024-01-02T00:00:00Z", "2024-01-01T00:00:00Z")
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	tr, err := NewTimeRange("-1h", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !tr.Stop.IsZero() {
		t.Fatalf("expected open stop")
	}
}

func TestFormatDuration(t *testing.T) {
	cases := map[time.Duration]string{
		15 * time.Second:        "15s",
		10 * time.Minute:        "10m",
		2 * time.Hour:           "2h",
		1500 * time.Millisecond: "1500ms",
		10 * time.Millisecond:   "10ms",
	}
	for d, want := range cases {
		if got := FormatDuration(d); got != want {
			t.Fatalf("FormatDuration(%s) = %s, want %s", d, got, want)
		}
	}
	if got := RelativeBound(15 * time.Second).Relative; got != "-15s" {
		t.Fatalf("RelativeBound = %s", got)
	}
}

func TestParseWindow(t *testing.T) {
	for _, ok := range []string{"10s", "1s", "10ms", "1m30s"} {
		if _, err := ParseWindow(ok); err != nil {
			t.Fatalf("%q: unexpected error %v", ok, err)
		}
	}
	for _, bad := range []string{"", "-10s", "0s", "10", "fast"} {
		if _, err := ParseWindow(bad); !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("%q: expected ErrInvalidInput, got %v", bad, err)
		}
	}
}

func TestQueryValidateRejectsUnknownField(t *testing.T) {
	q := Query{Range: Lookback(time.Minute), Fields: []string{"v_a_mag", "_value"}}
	if err := q.Validate(); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestPhasorFields(t *testing.T) {
	if len(PhasorFields) != 12 {
		t.Fatalf("expected 12 fields, got %d", len(PhasorFields))
	}
	seen := make(map[string]bool)
	for _, f := range PhasorFields {
		if _, _, _, ok := ParseField(f); !ok {
			t.Fatalf("field %s does not parse", f)
		}
		if seen[f] {
			t.Fatalf("duplicate field %s", f)
		}
		seen[f] = true
	}
}
