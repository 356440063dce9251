package influx

import (
	"errors"
	"strings"
	"testing"
	"time"

	phasor "pmu-monitor/internal/phasor/domain"
)

func TestRenderPivotQuery(t *testing.T) {
	q := phasor.Query{
		Range:  phasor.TimeRange{Start: phasor.Bound{Relative: "-1h"}},
		PMUID:  "1",
		Fields: []string{"v_a_mag", "i_a_mag"},
		Window: &phasor.Window{Every: "10s", Fn: phasor.AggregateMean},
		Pivot:  true,
	}
	flux, err := Render("pmu", "pmu_measurements", q)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	expected := []string{
		`from(bucket: "pmu")`,
		`|> range(start: -1h)`,
		`r["_measurement"] == "pmu_measurements"`,
		`r["pmu_id"] == "1"`,
		`r["_field"] == "v_a_mag" or r["_field"] == "i_a_mag"`,
		`|> aggregateWindow(every: 10s, fn: mean, createEmpty: false)`,
		`|> pivot(rowKey: ["_time"], columnKey: ["_field"], valueColumn: "_value")`,
		`|> keep(columns: ["_time", "pmu_id", "v_a_mag", "i_a_mag"])`,
	}
	for _, part := range expected {
		if !strings.Contains(flux, part) {
			t.Fatalf("expected flux to contain %q, got:\n%s", part, flux)
		}
	}
	if strings.Contains(flux, "last()") || strings.Contains(flux, "distinct") {
		t.Fatalf("unexpected operators in:\n%s", flux)
	}
}

func TestRenderAbsoluteRange(t *testing.T) {
	q := phasor.Query{
		Range: phasor.TimeRange{
			Start: phasor.Bound{Absolute: time.Date(2023, 10, 1, 0, 0, 0, 0, time.UTC)},
			Stop:  phasor.Bound{Absolute: time.Date(2023, 10, 1, 0, 5, 0, 500, time.UTC)},
		},
		PMUID: "1",
	}
	flux, err := Render("pmu", "m", q)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(flux, "range(start: 2023-10-01T00:00:00Z, stop: 2023-10-01T00:05:00.0000005Z)") {
		t.Fatalf("unexpected range in:\n%s", flux)
	}
}

func TestRenderEscapesPMUIdentifier(t *testing.T) {
	q := phasor.Query{
		Range: phasor.Lookback(time.Minute),
		PMUID: `1") |> drop(columns: ["x"]) //${secret}`,
	}
	flux, err := Render("pmu", "m", q)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	want := `r["pmu_id"] == "1\") |> drop(columns: [\"x\"]) //\${secret}")`
	if !strings.Contains(flux, want) {
		t.Fatalf("expected escaped literal %s, got:\n%s", want, flux)
	}
	if strings.Count(flux, "|> drop(") != 1 {
		t.Fatalf("identifier leaked into pipeline:\n%s", flux)
	}
}

func TestRenderRosterQuery(t *testing.T) {
	q := phasor.Query{Range: phasor.Lookback(10 * time.Minute), DistinctPMU: true}
	flux, err := Render("pmu", "m", q)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	for _, part := range []string{`range(start: -10m)`, `keep(columns: ["pmu_id"])`, `group()`, `distinct(column: "pmu_id")`} {
		if !strings.Contains(flux, part) {
			t.Fatalf("expected %q in:\n%s", part, flux)
		}
	}
}

func TestRenderLastQuery(t *testing.T) {
	q := phasor.Query{Range: phasor.Lookback(15 * time.Second), Fields: []string{"v_a_mag"}, Last: true}
	flux, err := Render("pmu", "m", q)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(flux, "range(start: -15s)") || !strings.HasSuffix(flux, "|> last()\n") {
		t.Fatalf("unexpected flux:\n%s", flux)
	}
	if strings.Contains(flux, "pmu_id\"] ==") {
		t.Fatalf("scan must not filter by pmu:\n%s", flux)
	}
}

func TestRenderRejectsInvalidQuery(t *testing.T) {
	q := phasor.Query{Range: phasor.TimeRange{Start: phasor.Bound{Relative: "-1h) |> yield("}}}
	if _, err := Render("pmu", "m", q); !errors.Is(err, phasor.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestQuote(t *testing.T) {
	cases := map[string]string{
		`plain`:     `"plain"`,
		`a"b`:       `"a\"b"`,
		`c:\dir`:    `"c:\\dir"`,
		"line\nbrk": `"line\nbrk"`,
		`${x}`:      `"\${x}"`,
	}
	for in, want := range cases {
		if got := quote(in); got != want {
			t.Fatalf("quote(%q) = %s, want %s", in, got, want)
		}
	}
}
