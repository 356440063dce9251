package influx

import (
	"strings"
	"time"

	phasor "pmu-monitor/internal/phasor/domain"
)

const pmuTag = "pmu_id"

var literalEscaper = strings.NewReplacer(
	`\`, `\\`,
	`"`, `\"`,
	`$`, `\$`,
	"\n", `\n`,
	"\r", `\r`,
	"\t", `\t`,
)

// quote renders s as a Flux string literal.
func quote(s string) string {
	return `"` + literalEscaper.Replace(s) + `"`
}

func renderBound(b phasor.Bound) string {
	if b.Relative != "" {
		return b.Relative
	}
	return b.Absolute.UTC().Format(time.RFC3339Nano)
}

// Render builds the Flux text for a validated query. Every caller value is
// either a validated duration/timestamp or an escaped string literal.
func Render(bucket, measurement string, q phasor.Query) (string, error) {
	if err := q.Validate(); err != nil {
		return "", err
	}
	var b strings.Builder
	b.WriteString("from(bucket: " + quote(bucket) + ")\n")

	b.WriteString("  |> range(start: " + renderBound(q.Range.Start))
	if !q.Range.Stop.IsZero() {
		b.WriteString(", stop: " + renderBound(q.Range.Stop))
	}
	b.WriteString(")\n")

	b.WriteString(`  |> filter(fn: (r) => r["_measurement"] == ` + quote(measurement) + ")\n")
	if q.PMUID != "" {
		b.WriteString(`  |> filter(fn: (r) => r["` + pmuTag + `"] == ` + quote(q.PMUID) + ")\n")
	}
	if len(q.Fields) > 0 {
		clauses := make([]string, 0, len(q.Fields))
		for _, f := range q.Fields {
			clauses = append(clauses, `r["_field"] == `+quote(f))
		}
		b.WriteString("  |> filter(fn: (r) => " + strings.Join(clauses, " or ") + ")\n")
	}

	if q.DistinctPMU {
		b.WriteString(`  |> keep(columns: ["` + pmuTag + `"])` + "\n")
		b.WriteString("  |> group()\n")
		b.WriteString(`  |> distinct(column: "` + pmuTag + `")` + "\n")
		return b.String(), nil
	}

	if q.Window != nil {
		b.WriteString("  |> aggregateWindow(every: " + q.Window.Every + ", fn: " + string(q.Window.Fn) + ", createEmpty: false)\n")
	}
	if q.Last {
		b.WriteString("  |> last()\n")
	}
	if q.Pivot {
		b.WriteString(`  |> pivot(rowKey: ["_time"], columnKey: ["_field"], valueColumn: "_value")` + "\n")
		columns := make([]string, 0, len(q.Fields)+2)
		columns = append(columns, quote("_time"), quote(pmuTag))
		for _, f := range q.Fields {
			columns = append(columns, quote(f))
		}
		b.WriteString("  |> keep(columns: [" + strings.Join(columns, ", ") + "])\n")
	}
	return b.String(), nil
}
