package application

import (
	"math"

	phasor "pmu-monitor/internal/phasor/domain"
)

// ChannelSummary describes one phasor field over a raw series.
type ChannelSummary struct {
	Field string
	Count int
	Min   float64
	Mean  float64
	Max   float64
}

// Summarize computes min/mean/max per phasor field. Fields with no values
// are reported with a zero count.
func Summarize(samples []phasor.Sample) []ChannelSummary {
	out := make([]ChannelSummary, 0, len(phasor.PhasorFields))
	for _, field := range phasor.PhasorFields {
		summary := ChannelSummary{Field: field, Min: math.Inf(1), Max: math.Inf(-1)}
		var sum float64
		for _, sample := range samples {
			v, ok := sample.Value(field)
			if !ok {
				continue
			}
			summary.Count++
			sum += v
			summary.Min = math.Min(summary.Min, v)
			summary.Max = math.Max(summary.Max, v)
		}
		if summary.Count == 0 {
			summary.Min, summary.Max = 0, 0
		} else {
			summary.Mean = sum / float64(summary.Count)
		}
		out = append(out, summary)
	}
	return out
}
