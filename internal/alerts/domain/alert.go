package alerts

import (
	"errors"

	phasor "pmu-monitor/internal/phasor/domain"
)

// Type classifies an alert.
type Type string

const (
	TypeVoltage Type = "voltage"
	TypeCurrent Type = "current"
)

// Alert reports one reading outside its threshold.
type Alert struct {
	PMUID string  `json:"pmu"`
	Type  Type    `json:"type"`
	Value float64 `json:"value"`
	Field string  `json:"field,omitempty"`
}

// Thresholds bound acceptable voltage and current magnitudes.
type Thresholds struct {
	VoltageMin float64 `yaml:"voltage_min"`
	VoltageMax float64 `yaml:"voltage_max"`
	CurrentMax float64 `yaml:"current_max"`
}

// DefaultThresholds returns the factory limits.
func DefaultThresholds() Thresholds {
	return Thresholds{VoltageMin: 220, VoltageMax: 221, CurrentMax: 100}
}

// Validate checks threshold invariants.
func (t Thresholds) Validate() error {
	if t.VoltageMin > t.VoltageMax {
		return errors.New("alert thresholds: voltage_min above voltage_max")
	}
	if t.CurrentMax < 0 {
		return errors.New("alert thresholds: negative current_max")
	}
	return nil
}

// Reading is the latest value of one field for a PMU.
type Reading struct {
	PMUID string
	Field string
	Value float64
}

// Evaluate returns the alert a reading raises, if any. Only magnitude
// fields are checked; angles carry degrees, not volts or amps.
func (t Thresholds) Evaluate(r Reading) (Alert, bool) {
	q, _, c, ok := phasor.ParseField(r.Field)
	if !ok || c != phasor.Magnitude {
		return Alert{}, false
	}
	switch q {
	case phasor.Voltage:
		if r.Value < t.VoltageMin || r.Value > t.VoltageMax {
			return Alert{PMUID: r.PMUID, Type: TypeVoltage, Value: r.Value, Field: r.Field}, true
		}
	case phasor.Current:
		if r.Value > t.CurrentMax {
			return Alert{PMUID: r.PMUID, Type: TypeCurrent, Value: r.Value, Field: r.Field}, true
		}
	}
	return Alert{}, false
}

// EvaluateAll checks readings in order and collects the alerts raised.
func (t Thresholds) EvaluateAll(readings []Reading) []Alert {
	var out []Alert
	for _, r := range readings {
		if alert, ok := t.Evaluate(r); ok {
			out = append(out, alert)
		}
	}
	return out
}

// MonitoredFields lists the magnitude fields the scanner reads.
func MonitoredFields() []string {
	fields := make([]string, 0, 6)
	for _, q := range []phasor.Quantity{phasor.Voltage, phasor.Current} {
		for _, p := range phasor.Phases {
			fields = append(fields, phasor.FieldName(q, p, phasor.Magnitude))
		}
	}
	return fields
}
