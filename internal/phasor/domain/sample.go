package phasor

import (
	"fmt"
	"time"
)

// Phase is one conductor of a three-phase system.
type Phase string

const (
	PhaseA Phase = "a"
	PhaseB Phase = "b"
	PhaseC Phase = "c"
)

// Phases lists phases in evaluation order.
var Phases = []Phase{PhaseA, PhaseB, PhaseC}

// ParsePhase validates a phase name.
func ParsePhase(value string) (Phase, error) {
	switch Phase(value) {
	case PhaseA, PhaseB, PhaseC:
		return Phase(value), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidPhase, value)
	}
}

// Upper returns the phase label used in response keys.
func (p Phase) Upper() string {
	switch p {
	case PhaseA:
		return "A"
	case PhaseB:
		return "B"
	case PhaseC:
		return "C"
	default:
		return string(p)
	}
}

// Quantity distinguishes voltage from current phasors.
type Quantity string

const (
	Voltage Quantity = "v"
	Current Quantity = "i"
)

// Component selects the magnitude or angle of a phasor.
type Component string

const (
	Magnitude Component = "mag"
	Angle     Component = "ang"
)

// FieldName returns the stored field name, e.g. v_a_mag.
func FieldName(q Quantity, p Phase, c Component) string {
	return string(q) + "_" + string(p) + "_" + string(c)
}

// PhasorFields lists the twelve stored magnitude/angle fields.
var PhasorFields = buildPhasorFields()

func buildPhasorFields() []string {
	fields := make([]string, 0, 12)
	for _, p := range Phases {
		for _, q := range []Quantity{Voltage, Current} {
			fields = append(fields, FieldName(q, p, Magnitude), FieldName(q, p, Angle))
		}
	}
	return fields
}

// ParseField splits a stored field name into its parts.
func ParseField(name string) (Quantity, Phase, Component, bool) {
	if len(name) != 7 || name[1] != '_' || name[3] != '_' {
		return "", "", "", false
	}
	q := Quantity(name[0:1])
	p := Phase(name[2:3])
	c := Component(name[4:])
	if q != Voltage && q != Current {
		return "", "", "", false
	}
	if _, err := ParsePhase(string(p)); err != nil {
		return "", "", "", false
	}
	if c != Magnitude && c != Angle {
		return "", "", "", false
	}
	return q, p, c, true
}

// Sample is one timestamped set of phasor readings for a PMU.
// Values holds only the fields present in the store row.
type Sample struct {
	Time   time.Time
	PMUID  string
	Values map[string]float64
}

// Value returns a field value and whether it is present.
func (s Sample) Value(field string) (float64, bool) {
	if s.Values == nil {
		return 0, false
	}
	v, ok := s.Values[field]
	return v, ok
}

// Phasor is the voltage and current reading of one phase.
type Phasor struct {
	Phase  Phase
	V      float64
	VAngle float64
	I      float64
	IAngle float64
}

// Phasor returns the phase reading when all four of its fields are present.
func (s Sample) Phasor(p Phase) (Phasor, bool) {
	v, ok1 := s.Value(FieldName(Voltage, p, Magnitude))
	va, ok2 := s.Value(FieldName(Voltage, p, Angle))
	i, ok3 := s.Value(FieldName(Current, p, Magnitude))
	ia, ok4 := s.Value(FieldName(Current, p, Angle))
	if !ok1 || !ok2 || !ok3 || !ok4 {
		return Phasor{}, false
	}
	return Phasor{Phase: p, V: v, VAngle: va, I: i, IAngle: ia}, true
}

// MissingFields returns the requested fields absent from the sample.
func (s Sample) MissingFields(fields []string) []string {
	var missing []string
	for _, f := range fields {
		if _, ok := s.Value(f); !ok {
			missing = append(missing, f)
		}
	}
	return missing
}
