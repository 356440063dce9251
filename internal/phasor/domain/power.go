package phasor

import (
	"fmt"
	"math"
)

// PhaseQuantities holds the power quantities derived for one phase.
type PhaseQuantities struct {
	Phasor
	PhiDeg float64
	S      float64
	P      float64
	Q      float64
	PF     float64
}

// Totals sums quantities over the phases that qualified.
type Totals struct {
	P  float64
	Q  float64
	S  float64
	PF float64
}

// PowerQuantities is the derivation result for one sample.
// Total is nil when no phase had all four fields.
type PowerQuantities struct {
	Phases []PhaseQuantities
	Total  *Totals
}

// Phase returns the quantities of p if it qualified.
func (q PowerQuantities) Phase(p Phase) (PhaseQuantities, bool) {
	for _, pq := range q.Phases {
		if pq.Phase == p {
			return pq, true
		}
	}
	return PhaseQuantities{}, false
}

// Compute derives S, P, Q and PF from a phasor. The angle difference is
// used as is and is not wrapped into [-180, 180].
func Compute(ph Phasor) PhaseQuantities {
	phiDeg := ph.VAngle - ph.IAngle
	phi := phiDeg * math.Pi / 180
	s := ph.V * ph.I
	return PhaseQuantities{
		Phasor: ph,
		PhiDeg: phiDeg,
		S:      s,
		P:      s * math.Cos(phi),
		Q:      s * math.Sin(phi),
		PF:     math.Cos(phi),
	}
}

// Derive computes per-phase and total quantities, skipping phases that
// lack any of their fields.
func Derive(sample Sample) PowerQuantities {
	var (
		out     PowerQuantities
		totals  Totals
		sumPF   float64
		counted int
	)
	for _, p := range Phases {
		ph, ok := sample.Phasor(p)
		if !ok {
			continue
		}
		pq := Compute(ph)
		out.Phases = append(out.Phases, pq)
		totals.P += pq.P
		totals.Q += pq.Q
		totals.S += pq.S
		sumPF += pq.PF
		counted++
	}
	if counted == 0 {
		return out
	}
	if totals.S != 0 {
		totals.PF = sumPF / float64(counted)
	}
	out.Total = &totals
	return out
}

// DerivePhase computes quantities for a single named phase and fails when
// any of its fields is absent.
func DerivePhase(sample Sample, p Phase) (PhaseQuantities, error) {
	if _, err := ParsePhase(string(p)); err != nil {
		return PhaseQuantities{}, err
	}
	ph, ok := sample.Phasor(p)
	if !ok {
		return PhaseQuantities{}, fmt.Errorf("%w: phase %s of pmu %s", ErrMissingFields, p, sample.PMUID)
	}
	return Compute(ph), nil
}
