package http

import (
	"time"

	phasorapp "pmu-monitor/internal/phasor/application"
	phasor "pmu-monitor/internal/phasor/domain"
)

// powerPoint keys follow the dashboard contract: per-phase keys appear only
// for phases that qualified, I_X whenever the current magnitude is present.
type powerPoint struct {
	Time *time.Time `json:"time"`

	VA  *float64 `json:"V_A,omitempty"`
	IA  *float64 `json:"I_A,omitempty"`
	PA  *float64 `json:"P_A,omitempty"`
	QA  *float64 `json:"Q_A,omitempty"`
	PFA *float64 `json:"PF_A,omitempty"`

	VB  *float64 `json:"V_B,omitempty"`
	IB  *float64 `json:"I_B,omitempty"`
	PB  *float64 `json:"P_B,omitempty"`
	QB  *float64 `json:"Q_B,omitempty"`
	PFB *float64 `json:"PF_B,omitempty"`

	VC  *float64 `json:"V_C,omitempty"`
	IC  *float64 `json:"I_C,omitempty"`
	PC  *float64 `json:"P_C,omitempty"`
	QC  *float64 `json:"Q_C,omitempty"`
	PFC *float64 `json:"PF_C,omitempty"`

	P  *float64 `json:"P,omitempty"`
	Q  *float64 `json:"Q,omitempty"`
	S  *float64 `json:"S,omitempty"`
	PF *float64 `json:"PF,omitempty"`
}

type phaseSlots struct {
	V, I, P, Q, PF **float64
}

func (p *powerPoint) slots(ph phasor.Phase) phaseSlots {
	switch ph {
	case phasor.PhaseA:
		return phaseSlots{&p.VA, &p.IA, &p.PA, &p.QA, &p.PFA}
	case phasor.PhaseB:
		return phaseSlots{&p.VB, &p.IB, &p.PB, &p.QB, &p.PFB}
	default:
		return phaseSlots{&p.VC, &p.IC, &p.PC, &p.QC, &p.PFC}
	}
}

func ptr(v float64) *float64 { return &v }

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	t = t.UTC()
	return &t
}

func toPowerPoint(pp phasorapp.PowerPoint) powerPoint {
	out := powerPoint{Time: timePtr(pp.Sample.Time)}
	for _, ph := range phasor.Phases {
		slot := out.slots(ph)
		if i, ok := pp.Sample.Value(phasor.FieldName(phasor.Current, ph, phasor.Magnitude)); ok {
			*slot.I = ptr(i)
		}
		pq, ok := pp.Power.Phase(ph)
		if !ok {
			continue
		}
		*slot.V = ptr(pq.V)
		*slot.P = ptr(pq.P)
		*slot.Q = ptr(pq.Q)
		*slot.PF = ptr(pq.PF)
	}
	if t := pp.Power.Total; t != nil {
		out.P, out.Q, out.S, out.PF = ptr(t.P), ptr(t.Q), ptr(t.S), ptr(t.PF)
	}
	return out
}

type snapshotResponse struct {
	PMUID  string  `json:"pmu_id"`
	VAAng  float64 `json:"v_a_ang"`
	VBAng  float64 `json:"v_b_ang"`
	VCAng  float64 `json:"v_c_ang"`
	IAAng  float64 `json:"i_a_ang"`
	IBAng  float64 `json:"i_b_ang"`
	ICAng  float64 `json:"i_c_ang"`
	V      float64 `json:"V"`
	I      float64 `json:"I"`
	PhiDeg float64 `json:"phi_deg"`
	S      float64 `json:"S"`
	P      float64 `json:"P"`
	Q      float64 `json:"Q"`
	PF     float64 `json:"PF"`
}

func toSnapshotResponse(s phasorapp.Snapshot) snapshotResponse {
	angle := func(q phasor.Quantity, p phasor.Phase) float64 {
		v, _ := s.Sample.Value(phasor.FieldName(q, p, phasor.Angle))
		return v
	}
	return snapshotResponse{
		PMUID:  s.PMUID,
		VAAng:  angle(phasor.Voltage, phasor.PhaseA),
		VBAng:  angle(phasor.Voltage, phasor.PhaseB),
		VCAng:  angle(phasor.Voltage, phasor.PhaseC),
		IAAng:  angle(phasor.Current, phasor.PhaseA),
		IBAng:  angle(phasor.Current, phasor.PhaseB),
		ICAng:  angle(phasor.Current, phasor.PhaseC),
		V:      s.Phase.V,
		I:      s.Phase.I,
		PhiDeg: s.Phase.PhiDeg,
		S:      s.Phase.S,
		P:      s.Phase.P,
		Q:      s.Phase.Q,
		PF:     s.Phase.PF,
	}
}

// rawRow values are null when the window held no reading for the field.
type rawRow struct {
	Time  *time.Time `json:"time"`
	VA    *float64   `json:"v_a"`
	VB    *float64   `json:"v_b"`
	VC    *float64   `json:"v_c"`
	IA    *float64   `json:"i_a"`
	IB    *float64   `json:"i_b"`
	IC    *float64   `json:"i_c"`
	VAAng *float64   `json:"v_a_ang"`
	VBAng *float64   `json:"v_b_ang"`
	VCAng *float64   `json:"v_c_ang"`
	IAAng *float64   `json:"i_a_ang"`
	IBAng *float64   `json:"i_b_ang"`
	ICAng *float64   `json:"i_c_ang"`
}

func toRawRow(s phasor.Sample) rawRow {
	get := func(field string) *float64 {
		if v, ok := s.Value(field); ok {
			return ptr(v)
		}
		return nil
	}
	return rawRow{
		Time:  timePtr(s.Time),
		VA:    get("v_a_mag"),
		VB:    get("v_b_mag"),
		VC:    get("v_c_mag"),
		IA:    get("i_a_mag"),
		IB:    get("i_b_mag"),
		IC:    get("i_c_mag"),
		VAAng: get("v_a_ang"),
		VBAng: get("v_b_ang"),
		VCAng: get("v_c_ang"),
		IAAng: get("i_a_ang"),
		IBAng: get("i_b_ang"),
		ICAng: get("i_c_ang"),
	}
}
