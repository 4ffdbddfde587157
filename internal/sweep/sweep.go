package sweep

import (
	"fmt"

	"gonum.org/v1/gonum/floats"

	"scopecfg/internal/domain"
	"scopecfg/internal/units"
)

// Planner derives acquisition vectors (ramps, scan lines, touchdown
// profiles) from a setup and regime. All positions are scanner voltages
// in volts; conversion to displacement goes through the scanner
// constants separately.
type Planner struct {
	reg    *units.Registry
	setup  *domain.Setup
	regime domain.Regime
}

// NewPlanner creates a planner bound to one setup and regime.
func NewPlanner(reg *units.Registry, setup *domain.Setup, regime domain.Regime) (*Planner, error) {
	if setup == nil {
		return nil, fmt.Errorf("setup is required")
	}
	if !regime.Valid() {
		return nil, fmt.Errorf("unknown regime %q", regime)
	}
	return &Planner{reg: reg, setup: setup, regime: regime}, nil
}

// Ramp is a slew-limited move of the scanner between two positions,
// sampled at the per-channel DAQ output rate. Every axis has the same
// number of points so the outputs stay synchronous.
type Ramp struct {
	Axes     map[string][]float64 `json:"axes"`
	Points   int                  `json:"points"`
	Duration float64              `json:"duration_s"`
}

// MakeRamp plans a move from one scanner position to another at the
// given speed. The duration is set by the axis with the longest travel;
// shorter axes just move slower. Positions outside the regime's voltage
// window and speeds above the scanner's slew limit are rejected.
func (p *Planner) MakeRamp(from, to map[string]units.Quantity, speed units.Quantity) (*Ramp, error) {
	sc := p.setup.Instruments.Scanner

	v, err := p.reg.Magnitude(speed, "V/s")
	if err != nil {
		return nil, fmt.Errorf("speed: %w", err)
	}
	if v <= 0 {
		return nil, fmt.Errorf("speed must be positive, got %s", speed)
	}
	max, err := p.reg.Magnitude(sc.Speed.Value, "V/s")
	if err != nil {
		return nil, fmt.Errorf("scanner speed limit: %w", err)
	}
	if v > max {
		return nil, fmt.Errorf("speed %s exceeds scanner limit %s", speed, sc.Speed.Value)
	}

	limits := sc.VoltageLimits.ForRegime(p.regime)
	start := make(map[string]float64, len(from))
	stop := make(map[string]float64, len(from))
	var travel float64
	for axis, q := range from {
		target, ok := to[axis]
		if !ok {
			return nil, fmt.Errorf("axis %s has no target position", axis)
		}
		a, err := p.axisVoltage(limits, axis, q)
		if err != nil {
			return nil, err
		}
		b, err := p.axisVoltage(limits, axis, target)
		if err != nil {
			return nil, err
		}
		start[axis], stop[axis] = a, b
		if d := abs(b - a); d > travel {
			travel = d
		}
	}
	for axis := range to {
		if _, ok := from[axis]; !ok {
			return nil, fmt.Errorf("axis %s has no start position", axis)
		}
	}

	duration := travel / v
	npts := int(duration*p.outputRate()) + 2

	ramp := &Ramp{
		Axes:     make(map[string][]float64, len(start)),
		Points:   npts,
		Duration: duration,
	}
	for axis := range start {
		ramp.Axes[axis] = floats.Span(make([]float64, npts), start[axis], stop[axis])
	}
	return ramp, nil
}

// RetractRamp plans the safety move that pulls the scanner to the
// regime's retract voltage in z while leaving x and y where they are.
func (p *Planner) RetractRamp(current map[string]units.Quantity) (*Ramp, error) {
	sc := p.setup.Instruments.Scanner
	retract, ok := sc.VoltageRetract[p.regime]
	if !ok {
		return nil, fmt.Errorf("no retract voltage for regime %s", p.regime)
	}

	target := make(map[string]units.Quantity, len(current))
	for axis, q := range current {
		target[axis] = q
	}
	target["z"] = retract
	return p.MakeRamp(current, target, sc.Speed.Value)
}

func (p *Planner) axisVoltage(limits map[string]units.Range, axis string, q units.Quantity) (float64, error) {
	v, err := p.reg.Magnitude(q, "V")
	if err != nil {
		return 0, fmt.Errorf("axis %s: %w", axis, err)
	}
	rng, ok := limits[axis]
	if !ok {
		return 0, fmt.Errorf("axis %s has no voltage limits in regime %s", axis, p.regime)
	}
	lo, err := p.reg.Magnitude(rng.Low, "V")
	if err != nil {
		return 0, fmt.Errorf("axis %s limit: %w", axis, err)
	}
	hi, err := p.reg.Magnitude(rng.High, "V")
	if err != nil {
		return 0, fmt.Errorf("axis %s limit: %w", axis, err)
	}
	if v < lo || v > hi {
		return 0, fmt.Errorf("axis %s position %s outside [%s, %s]", axis, q, rng.Low, rng.High)
	}
	return v, nil
}

// outputRate is the per-channel DAQ rate in Hz when driving the three
// scanner axes.
func (p *Planner) outputRate() float64 {
	rate, err := p.reg.Magnitude(p.setup.Instruments.DAQ.Rate, "Hz")
	if err != nil || rate <= 0 {
		return 0
	}
	n := len(p.setup.Instruments.DAQ.Channels.AnalogOutputs)
	if n == 0 {
		n = 1
	}
	return rate / float64(n)
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
