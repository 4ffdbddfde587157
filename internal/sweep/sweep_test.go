package sweep

import (
	"math"
	"testing"

	"scopecfg/internal/domain"
	"scopecfg/internal/units"
)

func testSetup() *domain.Setup {
	return &domain.Setup{
		Info: domain.Info{Name: "susceptometer", TimestampFormat: "2006-01-02_15:04:05"},
		Instruments: domain.Instruments{
			DAQ: domain.DAQ{
				Name: "Dev1",
				Rate: units.MustParse("10 kHz"),
				Channels: domain.DAQChannels{
					AnalogInputs:  map[string]int{"MAG": 0, "CAP": 1},
					AnalogOutputs: map[string]int{"x": 0, "y": 1, "z": 2},
				},
			},
			Scanner: domain.Scanner{
				Name: "benders",
				Constants: domain.ScannerConstants{
					X: units.MustParse("2 um/V"),
					Y: units.MustParse("2 um/V"),
					Z: units.MustParse("0.3 um/V"),
				},
				VoltageLimits: domain.ScannerLimits{
					Unit: "V",
					RT: map[string]units.Range{
						"x": {Low: units.MustParse("-2 V"), High: units.MustParse("2 V")},
						"y": {Low: units.MustParse("-2 V"), High: units.MustParse("2 V")},
						"z": {Low: units.MustParse("-2 V"), High: units.MustParse("2 V")},
					},
					LT: map[string]units.Range{
						"x": {Low: units.MustParse("-10 V"), High: units.MustParse("10 V")},
						"y": {Low: units.MustParse("-10 V"), High: units.MustParse("10 V")},
						"z": {Low: units.MustParse("-10 V"), High: units.MustParse("10 V")},
					},
				},
				VoltageRetract: map[domain.Regime]units.Quantity{
					domain.RegimeRT: units.MustParse("-2 V"),
					domain.RegimeLT: units.MustParse("-10 V"),
				},
				Speed: domain.SpeedSpec{Value: units.MustParse("2 V/s")},
				Plane: map[string]float64{"x": 0.01, "y": 0.02, "z": -0.5},
			},
		},
		SQUID: domain.SQUID{
			Name:            "squid",
			Type:            "susceptometer",
			ModulationWidth: units.MustParse("0.1 V/Phi0"),
		},
	}
}

func newTestPlanner(t *testing.T, regime domain.Regime) *Planner {
	t.Helper()
	p, err := NewPlanner(units.Default(), testSetup(), regime)
	if err != nil {
		t.Fatalf("NewPlanner: %v", err)
	}
	return p
}

func position(x, y, z string) map[string]units.Quantity {
	return map[string]units.Quantity{
		"x": units.MustParse(x),
		"y": units.MustParse(y),
		"z": units.MustParse(z),
	}
}

func TestMakeRamp(t *testing.T) {
	p := newTestPlanner(t, domain.RegimeRT)

	ramp, err := p.MakeRamp(
		position("0 V", "0 V", "0 V"),
		position("1 V", "0.5 V", "0 V"),
		units.MustParse("1 V/s"),
	)
	if err != nil {
		t.Fatalf("MakeRamp: %v", err)
	}

	// Longest travel is 1 V at 1 V/s; 10 kHz over 3 output channels
	if math.Abs(ramp.Duration-1.0) > 1e-12 {
		t.Errorf("duration = %g, want 1", ramp.Duration)
	}
	rate := 10000.0 / 3.0
	wantPoints := int(ramp.Duration*rate) + 2
	if ramp.Points != wantPoints {
		t.Errorf("points = %d, want %d", ramp.Points, wantPoints)
	}

	for axis, vec := range ramp.Axes {
		if len(vec) != ramp.Points {
			t.Errorf("axis %s has %d points, want %d", axis, len(vec), ramp.Points)
		}
	}
	x := ramp.Axes["x"]
	if x[0] != 0 || math.Abs(x[len(x)-1]-1) > 1e-12 {
		t.Errorf("x endpoints = %g, %g", x[0], x[len(x)-1])
	}
	y := ramp.Axes["y"]
	if math.Abs(y[len(y)-1]-0.5) > 1e-12 {
		t.Errorf("y end = %g, want 0.5", y[len(y)-1])
	}
}

func TestMakeRampRejects(t *testing.T) {
	p := newTestPlanner(t, domain.RegimeRT)

	tests := []struct {
		name  string
		from  map[string]units.Quantity
		to    map[string]units.Quantity
		speed string
	}{
		{"target outside limits", position("0 V", "0 V", "0 V"), position("5 V", "0 V", "0 V"), "1 V/s"},
		{"start outside limits", position("-3 V", "0 V", "0 V"), position("0 V", "0 V", "0 V"), "1 V/s"},
		{"speed above slew limit", position("0 V", "0 V", "0 V"), position("1 V", "0 V", "0 V"), "5 V/s"},
		{"zero speed", position("0 V", "0 V", "0 V"), position("1 V", "0 V", "0 V"), "0 V/s"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := p.MakeRamp(tt.from, tt.to, units.MustParse(tt.speed)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestRampRegimeWidensLimits(t *testing.T) {
	rt := newTestPlanner(t, domain.RegimeRT)
	lt := newTestPlanner(t, domain.RegimeLT)

	from := position("0 V", "0 V", "0 V")
	to := position("5 V", "0 V", "0 V")
	speed := units.MustParse("1 V/s")

	if _, err := rt.MakeRamp(from, to, speed); err == nil {
		t.Error("5 V should be rejected at room temperature")
	}
	if _, err := lt.MakeRamp(from, to, speed); err != nil {
		t.Errorf("5 V should be allowed at low temperature: %v", err)
	}
}

func TestRetractRamp(t *testing.T) {
	p := newTestPlanner(t, domain.RegimeRT)

	ramp, err := p.RetractRamp(position("0.5 V", "-0.5 V", "1 V"))
	if err != nil {
		t.Fatalf("RetractRamp: %v", err)
	}

	z := ramp.Axes["z"]
	if math.Abs(z[len(z)-1]-(-2)) > 1e-12 {
		t.Errorf("z end = %g, want -2", z[len(z)-1])
	}
	x := ramp.Axes["x"]
	if math.Abs(x[len(x)-1]-0.5) > 1e-12 {
		t.Errorf("x must stay put, got %g", x[len(x)-1])
	}
}

func scanExperiment() *domain.Experiment {
	return &domain.Experiment{
		Fname:    "scan",
		FastAxis: "x",
		ScanSize: map[string]int{"x": 4, "y": 3},
		Center: map[string]units.Quantity{
			"x": units.MustParse("0 V"),
			"y": units.MustParse("0 V"),
		},
		Span: map[string]units.Quantity{
			"x": units.MustParse("2 V"),
			"y": units.MustParse("1 V"),
		},
		Height: units.MustParse("-0.2 V"),
	}
}

func TestScanVectors(t *testing.T) {
	p := newTestPlanner(t, domain.RegimeRT)

	vectors, err := p.ScanVectors(scanExperiment())
	if err != nil {
		t.Fatalf("ScanVectors: %v", err)
	}
	if len(vectors.X) != 4 || len(vectors.Y) != 3 {
		t.Fatalf("lengths = %d, %d", len(vectors.X), len(vectors.Y))
	}
	if vectors.X[0] != -1 || vectors.X[3] != 1 {
		t.Errorf("x = %v", vectors.X)
	}
	if vectors.Y[0] != -0.5 || vectors.Y[2] != 0.5 {
		t.Errorf("y = %v", vectors.Y)
	}
}

func TestScanVectorsOutsideLimits(t *testing.T) {
	p := newTestPlanner(t, domain.RegimeRT)

	exp := scanExperiment()
	exp.Span["x"] = units.MustParse("8 V")
	if _, err := p.ScanVectors(exp); err == nil {
		t.Error("span wider than the voltage window must be rejected")
	}
}

func TestScanGrids(t *testing.T) {
	p := newTestPlanner(t, domain.RegimeRT)

	grids, err := p.ScanGrids(scanExperiment())
	if err != nil {
		t.Fatalf("ScanGrids: %v", err)
	}

	rows, cols := grids.X.Dims()
	if rows != 3 || cols != 4 {
		t.Fatalf("dims = %d x %d, want 3 x 4", rows, cols)
	}
	// Fast axis x varies along a row, slow axis y is constant in it
	if grids.X.At(0, 0) != -1 || grids.X.At(0, 3) != 1 {
		t.Errorf("x row = %v", grids.X.RawRowView(0))
	}
	if grids.Y.At(0, 0) != grids.Y.At(0, 3) {
		t.Error("y must be constant along the fast axis")
	}
	if grids.Y.At(0, 0) != -0.5 || grids.Y.At(2, 0) != 0.5 {
		t.Errorf("y corners = %g, %g", grids.Y.At(0, 0), grids.Y.At(2, 0))
	}

	// z = 0.01*x + 0.02*y - 0.5 - 0.2
	wantZ := 0.01*(-1) + 0.02*(-0.5) - 0.5 - 0.2
	if math.Abs(grids.Z.At(0, 0)-wantZ) > 1e-12 {
		t.Errorf("z(0,0) = %g, want %g", grids.Z.At(0, 0), wantZ)
	}
}

func TestTouchdownProfile(t *testing.T) {
	p := newTestPlanner(t, domain.RegimeRT)

	tests := []struct {
		name  string
		rng   units.Range
		dv    string
		first float64
		last  float64
		count int
	}{
		{
			name:  "even steps",
			rng:   units.Range{Low: units.MustParse("-1 V"), High: units.MustParse("1 V")},
			dv:    "0.25 V",
			first: -1, last: 1, count: 9,
		},
		{
			name:  "final partial step reaches the end",
			rng:   units.Range{Low: units.MustParse("0 V"), High: units.MustParse("1 V")},
			dv:    "0.3 V",
			first: 0, last: 1, count: 5,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exp := &domain.Experiment{
				Fname: "td",
				DV:    units.MustParse(tt.dv),
				Range: &tt.rng,
			}
			heights, err := p.TouchdownProfile(exp)
			if err != nil {
				t.Fatalf("TouchdownProfile: %v", err)
			}
			if len(heights) != tt.count {
				t.Fatalf("count = %d, want %d (%v)", len(heights), tt.count, heights)
			}
			if heights[0] != tt.first || math.Abs(heights[len(heights)-1]-tt.last) > 1e-12 {
				t.Errorf("endpoints = %g, %g", heights[0], heights[len(heights)-1])
			}
		})
	}
}

func TestTouchdownProfileRejects(t *testing.T) {
	p := newTestPlanner(t, domain.RegimeRT)

	exp := &domain.Experiment{
		Fname: "td",
		DV:    units.MustParse("0.1 V"),
		Range: &units.Range{Low: units.MustParse("-5 V"), High: units.MustParse("1 V")},
	}
	if _, err := p.TouchdownProfile(exp); err == nil {
		t.Error("range outside the z window must be rejected")
	}

	exp.Range = nil
	if _, err := p.TouchdownProfile(exp); err == nil {
		t.Error("missing range must be rejected")
	}
}
