package sweep

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"scopecfg/internal/domain"
	"scopecfg/internal/units"
)

// ScanVectors holds the per-axis sample positions of a raster scan:
// evenly spaced scanner voltages centered on the preset's center with
// the preset's span.
type ScanVectors struct {
	X []float64 `json:"x"`
	Y []float64 `json:"y"`
}

// ScanVectors builds the axis vectors for a scan preset. Both ends of
// each axis must sit inside the regime's voltage window.
func (p *Planner) ScanVectors(exp *domain.Experiment) (*ScanVectors, error) {
	limits := p.setup.Instruments.Scanner.VoltageLimits.ForRegime(p.regime)

	vectors := &ScanVectors{}
	for _, axis := range []string{"x", "y"} {
		n, ok := exp.ScanSize[axis]
		if !ok || n <= 0 {
			return nil, fmt.Errorf("scan_size/%s must be a positive pixel count", axis)
		}
		center, ok := exp.Center[axis]
		if !ok {
			return nil, fmt.Errorf("center/%s is required", axis)
		}
		span, ok := exp.Span[axis]
		if !ok {
			return nil, fmt.Errorf("span/%s is required", axis)
		}
		c, err := p.reg.Magnitude(center, "V")
		if err != nil {
			return nil, fmt.Errorf("center/%s: %w", axis, err)
		}
		s, err := p.reg.Magnitude(span, "V")
		if err != nil {
			return nil, fmt.Errorf("span/%s: %w", axis, err)
		}

		lo, hi := c-s/2, c+s/2
		if _, err := p.axisVoltage(limits, axis, units.Q(lo, "V")); err != nil {
			return nil, err
		}
		if _, err := p.axisVoltage(limits, axis, units.Q(hi, "V")); err != nil {
			return nil, err
		}

		vec := floats.Span(make([]float64, n), lo, hi)
		if axis == "x" {
			vectors.X = vec
		} else {
			vectors.Y = vec
		}
	}
	return vectors, nil
}

// ScanGrids holds the full raster as matrices: one row per slow-axis
// line, one column per fast-axis pixel. Z follows the sample plane
// plus the preset's height offset.
type ScanGrids struct {
	FastAxis string     `json:"fast_ax"`
	X        *mat.Dense `json:"-"`
	Y        *mat.Dense `json:"-"`
	Z        *mat.Dense `json:"-"`
}

// ScanGrids expands the axis vectors into position grids. The scanner's
// fitted plane coefficients tilt the z surface so the sensor tracks the
// sample; without a plane the scan is flat at the height offset.
func (p *Planner) ScanGrids(exp *domain.Experiment) (*ScanGrids, error) {
	vectors, err := p.ScanVectors(exp)
	if err != nil {
		return nil, err
	}

	fast := exp.FastAxis
	if fast == "" {
		fast = "x"
	}
	if fast != "x" && fast != "y" {
		return nil, fmt.Errorf("fast axis must be x or y, got %q", fast)
	}

	fastVec, slowVec := vectors.X, vectors.Y
	if fast == "y" {
		fastVec, slowVec = vectors.Y, vectors.X
	}

	rows, cols := len(slowVec), len(fastVec)
	fastGrid := mat.NewDense(rows, cols, nil)
	slowGrid := mat.NewDense(rows, cols, nil)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			fastGrid.Set(i, j, fastVec[j])
			slowGrid.Set(i, j, slowVec[i])
		}
	}

	grids := &ScanGrids{FastAxis: fast}
	if fast == "x" {
		grids.X, grids.Y = fastGrid, slowGrid
	} else {
		grids.X, grids.Y = slowGrid, fastGrid
	}

	grids.Z, err = p.planeGrid(exp, grids.X, grids.Y)
	if err != nil {
		return nil, err
	}
	return grids, nil
}

func (p *Planner) planeGrid(exp *domain.Experiment, xg, yg *mat.Dense) (*mat.Dense, error) {
	var height float64
	if !exp.Height.IsZero() {
		h, err := p.reg.Magnitude(exp.Height, "V")
		if err != nil {
			return nil, fmt.Errorf("height: %w", err)
		}
		height = h
	}

	plane := p.setup.Instruments.Scanner.Plane
	rows, cols := xg.Dims()
	z := mat.NewDense(rows, cols, nil)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			v := plane["x"]*xg.At(i, j) + plane["y"]*yg.At(i, j) + plane["z"] + height
			z.Set(i, j, v)
		}
	}

	limits := p.setup.Instruments.Scanner.VoltageLimits.ForRegime(p.regime)
	if _, err := p.axisVoltage(limits, "z", units.Q(mat.Min(z), "V")); err != nil {
		return nil, err
	}
	if _, err := p.axisVoltage(limits, "z", units.Q(mat.Max(z), "V")); err != nil {
		return nil, err
	}
	return z, nil
}

// TouchdownProfile builds the z approach vector of a capacitive
// touchdown: steps of dV across the preset's voltage range, inclusive
// of both ends.
func (p *Planner) TouchdownProfile(exp *domain.Experiment) ([]float64, error) {
	if exp.Range == nil {
		return nil, fmt.Errorf("preset has no z range")
	}
	if exp.DV.IsZero() {
		return nil, fmt.Errorf("preset has no dV step")
	}

	lo, err := p.reg.Magnitude(exp.Range.Low, "V")
	if err != nil {
		return nil, fmt.Errorf("range: %w", err)
	}
	hi, err := p.reg.Magnitude(exp.Range.High, "V")
	if err != nil {
		return nil, fmt.Errorf("range: %w", err)
	}
	step, err := p.reg.Magnitude(exp.DV, "V")
	if err != nil {
		return nil, fmt.Errorf("dV: %w", err)
	}
	if step <= 0 {
		return nil, fmt.Errorf("dV must be positive, got %s", exp.DV)
	}
	if hi < lo {
		return nil, fmt.Errorf("range [%s, %s] is not ordered", exp.Range.Low, exp.Range.High)
	}

	limits := p.setup.Instruments.Scanner.VoltageLimits.ForRegime(p.regime)
	if _, err := p.axisVoltage(limits, "z", units.Q(lo, "V")); err != nil {
		return nil, err
	}
	if _, err := p.axisVoltage(limits, "z", units.Q(hi, "V")); err != nil {
		return nil, err
	}

	n := int(math.Floor((hi-lo)/step)) + 1
	heights := make([]float64, n)
	for i := range heights {
		heights[i] = lo + float64(i)*step
	}
	if heights[n-1] < hi {
		heights = append(heights, hi)
	}
	return heights, nil
}
