// Package plot renders HTML previews of planned acquisitions so an
// operator can sanity-check a preset before running it on hardware.
package plot

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"scopecfg/internal/sweep"
)

// Renderer writes chart files into one output directory.
type Renderer struct {
	dir string
}

// NewRenderer creates a renderer. The directory is created on first use.
func NewRenderer(dir string) *Renderer {
	return &Renderer{dir: dir}
}

// Save renders a chart to <dir>/<name>.html and returns the path.
func (r *Renderer) Save(name string, line *charts.Line) (string, error) {
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	path := filepath.Join(r.dir, name+".html")
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	if err := line.Render(f); err != nil {
		return "", fmt.Errorf("failed to render chart: %w", err)
	}
	return path, nil
}

// RampChart plots each axis of a slew-limited move against time.
func RampChart(title string, ramp *sweep.Ramp) *charts.Line {
	line := newLine(title, "time, s", "output, V")

	x := make([]float64, ramp.Points)
	if ramp.Points > 1 {
		dt := ramp.Duration / float64(ramp.Points-1)
		for i := range x {
			x[i] = float64(i) * dt
		}
	}
	line.SetXAxis(x)

	for _, axis := range []string{"x", "y", "z"} {
		vec, ok := ramp.Axes[axis]
		if !ok {
			continue
		}
		line.AddSeries(axis, lineData(vec))
	}
	return line
}

// ScanChart plots the axis vectors of a raster scan: the fast-axis
// sweep and the slow-axis step positions.
func ScanChart(title string, vectors *sweep.ScanVectors) *charts.Line {
	line := newLine(title, "pixel", "scanner voltage, V")

	n := len(vectors.X)
	if len(vectors.Y) > n {
		n = len(vectors.Y)
	}
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	line.SetXAxis(idx)

	line.AddSeries("x", lineData(vectors.X))
	line.AddSeries("y", lineData(vectors.Y))
	return line
}

// TouchdownChart plots the z approach profile of a capacitive touchdown.
func TouchdownChart(title string, heights []float64) *charts.Line {
	line := newLine(title, "step", "z, V")

	idx := make([]int, len(heights))
	for i := range idx {
		idx[i] = i
	}
	line.SetXAxis(idx)
	line.AddSeries("z", lineData(heights))
	return line
}

func newLine(title, xName, yName string) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			BackgroundColor: "#ffffff",
			Width:           "100%",
			Height:          "600px",
			PageTitle:       title,
		}),
		charts.WithTitleOpts(opts.Title{Title: title}),
		charts.WithTooltipOpts(opts.Tooltip{
			Show:    opts.Bool(true),
			Trigger: "axis",
		}),
		charts.WithDataZoomOpts(opts.DataZoom{
			Type:       "inside",
			Start:      0,
			End:        100,
			XAxisIndex: []int{0},
		}),
		charts.WithXAxisOpts(opts.XAxis{
			Name: xName,
			SplitLine: &opts.SplitLine{
				Show: opts.Bool(true),
			},
		}),
		charts.WithYAxisOpts(opts.YAxis{
			Name:  yName,
			Type:  "value",
			Scale: opts.Bool(true),
			SplitLine: &opts.SplitLine{
				Show: opts.Bool(true),
			},
		}),
	)
	return line
}

func lineData(vec []float64) []opts.LineData {
	data := make([]opts.LineData, len(vec))
	for i, v := range vec {
		data[i] = opts.LineData{Value: v}
	}
	return data
}
