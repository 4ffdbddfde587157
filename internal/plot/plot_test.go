package plot

import (
	"os"
	"strings"
	"testing"

	"scopecfg/internal/sweep"
)

func TestSaveRampChart(t *testing.T) {
	r := NewRenderer(t.TempDir())

	ramp := &sweep.Ramp{
		Axes: map[string][]float64{
			"x": {0, 0.5, 1},
			"y": {0, 0, 0},
			"z": {0, -0.25, -0.5},
		},
		Points:   3,
		Duration: 1,
	}

	path, err := r.Save("ramp", RampChart("goto preview", ramp))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read rendered chart: %v", err)
	}
	html := string(data)
	if !strings.Contains(html, "goto preview") {
		t.Error("rendered chart is missing the title")
	}
	for _, axis := range []string{`"x"`, `"y"`, `"z"`} {
		if !strings.Contains(html, axis) {
			t.Errorf("rendered chart is missing series %s", axis)
		}
	}
}

func TestSaveScanAndTouchdownCharts(t *testing.T) {
	r := NewRenderer(t.TempDir())

	vectors := &sweep.ScanVectors{
		X: []float64{-1, 0, 1},
		Y: []float64{-0.5, 0.5},
	}
	if _, err := r.Save("scan", ScanChart("scan preview", vectors)); err != nil {
		t.Fatalf("Save scan: %v", err)
	}

	heights := []float64{-1, -0.5, 0, 0.5, 1}
	path, err := r.Save("td", TouchdownChart("touchdown preview", heights))
	if err != nil {
		t.Fatalf("Save touchdown: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "touchdown preview") {
		t.Error("rendered chart is missing the title")
	}
}

func TestRendererCreatesDirectory(t *testing.T) {
	dir := t.TempDir() + "/nested/out"
	r := NewRenderer(dir)

	if _, err := r.Save("td", TouchdownChart("t", []float64{0, 1})); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := os.Stat(dir); err != nil {
		t.Errorf("output directory was not created: %v", err)
	}
}
