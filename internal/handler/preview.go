package handler

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"scopecfg/internal/plot"
	"scopecfg/internal/sweep"
	"scopecfg/internal/units"
)

// PreviewHandler renders acquisition previews for the loaded
// configuration: scan paths, touchdown profiles and goto ramps.
type PreviewHandler struct {
	h        *ConfigHandler
	renderer *plot.Renderer
}

// NewPreviewHandler creates a preview handler writing charts through
// the given renderer
func NewPreviewHandler(h *ConfigHandler, renderer *plot.Renderer) *PreviewHandler {
	return &PreviewHandler{h: h, renderer: renderer}
}

func (p *PreviewHandler) planner() (*sweep.Planner, error) {
	setup, err := p.h.svc.Setup()
	if err != nil {
		return nil, err
	}
	return sweep.NewPlanner(p.h.svc.Registry(), setup, p.h.svc.Regime())
}

// PreviewResponse points at the rendered chart file.
type PreviewResponse struct {
	Chart string `json:"chart"`
}

// PreviewScan renders the scan path of a preset
func (p *PreviewHandler) PreviewScan(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	exp, err := p.h.svc.Experiment(name)
	if err != nil {
		p.h.writeError(w, "Not found", err.Error(), http.StatusNotFound)
		return
	}

	planner, err := p.planner()
	if err != nil {
		p.h.writeError(w, "No setup loaded", err.Error(), http.StatusNotFound)
		return
	}

	vectors, err := planner.ScanVectors(exp)
	if err != nil {
		p.h.writeError(w, "Cannot plan scan", err.Error(), http.StatusUnprocessableEntity)
		return
	}

	path, err := p.renderer.Save("scan_"+name, plot.ScanChart("scan "+name, vectors))
	if err != nil {
		log.Printf("Failed to render scan preview: %v", err)
		p.h.writeError(w, "Failed to render preview", err.Error(), http.StatusInternalServerError)
		return
	}

	p.h.writeJSON(w, PreviewResponse{Chart: path}, http.StatusOK)
}

// PreviewTouchdown renders the z approach profile of a preset
func (p *PreviewHandler) PreviewTouchdown(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	exp, err := p.h.svc.Experiment(name)
	if err != nil {
		p.h.writeError(w, "Not found", err.Error(), http.StatusNotFound)
		return
	}

	planner, err := p.planner()
	if err != nil {
		p.h.writeError(w, "No setup loaded", err.Error(), http.StatusNotFound)
		return
	}

	heights, err := planner.TouchdownProfile(exp)
	if err != nil {
		p.h.writeError(w, "Cannot plan touchdown", err.Error(), http.StatusUnprocessableEntity)
		return
	}

	path, err := p.renderer.Save("td_"+name, plot.TouchdownChart("touchdown "+name, heights))
	if err != nil {
		log.Printf("Failed to render touchdown preview: %v", err)
		p.h.writeError(w, "Failed to render preview", err.Error(), http.StatusInternalServerError)
		return
	}

	p.h.writeJSON(w, PreviewResponse{Chart: path}, http.StatusOK)
}

// RampRequest describes a goto move to preview.
type RampRequest struct {
	From  map[string]units.Quantity `json:"from"`
	To    map[string]units.Quantity `json:"to"`
	Speed units.Quantity            `json:"speed"`
}

// PreviewRamp plans a move between two scanner positions and renders it
func (p *PreviewHandler) PreviewRamp(w http.ResponseWriter, r *http.Request) {
	var req RampRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		p.h.writeError(w, "Invalid request body", err.Error(), http.StatusBadRequest)
		return
	}

	planner, err := p.planner()
	if err != nil {
		p.h.writeError(w, "No setup loaded", err.Error(), http.StatusNotFound)
		return
	}

	speed := req.Speed
	if speed.IsZero() {
		setup, _ := p.h.svc.Setup()
		speed = setup.Instruments.Scanner.Speed.Value
	}

	ramp, err := planner.MakeRamp(req.From, req.To, speed)
	if err != nil {
		p.h.writeError(w, "Cannot plan ramp", err.Error(), http.StatusUnprocessableEntity)
		return
	}

	path, err := p.renderer.Save("ramp", plot.RampChart("goto", ramp))
	if err != nil {
		log.Printf("Failed to render ramp preview: %v", err)
		p.h.writeError(w, "Failed to render preview", err.Error(), http.StatusInternalServerError)
		return
	}

	p.h.writeJSON(w, struct {
		PreviewResponse
		Points   int     `json:"points"`
		Duration float64 `json:"duration_s"`
	}{PreviewResponse{Chart: path}, ramp.Points, ramp.Duration}, http.StatusOK)
}

// RetractPreview plans the safety retraction from a current position
func (p *PreviewHandler) PreviewRetract(w http.ResponseWriter, r *http.Request) {
	var req struct {
		From map[string]units.Quantity `json:"from"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		p.h.writeError(w, "Invalid request body", err.Error(), http.StatusBadRequest)
		return
	}

	planner, err := p.planner()
	if err != nil {
		p.h.writeError(w, "No setup loaded", err.Error(), http.StatusNotFound)
		return
	}

	ramp, err := planner.RetractRamp(req.From)
	if err != nil {
		p.h.writeError(w, "Cannot plan retraction", err.Error(), http.StatusUnprocessableEntity)
		return
	}

	path, err := p.renderer.Save("retract", plot.RampChart("retract", ramp))
	if err != nil {
		log.Printf("Failed to render retract preview: %v", err)
		p.h.writeError(w, "Failed to render preview", err.Error(), http.StatusInternalServerError)
		return
	}

	p.h.writeJSON(w, PreviewResponse{Chart: path}, http.StatusOK)
}

// ServeCharts exposes the rendered chart directory.
func ServeCharts(dir string) http.Handler {
	fs := http.FileServer(http.Dir(dir))
	return http.StripPrefix("/charts/", noDirListing(fs))
}

func noDirListing(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/") {
			http.NotFound(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}
