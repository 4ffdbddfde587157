package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"

	"scopecfg/internal/domain"
	"scopecfg/internal/repository"
	"scopecfg/internal/service"
)

// ConfigHandler handles configuration API requests
type ConfigHandler struct {
	svc *service.ConfigService
}

// NewConfigHandler creates a new configuration handler
func NewConfigHandler(svc *service.ConfigService) *ConfigHandler {
	return &ConfigHandler{svc: svc}
}

// Error response structure
type ErrorResponse struct {
	Error   string          `json:"error"`
	Details string          `json:"details,omitempty"`
	Report  *domain.Report  `json:"report,omitempty"`
}

// GetSetup returns the active setup document
func (h *ConfigHandler) GetSetup(w http.ResponseWriter, r *http.Request) {
	setup, err := h.svc.Setup()
	if err != nil {
		h.writeError(w, "No setup loaded", err.Error(), http.StatusNotFound)
		return
	}

	h.writeJSON(w, setup, http.StatusOK)
}

// ImportSetup stores a new setup revision from the request body
func (h *ConfigHandler) ImportSetup(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if name == "" {
		h.writeError(w, "Name required", "Provide ?name= for the document", http.StatusBadRequest)
		return
	}

	data, err := io.ReadAll(r.Body)
	if err != nil {
		h.writeError(w, "Failed to read request body", err.Error(), http.StatusBadRequest)
		return
	}

	rev, report, err := h.svc.ImportSetup(r.Context(), name, importFormat(r), data)
	if err != nil {
		if report != nil && !report.OK() {
			h.writeReport(w, "Setup rejected", report)
			return
		}
		log.Printf("Failed to import setup: %v", err)
		h.writeError(w, "Failed to import setup", err.Error(), http.StatusBadRequest)
		return
	}

	h.writeJSON(w, rev, http.StatusCreated)
}

// ExportSetup serializes the active setup in the requested format
func (h *ConfigHandler) ExportSetup(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	if format == "" {
		format = "json"
	}

	data, err := h.svc.ExportSetup(format)
	if err != nil {
		h.writeError(w, "Failed to export setup", err.Error(), exportStatus(err))
		return
	}

	writeExport(w, data, format, "setup")
}

// ListInstruments returns the addressable instrument entries
func (h *ConfigHandler) ListInstruments(w http.ResponseWriter, r *http.Request) {
	setup, err := h.svc.Setup()
	if err != nil {
		h.writeError(w, "No setup loaded", err.Error(), http.StatusNotFound)
		return
	}

	h.writeJSON(w, setup.InstrumentNames(), http.StatusOK)
}

// GetInstrument returns one instrument entry by its listing name
func (h *ConfigHandler) GetInstrument(w http.ResponseWriter, r *http.Request) {
	setup, err := h.svc.Setup()
	if err != nil {
		h.writeError(w, "No setup loaded", err.Error(), http.StatusNotFound)
		return
	}

	name := r.PathValue("name")
	inst, ok := setup.Instrument(name)
	if !ok {
		h.writeError(w, "Not found", "No instrument named "+name, http.StatusNotFound)
		return
	}

	h.writeJSON(w, inst, http.StatusOK)
}

// GetMeasurements returns the active measurement presets
func (h *ConfigHandler) GetMeasurements(w http.ResponseWriter, r *http.Request) {
	set, err := h.svc.Measurements()
	if err != nil {
		h.writeError(w, "No measurements loaded", err.Error(), http.StatusNotFound)
		return
	}

	h.writeJSON(w, set, http.StatusOK)
}

// ImportMeasurements stores a new measurement revision from the request body
func (h *ConfigHandler) ImportMeasurements(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if name == "" {
		h.writeError(w, "Name required", "Provide ?name= for the document", http.StatusBadRequest)
		return
	}

	data, err := io.ReadAll(r.Body)
	if err != nil {
		h.writeError(w, "Failed to read request body", err.Error(), http.StatusBadRequest)
		return
	}

	rev, report, err := h.svc.ImportMeasurements(r.Context(), name, importFormat(r), data)
	if err != nil {
		if report != nil && !report.OK() {
			h.writeReport(w, "Measurements rejected", report)
			return
		}
		log.Printf("Failed to import measurements: %v", err)
		h.writeError(w, "Failed to import measurements", err.Error(), http.StatusBadRequest)
		return
	}

	h.writeJSON(w, rev, http.StatusCreated)
}

// ExportMeasurements serializes the active presets in the requested format
func (h *ConfigHandler) ExportMeasurements(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	if format == "" {
		format = "json"
	}

	data, err := h.svc.ExportMeasurements(format)
	if err != nil {
		h.writeError(w, "Failed to export measurements", err.Error(), exportStatus(err))
		return
	}

	writeExport(w, data, format, "measurements")
}

// ListExperiments returns the loaded preset names
func (h *ConfigHandler) ListExperiments(w http.ResponseWriter, r *http.Request) {
	names, err := h.svc.ExperimentNames()
	if err != nil {
		h.writeError(w, "No measurements loaded", err.Error(), http.StatusNotFound)
		return
	}

	h.writeJSON(w, names, http.StatusOK)
}

// GetExperiment returns a single preset
func (h *ConfigHandler) GetExperiment(w http.ResponseWriter, r *http.Request) {
	exp, err := h.svc.Experiment(r.PathValue("name"))
	if err != nil {
		h.writeError(w, "Not found", err.Error(), http.StatusNotFound)
		return
	}

	h.writeJSON(w, exp, http.StatusOK)
}

// GetPrefactors returns the per-channel conversion factors for a preset
func (h *ConfigHandler) GetPrefactors(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	pf, err := h.svc.Prefactors(name)
	if err != nil {
		if strings.Contains(err.Error(), "not found") {
			h.writeError(w, "Not found", err.Error(), http.StatusNotFound)
			return
		}
		log.Printf("Failed to compute prefactors for %s: %v", name, err)
		h.writeError(w, "Failed to compute prefactors", err.Error(), http.StatusUnprocessableEntity)
		return
	}

	h.writeJSON(w, pf, http.StatusOK)
}

// GetAcquisitionRate returns the per-channel DAQ rate for a preset
func (h *ConfigHandler) GetAcquisitionRate(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	rate, err := h.svc.AcquisitionRate(name)
	if err != nil {
		if strings.Contains(err.Error(), "not found") {
			h.writeError(w, "Not found", err.Error(), http.StatusNotFound)
			return
		}
		h.writeError(w, "Failed to compute rate", err.Error(), http.StatusUnprocessableEntity)
		return
	}

	h.writeJSON(w, map[string]interface{}{"experiment": name, "rate": rate}, http.StatusOK)
}

// GetRegime returns the active temperature regime
func (h *ConfigHandler) GetRegime(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, map[string]domain.Regime{"regime": h.svc.Regime()}, http.StatusOK)
}

// SetRegime switches the active temperature regime
func (h *ConfigHandler) SetRegime(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Regime string `json:"regime"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, "Invalid request body", err.Error(), http.StatusBadRequest)
		return
	}

	regime, err := domain.ParseRegime(req.Regime)
	if err != nil {
		h.writeError(w, "Invalid regime", err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.svc.SetRegime(regime); err != nil {
		h.writeError(w, "Failed to set regime", err.Error(), http.StatusBadRequest)
		return
	}

	h.writeJSON(w, map[string]domain.Regime{"regime": regime}, http.StatusOK)
}

// GetLimits returns the voltage limit tables for a regime
func (h *ConfigHandler) GetLimits(w http.ResponseWriter, r *http.Request) {
	regime := domain.Regime(strings.ToUpper(r.URL.Query().Get("regime")))
	limits, err := h.svc.EffectiveLimits(regime)
	if err != nil {
		if strings.Contains(err.Error(), "no setup") {
			h.writeError(w, "No setup loaded", err.Error(), http.StatusNotFound)
			return
		}
		h.writeError(w, "Failed to resolve limits", err.Error(), http.StatusBadRequest)
		return
	}

	h.writeJSON(w, limits, http.StatusOK)
}

// GetValidation re-validates the loaded documents and reports findings
func (h *ConfigHandler) GetValidation(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, h.svc.Validate(), http.StatusOK)
}

// ListRevisions returns the stored history of a document
func (h *ConfigHandler) ListRevisions(w http.ResponseWriter, r *http.Request) {
	kind := repository.Kind(r.URL.Query().Get("kind"))
	name := r.URL.Query().Get("name")
	if name == "" {
		h.writeError(w, "Name required", "Provide ?kind= and ?name=", http.StatusBadRequest)
		return
	}

	revisions, err := h.svc.Revisions(r.Context(), kind, name)
	if err != nil {
		h.writeError(w, "Failed to list revisions", err.Error(), http.StatusBadRequest)
		return
	}

	h.writeJSON(w, revisions, http.StatusOK)
}

// ListDocuments returns the stored document names of one kind
func (h *ConfigHandler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	kind := repository.Kind(r.URL.Query().Get("kind"))
	names, err := h.svc.DocumentNames(r.Context(), kind)
	if err != nil {
		h.writeError(w, "Failed to list documents", err.Error(), http.StatusBadRequest)
		return
	}

	h.writeJSON(w, names, http.StatusOK)
}

// ActivateRevision rolls a document back to a stored revision
func (h *ConfigHandler) ActivateRevision(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		h.writeError(w, "Invalid revision ID", err.Error(), http.StatusBadRequest)
		return
	}

	rev, err := h.svc.ActivateRevision(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			h.writeError(w, "Not found", err.Error(), http.StatusNotFound)
			return
		}
		log.Printf("Failed to activate revision %d: %v", id, err)
		h.writeError(w, "Failed to activate revision", err.Error(), http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, rev, http.StatusOK)
}

// Helper methods

func (h *ConfigHandler) writeJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("Failed to encode JSON: %v", err)
	}
}

func (h *ConfigHandler) writeError(w http.ResponseWriter, error, details string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(ErrorResponse{
		Error:   error,
		Details: details,
	}); err != nil {
		log.Printf("Failed to encode error response: %v", err)
	}
}

func (h *ConfigHandler) writeReport(w http.ResponseWriter, msg string, report *domain.Report) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnprocessableEntity)
	if err := json.NewEncoder(w).Encode(ErrorResponse{
		Error:  msg,
		Report: report,
	}); err != nil {
		log.Printf("Failed to encode error response: %v", err)
	}
}

// importFormat picks the document format from the query or content type.
func importFormat(r *http.Request) string {
	if format := r.URL.Query().Get("format"); format != "" {
		return format
	}
	ct := r.Header.Get("Content-Type")
	if strings.Contains(ct, "yaml") {
		return "yaml"
	}
	return "json"
}

func writeExport(w http.ResponseWriter, data []byte, format, name string) {
	if format == "yaml" || format == "yml" {
		w.Header().Set("Content-Type", "application/x-yaml")
		w.Header().Set("Content-Disposition", "attachment; filename="+name+".yml")
	} else {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Content-Disposition", "attachment; filename="+name+".json")
	}
	w.Write(data)
}

func exportStatus(err error) int {
	if strings.Contains(err.Error(), "unsupported format") {
		return http.StatusBadRequest
	}
	return http.StatusNotFound
}
