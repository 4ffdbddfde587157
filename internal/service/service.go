package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"

	"scopecfg/internal/codec"
	"scopecfg/internal/domain"
	"scopecfg/internal/repository"
	"scopecfg/internal/units"
)

// ConfigService provides business logic for microscope configuration:
// importing setup and measurement documents, tracking the active revision
// of each, and answering derived queries (limits, prefactors, rates)
// against the in-memory copies.
type ConfigService struct {
	repo     repository.Repository
	reg      *units.Registry
	eventBus *EventBus

	mu           sync.RWMutex
	setup        *domain.Setup
	setupName    string
	measurements *domain.MeasurementSet
	measName     string
	regime       domain.Regime
}

// NewConfigService creates a new configuration service. The regime
// starts at room temperature until an operator changes it.
func NewConfigService(repo repository.Repository, reg *units.Registry, eventBus *EventBus) *ConfigService {
	return &ConfigService{
		repo:     repo,
		reg:      reg,
		eventBus: eventBus,
		regime:   domain.RegimeRT,
	}
}

// ImportSetup parses, validates, and stores a setup document. The new
// revision becomes active; a failed validation stores nothing and the
// returned report carries the problems.
func (s *ConfigService) ImportSetup(ctx context.Context, name, format string, data []byte) (*repository.Revision, *domain.Report, error) {
	c, err := codec.ForFormat(format)
	if err != nil {
		return nil, nil, err
	}

	setup, err := c.ParseSetup(bytes.NewReader(data))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse setup: %w", err)
	}

	report := domain.ValidateSetup(setup, s.reg)
	if !report.OK() {
		return nil, report, report.Error()
	}

	rev, err := s.repo.SaveRevision(ctx, repository.KindSetup, name, c.Format(), data)
	if err != nil {
		return nil, report, err
	}

	s.mu.Lock()
	s.setup = setup
	s.setupName = name
	s.mu.Unlock()

	s.eventBus.Publish(Event{
		Type:    EventSetupImported,
		Payload: map[string]interface{}{"name": name, "revision": rev.ID},
	})

	return rev, report, nil
}

// ImportMeasurements parses, validates, and stores a measurement-preset
// document. Cross-references (lock-in names, DAQ channel names) are
// checked against the current setup when one is loaded.
func (s *ConfigService) ImportMeasurements(ctx context.Context, name, format string, data []byte) (*repository.Revision, *domain.Report, error) {
	c, err := codec.ForFormat(format)
	if err != nil {
		return nil, nil, err
	}

	set, err := c.ParseMeasurements(bytes.NewReader(data))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse measurements: %w", err)
	}

	report := domain.ValidateMeasurements(set, s.currentSetup(), s.reg)
	if !report.OK() {
		return nil, report, report.Error()
	}

	rev, err := s.repo.SaveRevision(ctx, repository.KindMeasurements, name, c.Format(), data)
	if err != nil {
		return nil, report, err
	}

	s.mu.Lock()
	s.measurements = set
	s.measName = name
	s.mu.Unlock()

	s.eventBus.Publish(Event{
		Type:    EventMeasurementsImported,
		Payload: map[string]interface{}{"name": name, "revision": rev.ID},
	})

	return rev, report, nil
}

// LoadActive restores the active revisions of the named documents from
// the repository. A missing document is not an error; the service just
// starts without it.
func (s *ConfigService) LoadActive(ctx context.Context, setupName, measName string) error {
	if setupName != "" {
		rev, data, err := s.repo.GetActive(ctx, repository.KindSetup, setupName)
		switch {
		case errors.Is(err, repository.ErrNotFound):
		case err != nil:
			return err
		default:
			if err := s.restoreSetup(rev.Format, data, setupName); err != nil {
				return fmt.Errorf("stored setup %q: %w", setupName, err)
			}
		}
	}

	if measName != "" {
		rev, data, err := s.repo.GetActive(ctx, repository.KindMeasurements, measName)
		switch {
		case errors.Is(err, repository.ErrNotFound):
		case err != nil:
			return err
		default:
			if err := s.restoreMeasurements(rev.Format, data, measName); err != nil {
				return fmt.Errorf("stored measurements %q: %w", measName, err)
			}
		}
	}

	return nil
}

func (s *ConfigService) restoreSetup(format string, data []byte, name string) error {
	c, err := codec.ForFormat(format)
	if err != nil {
		return err
	}
	setup, err := c.ParseSetup(bytes.NewReader(data))
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.setup = setup
	s.setupName = name
	s.mu.Unlock()
	return nil
}

func (s *ConfigService) restoreMeasurements(format string, data []byte, name string) error {
	c, err := codec.ForFormat(format)
	if err != nil {
		return err
	}
	set, err := c.ParseMeasurements(bytes.NewReader(data))
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.measurements = set
	s.measName = name
	s.mu.Unlock()
	return nil
}

// Setup returns the currently loaded setup document.
func (s *ConfigService) Setup() (*domain.Setup, error) {
	setup := s.currentSetup()
	if setup == nil {
		return nil, fmt.Errorf("no setup loaded")
	}
	return setup, nil
}

// Measurements returns the currently loaded measurement presets.
func (s *ConfigService) Measurements() (*domain.MeasurementSet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.measurements == nil {
		return nil, fmt.Errorf("no measurements loaded")
	}
	return s.measurements, nil
}

// Experiment returns one measurement preset by name.
func (s *ConfigService) Experiment(name string) (*domain.Experiment, error) {
	set, err := s.Measurements()
	if err != nil {
		return nil, err
	}
	exp, ok := set.Get(name)
	if !ok {
		return nil, fmt.Errorf("experiment %s not found", name)
	}
	return exp, nil
}

// ExperimentNames lists the loaded presets in sorted order.
func (s *ConfigService) ExperimentNames() ([]string, error) {
	set, err := s.Measurements()
	if err != nil {
		return nil, err
	}
	return set.Names(), nil
}

// ExportSetup serializes the current setup in the requested format.
func (s *ConfigService) ExportSetup(format string) ([]byte, error) {
	setup, err := s.Setup()
	if err != nil {
		return nil, err
	}
	c, err := codec.ForFormat(format)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := c.ExportSetup(setup, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ExportMeasurements serializes the current presets in the requested format.
func (s *ConfigService) ExportMeasurements(format string) ([]byte, error) {
	set, err := s.Measurements()
	if err != nil {
		return nil, err
	}
	c, err := codec.ForFormat(format)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := c.ExportMeasurements(set, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Regime returns the active temperature regime.
func (s *ConfigService) Regime() domain.Regime {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.regime
}

// SetRegime switches the active temperature regime. Limits and retract
// voltages served afterwards come from the new regime's tables.
func (s *ConfigService) SetRegime(r domain.Regime) error {
	if !r.Valid() {
		return fmt.Errorf("unknown regime %q", r)
	}

	s.mu.Lock()
	changed := s.regime != r
	s.regime = r
	s.mu.Unlock()

	if changed {
		s.eventBus.Publish(Event{
			Type:    EventRegimeChanged,
			Payload: map[string]string{"regime": string(r)},
		})
	}

	return nil
}

// RegimeLimits collects everything the active regime constrains: the
// scanner's per-axis voltage windows and retract voltage, and the
// positioner's per-axis drive limits.
type RegimeLimits struct {
	Regime     domain.Regime             `json:"regime"`
	Scanner    map[string]units.Range    `json:"scanner"`
	Retract    units.Quantity            `json:"retract"`
	Positioner map[string]units.Quantity `json:"positioner,omitempty"`
}

// EffectiveLimits resolves the limit tables for a regime. An empty
// regime means the currently active one.
func (s *ConfigService) EffectiveLimits(r domain.Regime) (*RegimeLimits, error) {
	setup, err := s.Setup()
	if err != nil {
		return nil, err
	}
	if r == "" {
		r = s.Regime()
	}
	if !r.Valid() {
		return nil, fmt.Errorf("unknown regime %q", r)
	}

	sc := setup.Instruments.Scanner
	limits := &RegimeLimits{
		Regime:  r,
		Scanner: sc.VoltageLimits.ForRegime(r),
		Retract: sc.VoltageRetract[r],
	}
	limits.Positioner = setup.Instruments.Positioner.VoltageLimits[r]
	return limits, nil
}

// AcquisitionRate returns the per-channel sampling rate for a preset:
// the DAQ's aggregate rate divided among the preset's input channels.
func (s *ConfigService) AcquisitionRate(expName string) (units.Quantity, error) {
	setup, err := s.Setup()
	if err != nil {
		return units.Quantity{}, err
	}
	exp, err := s.Experiment(expName)
	if err != nil {
		return units.Quantity{}, err
	}
	if len(exp.Channels) == 0 {
		return units.Quantity{}, fmt.Errorf("experiment %s has no channels", expName)
	}

	rate := setup.Instruments.DAQ.Rate
	return units.Quantity{
		Magnitude: rate.Magnitude / float64(len(exp.Channels)),
		Unit:      rate.Unit,
	}, nil
}

// ValidationState re-runs validation of the loaded documents and
// reports the problems without mutating anything.
type ValidationState struct {
	Setup        *domain.Report `json:"setup,omitempty"`
	Measurements *domain.Report `json:"measurements,omitempty"`
}

// Validate re-checks the loaded documents against the unit vocabulary
// and cross-reference rules.
func (s *ConfigService) Validate() *ValidationState {
	s.mu.RLock()
	setup, set := s.setup, s.measurements
	s.mu.RUnlock()

	state := &ValidationState{}
	if setup != nil {
		state.Setup = domain.ValidateSetup(setup, s.reg)
	}
	if set != nil {
		state.Measurements = domain.ValidateMeasurements(set, setup, s.reg)
	}
	return state
}

// Revisions lists the stored history of a document, newest first.
func (s *ConfigService) Revisions(ctx context.Context, kind repository.Kind, name string) ([]repository.Revision, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("invalid document kind %q", kind)
	}
	return s.repo.ListRevisions(ctx, kind, name)
}

// DocumentNames lists the stored documents of one kind.
func (s *ConfigService) DocumentNames(ctx context.Context, kind repository.Kind) ([]string, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("invalid document kind %q", kind)
	}
	return s.repo.ListNames(ctx, kind)
}

// ActivateRevision rolls a document back to a stored revision and
// reloads the in-memory copy from it.
func (s *ConfigService) ActivateRevision(ctx context.Context, id int64) (*repository.Revision, error) {
	if err := s.repo.Activate(ctx, id); err != nil {
		return nil, err
	}

	rev, data, err := s.repo.GetRevision(ctx, id)
	if err != nil {
		return nil, err
	}

	switch rev.Kind {
	case repository.KindSetup:
		if err := s.restoreSetup(rev.Format, data, rev.Name); err != nil {
			return nil, fmt.Errorf("revision %d: %w", id, err)
		}
	case repository.KindMeasurements:
		if err := s.restoreMeasurements(rev.Format, data, rev.Name); err != nil {
			return nil, fmt.Errorf("revision %d: %w", id, err)
		}
	}

	s.eventBus.Publish(Event{
		Type:    EventRevisionActivated,
		Payload: map[string]interface{}{"kind": rev.Kind, "name": rev.Name, "revision": rev.ID},
	})

	return rev, nil
}

func (s *ConfigService) currentSetup() *domain.Setup {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.setup
}

// Registry exposes the unit vocabulary the service validates against.
func (s *ConfigService) Registry() *units.Registry {
	return s.reg
}
