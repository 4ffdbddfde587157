// Package loader reads microscope configuration files from disk,
// picking the codec from the file extension and validating the result
// against the unit vocabulary.
package loader

import (
	"fmt"
	"os"

	"scopecfg/internal/codec"
	"scopecfg/internal/domain"
	"scopecfg/internal/units"
)

// Loader loads and validates configuration files.
type Loader struct {
	reg    *units.Registry
	strict bool
}

// New creates a loader. In strict mode a file that parses but fails
// validation is rejected; otherwise the report is returned alongside
// the document for the caller to surface.
func New(reg *units.Registry, strict bool) *Loader {
	return &Loader{reg: reg, strict: strict}
}

// LoadSetup loads a microscope setup file and validates it.
func (l *Loader) LoadSetup(path string) (*domain.Setup, *domain.Report, error) {
	c, err := codec.ForPath(path)
	if err != nil {
		return nil, nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open setup file: %w", err)
	}
	defer f.Close()

	setup, err := c.ParseSetup(f)
	if err != nil {
		return nil, nil, fmt.Errorf("load %s: %w", path, err)
	}

	report := domain.ValidateSetup(setup, l.reg)
	if l.strict && !report.OK() {
		return nil, report, fmt.Errorf("load %s: %w", path, report.Error())
	}
	return setup, report, nil
}

// LoadMeasurements loads a measurement-preset file and validates it.
// When setup is non-nil, cross-references are resolved against it.
func (l *Loader) LoadMeasurements(path string, setup *domain.Setup) (*domain.MeasurementSet, *domain.Report, error) {
	c, err := codec.ForPath(path)
	if err != nil {
		return nil, nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open measurement file: %w", err)
	}
	defer f.Close()

	set, err := c.ParseMeasurements(f)
	if err != nil {
		return nil, nil, fmt.Errorf("load %s: %w", path, err)
	}

	report := domain.ValidateMeasurements(set, setup, l.reg)
	if l.strict && !report.OK() {
		return nil, report, fmt.Errorf("load %s: %w", path, report.Error())
	}
	return set, report, nil
}
