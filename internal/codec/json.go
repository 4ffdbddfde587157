package codec

import (
	"encoding/json"
	"fmt"
	"io"

	"scopecfg/internal/domain"
)

// JSONCodec handles JSON import/export, the native format of the
// microscope configuration files.
type JSONCodec struct{}

// NewJSONCodec creates a new JSON codec
func NewJSONCodec() *JSONCodec {
	return &JSONCodec{}
}

// Format returns the codec format identifier
func (c *JSONCodec) Format() string {
	return "json"
}

// ParseSetup imports a microscope setup from JSON
func (c *JSONCodec) ParseSetup(r io.Reader) (*domain.Setup, error) {
	var setup domain.Setup
	decoder := json.NewDecoder(r)
	if err := decoder.Decode(&setup); err != nil {
		return nil, fmt.Errorf("failed to parse setup JSON: %w", err)
	}
	return &setup, nil
}

// ExportSetup exports a microscope setup to JSON
func (c *JSONCodec) ExportSetup(setup *domain.Setup, w io.Writer) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")

	if err := encoder.Encode(setup); err != nil {
		return fmt.Errorf("failed to encode setup JSON: %w", err)
	}
	return nil
}

// ParseMeasurements imports a measurement-preset set from JSON
func (c *JSONCodec) ParseMeasurements(r io.Reader) (*domain.MeasurementSet, error) {
	var set domain.MeasurementSet
	decoder := json.NewDecoder(r)
	if err := decoder.Decode(&set); err != nil {
		return nil, fmt.Errorf("failed to parse measurement JSON: %w", err)
	}
	return &set, nil
}

// ExportMeasurements exports a measurement-preset set to JSON
func (c *JSONCodec) ExportMeasurements(set *domain.MeasurementSet, w io.Writer) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")

	if err := encoder.Encode(set); err != nil {
		return fmt.Errorf("failed to encode measurement JSON: %w", err)
	}
	return nil
}
