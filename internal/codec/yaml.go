package codec

import (
	"fmt"
	"io"

	"scopecfg/internal/domain"

	"gopkg.in/yaml.v3"
)

// YAMLCodec handles YAML import/export for hand-written configuration.
type YAMLCodec struct{}

// NewYAMLCodec creates a new YAML codec
func NewYAMLCodec() *YAMLCodec {
	return &YAMLCodec{}
}

// Format returns the codec format identifier
func (c *YAMLCodec) Format() string {
	return "yaml"
}

// ParseSetup imports a microscope setup from YAML
func (c *YAMLCodec) ParseSetup(r io.Reader) (*domain.Setup, error) {
	var setup domain.Setup
	decoder := yaml.NewDecoder(r)
	if err := decoder.Decode(&setup); err != nil {
		return nil, fmt.Errorf("failed to parse setup YAML: %w", err)
	}
	return &setup, nil
}

// ExportSetup exports a microscope setup to YAML
func (c *YAMLCodec) ExportSetup(setup *domain.Setup, w io.Writer) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	defer encoder.Close()

	if err := encoder.Encode(setup); err != nil {
		return fmt.Errorf("failed to encode setup YAML: %w", err)
	}
	return nil
}

// ParseMeasurements imports a measurement-preset set from YAML
func (c *YAMLCodec) ParseMeasurements(r io.Reader) (*domain.MeasurementSet, error) {
	var set domain.MeasurementSet
	decoder := yaml.NewDecoder(r)
	if err := decoder.Decode(&set); err != nil {
		return nil, fmt.Errorf("failed to parse measurement YAML: %w", err)
	}
	return &set, nil
}

// ExportMeasurements exports a measurement-preset set to YAML
func (c *YAMLCodec) ExportMeasurements(set *domain.MeasurementSet, w io.Writer) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	defer encoder.Close()

	if err := encoder.Encode(set); err != nil {
		return fmt.Errorf("failed to encode measurement YAML: %w", err)
	}
	return nil
}
