package codec

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"scopecfg/internal/domain"
)

// SetupImporter parses a microscope setup document.
type SetupImporter interface {
	ParseSetup(r io.Reader) (*domain.Setup, error)
	Format() string
}

// SetupExporter writes a microscope setup document.
type SetupExporter interface {
	ExportSetup(setup *domain.Setup, w io.Writer) error
	Format() string
}

// MeasurementImporter parses a measurement-preset document.
type MeasurementImporter interface {
	ParseMeasurements(r io.Reader) (*domain.MeasurementSet, error)
	Format() string
}

// MeasurementExporter writes a measurement-preset document.
type MeasurementExporter interface {
	ExportMeasurements(set *domain.MeasurementSet, w io.Writer) error
	Format() string
}

// Codec bundles import and export for one format.
type Codec interface {
	SetupImporter
	SetupExporter
	MeasurementImporter
	MeasurementExporter
}

// ForFormat returns the codec for a format identifier ("json", "yaml").
func ForFormat(format string) (Codec, error) {
	switch strings.ToLower(format) {
	case "json":
		return NewJSONCodec(), nil
	case "yaml", "yml":
		return NewYAMLCodec(), nil
	}
	return nil, fmt.Errorf("unsupported format %q", format)
}

// ForPath picks a codec from a file extension. Configuration files are
// JSON in the field; YAML is accepted for hand-written documents.
func ForPath(path string) (Codec, error) {
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	if ext == "" {
		return nil, fmt.Errorf("cannot infer format: %q has no extension", path)
	}
	return ForFormat(ext)
}
