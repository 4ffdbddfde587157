// Package config provides server configuration for scopecfg.
//
// The config file points at the configuration documents on disk and the
// database holding their revision history; the documents themselves are
// the instrument-facing JSON files, not this file.
//
// Config file locations (priority order):
//  1. $SCOPECFG_CONFIG
//  2. ./scopecfg.yaml
//  3. ~/.config/scopecfg/config.yaml
//  4. /etc/scopecfg/config.yaml
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"scopecfg/internal/domain"
	"scopecfg/internal/units"
)

// Config is the server configuration.
type Config struct {
	Version    int             `yaml:"version"`
	ListenAddr string          `yaml:"listen_addr"`
	Database   DatabaseConfig  `yaml:"database"`
	Documents  DocumentsConfig `yaml:"documents"`
	Regime     string          `yaml:"regime"`
	Watch      bool            `yaml:"watch"`
	Charts     ChartsConfig    `yaml:"charts"`
	Units      []UnitConfig    `yaml:"units,omitempty"`
}

// DatabaseConfig locates the revision store.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// DocumentsConfig points at the configuration files to load and watch.
// Names default to the file base name without extension.
type DocumentsConfig struct {
	SetupFile        string `yaml:"setup_file,omitempty"`
	SetupName        string `yaml:"setup_name,omitempty"`
	MeasurementsFile string `yaml:"measurements_file,omitempty"`
	MeasurementsName string `yaml:"measurements_name,omitempty"`
}

// ChartsConfig locates the rendered preview output.
type ChartsConfig struct {
	Dir string `yaml:"dir"`
}

// UnitConfig extends the unit vocabulary with a station-specific symbol,
// either an alias ("volts: 1 V") or a derived constant.
type UnitConfig struct {
	Symbol string `yaml:"symbol"`
	Value  string `yaml:"value"`
}

// Load finds and loads the config file, or returns defaults if none found
func Load() (*Config, string, error) {
	path := FindConfigPath()

	if path == "" {
		return DefaultConfig(), "", nil
	}

	return LoadFromPath(path)
}

// LoadFromPath loads config from a specific path
func LoadFromPath(path string) (*Config, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, path, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, path, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyDefaults()

	if _, err := domain.ParseRegime(cfg.Regime); err != nil {
		return nil, path, fmt.Errorf("config regime: %w", err)
	}

	return &cfg, path, nil
}

// Save writes config to the specified path
func (c *Config) Save(path string) error {
	if err := EnsureConfigDir(path); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0644)
}

// DefaultConfig returns sensible defaults for a new installation
func DefaultConfig() *Config {
	return &Config{
		Version:    1,
		ListenAddr: ":3000",
		Database:   DatabaseConfig{Path: "./scopecfg.db"},
		Regime:     string(domain.RegimeRT),
		Charts:     ChartsConfig{Dir: "./charts"},
	}
}

// applyDefaults fills in missing values with defaults
func (c *Config) applyDefaults() {
	if c.Version == 0 {
		c.Version = 1
	}
	if c.ListenAddr == "" {
		c.ListenAddr = ":3000"
	}
	if c.Database.Path == "" {
		c.Database.Path = "./scopecfg.db"
	}
	if c.Regime == "" {
		c.Regime = string(domain.RegimeRT)
	}
	if c.Charts.Dir == "" {
		c.Charts.Dir = "./charts"
	}
	if c.Documents.SetupName == "" && c.Documents.SetupFile != "" {
		c.Documents.SetupName = documentName(c.Documents.SetupFile)
	}
	if c.Documents.MeasurementsName == "" && c.Documents.MeasurementsFile != "" {
		c.Documents.MeasurementsName = documentName(c.Documents.MeasurementsFile)
	}
}

// DefaultRegime returns the configured startup regime.
func (c *Config) DefaultRegime() domain.Regime {
	r, err := domain.ParseRegime(c.Regime)
	if err != nil {
		return domain.RegimeRT
	}
	return r
}

// Registry builds the unit vocabulary: the built-in symbols plus any
// station-specific definitions from the config file.
func (c *Config) Registry() (*units.Registry, error) {
	reg := units.Default()
	for _, u := range c.Units {
		if err := reg.Define(units.Definition{Symbol: u.Symbol, Value: u.Value}); err != nil {
			return nil, fmt.Errorf("unit %q: %w", u.Symbol, err)
		}
	}
	return reg, nil
}

func documentName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
