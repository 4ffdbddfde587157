package domain

import (
	"encoding/json"
	"fmt"
	"sort"

	"scopecfg/internal/units"
)

// MeasurementSet is a measurement-preset file: named experiments, each
// carrying an output filename, channel definitions and a constants block.
type MeasurementSet struct {
	Experiments map[string]*Experiment
}

// Names returns the experiment names in sorted order.
func (m *MeasurementSet) Names() []string {
	names := make([]string, 0, len(m.Experiments))
	for name := range m.Experiments {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Get returns a named experiment.
func (m *MeasurementSet) Get(name string) (*Experiment, bool) {
	exp, ok := m.Experiments[name]
	return exp, ok
}

// MarshalJSON flattens the set back to the file's top-level map form.
func (m MeasurementSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.Experiments)
}

// UnmarshalJSON reads the top-level {name: experiment} map.
func (m *MeasurementSet) UnmarshalJSON(data []byte) error {
	if err := json.Unmarshal(data, &m.Experiments); err != nil {
		return fmt.Errorf("measurement set: %w", err)
	}
	return nil
}

// Experiment is one measurement preset. Scan-specific fields (fast axis,
// scan size, height) are present only for plane scans; touchdown presets
// carry a voltage range and step instead.
type Experiment struct {
	Fname    string              `json:"fname" yaml:"fname"`
	Comment  string              `json:"comment,omitempty" yaml:"comment,omitempty"`
	FastAxis string              `json:"fast_ax,omitempty" yaml:"fast_ax,omitempty"`
	ScanSize map[string]int      `json:"scan_size,omitempty" yaml:"scan_size,omitempty"`
	ScanRate units.Quantity      `json:"scan_rate,omitempty" yaml:"scan_rate,omitempty"`
	Height   units.Quantity      `json:"height,omitempty" yaml:"height,omitempty"`
	Center   map[string]units.Quantity `json:"center,omitempty" yaml:"center,omitempty"`
	Span     map[string]units.Quantity `json:"span,omitempty" yaml:"span,omitempty"`
	DV       units.Quantity      `json:"dV,omitempty" yaml:"dV,omitempty"`
	Range    *units.Range        `json:"range,omitempty" yaml:"range,omitempty"`
	Channels map[string]*Channel `json:"channels" yaml:"channels"`
	Constants Constants          `json:"constants,omitempty" yaml:"constants,omitempty"`
}

// ChannelNames returns the experiment's channel names in sorted order.
func (e *Experiment) ChannelNames() []string {
	names := make([]string, 0, len(e.Channels))
	for name := range e.Channels {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Channel binds a measured signal to its acquisition chain: the lock-in
// that demodulates it, the amplifier gain applied before the DAQ, and the
// physical unit the calibrated signal is reported in.
type Channel struct {
	Lockin    *LockinBinding `json:"lockin,omitempty" yaml:"lockin,omitempty"`
	Label     string         `json:"label" yaml:"label"`
	Gain      float64        `json:"gain" yaml:"gain"`
	Unit      string         `json:"unit" yaml:"unit"`
	UnitLatex string         `json:"unit_latex,omitempty" yaml:"unit_latex,omitempty"`
	RLead     units.Quantity `json:"r_lead,omitempty" yaml:"r_lead,omitempty"`
}

// LockinBinding names the lock-in a channel reads from, plus the
// parameter values to program into it before the measurement starts
// (amplitude, frequency, sensitivity, time constant...). In the file the
// binding is a flat object: {"name": "SUSC", "amplitude": "1 V", ...}.
type LockinBinding struct {
	Name     string
	Settings map[string]units.Quantity
}

// MarshalJSON re-flattens the binding into the file form.
func (b LockinBinding) MarshalJSON() ([]byte, error) {
	flat := make(map[string]interface{}, len(b.Settings)+1)
	flat["name"] = b.Name
	for param, val := range b.Settings {
		flat[param] = val
	}
	return json.Marshal(flat)
}

// UnmarshalJSON pulls out "name" and collects every other key as a
// programmable setting.
func (b *LockinBinding) UnmarshalJSON(data []byte) error {
	var flat map[string]json.RawMessage
	if err := json.Unmarshal(data, &flat); err != nil {
		return fmt.Errorf("lockin binding: %w", err)
	}

	raw, ok := flat["name"]
	if !ok {
		return fmt.Errorf("lockin binding has no name")
	}
	if err := json.Unmarshal(raw, &b.Name); err != nil {
		return fmt.Errorf("lockin binding name: %w", err)
	}

	b.Settings = make(map[string]units.Quantity, len(flat)-1)
	for param, raw := range flat {
		if param == "name" {
			continue
		}
		var q units.Quantity
		if err := json.Unmarshal(raw, &q); err != nil {
			return fmt.Errorf("lockin binding %s.%s: %w", b.Name, param, err)
		}
		b.Settings[param] = q
	}
	return nil
}

// Constants is an experiment's named-parameter block. Values are either
// quantity strings ("1 pF", "5 V/s"), bare numbers (window sizes, wait
// factors) or free-text comments, so each entry keeps its original kind.
type Constants map[string]Constant

// Constant is one constants-block value.
type Constant struct {
	Quantity *units.Quantity
	Number   *float64
	Text     string
}

// AsQuantity returns the value as a quantity; bare numbers come back
// unitless.
func (c Constant) AsQuantity() (units.Quantity, error) {
	switch {
	case c.Quantity != nil:
		return *c.Quantity, nil
	case c.Number != nil:
		return units.Q(*c.Number, ""), nil
	}
	return units.Quantity{}, fmt.Errorf("constant %q is not numeric", c.Text)
}

// AsFloat returns the bare magnitude regardless of kind.
func (c Constant) AsFloat() (float64, error) {
	q, err := c.AsQuantity()
	if err != nil {
		return 0, err
	}
	return q.Magnitude, nil
}

// AsInt returns the value as an integer count.
func (c Constant) AsInt() (int, error) {
	f, err := c.AsFloat()
	if err != nil {
		return 0, err
	}
	return int(f), nil
}

// MarshalJSON writes the constant back in its original kind.
func (c Constant) MarshalJSON() ([]byte, error) {
	switch {
	case c.Quantity != nil:
		return json.Marshal(*c.Quantity)
	case c.Number != nil:
		return json.Marshal(*c.Number)
	}
	return json.Marshal(c.Text)
}

// UnmarshalJSON keeps numbers as numbers, parses quantity-shaped strings
// as quantities, and falls back to free text (comments).
func (c *Constant) UnmarshalJSON(data []byte) error {
	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		c.Number = &n
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("constant must be a number or string: %s", data)
	}
	if q, err := units.Parse(s); err == nil && q.Unit != "" {
		c.Quantity = &q
		return nil
	}
	c.Text = s
	return nil
}

// YAML hooks mirror the JSON ones so both codecs see the same shapes.

func (m MeasurementSet) MarshalYAML() (interface{}, error) {
	return m.Experiments, nil
}

func (m *MeasurementSet) UnmarshalYAML(unmarshal func(interface{}) error) error {
	return unmarshal(&m.Experiments)
}

func (b LockinBinding) MarshalYAML() (interface{}, error) {
	flat := make(map[string]interface{}, len(b.Settings)+1)
	flat["name"] = b.Name
	for param, val := range b.Settings {
		flat[param] = val
	}
	return flat, nil
}

func (b *LockinBinding) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var flat map[string]interface{}
	if err := unmarshal(&flat); err != nil {
		return fmt.Errorf("lockin binding: %w", err)
	}

	name, ok := flat["name"].(string)
	if !ok {
		return fmt.Errorf("lockin binding has no name")
	}
	b.Name = name

	b.Settings = make(map[string]units.Quantity, len(flat)-1)
	for param, raw := range flat {
		if param == "name" {
			continue
		}
		switch v := raw.(type) {
		case string:
			q, err := units.Parse(v)
			if err != nil {
				return fmt.Errorf("lockin binding %s.%s: %w", b.Name, param, err)
			}
			b.Settings[param] = q
		case int:
			b.Settings[param] = units.Q(float64(v), "")
		case float64:
			b.Settings[param] = units.Q(v, "")
		default:
			return fmt.Errorf("lockin binding %s.%s: unsupported value %v", b.Name, param, raw)
		}
	}
	return nil
}

func (c Constant) MarshalYAML() (interface{}, error) {
	switch {
	case c.Quantity != nil:
		return *c.Quantity, nil
	case c.Number != nil:
		return *c.Number, nil
	}
	return c.Text, nil
}

func (c *Constant) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var n float64
	if err := unmarshal(&n); err == nil {
		c.Number = &n
		return nil
	}

	var s string
	if err := unmarshal(&s); err != nil {
		return fmt.Errorf("constant must be a number or string")
	}
	if q, err := units.Parse(s); err == nil && q.Unit != "" {
		c.Quantity = &q
		return nil
	}
	c.Text = s
	return nil
}
