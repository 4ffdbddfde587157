package domain

import (
	"sort"

	"scopecfg/internal/units"
)

// DAQ describes the data acquisition card: channel index maps and the
// aggregate sampling rate, which is divided among active input channels
// during a measurement.
type DAQ struct {
	Name     string         `json:"name" yaml:"name"`
	Model    string         `json:"model,omitempty" yaml:"model,omitempty"`
	Rate     units.Quantity `json:"rate" yaml:"rate"`
	Channels DAQChannels    `json:"channels" yaml:"channels"`
}

// DAQChannels maps channel names to hardware indices, split by direction.
type DAQChannels struct {
	AnalogInputs  map[string]int `json:"analog_inputs" yaml:"analog_inputs"`
	AnalogOutputs map[string]int `json:"analog_outputs" yaml:"analog_outputs"`
}

// InputIndex returns the analog input index for a named channel.
func (c DAQChannels) InputIndex(name string) (int, bool) {
	idx, ok := c.AnalogInputs[name]
	return idx, ok
}

// Scanner describes the piezo bender assembly that positions the sensor:
// per-axis voltage-to-displacement calibration, per-regime voltage limits
// and retraction voltages, and the default ramp speed.
type Scanner struct {
	Name           string                           `json:"name" yaml:"name"`
	Constants      ScannerConstants                 `json:"constants" yaml:"constants"`
	VoltageLimits  ScannerLimits                    `json:"voltage_limits" yaml:"voltage_limits"`
	VoltageRetract map[Regime]units.Quantity        `json:"voltage_retract" yaml:"voltage_retract"`
	Speed          SpeedSpec                        `json:"speed" yaml:"speed"`
	Plane          map[string]float64               `json:"plane,omitempty" yaml:"plane,omitempty"`
	CantileverCal  units.Quantity                   `json:"cantilever_calibration,omitempty" yaml:"cantilever_calibration,omitempty"`
}

// ScannerConstants holds the per-axis displacement calibration, e.g.
// "2 um/V" at low temperature.
type ScannerConstants struct {
	Comment string         `json:"comment,omitempty" yaml:"comment,omitempty"`
	X       units.Quantity `json:"x" yaml:"x"`
	Y       units.Quantity `json:"y" yaml:"y"`
	Z       units.Quantity `json:"z" yaml:"z"`
}

// Axis returns the calibration constant for a named axis.
func (c ScannerConstants) Axis(axis string) (units.Quantity, bool) {
	switch axis {
	case "x":
		return c.X, true
	case "y":
		return c.Y, true
	case "z":
		return c.Z, true
	}
	return units.Quantity{}, false
}

// ScannerLimits keys [low, high] voltage ranges by regime then axis.
type ScannerLimits struct {
	Unit    string                 `json:"unit" yaml:"unit"`
	Comment string                 `json:"comment,omitempty" yaml:"comment,omitempty"`
	RT      map[string]units.Range `json:"RT" yaml:"RT"`
	LT      map[string]units.Range `json:"LT" yaml:"LT"`
}

// ForRegime returns the axis range map for the given regime.
func (l ScannerLimits) ForRegime(r Regime) map[string]units.Range {
	switch r {
	case RegimeRT:
		return l.RT
	case RegimeLT:
		return l.LT
	}
	return nil
}

// SpeedSpec is the default scanner ramp speed with an operator comment.
type SpeedSpec struct {
	Value   units.Quantity `json:"value" yaml:"value"`
	Comment string         `json:"comment,omitempty" yaml:"comment,omitempty"`
}

// Positioner describes the coarse stepper stack (e.g. an Attocube ANC300):
// serial connection parameters and per-regime, per-axis drive limits.
type Positioner struct {
	Name             string                              `json:"name" yaml:"name"`
	Model            string                              `json:"model,omitempty" yaml:"model,omitempty"`
	Address          string                              `json:"address" yaml:"address"`
	Timeout          units.Quantity                      `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	Terminator       string                              `json:"terminator,omitempty" yaml:"terminator,omitempty"`
	BaudRate         int                                 `json:"baud_rate,omitempty" yaml:"baud_rate,omitempty"`
	Axes             map[string]int                      `json:"axes" yaml:"axes"`
	VoltageLimits    map[Regime]map[string]units.Quantity `json:"voltage_limits" yaml:"voltage_limits"`
	DefaultFrequency map[string]units.Quantity           `json:"default_frequency,omitempty" yaml:"default_frequency,omitempty"`
}

// AxisNames returns the positioner axes in sorted order.
func (p Positioner) AxisNames() []string {
	names := make([]string, 0, len(p.Axes))
	for name := range p.Axes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Lockin is a lock-in amplifier entry: model plus VISA connection string.
type Lockin struct {
	Model   string `json:"model,omitempty" yaml:"model,omitempty"`
	Address string `json:"address" yaml:"address"`
}

// TemperatureController is a cryostat temperature monitor entry.
type TemperatureController struct {
	Model   string `json:"model,omitempty" yaml:"model,omitempty"`
	Address string `json:"address" yaml:"address"`
}

// GPIBInstrument is a generic addressed instrument (delay generator,
// function generator) carried as named metadata.
type GPIBInstrument struct {
	Model   string `json:"model,omitempty" yaml:"model,omitempty"`
	Address string `json:"address" yaml:"address"`
}

// SQUID records the sensor metadata block. The modulation width converts
// feedback voltage into flux and feeds the MAG channel prefactor.
type SQUID struct {
	Name            string         `json:"name" yaml:"name"`
	Type            string         `json:"type" yaml:"type"`
	Description     string         `json:"description,omitempty" yaml:"description,omitempty"`
	ModulationWidth units.Quantity `json:"modulation_width" yaml:"modulation_width"`
	FieldCoilTurns  int            `json:"field_coil_turns,omitempty" yaml:"field_coil_turns,omitempty"`
}
