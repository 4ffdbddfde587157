package domain

import (
	"fmt"
	"sort"

	"scopecfg/internal/units"
)

// Problem is one validation finding, addressed by a slash path into the
// configuration document.
type Problem struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

// Report collects validation findings for one document.
type Report struct {
	Problems []Problem `json:"problems"`
}

// OK reports whether validation found no problems.
func (r *Report) OK() bool {
	return len(r.Problems) == 0
}

// Error summarizes the report as an error, or nil when clean.
func (r *Report) Error() error {
	if r.OK() {
		return nil
	}
	first := r.Problems[0]
	if len(r.Problems) == 1 {
		return fmt.Errorf("validation failed: %s: %s", first.Path, first.Message)
	}
	return fmt.Errorf("validation failed with %d problems, first: %s: %s",
		len(r.Problems), first.Path, first.Message)
}

func (r *Report) addf(path, format string, args ...interface{}) {
	r.Problems = append(r.Problems, Problem{Path: path, Message: fmt.Sprintf(format, args...)})
}

// checkQuantity flags symbols missing from the vocabulary and, when dim
// is non-empty, symbols of the wrong dimension.
func (r *Report) checkQuantity(reg *units.Registry, path string, q units.Quantity, dim units.Dimension) {
	got, err := reg.DimensionOf(q.Unit)
	if err != nil {
		r.addf(path, "unknown unit symbol %q", q.Unit)
		return
	}
	if dim != "" && got != dim {
		r.addf(path, "unit %q measures %s, want %s", q.Unit, got, dim)
	}
}

// ValidateSetup checks a microscope setup against the unit vocabulary
// and the structural invariants of the configuration format: every
// quantity symbol known, every [low, high] range ordered, no duplicate
// channel indices within an instrument, regime keys limited to RT/LT.
func ValidateSetup(setup *Setup, reg *units.Registry) *Report {
	rep := &Report{}

	if setup.Info.Name == "" {
		rep.addf("info/name", "station name is required")
	}
	if setup.Info.TimestampFormat == "" {
		rep.addf("info/timestamp_format", "timestamp format is required")
	}

	validateDAQ(rep, reg, &setup.Instruments.DAQ)
	validateScanner(rep, reg, &setup.Instruments.Scanner)
	validatePositioner(rep, reg, &setup.Instruments.Positioner)

	for _, name := range setup.Instruments.LockinNames() {
		li := setup.Instruments.Lockins[name]
		if li.Address == "" {
			rep.addf("instruments/lockins/"+name+"/address", "connection address is required")
		}
	}
	for name, tc := range setup.Instruments.TemperatureControllers {
		if tc.Address == "" {
			rep.addf("instruments/temperature_controllers/"+name+"/address", "connection address is required")
		}
	}

	if setup.SQUID.Name == "" {
		rep.addf("SQUID/name", "sensor name is required")
	}
	if !setup.SQUID.ModulationWidth.IsZero() {
		rep.checkQuantity(reg, "SQUID/modulation_width", setup.SQUID.ModulationWidth, "")
	}

	return rep
}

func validateDAQ(rep *Report, reg *units.Registry, daq *DAQ) {
	if daq.Name == "" {
		rep.addf("instruments/daq/name", "device name is required")
	}
	rep.checkQuantity(reg, "instruments/daq/rate", daq.Rate, units.Frequency)

	checkIndexMap(rep, "instruments/daq/channels/analog_inputs", daq.Channels.AnalogInputs)
	checkIndexMap(rep, "instruments/daq/channels/analog_outputs", daq.Channels.AnalogOutputs)
}

// checkIndexMap flags duplicate hardware indices within one channel map.
func checkIndexMap(rep *Report, path string, m map[string]int) {
	byIndex := make(map[int][]string, len(m))
	for name, idx := range m {
		byIndex[idx] = append(byIndex[idx], name)
		if idx < 0 {
			rep.addf(path+"/"+name, "channel index %d is negative", idx)
		}
	}
	for idx, names := range byIndex {
		if len(names) > 1 {
			sort.Strings(names)
			rep.addf(path, "channels %v share index %d", names, idx)
		}
	}
}

func validateScanner(rep *Report, reg *units.Registry, sc *Scanner) {
	if sc.Name == "" {
		rep.addf("instruments/scanner/name", "instrument name is required")
	}

	for _, axis := range []string{"x", "y", "z"} {
		c, _ := sc.Constants.Axis(axis)
		if c.IsZero() {
			rep.addf("instruments/scanner/constants/"+axis, "calibration constant is required")
			continue
		}
		rep.checkQuantity(reg, "instruments/scanner/constants/"+axis, c, "")
	}

	if sc.VoltageLimits.Unit != "" && !reg.Knows(sc.VoltageLimits.Unit) {
		rep.addf("instruments/scanner/voltage_limits/unit", "unknown unit symbol %q", sc.VoltageLimits.Unit)
	}
	for _, regime := range Regimes {
		ranges := sc.VoltageLimits.ForRegime(regime)
		base := fmt.Sprintf("instruments/scanner/voltage_limits/%s", regime)
		if ranges == nil {
			rep.addf(base, "limits for regime %s are required", regime)
			continue
		}
		for _, axis := range []string{"x", "y", "z"} {
			lim, ok := ranges[axis]
			path := base + "/" + axis
			if !ok {
				rep.addf(path, "limit range for axis %s is required", axis)
				continue
			}
			rep.checkQuantity(reg, path, lim.Low, units.Voltage)
			rep.checkQuantity(reg, path, lim.High, units.Voltage)
			if !lim.Valid() {
				rep.addf(path, "range [%s, %s] is not ordered low <= high", lim.Low, lim.High)
			}
		}
	}

	for regime, v := range sc.VoltageRetract {
		path := fmt.Sprintf("instruments/scanner/voltage_retract/%s", regime)
		if !regime.Valid() {
			rep.addf(path, "unknown temperature regime %q", regime)
			continue
		}
		rep.checkQuantity(reg, path, v, units.Voltage)
		if ranges := sc.VoltageLimits.ForRegime(regime); ranges != nil {
			if zlim, ok := ranges["z"]; ok && zlim.Valid() {
				if mag, err := reg.Magnitude(v, zlim.Low.Unit); err == nil && !zlim.Contains(mag) {
					rep.addf(path, "retract voltage %s is outside z limits [%s, %s]",
						v, zlim.Low, zlim.High)
				}
			}
		}
	}

	if sc.Speed.Value.IsZero() {
		rep.addf("instruments/scanner/speed/value", "default ramp speed is required")
	} else {
		rep.checkQuantity(reg, "instruments/scanner/speed/value", sc.Speed.Value, "voltage/time")
	}
}

func validatePositioner(rep *Report, reg *units.Registry, pos *Positioner) {
	if pos.Name == "" {
		rep.addf("instruments/atto/name", "instrument name is required")
	}
	if pos.Address == "" {
		rep.addf("instruments/atto/address", "connection address is required")
	}

	checkIndexMap(rep, "instruments/atto/axes", pos.Axes)

	for regime, byAxis := range pos.VoltageLimits {
		base := fmt.Sprintf("instruments/atto/voltage_limits/%s", regime)
		if !regime.Valid() {
			rep.addf(base, "unknown temperature regime %q", regime)
			continue
		}
		for axis, v := range byAxis {
			path := base + "/" + axis
			if _, ok := pos.Axes[axis]; !ok {
				rep.addf(path, "limit references undeclared axis %q", axis)
			}
			rep.checkQuantity(reg, path, v, units.Voltage)
			if v.Magnitude < 0 {
				rep.addf(path, "drive voltage limit must be non-negative, got %s", v)
			}
		}
	}

	for axis, f := range pos.DefaultFrequency {
		path := "instruments/atto/default_frequency/" + axis
		if _, ok := pos.Axes[axis]; !ok {
			rep.addf(path, "frequency references undeclared axis %q", axis)
		}
		rep.checkQuantity(reg, path, f, units.Frequency)
	}
}

// ValidateMeasurements checks a measurement-preset set. When setup is
// non-nil, channel lock-in bindings and DAQ input names are resolved
// against it.
func ValidateMeasurements(set *MeasurementSet, setup *Setup, reg *units.Registry) *Report {
	rep := &Report{}

	for _, name := range set.Names() {
		exp := set.Experiments[name]
		validateExperiment(rep, reg, setup, name, exp)
	}
	return rep
}

func validateExperiment(rep *Report, reg *units.Registry, setup *Setup, name string, exp *Experiment) {
	base := name
	if exp.Fname == "" {
		rep.addf(base+"/fname", "output file name is required")
	}

	if exp.FastAxis != "" && exp.FastAxis != "x" && exp.FastAxis != "y" {
		rep.addf(base+"/fast_ax", "fast axis must be x or y, got %q", exp.FastAxis)
	}
	for axis, n := range exp.ScanSize {
		if n <= 0 {
			rep.addf(fmt.Sprintf("%s/scan_size/%s", base, axis), "pixel count must be positive, got %d", n)
		}
	}
	if !exp.ScanRate.IsZero() {
		rep.checkQuantity(reg, base+"/scan_rate", exp.ScanRate, "")
	}
	if !exp.Height.IsZero() {
		rep.checkQuantity(reg, base+"/height", exp.Height, units.Voltage)
	}
	if !exp.DV.IsZero() {
		rep.checkQuantity(reg, base+"/dV", exp.DV, units.Voltage)
	}
	for axis, q := range exp.Center {
		rep.checkQuantity(reg, fmt.Sprintf("%s/center/%s", base, axis), q, units.Voltage)
	}
	for axis, q := range exp.Span {
		rep.checkQuantity(reg, fmt.Sprintf("%s/span/%s", base, axis), q, units.Voltage)
		if q.Magnitude < 0 {
			rep.addf(fmt.Sprintf("%s/span/%s", base, axis), "span must be non-negative, got %s", q)
		}
	}
	if exp.Range != nil {
		rep.checkQuantity(reg, base+"/range", exp.Range.Low, units.Voltage)
		rep.checkQuantity(reg, base+"/range", exp.Range.High, units.Voltage)
		if !exp.Range.Valid() {
			rep.addf(base+"/range", "range [%s, %s] is not ordered low <= high",
				exp.Range.Low, exp.Range.High)
		}
	}

	if len(exp.Channels) == 0 {
		rep.addf(base+"/channels", "at least one channel is required")
	}
	for _, ch := range exp.ChannelNames() {
		validateChannel(rep, reg, setup, fmt.Sprintf("%s/channels/%s", base, ch), ch, exp.Channels[ch])
	}

	for key, c := range exp.Constants {
		if c.Quantity != nil {
			rep.checkQuantity(reg, fmt.Sprintf("%s/constants/%s", base, key), *c.Quantity, "")
		}
	}
}

func validateChannel(rep *Report, reg *units.Registry, setup *Setup, base, name string, ch *Channel) {
	if ch == nil {
		rep.addf(base, "channel definition is empty")
		return
	}
	if ch.Gain == 0 {
		rep.addf(base+"/gain", "gain must be non-zero")
	}
	if ch.Unit == "" {
		rep.addf(base+"/unit", "reporting unit is required")
	} else if !reg.Knows(ch.Unit) {
		rep.addf(base+"/unit", "unknown unit symbol %q", ch.Unit)
	}
	if !ch.RLead.IsZero() {
		rep.checkQuantity(reg, base+"/r_lead", ch.RLead, units.Resistance)
	}

	if ch.Lockin != nil {
		if ch.Lockin.Name == "" {
			rep.addf(base+"/lockin", "lockin binding has no name")
		} else if setup != nil && !setup.Instruments.HasLockin(ch.Lockin.Name) {
			rep.addf(base+"/lockin", "lockin %q is not configured in the setup", ch.Lockin.Name)
		}
		for param, val := range ch.Lockin.Settings {
			rep.checkQuantity(reg, fmt.Sprintf("%s/lockin/%s", base, param), val, "")
		}
	}

	if setup != nil {
		if _, ok := setup.Instruments.DAQ.Channels.InputIndex(name); !ok {
			rep.addf(base, "no DAQ analog input named %q", name)
		}
	}
}
