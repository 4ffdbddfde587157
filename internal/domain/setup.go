package domain

import (
	"sort"
	"strings"
)

// Setup is the microscope setup file: station metadata plus every wired
// instrument. JSON key names match the configuration files the control
// software consumes.
type Setup struct {
	Info        Info        `json:"info" yaml:"info"`
	Instruments Instruments `json:"instruments" yaml:"instruments"`
	SQUID       SQUID       `json:"SQUID" yaml:"SQUID"`
}

// Info is the station metadata block.
type Info struct {
	Name            string `json:"name" yaml:"name"`
	TimestampFormat string `json:"timestamp_format" yaml:"timestamp_format"`
	Comment         string `json:"comment,omitempty" yaml:"comment,omitempty"`
}

// Instruments enumerates the wired hardware. DAQ, scanner and positioner
// are singular; lock-ins and temperature controllers are named maps.
type Instruments struct {
	DAQ                    DAQ                              `json:"daq" yaml:"daq"`
	Scanner                Scanner                          `json:"scanner" yaml:"scanner"`
	Positioner             Positioner                       `json:"atto" yaml:"atto"`
	Lockins                map[string]Lockin                `json:"lockins" yaml:"lockins"`
	TemperatureControllers map[string]TemperatureController `json:"temperature_controllers,omitempty" yaml:"temperature_controllers,omitempty"`
	DelayGenerator         *GPIBInstrument                  `json:"delay_generator,omitempty" yaml:"delay_generator,omitempty"`
	FunctionGenerator      *GPIBInstrument                  `json:"function_generator,omitempty" yaml:"function_generator,omitempty"`
}

// LockinNames returns the configured lock-in names in sorted order.
func (i Instruments) LockinNames() []string {
	names := make([]string, 0, len(i.Lockins))
	for name := range i.Lockins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// HasLockin reports whether a lock-in with the given name is configured.
func (i Instruments) HasLockin(name string) bool {
	_, ok := i.Lockins[name]
	return ok
}

// InstrumentNames lists every addressable instrument entry for API
// listing: fixed singletons plus the named maps.
func (s *Setup) InstrumentNames() []string {
	names := []string{"daq", "scanner", "atto"}
	for _, name := range s.Instruments.LockinNames() {
		names = append(names, "lockins/"+name)
	}
	tcs := make([]string, 0, len(s.Instruments.TemperatureControllers))
	for name := range s.Instruments.TemperatureControllers {
		tcs = append(tcs, "temperature_controllers/"+name)
	}
	sort.Strings(tcs)
	names = append(names, tcs...)
	if s.Instruments.DelayGenerator != nil {
		names = append(names, "delay_generator")
	}
	if s.Instruments.FunctionGenerator != nil {
		names = append(names, "function_generator")
	}
	return names
}

// Instrument resolves an instrument entry by its listing name.
func (s *Setup) Instrument(name string) (interface{}, bool) {
	switch name {
	case "daq":
		return s.Instruments.DAQ, true
	case "scanner":
		return s.Instruments.Scanner, true
	case "atto":
		return s.Instruments.Positioner, true
	case "delay_generator":
		if s.Instruments.DelayGenerator != nil {
			return *s.Instruments.DelayGenerator, true
		}
		return nil, false
	case "function_generator":
		if s.Instruments.FunctionGenerator != nil {
			return *s.Instruments.FunctionGenerator, true
		}
		return nil, false
	}

	if rest, found := strings.CutPrefix(name, "lockins/"); found {
		li, ok := s.Instruments.Lockins[rest]
		return li, ok
	}
	if rest, found := strings.CutPrefix(name, "temperature_controllers/"); found {
		tc, ok := s.Instruments.TemperatureControllers[rest]
		return tc, ok
	}
	return nil, false
}
