package service

import (
	"fmt"
	"strings"

	"scopecfg/internal/domain"
)

// Prefactor converts a raw DAQ voltage into the channel's physical
// unit: multiply the measured voltage by Value to get a reading in Unit.
type Prefactor struct {
	Value float64 `json:"value"`
	Unit  string  `json:"unit"`
}

// Prefactors computes the conversion factor for every channel of a
// preset from the setup's sensor calibrations and the preset's lock-in
// programming. The magnetometry channel scales by the SQUID modulation
// width, susceptibility additionally by the field-coil drive current,
// and capacitance by the cantilever calibration. Lock-in expand (10 V
// full scale over the sensitivity) is folded in, and every factor is
// divided by the channel's amplifier gain.
func (s *ConfigService) Prefactors(expName string) (map[string]Prefactor, error) {
	setup, err := s.Setup()
	if err != nil {
		return nil, err
	}
	exp, err := s.Experiment(expName)
	if err != nil {
		return nil, err
	}

	out := make(map[string]Prefactor, len(exp.Channels))
	for _, name := range exp.ChannelNames() {
		ch := exp.Channels[name]
		pf, err := s.channelPrefactor(setup, name, ch)
		if err != nil {
			return nil, fmt.Errorf("channel %s: %w", name, err)
		}
		out[name] = pf
	}
	return out, nil
}

func (s *ConfigService) channelPrefactor(setup *domain.Setup, name string, ch *domain.Channel) (Prefactor, error) {
	if ch.Gain == 0 {
		return Prefactor{}, fmt.Errorf("gain is zero")
	}

	var value float64
	switch kind := strings.ToUpper(name); {
	case kind == "MAG":
		mw, err := s.reg.Magnitude(setup.SQUID.ModulationWidth, "V/Phi0")
		if err != nil {
			return Prefactor{}, fmt.Errorf("modulation width: %w", err)
		}
		value = 1 / mw

	case strings.HasPrefix(kind, "SUSC"):
		mw, err := s.reg.Magnitude(setup.SQUID.ModulationWidth, "V/Phi0")
		if err != nil {
			return Prefactor{}, fmt.Errorf("modulation width: %w", err)
		}
		rLead, err := s.reg.Magnitude(ch.RLead, "Ohm")
		if err != nil {
			return Prefactor{}, fmt.Errorf("r_lead: %w", err)
		}
		amp, err := s.lockinSetting(ch, "amplitude", "V")
		if err != nil {
			return Prefactor{}, err
		}
		expand, err := s.lockinExpand(ch)
		if err != nil {
			return Prefactor{}, err
		}
		value = (rLead / amp) / (mw * expand)

	case kind == "CAP":
		cal, err := s.reg.Magnitude(setup.Instruments.Scanner.CantileverCal, "fF/V")
		if err != nil {
			return Prefactor{}, fmt.Errorf("cantilever calibration: %w", err)
		}
		expand, err := s.lockinExpand(ch)
		if err != nil {
			return Prefactor{}, err
		}
		value = cal / expand

	default:
		value = 1
	}

	pf := Prefactor{Value: value / ch.Gain, Unit: "1/V"}
	if ch.Unit != "" {
		pf.Unit = ch.Unit + "/V"
	}
	return pf, nil
}

func (s *ConfigService) lockinSetting(ch *domain.Channel, param, target string) (float64, error) {
	if ch.Lockin == nil {
		return 0, fmt.Errorf("no lock-in binding")
	}
	q, ok := ch.Lockin.Settings[param]
	if !ok {
		return 0, fmt.Errorf("lock-in setting %q is not programmed", param)
	}
	val, err := s.reg.Magnitude(q, target)
	if err != nil {
		return 0, fmt.Errorf("lock-in %s: %w", param, err)
	}
	if val == 0 {
		return 0, fmt.Errorf("lock-in %s is zero", param)
	}
	return val, nil
}

// lockinExpand returns the analog-output scaling of the lock-in: 10 V
// full scale over the programmed sensitivity. A missing sensitivity
// means no expand (factor 1).
func (s *ConfigService) lockinExpand(ch *domain.Channel) (float64, error) {
	if ch.Lockin == nil {
		return 1, nil
	}
	q, ok := ch.Lockin.Settings["sensitivity"]
	if !ok {
		return 1, nil
	}
	sens, err := s.reg.Magnitude(q, "V")
	if err != nil {
		return 0, fmt.Errorf("lock-in sensitivity: %w", err)
	}
	if sens == 0 {
		return 0, fmt.Errorf("lock-in sensitivity is zero")
	}
	return 10 / sens, nil
}
