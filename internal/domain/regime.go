package domain

import "fmt"

// Regime selects which set of voltage limits is live: room temperature
// or low temperature. Piezo elements tolerate larger drive voltages when
// cold, so every limit in the setup file is keyed by regime.
type Regime string

const (
	RegimeRT Regime = "RT"
	RegimeLT Regime = "LT"
)

// Regimes lists the valid regimes in declaration order.
var Regimes = []Regime{RegimeRT, RegimeLT}

// ParseRegime validates a regime string, accepting lowercase input.
func ParseRegime(s string) (Regime, error) {
	switch s {
	case "RT", "rt", "Rt":
		return RegimeRT, nil
	case "LT", "lt", "Lt":
		return RegimeLT, nil
	}
	return "", fmt.Errorf("temperature regime must be %q or %q, got %q", RegimeRT, RegimeLT, s)
}

// Valid reports whether the regime is one of the known values.
func (r Regime) Valid() bool {
	return r == RegimeRT || r == RegimeLT
}
