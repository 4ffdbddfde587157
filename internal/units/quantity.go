// Package units implements the unit-tagged quantity convention used
// throughout microscope configuration files: every physical value is a
// string of the form "<number> <symbol>" (e.g. "25 V", "6.271 kHz"),
// never a bare number.
//
// The vocabulary is a flat symbol table with linear scale factors between
// symbols of the same dimension, extended by user-defined derived units
// such as the magnetic flux quantum (Phi0 = 2.067833831e-15 Wb). It is
// deliberately not a general unit-algebra engine: compound symbols like
// "V/s" are resolved as a numerator/denominator pair, and conversions are
// only defined between symbols whose dimensions match.
package units

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Quantity is a numeric magnitude paired with a physical unit symbol.
type Quantity struct {
	Magnitude float64
	Unit      string
}

// Q is a convenience constructor.
func Q(magnitude float64, unit string) Quantity {
	return Quantity{Magnitude: magnitude, Unit: unit}
}

// Parse splits a quantity string into magnitude and unit symbol.
// The symbol is not checked against any vocabulary; use Registry.Parse
// for vocabulary-validated parsing.
//
// Accepted forms: "25 V", "-1.5e-3 Wb", "2uV" (no space), "100" (unitless).
func Parse(s string) (Quantity, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Quantity{}, fmt.Errorf("empty quantity string")
	}

	// Find where the numeric prefix ends
	end := 0
	for end < len(s) {
		c := s[end]
		if c >= '0' && c <= '9' || c == '+' || c == '-' || c == '.' {
			end++
			continue
		}
		// Exponent marker is only numeric if followed by digit or sign
		if (c == 'e' || c == 'E') && end+1 < len(s) {
			next := s[end+1]
			if next >= '0' && next <= '9' || next == '+' || next == '-' {
				end += 2
				continue
			}
		}
		break
	}
	if end == 0 {
		return Quantity{}, fmt.Errorf("quantity %q has no numeric part", s)
	}

	mag, err := strconv.ParseFloat(s[:end], 64)
	if err != nil {
		return Quantity{}, fmt.Errorf("quantity %q: %w", s, err)
	}

	unit := strings.TrimSpace(s[end:])
	if strings.ContainsAny(unit, " \t") {
		return Quantity{}, fmt.Errorf("quantity %q: unit symbol contains whitespace", s)
	}

	return Quantity{Magnitude: mag, Unit: unit}, nil
}

// MustParse is Parse for statically-known strings; it panics on error.
func MustParse(s string) Quantity {
	q, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return q
}

// String formats the quantity canonically as "<number> <symbol>".
func (q Quantity) String() string {
	mag := strconv.FormatFloat(q.Magnitude, 'g', -1, 64)
	if q.Unit == "" {
		return mag
	}
	return mag + " " + q.Unit
}

// IsZero reports whether the quantity is the zero value.
func (q Quantity) IsZero() bool {
	return q.Magnitude == 0 && q.Unit == ""
}

// Equivalent reports whether two quantities have the same unit symbol and
// magnitudes equal to within a relative tolerance. It does not convert;
// use Registry.Convert first to compare across compatible symbols.
func (q Quantity) Equivalent(other Quantity) bool {
	if q.Unit != other.Unit {
		return false
	}
	if q.Magnitude == other.Magnitude {
		return true
	}
	diff := math.Abs(q.Magnitude - other.Magnitude)
	scale := math.Max(math.Abs(q.Magnitude), math.Abs(other.Magnitude))
	return diff <= 1e-12*scale
}

// MarshalJSON encodes the quantity as its canonical string form, matching
// the configuration file convention.
func (q Quantity) MarshalJSON() ([]byte, error) {
	return json.Marshal(q.String())
}

// UnmarshalJSON accepts either a quantity string ("25 V") or a bare JSON
// number (treated as unitless).
func (q *Quantity) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		parsed, perr := Parse(s)
		if perr != nil {
			return perr
		}
		*q = parsed
		return nil
	}

	var mag float64
	if err := json.Unmarshal(data, &mag); err != nil {
		return fmt.Errorf("quantity must be a string or number: %s", data)
	}
	*q = Quantity{Magnitude: mag}
	return nil
}

// MarshalYAML encodes the quantity as its canonical string form.
func (q Quantity) MarshalYAML() (interface{}, error) {
	return q.String(), nil
}

// UnmarshalYAML accepts a quantity string or bare number.
func (q *Quantity) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err == nil {
		parsed, perr := Parse(s)
		if perr != nil {
			return perr
		}
		*q = parsed
		return nil
	}

	var mag float64
	if err := unmarshal(&mag); err != nil {
		return fmt.Errorf("quantity must be a string or number")
	}
	*q = Quantity{Magnitude: mag}
	return nil
}

// Range is a [low, high] pair of quantities, encoded in configuration
// files as a two-element array of quantity strings.
type Range struct {
	Low  Quantity
	High Quantity
}

// Valid reports whether low <= high. Both endpoints must carry the same
// unit symbol for the comparison to be meaningful; mixed symbols are
// reported invalid here and flagged during vocabulary validation.
func (r Range) Valid() bool {
	if r.Low.Unit != r.High.Unit {
		return false
	}
	return r.Low.Magnitude <= r.High.Magnitude
}

// Span returns high - low in the range's unit.
func (r Range) Span() Quantity {
	return Quantity{Magnitude: r.High.Magnitude - r.Low.Magnitude, Unit: r.Low.Unit}
}

// Contains reports whether v (in the range's unit) lies within the range.
func (r Range) Contains(v float64) bool {
	return v >= r.Low.Magnitude && v <= r.High.Magnitude
}

// MarshalJSON encodes the range as a two-element array of quantity strings.
func (r Range) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]Quantity{r.Low, r.High})
}

// UnmarshalJSON decodes a two-element array of quantity strings or numbers.
func (r *Range) UnmarshalJSON(data []byte) error {
	var pair []Quantity
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("range must be a [low, high] array: %w", err)
	}
	if len(pair) != 2 {
		return fmt.Errorf("range must have exactly 2 elements, got %d", len(pair))
	}
	r.Low = pair[0]
	r.High = pair[1]
	return nil
}

// MarshalYAML encodes the range as a two-element sequence.
func (r Range) MarshalYAML() (interface{}, error) {
	return [2]Quantity{r.Low, r.High}, nil
}

// UnmarshalYAML decodes a two-element sequence of quantity strings.
func (r *Range) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var pair []Quantity
	if err := unmarshal(&pair); err != nil {
		return fmt.Errorf("range must be a [low, high] sequence: %w", err)
	}
	if len(pair) != 2 {
		return fmt.Errorf("range must have exactly 2 elements, got %d", len(pair))
	}
	r.Low = pair[0]
	r.High = pair[1]
	return nil
}
