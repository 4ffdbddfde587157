package units

import (
	"fmt"
	"strings"
)

// Dimension names the physical dimension a symbol measures. Compound
// symbols ("V/s") get a compound dimension ("voltage/time"); conversion
// is defined only between symbols whose dimensions are equal.
type Dimension string

const (
	Voltage       Dimension = "voltage"
	Current       Dimension = "current"
	Resistance    Dimension = "resistance"
	Capacitance   Dimension = "capacitance"
	Frequency     Dimension = "frequency"
	MagneticFlux  Dimension = "magnetic_flux"
	MagneticField Dimension = "magnetic_field"
	Length        Dimension = "length"
	Time          Dimension = "time"
	Temperature   Dimension = "temperature"
	Power         Dimension = "power"
	Dimensionless Dimension = "dimensionless"
)

// unitDef maps a symbol to its dimension and the factor converting one of
// it into the dimension's base unit.
type unitDef struct {
	dimension Dimension
	factor    float64
}

// Definition declares a derived unit as a multiple of an existing symbol,
// e.g. {Symbol: "Phi0", Value: "2.067833831e-15 Wb"}. A Value without a
// numeric part ("Ohm = ohm" style alias) declares an exact alias.
type Definition struct {
	Symbol string `json:"symbol" yaml:"symbol"`
	Value  string `json:"value" yaml:"value"`
}

var siPrefixes = map[string]float64{
	"f": 1e-15,
	"p": 1e-12,
	"n": 1e-9,
	"u": 1e-6,
	"µ": 1e-6,
	"m": 1e-3,
	"k": 1e3,
	"M": 1e6,
	"G": 1e9,
}

// Registry knows unit symbols and their conversion relationships.
type Registry struct {
	base map[string]unitDef
}

// NewRegistry builds a registry with the built-in vocabulary plus any
// derived-unit definitions.
func NewRegistry(defs ...Definition) (*Registry, error) {
	r := &Registry{base: make(map[string]unitDef, 32)}

	// Base symbols, factor 1 within their dimension
	for sym, dim := range map[string]Dimension{
		"V":      Voltage,
		"A":      Current,
		"Ohm":    Resistance,
		"ohm":    Resistance,
		"F":      Capacitance,
		"Hz":     Frequency,
		"Wb":     MagneticFlux,
		"T":      MagneticField,
		"m":      Length,
		"s":      Time,
		"K":      Temperature,
		"W":      Power,
		"":       Dimensionless,
		"pixels": Dimensionless,
		"deg":    Dimensionless,
		"%":      Dimensionless,
	} {
		r.base[sym] = unitDef{dimension: dim, factor: 1}
	}
	// Non-unity scale within a dimension
	r.base["min"] = unitDef{dimension: Time, factor: 60}
	r.base["h"] = unitDef{dimension: Time, factor: 3600}

	for _, def := range defs {
		if err := r.Define(def); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Default returns a registry preloaded with the SQUID vocabulary:
// the magnetic flux quantum Phi0.
func Default() *Registry {
	r, err := NewRegistry(Definition{Symbol: "Phi0", Value: "2.067833831e-15 Wb"})
	if err != nil {
		panic(err)
	}
	return r
}

// Define registers a derived unit or alias.
func (r *Registry) Define(def Definition) error {
	sym := strings.TrimSpace(def.Symbol)
	if sym == "" {
		return fmt.Errorf("unit definition has empty symbol")
	}
	if _, exists := r.base[sym]; exists {
		return fmt.Errorf("unit %q is already defined", sym)
	}

	val := strings.TrimSpace(def.Value)

	// Alias form: value is a bare known symbol
	if ref, dim, ok := r.resolve(val); ok {
		r.base[sym] = unitDef{dimension: dim, factor: ref}
		return nil
	}

	q, err := Parse(val)
	if err != nil {
		return fmt.Errorf("unit definition %q: %w", sym, err)
	}
	factor, dim, ok := r.resolve(q.Unit)
	if !ok {
		return fmt.Errorf("unit definition %q references unknown symbol %q", sym, q.Unit)
	}
	r.base[sym] = unitDef{dimension: dim, factor: q.Magnitude * factor}
	return nil
}

// Knows reports whether the symbol is in the vocabulary, including
// SI-prefixed and compound (a/b) forms.
func (r *Registry) Knows(symbol string) bool {
	_, _, ok := r.resolve(symbol)
	return ok
}

// DimensionOf returns the dimension of a symbol.
func (r *Registry) DimensionOf(symbol string) (Dimension, error) {
	_, dim, ok := r.resolve(symbol)
	if !ok {
		return "", fmt.Errorf("unknown unit symbol %q", symbol)
	}
	return dim, nil
}

// Parse parses a quantity string and validates its symbol against the
// vocabulary.
func (r *Registry) Parse(s string) (Quantity, error) {
	q, err := Parse(s)
	if err != nil {
		return Quantity{}, err
	}
	if !r.Knows(q.Unit) {
		return Quantity{}, fmt.Errorf("quantity %q: unknown unit symbol %q", s, q.Unit)
	}
	return q, nil
}

// Convert converts a quantity to the target symbol. The symbols must
// share a dimension.
func (r *Registry) Convert(q Quantity, target string) (Quantity, error) {
	fromFactor, fromDim, ok := r.resolve(q.Unit)
	if !ok {
		return Quantity{}, fmt.Errorf("unknown unit symbol %q", q.Unit)
	}
	toFactor, toDim, ok := r.resolve(target)
	if !ok {
		return Quantity{}, fmt.Errorf("unknown unit symbol %q", target)
	}
	if fromDim != toDim {
		return Quantity{}, fmt.Errorf("cannot convert %q (%s) to %q (%s)",
			q.Unit, fromDim, target, toDim)
	}
	return Quantity{Magnitude: q.Magnitude * fromFactor / toFactor, Unit: target}, nil
}

// Magnitude converts q to the target symbol and returns the bare number.
func (r *Registry) Magnitude(q Quantity, target string) (float64, error) {
	converted, err := r.Convert(q, target)
	if err != nil {
		return 0, err
	}
	return converted.Magnitude, nil
}

// Compatible reports whether two symbols share a dimension.
func (r *Registry) Compatible(a, b string) bool {
	_, dimA, okA := r.resolve(a)
	_, dimB, okB := r.resolve(b)
	return okA && okB && dimA == dimB
}

// resolve looks up a symbol, handling SI prefixes and a single-level
// compound form "num/den". Returns the factor to the dimension's base
// unit and the dimension.
func (r *Registry) resolve(symbol string) (float64, Dimension, bool) {
	if num, den, found := strings.Cut(symbol, "/"); found {
		nf, nd, ok := r.resolveAtom(num)
		if !ok {
			return 0, "", false
		}
		df, dd, ok := r.resolveAtom(den)
		if !ok {
			return 0, "", false
		}
		return nf / df, Dimension(string(nd) + "/" + string(dd)), true
	}
	return r.resolveAtom(symbol)
}

// resolveAtom looks up a non-compound symbol, trying an exact match
// before stripping an SI prefix.
func (r *Registry) resolveAtom(symbol string) (float64, Dimension, bool) {
	if def, ok := r.base[symbol]; ok {
		return def.factor, def.dimension, true
	}
	for prefix, scale := range siPrefixes {
		rest, found := strings.CutPrefix(symbol, prefix)
		if !found || rest == "" {
			continue
		}
		if def, ok := r.base[rest]; ok {
			return scale * def.factor, def.dimension, true
		}
	}
	return 0, "", false
}
