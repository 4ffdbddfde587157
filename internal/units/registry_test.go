package units

import (
	"math"
	"testing"
)

func TestRegistryKnows(t *testing.T) {
	reg := Default()

	known := []string{
		"V", "mV", "uV", "nV", "kHz", "MHz", "Hz", "pF", "nF",
		"Ohm", "kOhm", "MOhm", "Wb", "Phi0", "mPhi0", "K", "mK",
		"V/s", "Phi0/A", "um", "s", "ms", "pixels",
	}
	for _, sym := range known {
		if !reg.Knows(sym) {
			t.Errorf("Knows(%q) = false, want true", sym)
		}
	}

	unknown := []string{"furlong", "qV", "V/qq", "Phi1"}
	for _, sym := range unknown {
		if reg.Knows(sym) {
			t.Errorf("Knows(%q) = true, want false", sym)
		}
	}
}

func TestRegistryConvert(t *testing.T) {
	reg := Default()

	tests := []struct {
		in     string
		target string
		want   float64
	}{
		{"25 V", "mV", 25000},
		{"2 uV", "V", 2e-6},
		{"6.271 kHz", "Hz", 6271},
		{"100 Hz", "kHz", 0.1},
		{"1 MOhm", "Ohm", 1e6},
		{"1 Phi0", "Wb", 2.067833831e-15},
		{"2 V/s", "mV/s", 2000},
		{"120 s", "min", 2},
	}

	for _, tt := range tests {
		q := MustParse(tt.in)
		got, err := reg.Convert(q, tt.target)
		if err != nil {
			t.Errorf("Convert(%q, %q) error: %v", tt.in, tt.target, err)
			continue
		}
		if math.Abs(got.Magnitude-tt.want) > 1e-9*math.Abs(tt.want) {
			t.Errorf("Convert(%q, %q) = %v, want %v", tt.in, tt.target, got.Magnitude, tt.want)
		}
		if got.Unit != tt.target {
			t.Errorf("Convert(%q, %q) unit = %q", tt.in, tt.target, got.Unit)
		}
	}
}

func TestRegistryConvertIncompatible(t *testing.T) {
	reg := Default()

	if _, err := reg.Convert(Q(1, "V"), "Hz"); err == nil {
		t.Error("expected error converting V to Hz")
	}
	if _, err := reg.Convert(Q(1, "V/s"), "V"); err == nil {
		t.Error("expected error converting V/s to V")
	}
	if _, err := reg.Convert(Q(1, "bogus"), "V"); err == nil {
		t.Error("expected error for unknown source symbol")
	}
}

func TestRegistryCompatible(t *testing.T) {
	reg := Default()

	tests := []struct {
		a, b string
		want bool
	}{
		{"V", "uV", true},
		{"Phi0", "Wb", true},
		{"Ohm", "ohm", true},
		{"V", "A", false},
		{"V/s", "mV/s", true},
		{"V/s", "V", false},
	}

	for _, tt := range tests {
		if got := reg.Compatible(tt.a, tt.b); got != tt.want {
			t.Errorf("Compatible(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestRegistryDefine(t *testing.T) {
	reg, err := NewRegistry(
		Definition{Symbol: "Phi0", Value: "2.067833831e-15 Wb"},
		Definition{Symbol: "mil", Value: "25.4 um"},
	)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	mag, err := reg.Magnitude(Q(1, "mil"), "m")
	if err != nil {
		t.Fatalf("Magnitude: %v", err)
	}
	if math.Abs(mag-25.4e-6) > 1e-15 {
		t.Errorf("1 mil = %v m, want 25.4e-6", mag)
	}

	// Redefinition must be rejected
	if err := reg.Define(Definition{Symbol: "V", Value: "1 V"}); err == nil {
		t.Error("expected error redefining V")
	}
	// Reference to unknown symbol must be rejected
	if err := reg.Define(Definition{Symbol: "x", Value: "2 bogus"}); err == nil {
		t.Error("expected error for unknown reference symbol")
	}
}

func TestRegistryParse(t *testing.T) {
	reg := Default()

	if _, err := reg.Parse("25 V"); err != nil {
		t.Errorf("Parse(25 V): %v", err)
	}
	if _, err := reg.Parse("25 bogus"); err == nil {
		t.Error("expected vocabulary error for unknown symbol")
	}
}
