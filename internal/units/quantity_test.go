package units

import (
	"encoding/json"
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		input   string
		mag     float64
		unit    string
		wantErr bool
	}{
		{"25 V", 25, "V", false},
		{"6.271 kHz", 6.271, "kHz", false},
		{"2 uV", 2, "uV", false},
		{"2uV", 2, "uV", false},
		{"-1.5e-3 Wb", -1.5e-3, "Wb", false},
		{"2.067833831e-15 Wb", 2.067833831e-15, "Wb", false},
		{"100", 100, "", false},
		{"  2 V/s ", 2, "V/s", false},
		{"", 0, "", true},
		{"V", 0, "", true},
		{"1 2 V", 0, "", true},
	}

	for _, tt := range tests {
		q, err := Parse(tt.input)
		if tt.wantErr {
			if err == nil {
				t.Errorf("Parse(%q) expected error, got %v", tt.input, q)
			}
			continue
		}
		if err != nil {
			t.Errorf("Parse(%q) unexpected error: %v", tt.input, err)
			continue
		}
		if q.Magnitude != tt.mag || q.Unit != tt.unit {
			t.Errorf("Parse(%q) = {%v %q}, want {%v %q}",
				tt.input, q.Magnitude, q.Unit, tt.mag, tt.unit)
		}
	}
}

func TestQuantityString(t *testing.T) {
	tests := []struct {
		q    Quantity
		want string
	}{
		{Q(25, "V"), "25 V"},
		{Q(6.271, "kHz"), "6.271 kHz"},
		{Q(2.067833831e-15, "Wb"), "2.067833831e-15 Wb"},
		{Q(100, ""), "100"},
	}

	for _, tt := range tests {
		if got := tt.q.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

func TestQuantityJSONRoundTrip(t *testing.T) {
	for _, s := range []string{"25 V", "6.271 kHz", "2 uV", "-2 V/s"} {
		orig := MustParse(s)

		data, err := json.Marshal(orig)
		if err != nil {
			t.Fatalf("Marshal(%q): %v", s, err)
		}

		var parsed Quantity
		if err := json.Unmarshal(data, &parsed); err != nil {
			t.Fatalf("Unmarshal(%s): %v", data, err)
		}

		if !orig.Equivalent(parsed) {
			t.Errorf("round trip of %q: got %v, want %v", s, parsed, orig)
		}
	}
}

func TestQuantityUnmarshalBareNumber(t *testing.T) {
	var q Quantity
	if err := json.Unmarshal([]byte(`10.5`), &q); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.Magnitude != 10.5 || q.Unit != "" {
		t.Errorf("got %v, want unitless 10.5", q)
	}
}

func TestRangeValid(t *testing.T) {
	tests := []struct {
		name  string
		r     Range
		valid bool
	}{
		{"ordered", Range{Q(-2, "V"), Q(2, "V")}, true},
		{"equal endpoints", Range{Q(0, "V"), Q(0, "V")}, true},
		{"inverted", Range{Q(5, "V"), Q(-5, "V")}, false},
		{"mixed symbols", Range{Q(0, "V"), Q(1, "mV")}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.r.Valid(); got != tt.valid {
				t.Errorf("Valid() = %v, want %v", got, tt.valid)
			}
		})
	}
}

func TestRangeJSON(t *testing.T) {
	var r Range
	if err := json.Unmarshal([]byte(`["-10 V", "10 V"]`), &r); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Low.Magnitude != -10 || r.High.Magnitude != 10 {
		t.Errorf("got %v, want [-10 V, 10 V]", r)
	}
	if !r.Contains(3) || r.Contains(11) {
		t.Error("Contains checks failed")
	}

	if err := json.Unmarshal([]byte(`["1 V"]`), &r); err == nil {
		t.Error("expected error for 1-element range")
	}
}
