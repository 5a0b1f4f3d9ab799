package mapper

import (
	"testing"
)

func TestParseFactor(t *testing.T) {
	tests := []struct {
		tag  string
		want Factor
	}{
		{"*10", 10},
		{"*100", 100},
		{"*1000", 1000},
		{"10", 10},
		{"100", 100},
		{"1000", 1000},
		{"/10", -10},
		{"/100", -100},
		{"/1000", -1000},
		{"", Unity},
		{"x7", Unity},
	}

	for _, tt := range tests {
		if got := ParseFactor(tt.tag); got != tt.want {
			t.Errorf("ParseFactor(%q) = %d, want %d", tt.tag, got, tt.want)
		}
	}
}

func TestParseValue(t *testing.T) {
	tests := []struct {
		raw  string
		tag  string
		want float64
	}{
		{"500", "/10", 50.0},
		{"7", "*100", 700},
		{"3", "", 3},
		{"221", "/10", 22.1},
		{"-35", "/10", -3.5},
		{"345", "/100", 3.45},
		{"12", "10", 120},
		{"4", "unknown", 4},
	}

	for _, tt := range tests {
		got, err := ParseValue(tt.raw, tt.tag)
		if err != nil {
			t.Fatalf("ParseValue(%q, %q) error: %v", tt.raw, tt.tag, err)
		}
		if got != tt.want {
			t.Errorf("ParseValue(%q, %q) = %v, want %v", tt.raw, tt.tag, got, tt.want)
		}
	}
}

func TestParseValue_Invalid(t *testing.T) {
	if _, err := ParseValue("n/a", "/10"); err == nil {
		t.Error("ParseValue should fail on non-numeric input")
	}
}

func TestFactorInvert(t *testing.T) {
	tests := []struct {
		f       Factor
		display float64
		want    int
	}{
		{Unity, 16, 16},
		{Unity, -20, -20},
		{Unity, 16.7, 16},
		{ParseFactor("/10"), 22.1, 221},
		{ParseFactor("/100"), 0.29, 29},
		{ParseFactor("/10"), -3.5, -35},
		{ParseFactor("*10"), 1230, 123},
		{ParseFactor("*100"), 750, 7},
	}

	for _, tt := range tests {
		if got := tt.f.Invert(tt.display); got != tt.want {
			t.Errorf("Factor(%d).Invert(%v) = %d, want %d", tt.f, tt.display, got, tt.want)
		}
	}
}

func TestFactorString(t *testing.T) {
	for _, tag := range []string{"*10", "*100", "*1000", "/10", "/100", "/1000"} {
		if got := ParseFactor(tag).String(); got != tag {
			t.Errorf("ParseFactor(%q).String() = %q", tag, got)
		}
	}
	if got := Unity.String(); got != "" {
		t.Errorf("Unity.String() = %q, want empty", got)
	}
	var zero Factor
	if got := zero.Apply(5); got != 5 {
		t.Errorf("zero Factor Apply(5) = %v, want 5", got)
	}
}

func TestSignedRoundTrip(t *testing.T) {
	for v := -32768; v <= 32767; v++ {
		if got := DecodeSigned(EncodeSigned(v)); got != v {
			t.Fatalf("DecodeSigned(EncodeSigned(%d)) = %d", v, got)
		}
	}
}

func TestSignedKnownValues(t *testing.T) {
	if got := EncodeSigned(-20); got != (20^65535)+1 {
		t.Errorf("EncodeSigned(-20) = %d, want %d", got, (20^65535)+1)
	}
	if got := EncodeSigned(-1); got != 65535 {
		t.Errorf("EncodeSigned(-1) = %d, want 65535", got)
	}
	if got := DecodeSigned(65516); got != -20 {
		t.Errorf("DecodeSigned(65516) = %d, want -20", got)
	}
	if got := DecodeSigned(32767); got != 32767 {
		t.Errorf("DecodeSigned(32767) = %d, want 32767", got)
	}
	if got := DecodeSigned(32768); got != -32768 {
		t.Errorf("DecodeSigned(32768) = %d, want -32768", got)
	}
}

func TestOption(t *testing.T) {
	modes := []string{"standby", "heating", "cooling", "water", "auto"}

	tests := []struct {
		v    float64
		want string
	}{
		{0, "standby"},
		{4, "auto"},
		{5, "standby"},
		{7, "cooling"},
		{-1, "auto"},
		{-6, "auto"},
		{2.9999999, "water"},
	}

	for _, tt := range tests {
		got, ok := Option(modes, tt.v)
		if !ok || got != tt.want {
			t.Errorf("Option(%v) = %q, %v, want %q", tt.v, got, ok, tt.want)
		}
	}

	if _, ok := Option(nil, 1); ok {
		t.Error("Option with no options should report false")
	}
}

func TestOptionIndex(t *testing.T) {
	opts := []string{"off", "normal", "block", "raise"}
	if i, ok := OptionIndex(opts, "block"); !ok || i != 2 {
		t.Errorf("OptionIndex(block) = %d, %v, want 2, true", i, ok)
	}
	if _, ok := OptionIndex(opts, "start"); ok {
		t.Error("OptionIndex(start) should not be found")
	}
}

func TestParseSwitch(t *testing.T) {
	tests := []struct {
		in     string
		want   float64
		wantOK bool
	}{
		{"ON", 1, true},
		{"off", 0, true},
		{"true", 1, true},
		{" 0 ", 0, true},
		{"maybe", 0, false},
	}

	for _, tt := range tests {
		got, ok := ParseSwitch(tt.in)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("ParseSwitch(%q) = %v, %v, want %v, %v", tt.in, got, ok, tt.want, tt.wantOK)
		}
	}
	if !IsOn(1) || IsOn(0) {
		t.Error("IsOn(1) should be true and IsOn(0) false")
	}
}
