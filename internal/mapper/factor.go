package mapper

import "strconv"

// Factor is a scale transform between raw and display units.
// Positive values multiply, negative values divide, 1 is unity.
// The zero value behaves as unity.
type Factor int

// Unity leaves values unchanged.
const Unity Factor = 1

// ParseFactor converts a factor tag to a Factor.
// Empty or unknown tags yield Unity.
func ParseFactor(tag string) Factor {
	if f, ok := factorTags[tag]; ok {
		return f
	}
	return Unity
}

// Apply converts a raw value to display units.
func (f Factor) Apply(raw float64) float64 {
	switch {
	case f > 1:
		return raw * float64(f)
	case f < 0:
		return raw / float64(-f)
	default:
		return raw
	}
}

// Invert converts a display value back to a raw integer, truncating toward zero.
func (f Factor) Invert(display float64) int {
	var raw float64
	switch {
	case f > 1:
		raw = display / float64(f)
	case f < 0:
		raw = display * float64(-f)
	default:
		raw = display
	}
	if raw < 0 {
		return -int(-raw + epsilon)
	}
	return int(raw + epsilon)
}

// String returns the canonical tag, or "" for unity.
func (f Factor) String() string {
	switch {
	case f > 1:
		return "*" + strconv.Itoa(int(f))
	case f < 0:
		return "/" + strconv.Itoa(int(-f))
	default:
		return ""
	}
}

// ParseValue parses a raw textual value and applies the factor tag to it.
func ParseValue(raw, tag string) (float64, error) {
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, err
	}
	return ParseFactor(tag).Apply(v), nil
}
