package mapper

import "strings"

// IsOn reports whether a boolean register value is set.
func IsOn(v float64) bool {
	return v > 0
}

// ParseSwitch converts a textual switch state to its register value.
// It accepts on/off, true/false and 1/0 in any case.
func ParseSwitch(s string) (float64, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "on", "true", "1":
		return 1, true
	case "off", "false", "0":
		return 0, true
	default:
		return 0, false
	}
}
