package mapper

// Option resolves a raw enum value to its option name.
// The index wraps around modulo the number of options.
func Option(options []string, v float64) (string, bool) {
	if len(options) == 0 {
		return "", false
	}
	var idx int
	if v < 0 {
		idx = -int(-v + epsilon)
	} else {
		idx = int(v + epsilon)
	}
	idx %= len(options)
	if idx < 0 {
		idx += len(options)
	}
	return options[idx], true
}

// OptionIndex returns the raw value of a named option.
func OptionIndex(options []string, name string) (int, bool) {
	for i, o := range options {
		if o == name {
			return i, true
		}
	}
	return 0, false
}
