package mapper

// DecodeSigned interprets a 16-bit register as a two's-complement integer.
// Values above 32767 are negative.
func DecodeSigned(raw uint16) int {
	v := int(raw)
	if v > RegisterSigned {
		return -((v - 1) ^ RegisterMax)
	}
	return v
}

// EncodeSigned converts a signed integer to its 16-bit two's-complement register
// value. Non-negative values are passed through.
func EncodeSigned(v int) uint16 {
	if v < 0 {
		return uint16(((-v) ^ RegisterMax) + 1)
	}
	return uint16(v)
}
