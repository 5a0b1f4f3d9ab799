// Package mapper provides the value transformations between raw Xtherma register
// values and display values: factor tags, signed 16-bit decoding and enum resolution.
package mapper

// Factor tags as they appear in the REST payload ("input_factor") and in the
// register table.
const (
	TagMul10   = "*10"
	TagMul100  = "*100"
	TagMul1000 = "*1000"
	TagDiv10   = "/10"
	TagDiv100  = "/100"
	TagDiv1000 = "/1000"
)

// Prometheus metric label names
const (
	LabelKey      = "key"
	LabelKind     = "kind"
	LabelUnit     = "unit"
	LabelCategory = "category"
	LabelOption   = "option"
	LabelReason   = "reason"
	LabelSerial   = "serial"
)

// Register value limits
const (
	RegisterMax    = 65535
	RegisterSigned = RegisterMax / 2
)

// epsilon absorbs float artifacts before truncating to an integer register value.
const epsilon = 0.00001

// factorTags maps every accepted factor tag to its Factor. Bare numbers are
// multipliers, matching what the cloud API sends for some entries.
var factorTags = map[string]Factor{
	TagMul10:   10,
	TagMul100:  100,
	TagMul1000: 1000,
	"10":       10,
	"100":      100,
	"1000":     1000,
	TagDiv10:   -10,
	TagDiv100:  -100,
	TagDiv1000: -1000,
}
