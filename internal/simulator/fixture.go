package simulator

// DefaultValues is a plausible winter operating point, in display units.
var DefaultValues = map[string]float64{
	"001": 1,
	"002": 1,
	"003": 1,
	"310": 1,
	"311": -10,
	"312": 15,
	"315": 35,
	"316": 25,
	"320": 45,
	"501": 50,
	"522": 45,
	"808": 1,
	"811": 5,

	"controller_v": 1.12,
	"mode":         1,
	"sg":           1,
	"h_target":     31.5,
	"h1_target":    31.5,
	"hw_target":    50,
	"tk":           30.2,
	"tk1":          30.1,
	"tw":           47.8,
	"tr":           21.4,
	"trl":          27.3,
	"tvl":          22.1,
	"v":            18.5,
	"pk":           1,
	"pkl":          64.5,
	"pk1":          1,
	"vf":           42,
	"ld1":          520,
	"ta":           -3.5,
	"ta1":          -3.2,
	"ta4":          -2.8,
	"ta8":          -1.9,
	"ta24":         -0.7,
	"out_hp":       4850,
	"in_hp":        1420,
	"out_total":    4850,
	"in_total":     1420,
	"day_hp_out_h": 61.25,
	"day_hp_in_h":  18.4,
	"day_hp_in_hw": 2.31,

	"efficiency_hp":    3.41,
	"efficiency_total": 3.41,
	"day_hp_out_hw":    6.5,
}
