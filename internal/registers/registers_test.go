package registers

import (
	"errors"
	"testing"
)

func TestRangesCoverEveryAddress(t *testing.T) {
	m := Modbus()
	ranges := m.Ranges(MaxReadCount)

	covered := func(addr uint16) bool {
		for _, r := range ranges {
			if addr >= r.Start && addr < r.Start+r.Count {
				return true
			}
		}
		return false
	}

	for _, d := range m.Descriptors() {
		if !d.HasAddress {
			t.Fatalf("%s has no address", d.Key)
		}
		if !covered(d.Address) {
			t.Errorf("address %d of %s is not covered by any range", d.Address, d.Key)
		}
	}
}

func TestKeysAndAddressesUnique(t *testing.T) {
	keys := make(map[string]bool)
	addrs := make(map[uint16]string)

	for _, d := range Modbus().Descriptors() {
		if keys[d.Key] {
			t.Errorf("duplicate key %s", d.Key)
		}
		keys[d.Key] = true

		if other, ok := addrs[d.Address]; ok {
			t.Errorf("address %d used by %s and %s", d.Address, other, d.Key)
		}
		addrs[d.Address] = d.Key
	}

	if len(keys) != 90 {
		t.Errorf("descriptor count = %d, want 90", len(keys))
	}
}

func TestAddressOf(t *testing.T) {
	tests := []struct {
		key  string
		want uint16
	}{
		{"001", 0},
		{"002", 1},
		{"411", 31},
		{"451", 41},
		{"808", 60},
		{"controller_v", 100},
		{"TVL", 126},
		{"ta24", 144},
		{"in_total", 177},
		{"day_backup6_in_hw", 193},
	}

	m := Modbus()
	for _, tt := range tests {
		got, ok := m.AddressOf(tt.key)
		if !ok || got != tt.want {
			t.Errorf("AddressOf(%q) = %d, %v, want %d", tt.key, got, ok, tt.want)
		}
	}

	if _, ok := m.AddressOf("nope"); ok {
		t.Error("AddressOf(nope) should not be found")
	}
	if _, ok := Rest().AddressOf("411"); ok {
		t.Error("REST map should not carry addresses")
	}
}

func TestLookupCaseInsensitive(t *testing.T) {
	d, ok := Rest().Lookup("H_Target")
	if !ok {
		t.Fatal("Lookup(H_Target) not found")
	}
	if d.Key != "h_target" || d.Factor != -10 || d.Writable {
		t.Errorf("Lookup(H_Target) = %+v", d)
	}
}

func TestRanges(t *testing.T) {
	got := Modbus().Ranges(MaxReadCount)
	want := []Range{
		{0, 3}, {10, 6}, {20, 6}, {30, 6}, {40, 6}, {50, 2}, {60, 5},
		{100, 6}, {110, 7}, {120, 7}, {130, 9}, {140, 5}, {170, 8}, {180, 14},
	}

	if len(got) != len(want) {
		t.Fatalf("Ranges = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Ranges[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestRangesMergeAndSplit(t *testing.T) {
	m := newMap([]Bank{
		{Base: 0, Slots: make([]*Descriptor, 4)},
		{Base: 4, Slots: make([]*Descriptor, 4)},
		{Base: 20, Slots: make([]*Descriptor, 7)},
	}, true)

	got := m.Ranges(5)
	want := []Range{{0, 5}, {5, 3}, {20, 5}, {25, 2}}
	if len(got) != len(want) {
		t.Fatalf("Ranges(5) = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Ranges(5)[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestDescriptorCheck(t *testing.T) {
	m := Modbus()
	tests := []struct {
		key     string
		v       float64
		wantErr bool
	}{
		{"311", -20, false},
		{"311", -21, true},
		{"501", 75, false},
		{"501", 76, true},
		{"001", 1, false},
		{"001", 2, true},
		{"002", 4, false},
		{"002", 5, true},
		{"002", 1.5, true},
		{"808", -1, true},
	}

	for _, tt := range tests {
		d, _ := m.Lookup(tt.key)
		err := d.Check(tt.v)
		if (err != nil) != tt.wantErr {
			t.Errorf("Check(%s, %v) error = %v, wantErr %v", tt.key, tt.v, err, tt.wantErr)
		}
		if err != nil && !errors.Is(err, ErrOutOfRange) {
			t.Errorf("Check(%s, %v) error = %v, want ErrOutOfRange", tt.key, tt.v, err)
		}
	}
}

func TestDescriptorFormatAndParse(t *testing.T) {
	m := Modbus()

	mode, _ := m.Lookup("mode")
	if got := mode.Format(7); got != "cooling" {
		t.Errorf("mode.Format(7) = %q, want cooling", got)
	}

	sw, _ := m.Lookup("003")
	if got := sw.Format(1); got != "on" {
		t.Errorf("003.Format(1) = %q, want on", got)
	}

	tvl, _ := m.Lookup("tvl")
	if got := tvl.Format(22.1); got != "22.1" {
		t.Errorf("tvl.Format(22.1) = %q", got)
	}

	sel, _ := m.Lookup("808")
	if v, err := sel.Parse("Raise"); err != nil || v != 3 {
		t.Errorf("808.Parse(Raise) = %v, %v, want 3", v, err)
	}
	if v, err := sel.Parse("2"); err != nil || v != 2 {
		t.Errorf("808.Parse(2) = %v, %v, want 2", v, err)
	}
	if v, err := sw.Parse("off"); err != nil || v != 0 {
		t.Errorf("003.Parse(off) = %v, %v, want 0", v, err)
	}
	if _, err := tvl.Parse("warm"); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("tvl.Parse(warm) error = %v, want ErrOutOfRange", err)
	}
}

func TestSettingsWritable(t *testing.T) {
	for _, d := range Modbus().Descriptors() {
		if d.Writable != (d.Category == Setting) {
			t.Errorf("%s: Writable = %v, category %s", d.Key, d.Writable, d.Category)
		}
		if d.Writable && d.Kind == KindTemperature && !d.Signed() {
			t.Errorf("%s: writable temperature should be signed", d.Key)
		}
	}
}
