// Package registers holds the static Xtherma register table: value descriptors,
// their grouping into Modbus banks, and the key to address lookup.
package registers

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"xtherma_bridge/internal/mapper"
)

// MaxReadCount is the Modbus limit of holding registers per read request.
const MaxReadCount = 125

// ErrOutOfRange is returned when a value is not acceptable for a descriptor.
var ErrOutOfRange = errors.New("value out of range")

// Kind classifies what a register value measures.
type Kind int

const (
	KindDimensionless Kind = iota
	KindTemperature
	KindPower
	KindEnergy
	KindFrequency
	KindPercentage
	KindFlow
	KindSpeed
	KindEnum
	KindBoolean
	KindVersion
)

var kindNames = [...]string{
	"dimensionless", "temperature", "power", "energy", "frequency",
	"percentage", "flow", "speed", "enum", "boolean", "version",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// Category separates device settings from telemetry.
type Category int

const (
	Telemetry Category = iota
	Setting
)

func (c Category) String() string {
	if c == Setting {
		return "setting"
	}
	return "telemetry"
}

// Descriptor is the static metadata of one register value.
type Descriptor struct {
	Key      string
	Name     string
	Kind     Kind
	Unit     string
	Factor   mapper.Factor
	Category Category
	Writable bool
	Options  []string
	Min      float64
	Max      float64
	Step     float64

	// Address is only meaningful when HasAddress is set.
	Address    uint16
	HasAddress bool
}

// Signed reports whether raw values use two's complement.
// Only temperatures can be negative.
func (d Descriptor) Signed() bool {
	return d.Kind == KindTemperature
}

// Check validates a display value before it is written.
func (d Descriptor) Check(v float64) error {
	switch d.Kind {
	case KindBoolean:
		if v != 0 && v != 1 {
			return fmt.Errorf("%s: %v is not 0 or 1: %w", d.Key, v, ErrOutOfRange)
		}
	case KindEnum:
		if v < 0 || int(v) >= len(d.Options) || float64(int(v)) != v {
			return fmt.Errorf("%s: %v is not an option index: %w", d.Key, v, ErrOutOfRange)
		}
	default:
		if d.Min < d.Max && (v < d.Min || v > d.Max) {
			return fmt.Errorf("%s: %v outside %v..%v: %w", d.Key, v, d.Min, d.Max, ErrOutOfRange)
		}
	}
	return nil
}

// Format renders a display value: option names for enums, on/off for booleans,
// plain numbers otherwise.
func (d Descriptor) Format(v float64) string {
	switch d.Kind {
	case KindEnum:
		if s, ok := mapper.Option(d.Options, v); ok {
			return s
		}
	case KindBoolean:
		if mapper.IsOn(v) {
			return "on"
		}
		return "off"
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Parse is the inverse of Format. It accepts option names, on/off and numbers.
func (d Descriptor) Parse(s string) (float64, error) {
	s = strings.TrimSpace(s)
	switch d.Kind {
	case KindEnum:
		if i, ok := mapper.OptionIndex(d.Options, strings.ToLower(s)); ok {
			return float64(i), nil
		}
	case KindBoolean:
		if v, ok := mapper.ParseSwitch(s); ok {
			return v, nil
		}
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: cannot parse %q: %w", d.Key, s, ErrOutOfRange)
	}
	return v, nil
}

// Bank is a run of consecutive registers starting at Base.
// Nil slots are reserved addresses.
type Bank struct {
	Name  string
	Base  uint16
	Slots []*Descriptor
}

// End returns the address after the last slot.
func (b Bank) End() uint16 {
	return b.Base + uint16(len(b.Slots))
}

// Range is a block of holding registers read with one request.
type Range struct {
	Start uint16
	Count uint16
}

// Map is an immutable register table.
type Map struct {
	banks []Bank
	order []*Descriptor
	byKey map[string]*Descriptor

	addrOnce sync.Once
	addrs    map[string]uint16
}

func newMap(banks []Bank, addressed bool) *Map {
	m := &Map{byKey: make(map[string]*Descriptor)}
	for _, b := range banks {
		nb := Bank{Name: b.Name, Base: b.Base, Slots: make([]*Descriptor, len(b.Slots))}
		for i, d := range b.Slots {
			if d == nil {
				continue
			}
			c := *d
			c.Key = strings.ToLower(c.Key)
			if addressed {
				c.Address = b.Base + uint16(i)
				c.HasAddress = true
			}
			nb.Slots[i] = &c
			m.order = append(m.order, &c)
			m.byKey[c.Key] = &c
		}
		m.banks = append(m.banks, nb)
	}
	return m
}

var (
	modbusMap = newMap(table(), true)
	restMap   = newMap(table(), false)
)

// Modbus returns the register map with Modbus addresses.
func Modbus() *Map {
	return modbusMap
}

// Rest returns the register map without addresses, as used by the cloud API.
func Rest() *Map {
	return restMap
}

// Lookup finds a descriptor by key, ignoring case.
func (m *Map) Lookup(key string) (Descriptor, bool) {
	d, ok := m.byKey[strings.ToLower(key)]
	if !ok {
		return Descriptor{}, false
	}
	return *d, true
}

// AddressOf returns the Modbus address for key. The lookup table is built on
// first use by scanning the banks.
func (m *Map) AddressOf(key string) (uint16, bool) {
	m.addrOnce.Do(func() {
		m.addrs = make(map[string]uint16)
		for _, b := range m.banks {
			for i, d := range b.Slots {
				if d != nil && d.HasAddress {
					m.addrs[d.Key] = b.Base + uint16(i)
				}
			}
		}
	})
	a, ok := m.addrs[strings.ToLower(key)]
	return a, ok
}

// Banks returns the bank layout in table order.
func (m *Map) Banks() []Bank {
	return m.banks
}

// Descriptors returns every descriptor in table order.
func (m *Map) Descriptors() []Descriptor {
	out := make([]Descriptor, 0, len(m.order))
	for _, d := range m.order {
		out = append(out, *d)
	}
	return out
}

// Ranges returns the read requests covering all banks. Adjacent banks are
// merged and ranges longer than maxCount are split.
func (m *Map) Ranges(maxCount int) []Range {
	if maxCount <= 0 || maxCount > MaxReadCount {
		maxCount = MaxReadCount
	}

	banks := make([]Bank, len(m.banks))
	copy(banks, m.banks)
	sort.Slice(banks, func(i, j int) bool { return banks[i].Base < banks[j].Base })

	var spans []Range
	for _, b := range banks {
		if len(b.Slots) == 0 {
			continue
		}
		if n := len(spans); n > 0 && spans[n-1].Start+spans[n-1].Count >= b.Base {
			last := &spans[n-1]
			if end := b.End(); end > last.Start+last.Count {
				last.Count = end - last.Start
			}
			continue
		}
		spans = append(spans, Range{Start: b.Base, Count: uint16(len(b.Slots))})
	}

	var out []Range
	for _, s := range spans {
		for s.Count > 0 {
			n := s.Count
			if int(n) > maxCount {
				n = uint16(maxCount)
			}
			out = append(out, Range{Start: s.Start, Count: n})
			s.Start += n
			s.Count -= n
		}
	}
	return out
}
