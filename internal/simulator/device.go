// Package simulator emulates the Modbus/TCP interface of an Xtherma heat pump.
// It serves the register map from memory and accepts writes to settings.
package simulator

import (
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/simonvetter/modbus"
	"gopkg.in/yaml.v3"

	"xtherma_bridge/internal/mapper"
	"xtherma_bridge/internal/registers"
)

// Device holds the register memory of a simulated heat pump.
type Device struct {
	regs   *registers.Map
	unitID uint8
	logger *slog.Logger

	mu     sync.Mutex
	memory []uint16
	writes int

	busy atomic.Bool
}

// NewDevice creates a device with all registers zero.
func NewDevice(regs *registers.Map, unitID uint8, logger *slog.Logger) *Device {
	var size uint16
	for _, b := range regs.Banks() {
		if b.End() > size {
			size = b.End()
		}
	}
	return &Device{
		regs:   regs,
		unitID: unitID,
		logger: logger,
		memory: make([]uint16, size),
	}
}

// SetBusy makes every request fail with a server-busy exception.
func (d *Device) SetBusy(busy bool) {
	d.busy.Store(busy)
}

// SetRaw stores a raw register value for key.
func (d *Device) SetRaw(key string, raw uint16) error {
	addr, ok := d.regs.AddressOf(key)
	if !ok {
		return fmt.Errorf("unknown register %q", key)
	}
	d.mu.Lock()
	d.memory[addr] = raw
	d.mu.Unlock()
	return nil
}

// Set stores a display value for key, applying the inverse factor and
// two's complement as the real device would.
func (d *Device) Set(key string, display float64) error {
	desc, ok := d.regs.Lookup(key)
	if !ok {
		return fmt.Errorf("unknown register %q", key)
	}
	raw := desc.Factor.Invert(display)
	if desc.Signed() {
		return d.SetRaw(key, mapper.EncodeSigned(raw))
	}
	if raw < 0 || raw > mapper.RegisterMax {
		return fmt.Errorf("value %v does not fit register %q", display, key)
	}
	return d.SetRaw(key, uint16(raw))
}

// Raw returns the raw register value of key.
func (d *Device) Raw(key string) (uint16, bool) {
	addr, ok := d.regs.AddressOf(key)
	if !ok {
		return 0, false
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.memory[addr], true
}

// Writes returns the number of accepted register writes.
func (d *Device) Writes() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.writes
}

// LoadFixture reads a YAML mapping of key to display value.
func (d *Device) LoadFixture(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read fixture: %w", err)
	}

	var values map[string]float64
	if err := yaml.Unmarshal(data, &values); err != nil {
		return fmt.Errorf("parse fixture: %w", err)
	}

	return d.Apply(values)
}

// Apply stores a set of display values.
func (d *Device) Apply(values map[string]float64) error {
	for k, v := range values {
		if err := d.Set(k, v); err != nil {
			return err
		}
	}
	return nil
}

// HandleHoldingRegisters serves reads and writes of holding registers.
func (d *Device) HandleHoldingRegisters(req *modbus.HoldingRegistersRequest) ([]uint16, error) {
	if req.UnitId != d.unitID {
		return nil, modbus.ErrIllegalFunction
	}
	if d.busy.Load() {
		return nil, modbus.ErrServerDeviceBusy
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	end := int(req.Addr) + int(req.Quantity)
	if end > len(d.memory) {
		return nil, modbus.ErrIllegalDataAddress
	}

	if req.IsWrite {
		for i := range req.Args {
			if !d.writable(req.Addr + uint16(i)) {
				return nil, modbus.ErrIllegalDataAddress
			}
		}
		for i, v := range req.Args {
			d.memory[int(req.Addr)+i] = v
			d.writes++
		}
		d.logger.Debug("Registers written", "addr", req.Addr, "values", req.Args)
	}

	out := make([]uint16, req.Quantity)
	copy(out, d.memory[req.Addr:end])
	return out, nil
}

func (d *Device) writable(addr uint16) bool {
	for _, b := range d.regs.Banks() {
		if addr >= b.Base && addr < b.End() {
			s := b.Slots[addr-b.Base]
			return s != nil && s.Writable
		}
	}
	return false
}

// HandleCoils is not supported by the device.
func (d *Device) HandleCoils(req *modbus.CoilsRequest) ([]bool, error) {
	return nil, modbus.ErrIllegalFunction
}

// HandleDiscreteInputs is not supported by the device.
func (d *Device) HandleDiscreteInputs(req *modbus.DiscreteInputsRequest) ([]bool, error) {
	return nil, modbus.ErrIllegalFunction
}

// HandleInputRegisters is not supported by the device.
func (d *Device) HandleInputRegisters(req *modbus.InputRegistersRequest) ([]uint16, error) {
	return nil, modbus.ErrIllegalFunction
}

// Serve starts a Modbus/TCP server on addr ("host:port").
// The caller stops it with Stop.
func (d *Device) Serve(addr string) (*modbus.ModbusServer, error) {
	srv, err := modbus.NewServer(&modbus.ServerConfiguration{
		URL:        "tcp://" + addr,
		Timeout:    30 * time.Second,
		MaxClients: 5,
	}, d)
	if err != nil {
		return nil, fmt.Errorf("create server: %w", err)
	}
	if err := srv.Start(); err != nil {
		return nil, fmt.Errorf("start server: %w", err)
	}
	d.logger.Info("Simulator listening", "addr", addr, "unit_id", d.unitID)
	return srv, nil
}
