// Package modbustcp reads and writes the Xtherma register map over Modbus/TCP.
package modbustcp

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/goburrow/modbus"

	"xtherma_bridge/internal/mapper"
	"xtherma_bridge/internal/registers"
	"xtherma_bridge/internal/types"
)

// Defaults
const (
	DefaultPort           = 502
	DefaultTimeout        = 10 * time.Second
	DefaultUpdateInterval = 30 * time.Second
)

// Config is the transport configuration. UnitID is used as given; 0 is a
// valid address on many TCP gateways.
type Config struct {
	Host           string
	Port           int
	UnitID         byte
	Timeout        time.Duration
	UpdateInterval time.Duration
}

// conn is the subset of a goburrow client the transport needs.
type conn interface {
	ReadHoldingRegisters(address, quantity uint16) ([]byte, error)
	WriteSingleRegister(address, value uint16) ([]byte, error)
	Close() error
}

type handlerConn struct {
	modbus.Client
	handler *modbus.TCPClientHandler
}

func (c *handlerConn) Close() error {
	return c.handler.Close()
}

// Client is a persistent Modbus/TCP connection to the heat pump.
// All requests are serialized.
type Client struct {
	cfg    Config
	regs   *registers.Map
	logger *slog.Logger

	dial func() (conn, error)

	mu   sync.Mutex
	conn conn
}

// NewClient creates a client. No connection is made until Connect or the
// first request.
func NewClient(cfg Config, regs *registers.Map, logger *slog.Logger) *Client {
	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.UpdateInterval == 0 {
		cfg.UpdateInterval = DefaultUpdateInterval
	}

	c := &Client{cfg: cfg, regs: regs, logger: logger}
	c.dial = c.dialTCP
	return c
}

func (c *Client) endpoint() string {
	return net.JoinHostPort(c.cfg.Host, strconv.Itoa(c.cfg.Port))
}

func (c *Client) dialTCP() (conn, error) {
	h := modbus.NewTCPClientHandler(c.endpoint())
	h.Timeout = c.cfg.Timeout
	h.SlaveId = c.cfg.UnitID
	// keep the connection open between polls
	h.IdleTimeout = 0

	if err := h.Connect(); err != nil {
		return nil, err
	}

	return &handlerConn{Client: modbus.NewClient(h), handler: h}, nil
}

// Connect opens the connection if it is not open yet.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connectLocked()
}

func (c *Client) connectLocked() error {
	if c.conn != nil {
		return nil
	}

	c.logger.Debug("Connecting", "endpoint", c.endpoint(), "unit_id", c.cfg.UnitID)

	cn, err := c.dial()
	if err != nil {
		c.logger.Warn("Connect failed", "endpoint", c.endpoint(), "error", err)
		return fmt.Errorf("%w: %v", types.ErrNotConnected, err)
	}
	c.conn = cn
	return nil
}

// Disconnect closes the connection.
func (c *Client) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeLocked()
}

func (c *Client) closeLocked() error {
	if c.conn == nil {
		return nil
	}
	c.logger.Debug("Disconnecting", "endpoint", c.endpoint())
	err := c.conn.Close()
	c.conn = nil
	return err
}

// UpdateInterval returns the polling period.
func (c *Client) UpdateInterval() time.Duration {
	return c.cfg.UpdateInterval
}

// do runs op on the connection. A transport failure closes the connection,
// reconnects and retries op once.
func (c *Client) do(op func(conn) error) error {
	if err := c.connectLocked(); err != nil {
		return err
	}

	err := op(c.conn)
	if err == nil || isException(err) {
		return classify(err)
	}

	c.logger.Debug("Transport error, reconnecting", "error", err)
	c.closeLocked()

	if err := c.connectLocked(); err != nil {
		return err
	}
	if err = op(c.conn); err != nil {
		if !isException(err) {
			c.closeLocked()
		}
		return classify(err)
	}
	return nil
}

// Poll reads all register ranges and decodes every descriptor.
func (c *Client) Poll(ctx context.Context) ([]types.Reading, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ranges := c.regs.Ranges(registers.MaxReadCount)

	var size int
	for _, r := range ranges {
		if end := int(r.Start) + int(r.Count); end > size {
			size = end
		}
	}
	buf := make([]uint16, size)

	for _, r := range ranges {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %v", types.ErrTimeout, err)
		}

		err := c.do(func(cn conn) error {
			data, err := cn.ReadHoldingRegisters(r.Start, r.Count)
			if err != nil {
				return err
			}
			if len(data) < int(r.Count)*2 {
				return fmt.Errorf("short response: %d bytes for %d registers", len(data), r.Count)
			}
			for i := 0; i < int(r.Count); i++ {
				buf[int(r.Start)+i] = binary.BigEndian.Uint16(data[2*i:])
			}
			return nil
		})
		if err != nil {
			c.logger.Debug("Read failed", "start", r.Start, "count", r.Count, "error", err)
			return nil, err
		}
	}

	return decode(c.regs, buf)
}

// decode converts the register buffer into readings.
func decode(regs *registers.Map, buf []uint16) ([]types.Reading, error) {
	var (
		out     []types.Reading
		hasData bool
	)

	for _, b := range regs.Banks() {
		for i, d := range b.Slots {
			if d == nil {
				continue
			}
			raw := buf[int(b.Base)+i]
			hasData = hasData || raw != 0

			v := int(raw)
			if d.Signed() {
				v = mapper.DecodeSigned(raw)
			}
			out = append(out, types.Reading{
				Key:    d.Key,
				Value:  strconv.Itoa(v),
				Factor: d.Factor.String(),
			})
		}
	}

	if !hasData {
		return nil, types.ErrEmptyData
	}
	return out, nil
}

// Write stores a raw value into the register of key.
func (c *Client) Write(ctx context.Context, key string, raw int) error {
	d, ok := c.regs.Lookup(key)
	if !ok {
		c.logger.Error("Unknown register", "key", key)
		return fmt.Errorf("%w: unknown register %q", types.ErrModbus, key)
	}
	addr, ok := c.regs.AddressOf(key)
	if !ok {
		return fmt.Errorf("%w: register %q has no address", types.ErrModbus, key)
	}

	var value uint16
	switch {
	case d.Signed() && raw >= -32768 && raw <= 32767:
		value = mapper.EncodeSigned(raw)
	case raw >= 0 && raw <= mapper.RegisterMax:
		value = uint16(raw)
	default:
		return fmt.Errorf("%w: value %d does not fit register %q", types.ErrModbus, raw, key)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", types.ErrTimeout, err)
	}

	c.logger.Debug("Writing register", "key", d.Key, "value", value, "address", addr)

	err := c.do(func(cn conn) error {
		_, err := cn.WriteSingleRegister(addr, value)
		return err
	})
	if err != nil {
		c.logger.Error("Modbus write failed", "key", d.Key, "address", addr, "error", err)
	}
	return err
}

func isException(err error) bool {
	var me *modbus.ModbusError
	return errors.As(err, &me)
}

// classify maps a goburrow error into the transport error taxonomy.
func classify(err error) error {
	if err == nil {
		return nil
	}

	var me *modbus.ModbusError
	if errors.As(err, &me) {
		if me.ExceptionCode == modbus.ExceptionCodeServerDeviceBusy {
			return fmt.Errorf("%w: %v", types.ErrBusy, err)
		}
		return fmt.Errorf("%w: %v", types.ErrModbus, err)
	}

	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return fmt.Errorf("%w: %v", types.ErrTimeout, err)
	}
	return fmt.Errorf("%w: %v", types.ErrNotConnected, err)
}
