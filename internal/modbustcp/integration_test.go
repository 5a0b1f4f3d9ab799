package modbustcp

import (
	"context"
	"errors"
	"net"
	"strconv"
	"testing"
	"time"

	"xtherma_bridge/internal/registers"
	"xtherma_bridge/internal/simulator"
	"xtherma_bridge/internal/types"
)

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

func startDevice(t *testing.T) (*simulator.Device, int) {
	t.Helper()
	port := freePort(t)

	dev := simulator.NewDevice(registers.Modbus(), 1, testLogger())
	if err := dev.Apply(simulator.DefaultValues); err != nil {
		t.Fatalf("Apply error: %v", err)
	}

	srv, err := dev.Serve(net.JoinHostPort("127.0.0.1", strconv.Itoa(port)))
	if err != nil {
		t.Skipf("cannot start simulator: %v", err)
	}
	t.Cleanup(func() { srv.Stop() })

	return dev, port
}

func TestSimulatorRoundTrip(t *testing.T) {
	dev, port := startDevice(t)

	c := NewClient(Config{Host: "127.0.0.1", Port: port, UnitID: 1, Timeout: 2 * time.Second}, registers.Modbus(), testLogger())
	defer c.Disconnect()

	ctx := context.Background()
	rs, err := c.Poll(ctx)
	if err != nil {
		t.Fatalf("Poll error: %v", err)
	}

	got := readingsByKey(rs)
	if got["tvl"].Value != "221" || got["tvl"].Factor != "/10" {
		t.Errorf("tvl = %+v, want 221 /10", got["tvl"])
	}
	if got["ta"].Value != "-35" {
		t.Errorf("ta = %+v, want -35", got["ta"])
	}
	if got["311"].Value != "-10" {
		t.Errorf("311 = %+v, want -10", got["311"])
	}

	if err := c.Write(ctx, "411", -20); err != nil {
		t.Fatalf("Write error: %v", err)
	}
	if raw, _ := dev.Raw("411"); raw != (20^65535)+1 {
		t.Errorf("device 411 = %d, want %d", raw, (20^65535)+1)
	}

	rs, err = c.Poll(ctx)
	if err != nil {
		t.Fatalf("second Poll error: %v", err)
	}
	if v := readingsByKey(rs)["411"].Value; v != "-20" {
		t.Errorf("411 after write = %s, want -20", v)
	}
}

func TestSimulatorBusyAndReadOnly(t *testing.T) {
	dev, port := startDevice(t)

	c := NewClient(Config{Host: "127.0.0.1", Port: port, UnitID: 1, Timeout: 2 * time.Second}, registers.Modbus(), testLogger())
	defer c.Disconnect()
	ctx := context.Background()

	dev.SetBusy(true)
	if _, err := c.Poll(ctx); !errors.Is(err, types.ErrBusy) {
		t.Errorf("Poll error = %v, want ErrBusy", err)
	}
	dev.SetBusy(false)

	// telemetry registers reject writes on the device
	if err := c.Write(ctx, "tvl", 200); !errors.Is(err, types.ErrModbus) {
		t.Errorf("Write(tvl) error = %v, want ErrModbus", err)
	}
	if dev.Writes() != 0 {
		t.Errorf("device writes = %d, want 0", dev.Writes())
	}
}

func TestConnectRefused(t *testing.T) {
	port := freePort(t)
	c := NewClient(Config{Host: "127.0.0.1", Port: port, Timeout: 500 * time.Millisecond}, registers.Modbus(), testLogger())

	if err := c.Connect(context.Background()); !errors.Is(err, types.ErrNotConnected) {
		t.Errorf("Connect error = %v, want ErrNotConnected", err)
	}
}
