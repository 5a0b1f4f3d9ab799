// Command xtherma-sim serves a simulated Xtherma heat pump over Modbus/TCP.
package main

import (
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"xtherma_bridge/internal/registers"
	"xtherma_bridge/internal/simulator"
)

var (
	flagListen  = flag.String("listen", "127.0.0.1:5020", "Modbus/TCP listen address")
	flagUnitID  = flag.Uint("unit-id", 1, "Modbus unit ID (0-247)")
	flagFixture = flag.String("fixture", "", "YAML file of display values (default: built-in values)")
	flagDebug   = flag.Bool("debug", false, "Log every request")
)

func main() {
	flag.Parse()

	level := slog.LevelInfo
	if *flagDebug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))

	if *flagUnitID > 247 {
		logger.Error("Invalid unit id", "unit_id", *flagUnitID)
		os.Exit(1)
	}

	dev := simulator.NewDevice(registers.Modbus(), uint8(*flagUnitID), logger)
	if err := dev.Apply(simulator.DefaultValues); err != nil {
		logger.Error("Failed to apply default values", "error", err)
		os.Exit(1)
	}
	if *flagFixture != "" {
		if err := dev.LoadFixture(*flagFixture); err != nil {
			logger.Error("Failed to load fixture", "path", *flagFixture, "error", err)
			os.Exit(1)
		}
	}

	srv, err := dev.Serve(*flagListen)
	if err != nil {
		logger.Error("Failed to start simulator", "error", err)
		os.Exit(1)
	}

	// SIGUSR1 toggles the busy state to exercise client retry handling.
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGUSR1)

	busy := false
	for sig := range sigChan {
		if sig == syscall.SIGUSR1 {
			busy = !busy
			dev.SetBusy(busy)
			logger.Info("Busy state changed", "busy", busy)
			continue
		}
		break
	}

	logger.Info("Shutting down")
	srv.Stop()
	logger.Info("Simulator stopped", "writes", dev.Writes())
}
