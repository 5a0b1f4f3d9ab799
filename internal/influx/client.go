// Package influx records every successful poll as a point in InfluxDB v2.
package influx

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"xtherma_bridge/internal/config"
	"xtherma_bridge/internal/coordinator"
)

const (
	defaultConnectTimeout = 10 * time.Second

	// measurement is the InfluxDB measurement all values are written to.
	measurement = "xtherma"

	millisecondsPerSecond = 1000
)

// Source is the part of the coordinator the sink reads from.
type Source interface {
	Snapshot() *coordinator.Snapshot
	AddListener(fn func()) (remove func())
}

// Sink writes one point per new snapshot. Writes are batched and
// non-blocking; errors are logged asynchronously.
type Sink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPI
	source   Source
	serial   string
	logger   *slog.Logger

	// last is the UpdatedAt of the last snapshot written. Only touched from
	// the listener, which the coordinator never calls concurrently.
	last   time.Time
	remove func()
}

// Connect pings the server and starts writing after every poll.
func Connect(cfg config.InfluxDBConfig, source Source, serial string, logger *slog.Logger) (*Sink, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}

	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 100
	}
	flushInterval := cfg.FlushInterval
	if flushInterval <= 0 {
		flushInterval = 10
	}

	client := influxdb2.NewClientWithOptions(
		cfg.URL,
		cfg.Token,
		influxdb2.DefaultOptions().
			SetBatchSize(uint(batchSize)).
			SetFlushInterval(uint(flushInterval)*millisecondsPerSecond),
	)

	ctx, cancel := context.WithTimeout(context.Background(), defaultConnectTimeout)
	defer cancel()

	healthy, err := client.Ping(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: ping failed: %w", ErrConnectionFailed, err)
	}
	if !healthy {
		client.Close()
		return nil, fmt.Errorf("%w: server not healthy", ErrConnectionFailed)
	}

	s := &Sink{
		client:   client,
		writeAPI: client.WriteAPI(cfg.Org, cfg.Bucket),
		source:   source,
		serial:   serial,
		logger:   logger,
	}
	go s.handleWriteErrors(s.writeAPI.Errors())

	s.remove = source.AddListener(s.record)
	logger.Info("InfluxDB sink started", "url", cfg.URL, "bucket", cfg.Bucket)
	return s, nil
}

func (s *Sink) handleWriteErrors(errorsCh <-chan error) {
	for err := range errorsCh {
		s.logger.Warn("InfluxDB write failed", "error", err)
	}
}

// record writes the current snapshot unless it was already written. Failed
// polls and writes leave UpdatedAt unchanged and are skipped.
func (s *Sink) record() {
	snap := s.source.Snapshot()
	if snap.UpdatedAt.IsZero() || !snap.UpdatedAt.After(s.last) {
		return
	}
	s.last = snap.UpdatedAt

	if p := buildPoint(snap, s.serial); p != nil {
		s.writeAPI.WritePoint(p)
	}
}

// buildPoint turns a snapshot into a single point with one field per key.
// It returns nil for an empty snapshot.
func buildPoint(snap *coordinator.Snapshot, serial string) *write.Point {
	if len(snap.Values) == 0 {
		return nil
	}

	fields := make(map[string]interface{}, len(snap.Values))
	for key, v := range snap.Values {
		fields[key] = v
	}

	tags := map[string]string{}
	if serial != "" {
		tags["serial"] = serial
	}

	return write.NewPoint(measurement, tags, fields, snap.UpdatedAt)
}

// Close flushes pending points and closes the client.
func (s *Sink) Close() error {
	if s.remove != nil {
		s.remove()
	}
	s.writeAPI.Flush()
	s.client.Close()
	return nil
}
