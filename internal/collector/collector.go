// Package collector implements the Prometheus collector interface over the
// values held by the update coordinator.
package collector

import (
	"log/slog"
	"sort"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"xtherma_bridge/internal/coordinator"
	"xtherma_bridge/internal/registers"
)

// Source is the part of the coordinator the collector reads from.
type Source interface {
	Snapshot() *coordinator.Snapshot
	Stats() coordinator.Stats
	LastUpdateSuccess() bool
	Lookup(key string) (registers.Descriptor, bool)
}

// XthermaCollector implements prometheus.Collector for an Xtherma heat pump.
// Collect never talks to the device; it exports the latest snapshot.
type XthermaCollector struct {
	source  Source
	logger  *slog.Logger
	metrics *MetricSet
	now     func() time.Time
}

// NewXthermaCollector creates a new collector. serial may be empty.
func NewXthermaCollector(source Source, serial string, logger *slog.Logger) *XthermaCollector {
	return &XthermaCollector{
		source:  source,
		logger:  logger,
		metrics: newMetricSet(serial),
		now:     time.Now,
	}
}

// Describe implements prometheus.Collector.
func (c *XthermaCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.metrics.value
	ch <- c.metrics.enumState
	ch <- c.metrics.switchOn

	ch <- c.metrics.up
	ch <- c.metrics.lastSuccess
	ch <- c.metrics.snapshotAge
	ch <- c.metrics.pollDuration
	ch <- c.metrics.polls
	ch <- c.metrics.pollFailures
	ch <- c.metrics.writes
	ch <- c.metrics.writeFailures
	ch <- c.metrics.pendingWrites

	c.metrics.scrapeDuration.Describe(ch)
}

// Collect implements prometheus.Collector.
func (c *XthermaCollector) Collect(ch chan<- prometheus.Metric) {
	start := time.Now()
	defer func() {
		c.metrics.scrapeDuration.Observe(time.Since(start).Seconds())
		c.metrics.scrapeDuration.Collect(ch)
	}()

	snap := c.source.Snapshot()
	c.emitValueMetrics(ch, snap)
	c.emitPollMetrics(ch, snap, c.source.Stats())
}

// emitValueMetrics emits one gauge per snapshot value, plus one-hot and
// switch series for enums and booleans.
func (c *XthermaCollector) emitValueMetrics(ch chan<- prometheus.Metric, snap *coordinator.Snapshot) {
	keys := make([]string, 0, len(snap.Values))
	for k := range snap.Values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		v := snap.Values[key]
		d, ok := c.source.Lookup(key)
		if !ok {
			// values the register table does not know are still exported
			ch <- prometheus.MustNewConstMetric(c.metrics.value, prometheus.GaugeValue, v,
				key, registers.KindDimensionless.String(), "", registers.Telemetry.String())
			continue
		}

		ch <- prometheus.MustNewConstMetric(c.metrics.value, prometheus.GaugeValue, v,
			key, d.Kind.String(), d.Unit, d.Category.String())

		switch d.Kind {
		case registers.KindEnum:
			current := d.Format(v)
			for _, opt := range d.Options {
				state := 0.0
				if opt == current {
					state = 1.0
				}
				ch <- prometheus.MustNewConstMetric(c.metrics.enumState, prometheus.GaugeValue, state, key, opt)
			}
		case registers.KindBoolean:
			state := 0.0
			if d.Format(v) == "on" {
				state = 1.0
			}
			ch <- prometheus.MustNewConstMetric(c.metrics.switchOn, prometheus.GaugeValue, state, key)
		}
	}
}

// emitPollMetrics emits coordinator health and activity counters.
func (c *XthermaCollector) emitPollMetrics(ch chan<- prometheus.Metric, snap *coordinator.Snapshot, stats coordinator.Stats) {
	up := 0.0
	if c.source.LastUpdateSuccess() {
		up = 1.0
	}
	ch <- prometheus.MustNewConstMetric(c.metrics.up, prometheus.GaugeValue, up)

	if !stats.LastSuccessfulAt.IsZero() {
		ch <- prometheus.MustNewConstMetric(c.metrics.lastSuccess, prometheus.GaugeValue, float64(stats.LastSuccessfulAt.Unix()))
	}
	if !snap.UpdatedAt.IsZero() {
		ch <- prometheus.MustNewConstMetric(c.metrics.snapshotAge, prometheus.GaugeValue, c.now().Sub(snap.UpdatedAt).Seconds())
	}

	ch <- prometheus.MustNewConstMetric(c.metrics.pollDuration, prometheus.GaugeValue, stats.LastPollDuration.Seconds())
	ch <- prometheus.MustNewConstMetric(c.metrics.polls, prometheus.CounterValue, float64(stats.Polls))
	for reason, n := range stats.Failures {
		ch <- prometheus.MustNewConstMetric(c.metrics.pollFailures, prometheus.CounterValue, float64(n), reason)
	}
	ch <- prometheus.MustNewConstMetric(c.metrics.writes, prometheus.CounterValue, float64(stats.Writes))
	ch <- prometheus.MustNewConstMetric(c.metrics.writeFailures, prometheus.CounterValue, float64(stats.WriteFailures))
	ch <- prometheus.MustNewConstMetric(c.metrics.pendingWrites, prometheus.GaugeValue, float64(stats.PendingWriteCount))

	c.logger.Debug("Metrics collected", "values", len(snap.Values), "polls", stats.Polls)
}
