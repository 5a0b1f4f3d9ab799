package collector

import (
	"github.com/prometheus/client_golang/prometheus"

	"xtherma_bridge/internal/mapper"
)

// MetricSet holds all Prometheus metric descriptors for the Xtherma bridge.
type MetricSet struct {
	// Register values
	value     *prometheus.Desc
	enumState *prometheus.Desc
	switchOn  *prometheus.Desc

	// Poll status
	up            *prometheus.Desc
	lastSuccess   *prometheus.Desc
	snapshotAge   *prometheus.Desc
	pollDuration  *prometheus.Desc
	polls         *prometheus.Desc
	pollFailures  *prometheus.Desc
	writes        *prometheus.Desc
	writeFailures *prometheus.Desc
	pendingWrites *prometheus.Desc

	// Scrape metrics
	scrapeDuration prometheus.Histogram
}

// newMetricSet creates all metric descriptors. A non-empty serial is attached
// to every metric as a constant label.
func newMetricSet(serial string) *MetricSet {
	var constLabels prometheus.Labels
	if serial != "" {
		constLabels = prometheus.Labels{mapper.LabelSerial: serial}
	}
	labels := []string{mapper.LabelKey, mapper.LabelKind, mapper.LabelUnit, mapper.LabelCategory}

	return &MetricSet{
		value: prometheus.NewDesc(
			"xtherma_value",
			"Current display value of a register",
			labels, constLabels,
		),
		enumState: prometheus.NewDesc(
			"xtherma_enum_state",
			"Enum register one-hot (1 for the current option, 0 for others)",
			[]string{mapper.LabelKey, mapper.LabelOption}, constLabels,
		),
		switchOn: prometheus.NewDesc(
			"xtherma_switch_on",
			"Boolean register state (0/1)",
			[]string{mapper.LabelKey}, constLabels,
		),

		up: prometheus.NewDesc(
			"xtherma_up",
			"Last poll succeeded (1) / failed (0)",
			nil, constLabels,
		),
		lastSuccess: prometheus.NewDesc(
			"xtherma_last_success_timestamp_seconds",
			"Time of the last successful poll (unix seconds)",
			nil, constLabels,
		),
		snapshotAge: prometheus.NewDesc(
			"xtherma_snapshot_age_seconds",
			"Age of the values currently served",
			nil, constLabels,
		),
		pollDuration: prometheus.NewDesc(
			"xtherma_poll_duration_seconds",
			"Duration of the most recent poll",
			nil, constLabels,
		),
		polls: prometheus.NewDesc(
			"xtherma_polls_total",
			"Total number of polls",
			nil, constLabels,
		),
		pollFailures: prometheus.NewDesc(
			"xtherma_poll_failures_total",
			"Total number of failed polls by reason",
			[]string{mapper.LabelReason}, constLabels,
		),
		writes: prometheus.NewDesc(
			"xtherma_writes_total",
			"Total number of write attempts",
			nil, constLabels,
		),
		writeFailures: prometheus.NewDesc(
			"xtherma_write_failures_total",
			"Total number of failed writes",
			nil, constLabels,
		),
		pendingWrites: prometheus.NewDesc(
			"xtherma_pending_writes",
			"Written values still reported instead of device values",
			nil, constLabels,
		),

		scrapeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:        "xtherma_scrape_duration_seconds",
			Help:        "Time spent building metrics from the current snapshot",
			ConstLabels: constLabels,
			Buckets:     []float64{0.0005, 0.001, 0.005, 0.01, 0.05},
		}),
	}
}
