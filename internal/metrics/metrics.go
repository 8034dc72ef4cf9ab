// Package metrics exposes reconciler activity as Prometheus metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/Marsunpaisti/EspressoRaspberryPi/internal/telemetry"
)

// Metrics implements reconcile.Observer.
type Metrics struct {
	inserted   prometheus.Counter
	duplicates prometheus.Counter
	rejected   prometheus.Counter
	evicted    prometheus.Counter
	expired    prometheus.Counter
	batches    prometheus.Counter
	configs    prometheus.Counter
	commands   *prometheus.CounterVec
	connected  prometheus.Gauge
	buffered   prometheus.Gauge
}

// New creates the metrics and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		inserted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "espresso_samples_inserted_total",
			Help: "Telemetry samples stored in the rolling history.",
		}),
		duplicates: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "espresso_samples_duplicate_total",
			Help: "Telemetry samples ignored because their timestamp was already stored.",
		}),
		rejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "espresso_samples_rejected_total",
			Help: "Malformed telemetry samples that were not stored.",
		}),
		evicted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "espresso_samples_evicted_total",
			Help: "Stored samples dropped to stay within capacity.",
		}),
		expired: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "espresso_samples_expired_total",
			Help: "Samples older than the full history window, dropped on arrival.",
		}),
		batches: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "espresso_history_batches_total",
			Help: "Backfill batches merged.",
		}),
		configs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "espresso_config_snapshots_total",
			Help: "Controller config snapshots applied.",
		}),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "espresso_commands_sent_total",
			Help: "Setpoint commands handed to the transport.",
		}, []string{"param"}),
		connected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "espresso_connected",
			Help: "1 while the controller connection is up.",
		}),
		buffered: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "espresso_buffer_samples",
			Help: "Samples currently held in the rolling history.",
		}),
	}

	reg.MustRegister(
		m.inserted, m.duplicates, m.rejected, m.evicted, m.expired,
		m.batches, m.configs, m.commands, m.connected, m.buffered,
	)
	return m
}

// SampleInserted records the outcome of a single insert.
func (m *Metrics) SampleInserted(res telemetry.InsertResult) {
	switch res.Status {
	case telemetry.Inserted:
		m.inserted.Inc()
	case telemetry.Duplicate:
		m.duplicates.Inc()
	case telemetry.Rejected:
		m.rejected.Inc()
	case telemetry.Expired:
		m.expired.Inc()
	}
	m.evicted.Add(float64(res.Evicted))
}

// HistoryMerged records the outcome of a backfill merge.
func (m *Metrics) HistoryMerged(res telemetry.BatchResult) {
	m.batches.Inc()
	m.inserted.Add(float64(res.Inserted))
	m.duplicates.Add(float64(res.Duplicates))
	m.rejected.Add(float64(len(res.Rejected)))
	m.expired.Add(float64(res.Expired))
	m.evicted.Add(float64(res.Evicted))
}

// ConfigReplaced counts an applied config snapshot.
func (m *Metrics) ConfigReplaced() {
	m.configs.Inc()
}

// ConnectionChanged sets the connection gauge.
func (m *Metrics) ConnectionChanged(connected bool) {
	if connected {
		m.connected.Set(1)
	} else {
		m.connected.Set(0)
	}
}

// CommandSent counts a command for param.
func (m *Metrics) CommandSent(param telemetry.Param) {
	m.commands.WithLabelValues(string(param)).Inc()
}

// BufferLength sets the buffered samples gauge.
func (m *Metrics) BufferLength(n int) {
	m.buffered.Set(float64(n))
}
