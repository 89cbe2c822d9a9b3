// Package metrics exposes Prometheus collectors for device and launch activity.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Launch outcomes used as the "outcome" label value.
const (
	OutcomeConnected   = "connected"
	OutcomeTimedOut    = "timed_out"
	OutcomeDaemonError = "daemon_error"
	OutcomeCreateError = "create_failed"
)

// Metrics holds the collectors on a private registry so tests can build
// as many instances as they like.
type Metrics struct {
	registry *prometheus.Registry

	DevicesConnected   prometheus.Gauge
	LaunchAttempts     *prometheus.CounterVec
	EmulatorFetch      prometheus.Histogram
	PromptCancellation prometheus.Counter
}

// New creates and registers all collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		DevicesConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "lazyflutter",
			Name:      "devices_connected",
			Help:      "Number of devices currently connected.",
		}),
		LaunchAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lazyflutter",
			Name:      "launch_attempts_total",
			Help:      "Emulator launch attempts by outcome.",
		}, []string{"outcome"}),
		EmulatorFetch: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "lazyflutter",
			Name:      "picker_emulator_fetch_seconds",
			Help:      "Time taken to list emulators for the pick-list.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 8),
		}),
		PromptCancellation: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "lazyflutter",
			Name:      "emulator_prompt_cancelled_total",
			Help:      "Emulator prompts cancelled because a real device connected.",
		}),
	}
	m.registry.MustRegister(m.DevicesConnected, m.LaunchAttempts, m.EmulatorFetch, m.PromptCancellation)
	return m
}

// Registry returns the underlying registry (used by tests).
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the collectors in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveLaunch records a finished launch attempt. Safe on a nil receiver.
func (m *Metrics) ObserveLaunch(outcome string) {
	if m == nil {
		return
	}
	m.LaunchAttempts.WithLabelValues(outcome).Inc()
}

// SetDevices records the connected device count. Safe on a nil receiver.
func (m *Metrics) SetDevices(n int) {
	if m == nil {
		return
	}
	m.DevicesConnected.Set(float64(n))
}

// ObserveFetch records an emulator listing duration. Safe on a nil receiver.
func (m *Metrics) ObserveFetch(seconds float64) {
	if m == nil {
		return
	}
	m.EmulatorFetch.Observe(seconds)
}

// PromptCancelled counts a prompt cancelled by a device connect. Safe on a nil receiver.
func (m *Metrics) PromptCancelled() {
	if m == nil {
		return
	}
	m.PromptCancellation.Inc()
}
