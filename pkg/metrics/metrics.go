package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// WorkloadsTotal tracks the number of workloads currently known to
	// the convergence core. pkg/core only sets the source label value
	// "all"; counts are not split per adapter.
	WorkloadsTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "beacond_workloads_total",
			Help: "Total number of workloads currently tracked, by source",
		},
		[]string{"source"},
	)

	DNSEntriesTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "beacond_dns_entries",
			Help: "Total number of DNS entries in the current model",
		},
	)

	LBEntriesTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "beacond_lb_entries",
			Help: "Total number of load-balancer entries in the current model",
		},
	)

	// ConvergenceCyclesTotal counts Core.Start/Core.Stop invocations.
	ConvergenceCyclesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "beacond_convergence_cycles_total",
			Help: "Total number of convergence cycles completed, by trigger",
		},
		[]string{"trigger"}, // "start" or "stop"
	)

	ConvergenceDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "beacond_convergence_duration_seconds",
			Help:    "Time taken for one convergence cycle (lbgen + dnsgen) in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// AdapterEventsTotal counts workload events observed per adapter.
	AdapterEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "beacond_adapter_events_total",
			Help: "Total number of workload lifecycle events observed, by source and kind",
		},
		[]string{"source", "kind"}, // kind: "start" or "stop"
	)

	// ReloadsTotal counts reload/restart signals sent to the resolver
	// and proxy supervisors.
	ReloadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "beacond_reloads_total",
			Help: "Total number of reload/restart signals sent, by target and outcome",
		},
		[]string{"target", "outcome"}, // target: "dns" or "lb"; outcome: "success" or "error"
	)

	GenerationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "beacond_generation_duration_seconds",
			Help:    "Time taken to render a generated artifact, by generator",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"generator"}, // "dns" or "lb"
	)
)

func init() {
	prometheus.MustRegister(WorkloadsTotal)
	prometheus.MustRegister(DNSEntriesTotal)
	prometheus.MustRegister(LBEntriesTotal)
	prometheus.MustRegister(ConvergenceCyclesTotal)
	prometheus.MustRegister(ConvergenceDuration)
	prometheus.MustRegister(AdapterEventsTotal)
	prometheus.MustRegister(ReloadsTotal)
	prometheus.MustRegister(GenerationDuration)
}

// Handler returns the Prometheus HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}

// ObserveDurationVec records the duration to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	histogram.WithLabelValues(labels...).Observe(time.Since(t.start).Seconds())
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
