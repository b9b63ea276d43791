/*
Package metrics defines and registers beacond's Prometheus metrics and
exposes them over HTTP for scraping.

# Metrics

	beacond_workloads_total{source}               gauge     source: all
	beacond_dns_entries                           gauge
	beacond_lb_entries                             gauge
	beacond_convergence_cycles_total{trigger}     counter   trigger: start|stop
	beacond_convergence_duration_seconds           histogram
	beacond_adapter_events_total{source,kind}     counter   kind: start|stop
	beacond_reloads_total{target,outcome}         counter   target: dns|lb; outcome: success|error
	beacond_generation_duration_seconds{generator} histogram  generator: dns|lb

# Usage

	timer := metrics.NewTimer()
	core.converge()
	timer.ObserveDuration(metrics.ConvergenceDuration)
	metrics.ConvergenceCyclesTotal.WithLabelValues("start").Inc()

	http.Handle("/metrics", metrics.Handler())

# See Also

  - pkg/core, which drives most of these on every Start/Stop
*/
package metrics
