/*
Package log provides structured logging for beacond using zerolog.

It wraps zerolog to give every component a JSON- or console-formatted
logger with a configurable level and small helpers for the context
fields beacond attaches most often.

# Usage

Initializing the logger:

	log.Init(log.Config{
		Level:      log.InfoLevel,
		JSONOutput: true,
		Output:     os.Stdout,
	})

Simple logging:

	log.Info("convergence cycle complete")
	log.Warn("conflicting front_port across workloads")
	log.Fatal("cannot reach containerd socket")

Component and source-scoped loggers:

	adapterLog := log.WithComponent("containeradapter")
	adapterLog.Info().Msg("subscribed to task events")

	sourceLog := log.WithSourceID("container:abc123")
	sourceLog.Debug().Msg("ip resolved")

# Log Levels

Debug is for adapter polling detail and template-render dumps under
--dry-run. Info is the default production level — one line per
convergence cycle and per reload. Warn marks non-fatal inconsistencies
(the §9 conflicting-front_port case). Error marks a failed enumeration,
generation, or reload attempt that beacond recovers from on its own.
Fatal is used at startup when the daemon's own address cannot be
determined. The other startup failures (an adapter socket that exists
but cannot be connected to, a self workload that cannot be matched
against any running container) are returned as errors from the root
command, which exits non-zero; an absent socket only disables its
adapter.

# See Also

  - pkg/metrics for the numeric counterpart to these log lines
  - pkg/core, pkg/dnsgen, pkg/lbgen for the main callers
*/
package log
