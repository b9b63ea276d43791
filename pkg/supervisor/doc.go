/*
Package supervisor implements beacond's supervision hook: the two
opaque operations pkg/dnsgen and pkg/lbgen call after writing a
regenerated file.

Supervisor assumes the resolver and the proxy are already running
under an external process supervisor — it never launches either
itself, unlike pkg/embedded's bundled-containerd manager. Its two
responsibilities:

  - ReloadDNS / RestartDNS signal the resolver's pid, read from a pid
    file, with SIGHUP or SIGTERM respectively.
  - ReloadProxy execs a separate helper binary (cmd/beacond-lbreload),
    passing it the config path, and surfaces its exit status.

# Usage

	s := supervisor.New(cfg.DnsmasqPIDFile, cfg.LBReloadHelper)
	dg := dnsgen.New(cfg.DnsmasqHostsFile, cfg.DnsmasqWildcardsFile, s)
	lg := lbgen.New(cfg.HAProxyConfigTemplate, cfg.HAProxyConfigFile, s)

A failure from either hook is logged by the caller, not fatal: the
resolver or proxy keeps serving its last-loaded state until the next
convergence cycle tries again.

# See Also

  - cmd/beacond-lbreload, the helper ReloadProxy invokes
  - pkg/dnsgen and pkg/lbgen, whose Reloader interfaces this package implements
*/
package supervisor
