/*
Package core owns the convergence model: two maps, keyed by source_id,
holding every known workload's DNS and load-balancer projection.

A single mutex guards the whole model. Start and Stop are the only
mutating entry points; both acquire the lock, mutate, run the
load-balancer generator and then the DNS generator in that order (so
synthetic DNS entries are current before DNS renders), and release the
lock before returning.

# Usage

	dg := dnsgen.New(cfg.DnsmasqHostsFile, cfg.DnsmasqWildcardsFile, supervisor)
	lg := lbgen.New(cfg.HAProxyConfigTemplate, cfg.HAProxyConfigFile, supervisor)
	c := core.New(selfID, selfAddr.IP, cfg.DNSDomain, cfg.DNSWildcard, cfg.LBDomain, dg, lg)

	c.Start(workload) // on an adapter's Start event
	c.Stop(sourceID)  // on an adapter's Stop event

No error returned by Start/Stop ever tears the core down: a generator
failure is logged and retried on the next event, per the error-handling
rule that only startup-time invariants are fatal.

# See Also

  - pkg/dnsgen and pkg/lbgen for the two generators this package drives
  - pkg/events, whose Broker delivers the Start/Stop calls in cmd/beacond
*/
package core
