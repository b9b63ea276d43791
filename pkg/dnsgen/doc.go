/*
Package dnsgen renders the resolver's hosts and wildcards files from the
convergence core's Model and reloads the resolver only when rendered
text actually changed.

# Files

Hosts file: one line per DnsEntry, "<ip> <fqdn> <hostname> <name>.<domain>
<name> <alias> …", deduplicated per line, FQDN first so the resolver
answers reverse lookups with it.

Wildcards file: one "address=/<host>/<ip>" line per DnsEntry with
Wildcard set, for every host name the entry publishes.

# Usage

	gen := dnsgen.New(cfg.DnsmasqHostsFile, cfg.DnsmasqWildcardsFile, supervisor)
	err := gen.Generate(model)

Generate diffs each file against its own last-written content
independently: a hosts change fires ReloadDNS, a wildcards change fires
RestartDNS, and either, both, or neither may fire in a given cycle.

# See Also

  - pkg/core, the sole caller, which holds the model lock across Generate
  - pkg/lbgen, which populates the model's synthetic DNS entries before
    dnsgen ever runs
*/
package dnsgen
