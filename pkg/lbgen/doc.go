/*
Package lbgen rebuilds the downstream proxy's configuration file from
the convergence core's Model on every cycle and feeds the frontend
hosts it just generated back into the model as synthetic DNS entries.

# Parsing and aggregation

lb.http entries parse as "host:port"; lb.tcp entries try "host:front:back"
first and fall back to "host:port" (front == back). Malformed entries are
logged and skipped — the rest of the workload still registers.

HTTP routes group by host: one ACL (hostACL) and use_backend line per
host in the frontend, one backend with one server line per registered
workload. TCP routes group by front_port, not host: one frontend/backend
pair per port, aggregating every workload's backend across hosts that
share the port.

# Synthetic DNS

Before aggregating, Generate flushes every DNS entry it previously
minted for the daemon's own source_id (key "<selfID>_<host>"), then
re-adds one per aggregated HTTP/TCP host pointing at the daemon's own
IP. This guarantees a host dropped from the LB table never leaves a
stale DNS entry behind.

# Reload protocol

The rendered config is diffed against the last-written text; on change
it's written to disk and the proxy-reload helper is invoked with the
file path. A reload failure is logged, not fatal — the proxy keeps
serving its last-loaded config until the next cycle succeeds.

# See Also

  - pkg/core, the sole caller, which holds the model lock across Generate
  - pkg/dnsgen, which renders the synthetic entries this package adds
*/
package lbgen
