/*
Package containeradapter turns a containerd socket into a stream of
workload.start/workload.stop events plus a one-shot enumeration of
currently running containers, both in terms of pkg/types.Workload.

The adapter is optional: New returns a nil *Adapter, nil error when
the configured socket does not exist, and every method on *Adapter
tolerates a nil receiver by acting as a no-op. Callers do not need to
branch on adapter presence.

# Host network mode

A container sharing the host's network namespace (an empty-Path
network namespace entry in its OCI spec, or the containerd label
"network=host") is reported with the daemon's own IP rather than one
read from its network namespace.

# IP resolution

A container's primary IPv4 address is read from
/proc/<pid>/net/fib_trie of its task, avoiding a shell-out to "ip" or
"nsenter" for an address the kernel already exposes over procfs.

# Inspection cache

Enumerate and the /tasks/start handler share a per-container-ID cache
of inspection results, invalidated when a /tasks/exit event for that
ID arrives.

# See Also

  - pkg/vmadapter, the other workload source adapter
  - pkg/events, whose Broker receives this package's events
  - pkg/selfaddr, used to attribute host-network containers' IP
*/
package containeradapter
