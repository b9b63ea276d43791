/*
Package types defines the data model shared by every beacond package.

It has no knowledge of containerd, libvirt, DNS, or HAProxy: it only
describes the shapes that flow between them.

# Core Types

Workload is what an adapter produces for one running container or
virtual machine: an identity, an IP, and the recognized subset of its
labels. Labels exposes typed accessors for the six keys beacond
understands (dns.domain, dns.wildcard, dns.aliases, lb.domain, lb.http,
lb.tcp) so adapters and the convergence core never parse raw strings
more than once.

DnsEntry and LbEntry are the convergence core's two projections of a
Workload, one per generator. HTTPRoute and TCPRoute are the parsed form
of an LbEntry's raw lb.http/lb.tcp values, produced by pkg/lbgen.

Model is the core's full state: two maps keyed by source_id. It holds
no lock of its own — pkg/core is responsible for serializing access.

# See Also

  - pkg/core for the mutex-guarded owner of a Model
  - pkg/dnsgen and pkg/lbgen for the two consumers of DnsEntry/LbEntry
*/
package types
