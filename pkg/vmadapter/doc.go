// Package vmadapter turns libvirt domain lifecycle events into
// workload.start/workload.stop events, the hypervisor counterpart of
// pkg/containeradapter.
//
// A domain's IP isn't known the instant it starts. This package
// resolves it one of two ways depending on what the domain XML
// declares: through the QEMU guest agent's virtio-serial channel when
// one is present, or by polling libvirt's own DHCP lease table
// otherwise. Both paths are polled on a short interval up to
// LIBVIRT_IP_TIMEOUT; a domain whose address never shows up is
// skipped rather than failing adapter startup.
//
// Like pkg/containeradapter, a nil *Adapter is a valid no-op: New
// returns one when the libvirt socket doesn't exist, and every method
// checks for it rather than requiring a separate "enabled" flag.
//
// Custom labels are read from a domain's <metadata> element under the
// dalidock URI, matching the label scheme already used by container
// workloads. A domain with no such element simply carries no labels.
//
// See Also: pkg/containeradapter, pkg/events, pkg/selfaddr
package vmadapter
