package vmadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/digitalocean/go-libvirt"
	"github.com/digitalocean/go-qemu/qmp"
)

const ipPollInterval = 200 * time.Millisecond

// resolveIP waits for a domain to report an address, preferring the
// QEMU guest agent when its channel is declared and falling back to
// the network's DHCP lease table otherwise. It polls rather than
// blocking on a single call since neither source is guaranteed to
// have an answer the instant a domain starts. A timeout is not an
// error: the caller logs and skips registration.
func resolveIP(ctx context.Context, l *libvirt.Libvirt, dom libvirt.Domain, dx domainXML, timeout time.Duration) (string, bool, error) {
	mac, hasMAC := dx.firstInterfaceMAC()
	if !hasMAC {
		return "", false, fmt.Errorf("domain %s has no network interface", dom.Name)
	}

	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(ipPollInterval)
	defer ticker.Stop()

	socket, hasAgent := dx.guestAgentSocket()

	for {
		var ip string
		var err error
		if hasAgent {
			ip, err = ipFromGuestAgent(socket, mac)
		} else {
			network, hasNetwork := dx.firstInterfaceNetwork()
			if !hasNetwork {
				return "", false, fmt.Errorf("domain %s interface has no attached network", dom.Name)
			}
			ip, err = ipFromDHCPLease(l, network, mac)
		}
		if err == nil && ip != "" {
			return ip, true, nil
		}

		if time.Now().After(deadline) {
			return "", false, nil
		}
		select {
		case <-ctx.Done():
			return "", false, ctx.Err()
		case <-ticker.C:
		}
	}
}

// qmpGuestNetworkInterface is the subset of guest-network-get-interfaces'
// response this package reads.
type qmpGuestNetworkInterface struct {
	HardwareAddress string `json:"hardware-address"`
	IPAddresses     []struct {
		IPAddress     string `json:"ip-address"`
		IPAddressType string `json:"ip-address-type"`
	} `json:"ip-addresses"`
}

type qmpGuestNetworkResponse struct {
	Return []qmpGuestNetworkInterface `json:"return"`
}

// ipFromGuestAgent asks the QEMU guest agent, over its virtio-serial
// socket, for the guest's own view of its interfaces and returns the
// first IPv4 address belonging to the interface with the given MAC.
func ipFromGuestAgent(socketPath, mac string) (string, error) {
	mon, err := qmp.NewSocketMonitor("unix", socketPath, ipPollInterval)
	if err != nil {
		return "", fmt.Errorf("dial guest agent socket %s: %w", socketPath, err)
	}
	if err := mon.Connect(); err != nil {
		return "", fmt.Errorf("connect guest agent socket %s: %w", socketPath, err)
	}
	defer mon.Disconnect()

	raw, err := mon.Run([]byte(`{"execute":"guest-network-get-interfaces"}`))
	if err != nil {
		return "", fmt.Errorf("guest-network-get-interfaces: %w", err)
	}

	return parseGuestNetworkResponse(raw, mac)
}

// parseGuestNetworkResponse extracts the first non-loopback IPv4
// address belonging to the interface with the given MAC from a raw
// guest-network-get-interfaces response.
func parseGuestNetworkResponse(raw []byte, mac string) (string, error) {
	var resp qmpGuestNetworkResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", fmt.Errorf("decode guest-network-get-interfaces response: %w", err)
	}

	for _, iface := range resp.Return {
		if !strings.EqualFold(iface.HardwareAddress, mac) {
			continue
		}
		for _, addr := range iface.IPAddresses {
			if addr.IPAddressType != "ipv4" {
				continue
			}
			ip := net.ParseIP(addr.IPAddress)
			if ip != nil && !ip.IsLoopback() {
				return addr.IPAddress, nil
			}
		}
	}
	return "", nil
}

// ipFromDHCPLease looks up the lease with the latest expiry that
// libvirt's DHCP server holds for mac on network, used when a domain
// has no guest agent channel to ask directly. Leases are not filtered
// by whether they have already expired.
func ipFromDHCPLease(l *libvirt.Libvirt, network, mac string) (string, error) {
	net := libvirt.Network{Name: network}
	leases, _, err := l.NetworkGetDHCPLeases(net, libvirt.OptString{}, 1, 0)
	if err != nil {
		return "", fmt.Errorf("list dhcp leases for network %s: %w", network, err)
	}

	return newestLeaseForMAC(leases, mac), nil
}

// newestLeaseForMAC returns the address of the lease with the latest
// expiry among those matching mac, stripping any CIDR suffix
// libvirt's lease table may report.
func newestLeaseForMAC(leases []libvirt.NetworkDhcpLease, mac string) string {
	var best *libvirt.NetworkDhcpLease
	for i := range leases {
		lease := leases[i]
		if !strings.EqualFold(lease.Mac, mac) {
			continue
		}
		if best == nil || lease.Expirytime > best.Expirytime {
			best = &leases[i]
		}
	}
	if best == nil {
		return ""
	}
	host, _, ok := strings.Cut(best.Ipaddr, "/")
	if !ok {
		host = best.Ipaddr
	}
	return host
}
