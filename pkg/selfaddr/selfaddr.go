package selfaddr

import (
	"fmt"
	"net"
	"os"
)

// Addr is the daemon's own network identity.
type Addr struct {
	IP       string
	Hostname string
}

// Detect returns the daemon's own address. override, when non-empty,
// is used verbatim as the IP (the EXTERNAL_IP configuration value);
// otherwise the first non-loopback IPv4 address on the host is used.
func Detect(override string) (Addr, error) {
	hostname, err := os.Hostname()
	if err != nil {
		return Addr{}, fmt.Errorf("determine hostname: %w", err)
	}

	if override != "" {
		return Addr{IP: override, Hostname: hostname}, nil
	}

	ip, err := primaryIPv4()
	if err != nil {
		return Addr{}, fmt.Errorf("determine primary address: %w", err)
	}
	return Addr{IP: ip, Hostname: hostname}, nil
}

// primaryIPv4 returns the first non-loopback, non-link-local IPv4
// address found among the host's network interfaces.
func primaryIPv4() (string, error) {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return "", fmt.Errorf("list interface addresses: %w", err)
	}

	for _, addr := range addrs {
		ipNet, ok := addr.(*net.IPNet)
		if !ok {
			continue
		}
		ip4 := ipNet.IP.To4()
		if ip4 == nil || ip4.IsLoopback() || ip4.IsLinkLocalUnicast() {
			continue
		}
		return ip4.String(), nil
	}
	return "", fmt.Errorf("no usable IPv4 address found")
}
