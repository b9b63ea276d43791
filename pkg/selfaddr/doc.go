/*
Package selfaddr determines the daemon's own address and hostname. The
container adapter uses it to attribute host-network containers' IP and
to find the daemon's own container during self-discovery; the address
is also where synthetic load-balancer DNS entries point.

# Usage

	addr, err := selfaddr.Detect(cfg.ExternalIP)
	if err != nil {
		log.Logger.Fatal().Err(err).Msg("could not determine self address")
	}

EXTERNAL_IP, when set, always wins over auto-detection — it exists for
hosts with multiple interfaces where the heuristic below guesses wrong.

# Auto-detection

Without an override, Detect walks net.InterfaceAddrs, skips loopback
and link-local addresses, and takes the first remaining IPv4 address.
os.Hostname() supplies the hostname half.

# See Also

  - pkg/containeradapter, which uses this to flag host-network-mode containers
*/
package selfaddr
