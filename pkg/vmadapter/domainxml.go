package vmadapter

import "encoding/xml"

// guestAgentChannelName is the well-known virtio-serial channel name
// QEMU guest agents listen on.
const guestAgentChannelName = "org.qemu.guest_agent.0"

// domainXML is the minimal subset of libvirt's domain XML schema this
// package needs: the first network interface's MAC and attached
// network, and the guest-agent channel's host-side socket path, if
// one is declared.
type domainXML struct {
	Devices struct {
		Interfaces []struct {
			MAC struct {
				Address string `xml:"address,attr"`
			} `xml:"mac"`
			Source struct {
				Network string `xml:"network,attr"`
				Bridge  string `xml:"bridge,attr"`
			} `xml:"source"`
		} `xml:"interface"`
		Channels []struct {
			Source struct {
				Path string `xml:"path,attr"`
			} `xml:"source"`
			Target struct {
				Name string `xml:"name,attr"`
			} `xml:"target"`
		} `xml:"channel"`
	} `xml:"devices"`
}

func parseDomainXML(raw string) (domainXML, error) {
	var dx domainXML
	if err := xml.Unmarshal([]byte(raw), &dx); err != nil {
		return domainXML{}, err
	}
	return dx, nil
}

// firstInterfaceMAC returns the MAC address of the domain's first
// network interface, and false if it has none.
func (dx domainXML) firstInterfaceMAC() (string, bool) {
	if len(dx.Devices.Interfaces) == 0 {
		return "", false
	}
	mac := dx.Devices.Interfaces[0].MAC.Address
	return mac, mac != ""
}

// firstInterfaceNetwork returns the libvirt network name the
// domain's first interface is attached to.
func (dx domainXML) firstInterfaceNetwork() (string, bool) {
	if len(dx.Devices.Interfaces) == 0 {
		return "", false
	}
	net := dx.Devices.Interfaces[0].Source.Network
	return net, net != ""
}

// guestAgentSocket returns the host-side unix socket path of the
// domain's QEMU guest-agent channel, if one is declared.
func (dx domainXML) guestAgentSocket() (string, bool) {
	for _, ch := range dx.Devices.Channels {
		if ch.Target.Name == guestAgentChannelName {
			return ch.Source.Path, ch.Source.Path != ""
		}
	}
	return "", false
}
