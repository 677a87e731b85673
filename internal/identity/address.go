package identity

import (
	"errors"
	"fmt"
	"net"
)

// ErrNoAddress is returned when no interface carries a usable IPv4 address.
var ErrNoAddress = errors.New("no non-loopback, non-link-local IPv4 address found")

// Interface is the part of a network interface the address policy looks at.
type Interface struct {
	Name  string
	Index int
	Flags net.Flags
	Addrs []net.Addr
}

// InterfaceLister enumerates the host's interfaces in a stable order.
type InterfaceLister func() ([]Interface, error)

// SystemInterfaces lists the host interfaces in kernel index order.
func SystemInterfaces() ([]Interface, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, fmt.Errorf("failed to list network interfaces: %w", err)
	}

	out := make([]Interface, 0, len(ifaces))
	for _, iface := range ifaces {
		addrs, err := iface.Addrs()
		if err != nil {
			// an interface that cannot report addresses has nothing to offer
			continue
		}
		out = append(out, Interface{
			Name:  iface.Name,
			Index: iface.Index,
			Flags: iface.Flags,
			Addrs: addrs,
		})
	}
	return out, nil
}

// SelectAddress applies the local address policy: walk the interfaces in the
// order given, skip those that are down or loopback, and return the first
// IPv4 address that is neither loopback nor link-local.
func SelectAddress(ifaces []Interface) (net.IP, string, error) {
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		for _, addr := range iface.Addrs {
			ip := addrIP(addr)
			if ip == nil {
				continue
			}
			ip4 := ip.To4()
			if ip4 == nil || ip4.IsLoopback() || ip4.IsLinkLocalUnicast() || ip4.IsUnspecified() {
				continue
			}
			return ip4, iface.Name, nil
		}
	}
	return nil, "", ErrNoAddress
}

func addrIP(addr net.Addr) net.IP {
	switch v := addr.(type) {
	case *net.IPNet:
		return v.IP
	case *net.IPAddr:
		return v.IP
	default:
		return nil
	}
}
