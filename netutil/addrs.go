// Package netutil lists the local network addresses the CLI can be reached
// on, used to print LAN preview URLs when sharing a draft post with devices
// on the same network.
package netutil

import (
	"fmt"
	"net"
)

// Addr is one usable local address.
type Addr struct {
	Interface string
	IP        net.IP
}

// IsIPv4 reports whether the address is IPv4.
func (a Addr) IsIPv4() bool {
	return a.IP.To4() != nil
}

func (a Addr) String() string {
	return fmt.Sprintf("%s (%s)", a.IP, a.Interface)
}

// Addresses returns the unicast addresses of interfaces that are up,
// excluding loopback and link-local addresses.
func Addresses() ([]Addr, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, fmt.Errorf("failed to list interfaces: %w", err)
	}

	var addrs []Addr
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		ifAddrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, a := range ifAddrs {
			ip := ipOf(a)
			if usable(ip) {
				addrs = append(addrs, Addr{Interface: iface.Name, IP: ip})
			}
		}
	}
	return addrs, nil
}

func ipOf(a net.Addr) net.IP {
	switch v := a.(type) {
	case *net.IPNet:
		return v.IP
	case *net.IPAddr:
		return v.IP
	default:
		return nil
	}
}

// usable filters out loopback and link-local addresses, which other devices
// on the LAN cannot reach.
func usable(ip net.IP) bool {
	if ip == nil || ip.IsLoopback() {
		return false
	}
	return !ip.IsLinkLocalUnicast() && !ip.IsLinkLocalMulticast()
}
