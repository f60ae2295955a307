package netutil

import (
	"net"
	"testing"
)

func TestUsable(t *testing.T) {
	tests := []struct {
		name string
		ip   net.IP
		want bool
	}{
		{"nil", nil, false},
		{"ipv4 loopback", net.ParseIP("127.0.0.1"), false},
		{"ipv6 loopback", net.ParseIP("::1"), false},
		{"ipv4 link-local", net.ParseIP("169.254.10.20"), false},
		{"ipv6 link-local", net.ParseIP("fe80::1"), false},
		{"private lan", net.ParseIP("192.168.1.42"), true},
		{"public", net.ParseIP("203.0.113.9"), true},
		{"ipv6 global", net.ParseIP("2001:db8::1"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := usable(tt.ip); got != tt.want {
				t.Errorf("usable(%v) = %v, want %v", tt.ip, got, tt.want)
			}
		})
	}
}

func TestIPOf(t *testing.T) {
	ipNet := &net.IPNet{IP: net.ParseIP("192.168.1.42"), Mask: net.CIDRMask(24, 32)}
	if got := ipOf(ipNet); !got.Equal(ipNet.IP) {
		t.Errorf("ipOf(IPNet) = %v, want %v", got, ipNet.IP)
	}

	ipAddr := &net.IPAddr{IP: net.ParseIP("2001:db8::1")}
	if got := ipOf(ipAddr); !got.Equal(ipAddr.IP) {
		t.Errorf("ipOf(IPAddr) = %v, want %v", got, ipAddr.IP)
	}

	if got := ipOf(&net.TCPAddr{IP: net.ParseIP("10.0.0.1")}); got != nil {
		t.Errorf("ipOf(TCPAddr) = %v, want nil", got)
	}
}

func TestAddr_IsIPv4(t *testing.T) {
	four := Addr{Interface: "eth0", IP: net.ParseIP("10.0.0.1")}
	if !four.IsIPv4() {
		t.Error("IsIPv4() = false for an IPv4 address")
	}
	six := Addr{Interface: "eth0", IP: net.ParseIP("2001:db8::1")}
	if six.IsIPv4() {
		t.Error("IsIPv4() = true for an IPv6 address")
	}
}

func TestAddresses_ReturnsNoUnusable(t *testing.T) {
	addrs, err := Addresses()
	if err != nil {
		t.Fatalf("Addresses() error = %v", err)
	}
	// The set depends on the host, but nothing filtered may leak through.
	for _, a := range addrs {
		if !usable(a.IP) {
			t.Errorf("Addresses() returned unusable %v", a)
		}
		if a.Interface == "" {
			t.Errorf("Addresses() returned %v with empty interface name", a.IP)
		}
	}
}
