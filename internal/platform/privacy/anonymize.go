// Package privacy reduces client identifiers before they reach logs.
package privacy

import (
	"net"
	"net/netip"
)

const (
	ipv4Bits = 24
	ipv6Bits = 48
)

// ClientIP returns the anonymized network of a request's RemoteAddr
// ("host:port" or bare host). IPv4 keeps its /24 and IPv6 its /48.
// Empty input yields "unknown" and unparseable input "invalid".
func ClientIP(remoteAddr string) string {
	if remoteAddr == "" {
		return "unknown"
	}
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	return AnonymizeIP(host)
}

// AnonymizeIP masks ip to its network prefix.
func AnonymizeIP(ip string) string {
	if ip == "" || ip == "unknown" {
		return "unknown"
	}
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return "invalid"
	}
	addr = addr.Unmap().WithZone("")

	bits := ipv6Bits
	if addr.Is4() {
		bits = ipv4Bits
	}
	prefix, err := addr.Prefix(bits)
	if err != nil {
		return "invalid"
	}
	return prefix.Addr().String()
}
