package discovery

import (
	"net"
	"sort"
)

// SortIPsByPreference orders addresses for dialing. MRP devices sit on the
// local network, so IPv4 comes first, followed by routable IPv6, ULA and
// link-local addresses.
func SortIPsByPreference(ips []net.IP) []net.IP {
	if len(ips) <= 1 {
		return ips
	}

	// Make a copy to avoid modifying the original slice
	sorted := make([]net.IP, len(ips))
	copy(sorted, ips)

	sort.SliceStable(sorted, func(i, j int) bool {
		return ipPriority(sorted[i]) < ipPriority(sorted[j])
	})

	return sorted
}

// ipPriority returns the priority of an IP address (lower is better).
func ipPriority(ip net.IP) int {
	ip = ip.To16()
	if ip == nil {
		return 99 // Invalid
	}

	if ip.IsLoopback() {
		return 80
	}
	if ip.IsMulticast() {
		return 90
	}
	if ip.To4() != nil {
		if ip.IsLinkLocalUnicast() {
			return 20 // 169.254/16, usually a host without DHCP
		}
		return 0
	}

	if isUniqueLocal(ip) {
		return 2
	}
	if ip.IsGlobalUnicast() {
		return 1
	}
	if ip.IsLinkLocalUnicast() {
		return 3 // needs a zone to dial
	}
	return 10
}

// isUniqueLocal returns true if the IP is an IPv6 Unique Local Address (ULA).
// ULA range: fc00::/7 (fc00:: to fdff::)
func isUniqueLocal(ip net.IP) bool {
	ip = ip.To16()
	if ip == nil {
		return false
	}
	return ip[0] == 0xfc || ip[0] == 0xfd
}
