// Package netaddr holds the IPv4 helpers shared by the packet path and the
// rule importer. Addresses are uint32 in host order: 10.1.2.3 == 0x0A010203.
package netaddr

import (
	"encoding/binary"
	"net/netip"
)

// IsPrivate reports whether ip is loopback (127/8) or RFC 1918
// (10/8, 172.16/12, 192.168/16).
func IsPrivate(ip uint32) bool {
	switch {
	case ip&0xFF000000 == 0x7F000000:
		return true
	case ip&0xFF000000 == 0x0A000000:
		return true
	case ip&0xFFF00000 == 0xAC100000:
		return true
	case ip&0xFFFF0000 == 0xC0A80000:
		return true
	}
	return false
}

// FromBytes reads a 4-byte network-order address.
func FromBytes(b []byte) uint32 {
	return binary.BigEndian.Uint32(b)
}

// FromAddr converts an IPv4 (or IPv4-mapped) netip.Addr. ok is false for IPv6.
func FromAddr(a netip.Addr) (uint32, bool) {
	a = a.Unmap()
	if !a.Is4() {
		return 0, false
	}
	b := a.As4()
	return binary.BigEndian.Uint32(b[:]), true
}

// ToAddr converts a host-order address back to netip.Addr.
func ToAddr(ip uint32) netip.Addr {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], ip)
	return netip.AddrFrom4(b)
}

// Mask clears the host bits of ip beyond prefixLen.
func Mask(ip uint32, prefixLen uint32) uint32 {
	if prefixLen == 0 {
		return 0
	}
	if prefixLen >= 32 {
		return ip
	}
	return ip & (^uint32(0) << (32 - prefixLen))
}
