// Package checksum implements the RFC 1624 incremental update of a 16-bit
// one's-complement checksum after a header field changes.
package checksum

import "encoding/binary"

func fold16(sum uint32) uint16 {
	sum = (sum & 0xFFFF) + (sum >> 16)
	sum = (sum & 0xFFFF) + (sum >> 16)
	return uint16(sum)
}

// Update16 returns csum adjusted for one 16-bit word changing from old to new:
// fold16(csum + old + ^new).
func Update16(csum, old, new uint16) uint16 {
	return fold16(uint32(csum) + uint32(old) + uint32(^new))
}

// Port is Update16 that leaves a zero checksum alone. A zero UDP checksum
// means "no checksum" and must stay zero.
func Port(csum, old, new uint16) uint16 {
	if csum == 0 {
		return 0
	}
	return Update16(csum, old, new)
}

// RewritePort overwrites the big-endian port at portOff with newPort and
// patches the checksum at csumOff. It returns the previous port. Callers
// bounds-check both offsets.
func RewritePort(b []byte, portOff, csumOff int, newPort uint16) uint16 {
	old := binary.BigEndian.Uint16(b[portOff:])
	binary.BigEndian.PutUint16(b[portOff:], newPort)
	csum := binary.BigEndian.Uint16(b[csumOff:])
	binary.BigEndian.PutUint16(b[csumOff:], Port(csum, old, newPort))
	return old
}
