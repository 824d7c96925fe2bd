package domain

import (
	"encoding/binary"
	"fmt"

	"github.com/netaccel/direct-path/internal/dpath/common/netaddr"
)

// IPKeySize is the encoded size of an IPKey.
const IPKeySize = 8

// IPKey is the blacklist / IP whitelist trie key. IPv4 is host order in
// memory; the encoded form carries it in network order after a host-endian
// prefix length, the layout the kernel LPM trie uses.
type IPKey struct {
	PrefixLen uint32
	IPv4      uint32
}

// NewIPKey builds a key with the host bits beyond prefixLen cleared.
func NewIPKey(ip uint32, prefixLen uint32) (IPKey, error) {
	if prefixLen > 32 {
		return IPKey{}, fmt.Errorf("prefix length %d out of range 0-32", prefixLen)
	}
	return IPKey{PrefixLen: prefixLen, IPv4: netaddr.Mask(ip, prefixLen)}, nil
}

// HostKey is the /32 probe key for ip.
func HostKey(ip uint32) IPKey {
	return IPKey{PrefixLen: 32, IPv4: ip}
}

// Data returns the network-order address bytes used for bitwise matching.
func (k IPKey) Data() [4]byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], k.IPv4)
	return b
}

// MarshalBinary encodes {prefixlen u32 host-endian, ipv4 u32 network order}.
func (k IPKey) MarshalBinary() ([]byte, error) {
	b := make([]byte, IPKeySize)
	binary.NativeEndian.PutUint32(b[0:4], k.PrefixLen)
	binary.BigEndian.PutUint32(b[4:8], k.IPv4)
	return b, nil
}

// UnmarshalBinary decodes the MarshalBinary layout.
func (k *IPKey) UnmarshalBinary(b []byte) error {
	if len(b) != IPKeySize {
		return fmt.Errorf("ip key: want %d bytes, got %d", IPKeySize, len(b))
	}
	prefixLen := binary.NativeEndian.Uint32(b[0:4])
	if prefixLen > 32 {
		return fmt.Errorf("ip key: prefix length %d out of range", prefixLen)
	}
	k.PrefixLen = prefixLen
	k.IPv4 = binary.BigEndian.Uint32(b[4:8])
	return nil
}

func (k IPKey) String() string {
	return fmt.Sprintf("%s/%d", netaddr.ToAddr(k.IPv4), k.PrefixLen)
}
