package domain

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
)

// DomainKeySize is the packed encoded size of a DomainKey.
const DomainKeySize = 4 + DomainMaxLen

var (
	ErrEmptyDomain   = errors.New("empty domain")
	ErrDomainTooLong = errors.New("encoded domain exceeds 64 bytes")
	ErrBadLabel      = errors.New("invalid domain label")
)

// DomainKey is the domain whitelist / domain cache key: the query name in
// DNS wire format ([len]label...), byte-reversed so that the trie's prefix
// order is the domain's suffix order, zero padded to 64 bytes.
//
//	"baidu.com" -> \x05baidu\x03com -> moc\x03udiab\x05
type DomainKey struct {
	PrefixLen uint32
	Domain    [DomainMaxLen]byte
}

// Reset zeroes the key.
func (k *DomainKey) Reset() {
	*k = DomainKey{}
}

// Len is the number of significant bytes.
func (k *DomainKey) Len() int {
	n := int(k.PrefixLen / 8)
	if n > DomainMaxLen {
		n = DomainMaxLen
	}
	return n
}

// Bytes returns the significant (reversed) bytes without copying.
func (k *DomainKey) Bytes() []byte {
	return k.Domain[:k.Len()]
}

// EncodeDomainKey wire-encodes a dotted name and reverses it. ASCII letters
// are folded to lower case, as the query decoder does.
func EncodeDomainKey(name string) (DomainKey, error) {
	var key DomainKey
	name = strings.Trim(name, ".")
	if name == "" {
		return key, ErrEmptyDomain
	}

	var wire [DomainMaxLen]byte
	pos := 0
	for _, label := range strings.Split(name, ".") {
		if len(label) == 0 || len(label) >= DNSLabelMaxLen {
			return key, fmt.Errorf("%w: %q", ErrBadLabel, label)
		}
		if pos+len(label)+1 > DomainMaxLen {
			return key, ErrDomainTooLong
		}
		wire[pos] = byte(len(label))
		pos++
		for i := 0; i < len(label); i++ {
			c := label[i]
			if 'A' <= c && c <= 'Z' {
				c += 'a' - 'A'
			}
			wire[pos] = c
			pos++
		}
	}

	key.PrefixLen = uint32(pos * 8)
	for i := 0; i < pos; i++ {
		key.Domain[i] = wire[pos-1-i]
	}
	return key, nil
}

// Name decodes the key back to a dotted name. ok is false when the bytes are
// not a well-formed label sequence, which a truncated query can produce.
func (k *DomainKey) Name() (string, bool) {
	n := k.Len()
	var wire [DomainMaxLen]byte
	for i := 0; i < n; i++ {
		wire[i] = k.Domain[n-1-i]
	}

	var sb strings.Builder
	for pos := 0; pos < n; {
		l := int(wire[pos])
		if l == 0 || pos+1+l > n {
			return "", false
		}
		if sb.Len() > 0 {
			sb.WriteByte('.')
		}
		sb.Write(wire[pos+1 : pos+1+l])
		pos += 1 + l
	}
	return sb.String(), sb.Len() > 0
}

// LabelAligned reports whether the significant bytes are a whole number of
// wire labels.
func (k *DomainKey) LabelAligned() bool {
	_, ok := k.Name()
	return ok
}

// MarshalBinary encodes the packed {prefixlen u32 host-endian, domain[64]} layout.
func (k DomainKey) MarshalBinary() ([]byte, error) {
	b := make([]byte, DomainKeySize)
	binary.NativeEndian.PutUint32(b[0:4], k.PrefixLen)
	copy(b[4:], k.Domain[:])
	return b, nil
}

// UnmarshalBinary decodes the MarshalBinary layout.
func (k *DomainKey) UnmarshalBinary(b []byte) error {
	if len(b) != DomainKeySize {
		return fmt.Errorf("domain key: want %d bytes, got %d", DomainKeySize, len(b))
	}
	prefixLen := binary.NativeEndian.Uint32(b[0:4])
	if prefixLen > DomainMaxLen*8 || prefixLen%8 != 0 {
		return fmt.Errorf("domain key: invalid prefix length %d", prefixLen)
	}
	k.PrefixLen = prefixLen
	copy(k.Domain[:], b[4:])
	return nil
}

func (k DomainKey) String() string {
	if name, ok := k.Name(); ok {
		return name
	}
	return fmt.Sprintf("%x/%d", k.Bytes(), k.PrefixLen)
}
