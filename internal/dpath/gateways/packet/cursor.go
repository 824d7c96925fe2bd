// Package packet parses Ethernet/IPv4/UDP frames in place. gopacket decodes
// the headers into reused layers; the views handed out are then cut from the
// frame with a bounds-checked Cursor, so setters modify the frame directly.
package packet

import (
	"encoding/binary"
	"fmt"

	"github.com/netaccel/direct-path/internal/dpath/gateways/checksum"
)

const (
	EthernetLen = 14
	IPv4MinLen  = 20
	UDPLen      = 8
)

// Cursor walks a frame front to back.
type Cursor struct {
	buf []byte
	off int
}

func NewCursor(b []byte) *Cursor { return &Cursor{buf: b} }

// Take returns the next n bytes and advances, or ok=false if fewer remain.
func (c *Cursor) Take(n int) ([]byte, bool) {
	if n < 0 || c.off+n > len(c.buf) {
		return nil, false
	}
	b := c.buf[c.off : c.off+n : c.off+n]
	c.off += n
	return b, true
}

// Offset is the number of bytes consumed so far.
func (c *Cursor) Offset() int { return c.off }

// Rest returns the unconsumed bytes without advancing.
func (c *Cursor) Rest() []byte { return c.buf[c.off:] }

// Ethernet is an untagged Ethernet II header.
type Ethernet []byte

func (e Ethernet) EtherType() uint16 { return binary.BigEndian.Uint16(e[12:14]) }

// IPv4 is an IPv4 header including options.
type IPv4 []byte

func (h IPv4) Version() uint8   { return h[0] >> 4 }
func (h IPv4) HeaderLen() int   { return int(h[0]&0x0F) * 4 }
func (h IPv4) Protocol() uint8  { return h[9] }
func (h IPv4) Src() uint32      { return binary.BigEndian.Uint32(h[12:16]) }
func (h IPv4) Dst() uint32      { return binary.BigEndian.Uint32(h[16:20]) }
func (h IPv4) TotalLen() uint16 { return binary.BigEndian.Uint16(h[2:4]) }

// UDP is a UDP header.
type UDP []byte

func (u UDP) SrcPort() uint16  { return binary.BigEndian.Uint16(u[0:2]) }
func (u UDP) DstPort() uint16  { return binary.BigEndian.Uint16(u[2:4]) }
func (u UDP) Length() uint16   { return binary.BigEndian.Uint16(u[4:6]) }
func (u UDP) Checksum() uint16 { return binary.BigEndian.Uint16(u[6:8]) }

// SetSrcPort rewrites the source port and patches the checksum unless it is
// zero. It returns the old port.
func (u UDP) SetSrcPort(p uint16) uint16 { return checksum.RewritePort(u, 0, 6, p) }

// SetDstPort rewrites the destination port like SetSrcPort.
func (u UDP) SetDstPort(p uint16) uint16 { return checksum.RewritePort(u, 2, 6, p) }

// Status is the outcome of Parse.
type Status uint8

const (
	StatusOK Status = iota
	StatusShortEthernet
	StatusNotIPv4
	StatusShortIPv4
	StatusBadIPv4
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusShortEthernet:
		return "short_ethernet"
	case StatusNotIPv4:
		return "not_ipv4"
	case StatusShortIPv4:
		return "short_ipv4"
	case StatusBadIPv4:
		return "bad_ipv4"
	default:
		return fmt.Sprintf("Status(%d)", s)
	}
}

// Packet holds the header views of one frame. UDP and Payload are nil unless
// the protocol is UDP and the UDP header fits. Payload ends at the UDP length,
// the IPv4 total length or the end of the frame, whichever comes first.
type Packet struct {
	Eth     Ethernet
	IP      IPv4
	UDP     UDP
	Payload []byte
}

// IsUDP reports whether a UDP header was parsed.
func (p *Packet) IsUDP() bool { return p.UDP != nil }
