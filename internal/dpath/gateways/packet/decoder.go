package packet

import (
	"sync"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

// Decoder parses frames with a gopacket DecodingLayerParser whose layers are
// allocated once. A Decoder is not safe for concurrent use.
type Decoder struct {
	eth     layers.Ethernet
	ip4     layers.IPv4
	udp     layers.UDP
	parser  *gopacket.DecodingLayerParser
	decoded []gopacket.LayerType
}

func NewDecoder() *Decoder {
	d := &Decoder{decoded: make([]gopacket.LayerType, 0, 3)}
	d.parser = gopacket.NewDecodingLayerParser(layers.LayerTypeEthernet, &d.eth, &d.ip4, &d.udp)
	return d
}

var decoders = sync.Pool{
	New: func() any { return NewDecoder() },
}

// Parse reads Ethernet, IPv4 and, when present, UDP headers from frame using
// a pooled Decoder.
func Parse(frame []byte) (Packet, Status) {
	d := decoders.Get().(*Decoder)
	p, st := d.Parse(frame)
	decoders.Put(d)
	return p, st
}

// Parse reads Ethernet, IPv4 and, when present, UDP headers from frame.
// The returned views alias frame and stay valid after the next call.
func (d *Decoder) Parse(frame []byte) (Packet, Status) {
	var p Packet
	// Decoding stops at the first layer that fails or has no decoder
	// (TCP, DNS, fragments); d.decoded records how far it got.
	_ = d.parser.DecodeLayers(frame, &d.decoded)

	if len(d.decoded) == 0 {
		return p, StatusShortEthernet
	}
	c := NewCursor(frame)
	eth, ok := c.Take(EthernetLen)
	if !ok {
		return p, StatusShortEthernet
	}
	p.Eth = Ethernet(eth)
	if d.eth.EthernetType != layers.EthernetTypeIPv4 {
		return p, StatusNotIPv4
	}
	if len(d.decoded) < 2 {
		return p, ipv4Failure(c.Rest())
	}
	if d.ip4.Version != 4 {
		return p, StatusBadIPv4
	}
	ip, ok := c.Take(int(d.ip4.IHL) * 4)
	if !ok {
		return p, StatusShortIPv4
	}
	p.IP = IPv4(ip)

	if len(d.decoded) < 3 || d.decoded[2] != layers.LayerTypeUDP {
		return p, StatusOK
	}
	udp, ok := c.Take(UDPLen)
	if !ok {
		return p, StatusOK
	}
	p.UDP = UDP(udp)
	// trimmed to the IP and UDP lengths, so Ethernet padding is dropped
	p.Payload = d.udp.Payload
	return p, StatusOK
}

// ipv4Failure tells a truncated IPv4 header from a malformed one.
func ipv4Failure(rest []byte) Status {
	if len(rest) < IPv4MinLen {
		return StatusShortIPv4
	}
	h := IPv4(rest)
	if h.Version() != 4 || h.HeaderLen() < IPv4MinLen {
		return StatusBadIPv4
	}
	if h.HeaderLen() > len(rest) {
		return StatusShortIPv4
	}
	return StatusBadIPv4
}
