// Package packettest builds Ethernet frames and DNS payloads for tests.
package packettest

import (
	"errors"
	"net"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/miekg/dns"
)

var (
	srcMAC = net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x01}
	dstMAC = net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x02}
)

// UDPFrame describes an Ethernet/IPv4/UDP frame.
type UDPFrame struct {
	Src, Dst         string
	SrcPort, DstPort uint16
	Payload          []byte
	// NoChecksum leaves the UDP checksum at zero.
	NoChecksum bool
	IPOptions  []layers.IPv4Option
}

// Build serializes the frame with lengths and checksums filled in.
func (f UDPFrame) Build() ([]byte, error) {
	ip, err := ipv4(f.Src, f.Dst, layers.IPProtocolUDP)
	if err != nil {
		return nil, err
	}
	ip.Options = f.IPOptions
	udp := &layers.UDP{SrcPort: layers.UDPPort(f.SrcPort), DstPort: layers.UDPPort(f.DstPort)}
	if err := udp.SetNetworkLayerForChecksum(ip); err != nil {
		return nil, err
	}

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	if err := gopacket.SerializeLayers(buf, opts, ethernet(), ip, udp, gopacket.Payload(f.Payload)); err != nil {
		return nil, err
	}
	frame := append([]byte(nil), buf.Bytes()...)
	if f.NoChecksum {
		off := 14 + int(frame[14]&0x0F)*4 + 6
		frame[off], frame[off+1] = 0, 0
	}
	return frame, nil
}

// TCPFrame serializes an Ethernet/IPv4/TCP SYN.
func TCPFrame(src, dst string, srcPort, dstPort uint16) ([]byte, error) {
	ip, err := ipv4(src, dst, layers.IPProtocolTCP)
	if err != nil {
		return nil, err
	}
	tcp := &layers.TCP{SrcPort: layers.TCPPort(srcPort), DstPort: layers.TCPPort(dstPort), SYN: true, Window: 64240}
	if err := tcp.SetNetworkLayerForChecksum(ip); err != nil {
		return nil, err
	}
	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	if err := gopacket.SerializeLayers(buf, opts, ethernet(), ip, tcp); err != nil {
		return nil, err
	}
	return append([]byte(nil), buf.Bytes()...), nil
}

// ARPFrame serializes a non-IPv4 frame.
func ARPFrame() ([]byte, error) {
	arp := &layers.ARP{
		AddrType:          layers.LinkTypeEthernet,
		Protocol:          layers.EthernetTypeIPv4,
		HwAddressSize:     6,
		ProtAddressSize:   4,
		Operation:         layers.ARPRequest,
		SourceHwAddress:   srcMAC,
		SourceProtAddress: net.IPv4(192, 168, 1, 2).To4(),
		DstHwAddress:      make(net.HardwareAddr, 6),
		DstProtAddress:    net.IPv4(192, 168, 1, 1).To4(),
	}
	eth := ethernet()
	eth.EthernetType = layers.EthernetTypeARP
	buf := gopacket.NewSerializeBuffer()
	if err := gopacket.SerializeLayers(buf, gopacket.SerializeOptions{FixLengths: true}, eth, arp); err != nil {
		return nil, err
	}
	return append([]byte(nil), buf.Bytes()...), nil
}

func ethernet() *layers.Ethernet {
	return &layers.Ethernet{SrcMAC: srcMAC, DstMAC: dstMAC, EthernetType: layers.EthernetTypeIPv4}
}

func ipv4(src, dst string, proto layers.IPProtocol) (*layers.IPv4, error) {
	s, d := net.ParseIP(src).To4(), net.ParseIP(dst).To4()
	if s == nil || d == nil {
		return nil, errors.New("packettest: invalid IPv4 address")
	}
	return &layers.IPv4{Version: 4, IHL: 5, TTL: 64, Protocol: proto, SrcIP: s, DstIP: d}, nil
}

// DNSQuery packs a single-question A query. mutate may adjust the message
// before packing.
func DNSQuery(name string, mutate func(*dns.Msg)) ([]byte, error) {
	m := new(dns.Msg)
	m.SetQuestion(dns.Fqdn(name), dns.TypeA)
	if mutate != nil {
		mutate(m)
	}
	return m.Pack()
}

// UDPChecksumValid recomputes the UDP checksum of frame from scratch and
// compares it with the one on the wire. A zero checksum is valid.
func UDPChecksumValid(frame []byte) (bool, error) {
	pkt := gopacket.NewPacket(frame, layers.LayerTypeEthernet, gopacket.Default)
	ip, _ := pkt.Layer(layers.LayerTypeIPv4).(*layers.IPv4)
	udp, _ := pkt.Layer(layers.LayerTypeUDP).(*layers.UDP)
	if ip == nil || udp == nil {
		return false, errors.New("packettest: not an IPv4/UDP frame")
	}
	if udp.Checksum == 0 {
		return true, nil
	}

	fresh := &layers.UDP{SrcPort: udp.SrcPort, DstPort: udp.DstPort, Length: udp.Length}
	if err := fresh.SetNetworkLayerForChecksum(ip); err != nil {
		return false, err
	}
	buf := gopacket.NewSerializeBuffer()
	if err := gopacket.SerializeLayers(buf, gopacket.SerializeOptions{ComputeChecksums: true}, fresh, gopacket.Payload(udp.Payload)); err != nil {
		return false, err
	}
	return fresh.Checksum == udp.Checksum, nil
}
