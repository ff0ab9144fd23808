package internal

import (
	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"inet.af/netaddr"
)

// PacketView is the read-only view of a packet that rules match against.
// Ports are only meaningful when the matching transport header is present.
type PacketView interface {
	HasIPv4Header() bool
	SourceAddress() netaddr.IP
	DestinationAddress() netaddr.IP
	HasTCPHeader() bool
	HasUDPHeader() bool
	SourcePort() Port
	DestinationPort() Port
}

type Protocol uint8

var (
	// https://elixir.bootlin.com/linux/latest/source/include/uapi/linux/in.h#L28
	ProtocolICMP Protocol = 1
	ProtocolTCP  Protocol = 6
	ProtocolUDP  Protocol = 17
)

func (p Protocol) String() string {
	switch p {
	case ProtocolICMP:
		return "icmp"
	case ProtocolTCP:
		return "tcp"
	case ProtocolUDP:
		return "udp"
	default:
		return "unknown"
	}
}

type Port uint16

// Probe is a hand-built IPv4 packet view. A probe without both addresses
// has no IPv4 header and only matches generic rules.
type Probe struct {
	Protocol Protocol
	Src      netaddr.IP
	Dst      netaddr.IP
	SrcPort  Port
	DstPort  Port
}

func (p Probe) HasIPv4Header() bool { return p.Src.Is4() && p.Dst.Is4() }
func (p Probe) SourceAddress() netaddr.IP { return p.Src }
func (p Probe) DestinationAddress() netaddr.IP { return p.Dst }
func (p Probe) HasTCPHeader() bool { return p.HasIPv4Header() && p.Protocol == ProtocolTCP }
func (p Probe) HasUDPHeader() bool { return p.HasIPv4Header() && p.Protocol == ProtocolUDP }
func (p Probe) SourcePort() Port { return p.SrcPort }
func (p Probe) DestinationPort() Port { return p.DstPort }

// packetView adapts a decoded gopacket.Packet.
type packetView struct {
	hasIPv4  bool
	src, dst netaddr.IP
	tcp      bool
	udp      bool
	sport    Port
	dport    Port
}

// NewPacketView reads the IPv4, TCP and UDP layers of p.
func NewPacketView(p gopacket.Packet) PacketView {
	var v packetView

	if ip, ok := p.Layer(layers.LayerTypeIPv4).(*layers.IPv4); ok {
		src, srcOK := netaddr.FromStdIP(ip.SrcIP)
		dst, dstOK := netaddr.FromStdIP(ip.DstIP)
		v.hasIPv4 = srcOK && dstOK
		v.src, v.dst = src, dst
	}
	if tcp, ok := p.Layer(layers.LayerTypeTCP).(*layers.TCP); ok {
		v.tcp = true
		v.sport, v.dport = Port(tcp.SrcPort), Port(tcp.DstPort)
	} else if udp, ok := p.Layer(layers.LayerTypeUDP).(*layers.UDP); ok {
		v.udp = true
		v.sport, v.dport = Port(udp.SrcPort), Port(udp.DstPort)
	}
	return &v
}

// DecodeEthernet decodes an Ethernet frame into a packet view. Frames that do
// not decode produce a view without IPv4 or transport headers.
func DecodeEthernet(data []byte) PacketView {
	return NewPacketView(gopacket.NewPacket(data, layers.LayerTypeEthernet, gopacket.DecodeOptions{Lazy: true, NoCopy: true}))
}

func (v *packetView) HasIPv4Header() bool { return v.hasIPv4 }
func (v *packetView) SourceAddress() netaddr.IP { return v.src }
func (v *packetView) DestinationAddress() netaddr.IP { return v.dst }
func (v *packetView) HasTCPHeader() bool { return v.tcp }
func (v *packetView) HasUDPHeader() bool { return v.udp }
func (v *packetView) SourcePort() Port { return v.sport }
func (v *packetView) DestinationPort() Port { return v.dport }
