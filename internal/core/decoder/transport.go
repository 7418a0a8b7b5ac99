package decoder

import (
	"fmt"
	"net"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

const (
	arpHeaderMinLen = 8
	udpHeaderLen    = 8
	tcpHeaderMinLen = 20
	icmpHeaderLen   = 8
)

// ARP is an ARP packet.
type ARP struct {
	base
	AddrType          layers.LinkType
	Protocol          layers.EthernetType
	HwAddressSize     uint8
	ProtAddressSize   uint8
	Operation         uint16
	SourceHwAddress   net.HardwareAddr
	SourceProtAddress net.IP
	DstHwAddress      net.HardwareAddr
	DstProtAddress    net.IP
}

func (*ARP) Tag() Tag { return TagARP }

// UDP is a UDP header.
type UDP struct {
	base
	SrcPort  layers.UDPPort
	DstPort  layers.UDPPort
	Length   uint16 // header and data, as sent
	Checksum uint16
}

func (*UDP) Tag() Tag { return TagUDP }

// DataLen returns the number of payload bytes present after the header.
func (u *UDP) DataLen() int { return len(u.payload) }

// TCP is a TCP header, options included.
type TCP struct {
	base
	SrcPort                                    layers.TCPPort
	DstPort                                    layers.TCPPort
	Seq                                        uint32
	Ack                                        uint32
	DataOffset                                 uint8
	FIN, SYN, RST, PSH, ACK, URG, ECE, CWR, NS bool
	Window                                     uint16
	Checksum                                   uint16
	Urgent                                     uint16
	Options                                    []layers.TCPOption
}

func (*TCP) Tag() Tag { return TagTCP }

// ICMP is an ICMPv4 header.
type ICMP struct {
	base
	TypeCode layers.ICMPv4TypeCode
	Checksum uint16
	Id       uint16
	Seq      uint16
}

func (*ICMP) Tag() Tag { return TagICMP }

func (d *Decoder) decodeARP(data []byte) (Node, error) {
	if len(data) < arpHeaderMinLen {
		return nil, tooShort(TagARP, arpHeaderMinLen, len(data))
	}
	hlen := arpHeaderMinLen + 2*int(data[4]) + 2*int(data[5])
	if len(data) < hlen {
		return nil, tooShort(TagARP, hlen, len(data))
	}
	var arp layers.ARP
	if err := arp.DecodeFromBytes(data, gopacket.NilDecodeFeedback); err != nil {
		return nil, malformed(TagARP, err)
	}
	payload := data[hlen:]
	return &ARP{
		base:              base{header: data[:hlen], payload: payload, child: newData(payload)},
		AddrType:          arp.AddrType,
		Protocol:          arp.Protocol,
		HwAddressSize:     arp.HwAddressSize,
		ProtAddressSize:   arp.ProtAddressSize,
		Operation:         arp.Operation,
		SourceHwAddress:   arp.SourceHwAddress,
		SourceProtAddress: arp.SourceProtAddress,
		DstHwAddress:      arp.DstHwAddress,
		DstProtAddress:    arp.DstProtAddress,
	}, nil
}

func (d *Decoder) decodeUDP(data []byte) (Node, error) {
	if len(data) < udpHeaderLen {
		return nil, tooShort(TagUDP, udpHeaderLen, len(data))
	}
	var udp layers.UDP
	if err := udp.DecodeFromBytes(data, gopacket.NilDecodeFeedback); err != nil {
		return nil, malformed(TagUDP, err)
	}
	return &UDP{
		base:     base{header: data[:udpHeaderLen], payload: udp.Payload, child: newData(udp.Payload)},
		SrcPort:  udp.SrcPort,
		DstPort:  udp.DstPort,
		Length:   udp.Length,
		Checksum: udp.Checksum,
	}, nil
}

func (d *Decoder) decodeTCP(data []byte) (Node, error) {
	if len(data) < tcpHeaderMinLen {
		return nil, tooShort(TagTCP, tcpHeaderMinLen, len(data))
	}
	hlen := int(data[12]>>4) * 4
	if hlen < tcpHeaderMinLen {
		return nil, malformed(TagTCP, fmt.Errorf("data offset %d below minimum", hlen/4))
	}
	if hlen > len(data) {
		return nil, tooShort(TagTCP, hlen, len(data))
	}
	var tcp layers.TCP
	if err := tcp.DecodeFromBytes(data, gopacket.NilDecodeFeedback); err != nil {
		return nil, malformed(TagTCP, err)
	}
	payload := data[hlen:]
	return &TCP{
		base:       base{header: data[:hlen], payload: payload, child: newData(payload)},
		SrcPort:    tcp.SrcPort,
		DstPort:    tcp.DstPort,
		Seq:        tcp.Seq,
		Ack:        tcp.Ack,
		DataOffset: tcp.DataOffset,
		FIN:        tcp.FIN,
		SYN:        tcp.SYN,
		RST:        tcp.RST,
		PSH:        tcp.PSH,
		ACK:        tcp.ACK,
		URG:        tcp.URG,
		ECE:        tcp.ECE,
		CWR:        tcp.CWR,
		NS:         tcp.NS,
		Window:     tcp.Window,
		Checksum:   tcp.Checksum,
		Urgent:     tcp.Urgent,
		Options:    tcp.Options,
	}, nil
}

// decodeICMP hands the quoted datagram of a destination-unreachable
// message to the embedded IPv4 decoder; other types end in Data.
func (d *Decoder) decodeICMP(ctx frameContext, data []byte) (Node, error) {
	if len(data) < icmpHeaderLen {
		return nil, tooShort(TagICMP, icmpHeaderLen, len(data))
	}
	var icmp layers.ICMPv4
	if err := icmp.DecodeFromBytes(data, gopacket.NilDecodeFeedback); err != nil {
		return nil, malformed(TagICMP, err)
	}
	payload := data[icmpHeaderLen:]

	var (
		child Node
		err   error
	)
	if icmp.TypeCode.Type() == layers.ICMPv4TypeDestinationUnreachable {
		child, err = d.decodeIPv4(ctx, payload, true)
		if err != nil {
			return nil, err
		}
	} else {
		child = newData(payload)
	}
	return &ICMP{
		base:     base{header: data[:icmpHeaderLen], payload: payload, child: child},
		TypeCode: icmp.TypeCode,
		Checksum: icmp.Checksum,
		Id:       icmp.Id,
		Seq:      icmp.Seq,
	}, nil
}
