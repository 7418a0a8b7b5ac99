package decoder

import (
	"net"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

const ipv4HeaderMinLen = 20

// IPv4 is an IPv4 header.
type IPv4 struct {
	base
	Version    uint8
	IHL        uint8
	TOS        uint8
	Length     uint16 // total length, header included
	Id         uint16
	Flags      layers.IPv4Flag
	FragOffset uint16
	TTL        uint8
	Protocol   layers.IPProtocol
	Checksum   uint16
	SrcIP      net.IP
	DstIP      net.IP
	// Truncated is set when the buffer holds fewer bytes than Length,
	// as for datagrams quoted inside ICMP errors.
	Truncated bool
}

func (*IPv4) Tag() Tag { return TagIPv4 }

// HeaderLen returns the header length in bytes.
func (ip *IPv4) HeaderLen() int { return int(ip.IHL) * 4 }

// decodeIPv4 decodes an IPv4 header. The payload is bounded by the total
// length field so link-layer padding never reaches the transport layer.
//
// With embedded set the header was quoted by an ICMP error: only UDP is
// decoded further, because the quoted transport header is cut to 8 bytes
// and would be misread as TCP.
func (d *Decoder) decodeIPv4(ctx frameContext, data []byte, embedded bool) (Node, error) {
	if len(data) < ipv4HeaderMinLen {
		return nil, tooShort(TagIPv4, ipv4HeaderMinLen, len(data))
	}
	if ihl := int(data[0]&0x0f) * 4; ihl > len(data) {
		return nil, tooShort(TagIPv4, ihl, len(data))
	}
	var ip layers.IPv4
	if err := ip.DecodeFromBytes(data, gopacket.NilDecodeFeedback); err != nil {
		return nil, malformed(TagIPv4, err)
	}

	hlen := int(ip.IHL) * 4
	payload := ip.Payload
	var (
		child Node
		err   error
	)
	switch {
	case ip.FragOffset != 0:
		// a non-first fragment carries no transport header
		child = newData(payload)
	case embedded:
		if ip.Protocol == layers.IPProtocolUDP {
			child, err = d.decodeUDP(payload)
		} else {
			child = newData(payload)
		}
	default:
		child, err = d.dispatchIPProtocol(ctx, ip.Protocol, payload)
	}
	if err != nil {
		return nil, err
	}

	return &IPv4{
		base:       base{header: data[:hlen], payload: payload, child: child},
		Version:    ip.Version,
		IHL:        ip.IHL,
		TOS:        ip.TOS,
		Length:     ip.Length,
		Id:         ip.Id,
		Flags:      ip.Flags,
		FragOffset: ip.FragOffset,
		TTL:        ip.TTL,
		Protocol:   ip.Protocol,
		Checksum:   ip.Checksum,
		SrcIP:      ip.SrcIP,
		DstIP:      ip.DstIP,
		Truncated:  len(data) < int(ip.Length),
	}, nil
}

func (d *Decoder) dispatchIPProtocol(ctx frameContext, proto layers.IPProtocol, payload []byte) (Node, error) {
	switch proto {
	case layers.IPProtocolUDP:
		return d.decodeUDP(payload)
	case layers.IPProtocolTCP:
		return d.decodeTCP(payload)
	case layers.IPProtocolICMPv4:
		return d.decodeICMP(ctx, payload)
	default:
		return newData(payload), nil
	}
}
