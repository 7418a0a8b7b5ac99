package decoder

import (
	"encoding/binary"
	"fmt"
	"net"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

const (
	ethernetHeaderLen = 14
	sllHeaderLen      = 16
	sllMaxAddrLen     = 8
)

// Ethernet is an Ethernet II header.
type Ethernet struct {
	base
	DstMAC    net.HardwareAddr
	SrcMAC    net.HardwareAddr
	EtherType layers.EthernetType
	// Length is set instead of EtherType for 802.3 length-field frames.
	Length uint16
}

func (*Ethernet) Tag() Tag { return TagEthernet }

// LinuxSLL is the Linux cooked-capture pseudo header.
type LinuxSLL struct {
	base
	PacketType layers.LinuxSLLPacketType
	AddrType   uint16
	Addr       net.HardwareAddr
	EtherType  layers.EthernetType
}

func (*LinuxSLL) Tag() Tag { return TagLinuxSLL }

func (d *Decoder) decodeEthernet(ctx frameContext, data []byte) (Node, error) {
	if len(data) < ethernetHeaderLen {
		return nil, tooShort(TagEthernet, ethernetHeaderLen, len(data))
	}
	var eth layers.Ethernet
	if err := eth.DecodeFromBytes(data, gopacket.NilDecodeFeedback); err != nil {
		return nil, malformed(TagEthernet, err)
	}

	child, err := d.dispatchEtherType(ctx, eth.EthernetType, eth.Payload)
	if err != nil {
		return nil, err
	}
	return &Ethernet{
		base:      base{header: data[:ethernetHeaderLen], payload: eth.Payload, child: child},
		DstMAC:    eth.DstMAC,
		SrcMAC:    eth.SrcMAC,
		EtherType: eth.EthernetType,
		Length:    eth.Length,
	}, nil
}

func (d *Decoder) decodeLinuxSLL(ctx frameContext, data []byte) (Node, error) {
	if len(data) < sllHeaderLen {
		return nil, tooShort(TagLinuxSLL, sllHeaderLen, len(data))
	}
	// The address field is 8 bytes; a larger length would slice past it.
	if addrLen := binary.BigEndian.Uint16(data[4:6]); addrLen > sllMaxAddrLen {
		return nil, malformed(TagLinuxSLL, fmt.Errorf("address length %d exceeds %d", addrLen, sllMaxAddrLen))
	}
	var sll layers.LinuxSLL
	if err := sll.DecodeFromBytes(data, gopacket.NilDecodeFeedback); err != nil {
		return nil, malformed(TagLinuxSLL, err)
	}

	payload := data[sllHeaderLen:]
	child, err := d.dispatchEtherType(ctx, sll.EthernetType, payload)
	if err != nil {
		return nil, err
	}
	return &LinuxSLL{
		base:       base{header: data[:sllHeaderLen], payload: payload, child: child},
		PacketType: sll.PacketType,
		AddrType:   sll.AddrType,
		Addr:       sll.Addr,
		EtherType:  sll.EthernetType,
	}, nil
}

// dispatchEtherType selects the next layer for Ethernet, Linux SLL and SNAP.
func (d *Decoder) dispatchEtherType(ctx frameContext, et layers.EthernetType, payload []byte) (Node, error) {
	switch et {
	case layers.EthernetTypeIPv4:
		return d.decodeIPv4(ctx, payload, false)
	case layers.EthernetTypeARP:
		return d.decodeARP(payload)
	default:
		return newData(payload), nil
	}
}
