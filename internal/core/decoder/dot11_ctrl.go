package decoder

import (
	"encoding/binary"
	"net"
)

// Control frame subtypes
const (
	ctrlSubtypePSPoll     uint8 = 10
	ctrlSubtypeRTS        uint8 = 11
	ctrlSubtypeCTS        uint8 = 12
	ctrlSubtypeACK        uint8 = 13
	ctrlSubtypeCFEnd      uint8 = 14
	ctrlSubtypeCFEndCFAck uint8 = 15
)

// Dot11Control is an 802.11 control frame header (after frame control).
// CTS and ACK carry only a receiver address.
type Dot11Control struct {
	base
	tag         Tag
	Duration    uint16 // association id for PS-Poll
	Receiver    net.HardwareAddr
	Transmitter net.HardwareAddr // BSSID for CF-End variants
}

func (c *Dot11Control) Tag() Tag { return c.tag }

// AID returns the association id of a PS-Poll frame.
func (c *Dot11Control) AID() uint16 { return c.Duration & 0x3fff }

func (d *Decoder) decodeDot11Control(ctx frameContext, data []byte) (Node, error) {
	var (
		tag   Tag
		hasTA bool
	)
	switch ctx.subtype() {
	case ctrlSubtypeCTS:
		tag = TagDot11CtrlCTS
	case ctrlSubtypeACK:
		tag = TagDot11CtrlACK
	case ctrlSubtypeRTS:
		tag, hasTA = TagDot11CtrlRTS, true
	case ctrlSubtypePSPoll:
		tag, hasTA = TagDot11CtrlPSPoll, true
	case ctrlSubtypeCFEnd:
		tag, hasTA = TagDot11CtrlCFEnd, true
	case ctrlSubtypeCFEndCFAck:
		tag, hasTA = TagDot11CtrlCFEndCFAck, true
	default:
		return newData(data), nil
	}

	// duration (2) + receiver (6) [+ transmitter (6)]
	hlen := 8
	if hasTA {
		hlen = 14
	}
	if len(data) < hlen {
		return nil, tooShort(tag, hlen, len(data))
	}
	node := &Dot11Control{
		tag:      tag,
		Duration: binary.LittleEndian.Uint16(data[0:2]),
		Receiver: net.HardwareAddr(data[2:8]),
	}
	if hasTA {
		node.Transmitter = net.HardwareAddr(data[8:14])
	}
	rest := data[hlen:]
	node.base = base{header: data[:hlen], payload: rest, child: newData(rest)}
	return node, nil
}
