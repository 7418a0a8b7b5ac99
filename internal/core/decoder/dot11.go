package decoder

import (
	"encoding/binary"
	"hash/crc32"

	"github.com/google/gopacket/layers"
)

// 802.11 frame types
const (
	dot11TypeManagement uint8 = 0
	dot11TypeControl    uint8 = 1
	dot11TypeData       uint8 = 2
)

const (
	dot11FrameControlLen = 2
	dot11FCSLen          = 4
)

// Dot11 is the generic 802.11 frame control field. The type-specific
// header that follows it is decoded by the child node.
type Dot11 struct {
	base
	Version uint8
	Type    uint8 // 0 management, 1 control, 2 data, 3 extension
	Subtype uint8
	Flags   layers.Dot11Flags
	// FCS is the trailing checksum; only meaningful when HasFCS is set.
	FCS    uint32
	HasFCS bool

	covered []byte
}

func (*Dot11) Tag() Tag { return TagDot11 }

// ChecksumValid reports whether the trailing FCS matches the frame.
// It is false when the frame carries no FCS.
func (d *Dot11) ChecksumValid() bool {
	return d.HasFCS && crc32.ChecksumIEEE(d.covered) == d.FCS
}

// IsQoS reports whether the frame is a QoS data frame.
func (d *Dot11) IsQoS() bool {
	return d.Type == dot11TypeData && d.Subtype&0x08 != 0
}

func (d *Decoder) decodeDot11(ctx frameContext, data []byte) (Node, error) {
	need := dot11FrameControlLen
	if ctx.fcsAtEnd {
		need += dot11FCSLen
	}
	if len(data) < need {
		return nil, tooShort(TagDot11, need, len(data))
	}

	node := &Dot11{
		Version: data[0] & 0x03,
		Type:    (data[0] >> 2) & 0x03,
		Subtype: data[0] >> 4,
		Flags:   layers.Dot11Flags(data[1]),
		HasFCS:  ctx.fcsAtEnd,
	}
	end := len(data)
	if ctx.fcsAtEnd {
		end -= dot11FCSLen
		node.FCS = binary.LittleEndian.Uint32(data[end:])
		node.covered = data[:end]
	}
	ctx.fc = [2]byte{data[0], data[1]}
	body := data[dot11FrameControlLen:end]

	var (
		child Node
		err   error
	)
	switch node.Type {
	case dot11TypeControl:
		child, err = d.decodeDot11Control(ctx, body)
	case dot11TypeData:
		child, err = d.decodeDot11Data(ctx, body)
	case dot11TypeManagement:
		child, err = d.decodeDot11Mgmt(ctx, body)
	default:
		child = newData(body)
	}
	if err != nil {
		return nil, err
	}
	node.base = base{header: data[:dot11FrameControlLen], payload: body, child: child}
	return node, nil
}
