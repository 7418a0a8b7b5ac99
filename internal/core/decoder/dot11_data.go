package decoder

import (
	"encoding/binary"
	"net"

	"github.com/google/gopacket/layers"
)

const (
	dot11DataHeaderLen = 22 // duration, three addresses, sequence control
	dot11Addr4Len      = 6
	dot11QoSLen        = 2
	dot11HTControlLen  = 4
)

// Dot11DataFrame is a data frame header (after frame control) in one of
// its four shapes: three or four addresses, with or without QoS control.
type Dot11DataFrame struct {
	base
	tag             Tag
	Duration        uint16
	Address1        net.HardwareAddr
	Address2        net.HardwareAddr
	Address3        net.HardwareAddr
	SequenceControl uint16
	Address4        net.HardwareAddr // four-address frames only
	QoSControl      uint16           // QoS frames only
	HTControl       uint32           // QoS frames with the order bit only

	fc [2]byte
}

func (f *Dot11DataFrame) Tag() Tag { return f.tag }

func (f *Dot11DataFrame) Flags() layers.Dot11Flags { return layers.Dot11Flags(f.fc[1]) }
func (f *Dot11DataFrame) HasQoS() bool {
	return f.tag == TagDot11DataQoS || f.tag == TagDot11DataAddr4QoS
}
func (f *Dot11DataFrame) FourAddress() bool      { return f.Address4 != nil }
func (f *Dot11DataFrame) SequenceNumber() uint16 { return f.SequenceControl >> 4 }
func (f *Dot11DataFrame) FragmentNumber() uint16 { return f.SequenceControl & 0x0f }

// TID returns the traffic identifier of a QoS frame.
func (f *Dot11DataFrame) TID() uint8 { return uint8(f.QoSControl & 0x0f) }

// BSSID returns the address identifying the network, chosen by the
// distribution system bits.
func (f *Dot11DataFrame) BSSID() net.HardwareAddr {
	flags := f.Flags()
	switch {
	case flags.ToDS() && !flags.FromDS():
		return f.Address1
	case !flags.ToDS() && flags.FromDS():
		return f.Address2
	default:
		return f.Address3
	}
}

// Transmitter returns the transmitter address.
func (f *Dot11DataFrame) Transmitter() net.HardwareAddr { return f.Address2 }

func (d *Decoder) decodeDot11Data(ctx frameContext, data []byte) (Node, error) {
	flags := layers.Dot11Flags(ctx.flags())
	fourAddr := flags.ToDS() && flags.FromDS()
	qos := ctx.subtype()&0x08 != 0
	htc := qos && flags.Order()

	tag := TagDot11Data
	switch {
	case fourAddr && qos:
		tag = TagDot11DataAddr4QoS
	case fourAddr:
		tag = TagDot11DataAddr4
	case qos:
		tag = TagDot11DataQoS
	}

	hlen := dot11DataHeaderLen
	if fourAddr {
		hlen += dot11Addr4Len
	}
	if qos {
		hlen += dot11QoSLen
	}
	if htc {
		hlen += dot11HTControlLen
	}
	if len(data) < hlen {
		return nil, tooShort(tag, hlen, len(data))
	}

	f := &Dot11DataFrame{
		tag:             tag,
		Duration:        binary.LittleEndian.Uint16(data[0:2]),
		Address1:        net.HardwareAddr(data[2:8]),
		Address2:        net.HardwareAddr(data[8:14]),
		Address3:        net.HardwareAddr(data[14:20]),
		SequenceControl: binary.LittleEndian.Uint16(data[20:22]),
		fc:              ctx.fc,
	}
	off := dot11DataHeaderLen
	if fourAddr {
		f.Address4 = net.HardwareAddr(data[off : off+dot11Addr4Len])
		off += dot11Addr4Len
	}
	if qos {
		f.QoSControl = binary.LittleEndian.Uint16(data[off:])
		off += dot11QoSLen
	}
	if htc {
		f.HTControl = binary.LittleEndian.Uint32(data[off:])
	}

	body := data[hlen:]
	var (
		child Node
		err   error
	)
	switch {
	case ctx.subtype()&0x04 != 0 || len(body) == 0:
		// null function and CF-only subtypes carry no frame body
		child = newData(body)
	case flags.WEP():
		child, err = d.decodeProtected(ctx, f, body)
	default:
		child, err = d.decodeLLC(ctx, body)
	}
	if err != nil {
		return nil, err
	}
	f.base = base{header: data[:hlen], payload: body, child: child}
	return f, nil
}
