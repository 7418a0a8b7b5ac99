package decoder

import (
	"encoding/binary"
	"fmt"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

const radioTapHeaderMinLen = 8

// RadioTap is the radio metadata header prepended by 802.11 monitor captures.
type RadioTap struct {
	base
	Version          uint8
	Length           uint16
	Present          layers.RadioTapPresent
	Flags            layers.RadioTapFlags
	Rate             layers.RadioTapRate
	ChannelFrequency layers.RadioTapChannelFrequency
	ChannelFlags     layers.RadioTapChannelFlags
	DBMAntennaSignal int8
	DBMAntennaNoise  int8
	Antenna          uint8
}

func (*RadioTap) Tag() Tag { return TagRadioTap }

// FCSAtEnd reports whether the radiotap flags declare a trailing FCS.
// ok is false when the flags field is absent.
func (r *RadioTap) FCSAtEnd() (fcs, ok bool) {
	if !r.Present.Flags() {
		return false, false
	}
	return r.Flags.FCS(), true
}

func (d *Decoder) decodeRadioTap(ctx frameContext, data []byte) (Node, error) {
	if len(data) < radioTapHeaderMinLen {
		return nil, tooShort(TagRadioTap, radioTapHeaderMinLen, len(data))
	}
	hlen := int(binary.LittleEndian.Uint16(data[2:4]))
	if hlen < radioTapHeaderMinLen {
		return nil, malformed(TagRadioTap, fmt.Errorf("header length %d below minimum", hlen))
	}
	if hlen > len(data) {
		return nil, tooShort(TagRadioTap, hlen, len(data))
	}

	var rt layers.RadioTap
	if err := parseRadioTap(&rt, data); err != nil {
		return nil, malformed(TagRadioTap, err)
	}

	node := &RadioTap{
		Version:          rt.Version,
		Length:           rt.Length,
		Present:          rt.Present,
		Flags:            rt.Flags,
		Rate:             rt.Rate,
		ChannelFrequency: rt.ChannelFrequency,
		ChannelFlags:     rt.ChannelFlags,
		DBMAntennaSignal: rt.DBMAntennaSignal,
		DBMAntennaNoise:  rt.DBMAntennaNoise,
		Antenna:          rt.Antenna,
	}
	if fcs, ok := node.FCSAtEnd(); ok {
		ctx.fcsAtEnd = fcs
	}

	// The body comes from the raw buffer: the parsed layer appends a
	// synthetic FCS when the flags say there is none.
	body := data[hlen:]
	child, err := d.decodeDot11(ctx, body)
	if err != nil {
		return nil, err
	}
	node.base = base{header: data[:hlen], payload: body, child: child}
	return node, nil
}

// parseRadioTap converts field-parsing panics on inconsistent present
// bitmaps into errors.
func parseRadioTap(rt *layers.RadioTap, data []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("radiotap fields overrun header: %v", r)
		}
	}()
	return rt.DecodeFromBytes(data, gopacket.NilDecodeFeedback)
}
