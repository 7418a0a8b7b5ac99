package decoder

import (
	"encoding/binary"
	"net"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

// Management frame subtypes
const (
	mgmtSubtypeAssociationRequest    uint8 = 0
	mgmtSubtypeAssociationResponse   uint8 = 1
	mgmtSubtypeReassociationRequest  uint8 = 2
	mgmtSubtypeReassociationResponse uint8 = 3
	mgmtSubtypeProbeRequest          uint8 = 4
	mgmtSubtypeProbeResponse         uint8 = 5
	mgmtSubtypeBeacon                uint8 = 8
	mgmtSubtypeDisassociation        uint8 = 10
	mgmtSubtypeAuthentication        uint8 = 11
	mgmtSubtypeDeauthentication      uint8 = 12
)

const (
	dot11MgmtHeaderLen = 22
	ieHeaderLen        = 2
	ieVendorSpecific   = 221
	ouiLen             = 4
)

// Dot11Mgmt is the management frame header (after frame control).
type Dot11Mgmt struct {
	base
	Duration           uint16
	DestinationAddress net.HardwareAddr
	SourceAddress      net.HardwareAddr
	BSSID              net.HardwareAddr
	SequenceControl    uint16
}

func (*Dot11Mgmt) Tag() Tag { return TagDot11Mgmt }

func (m *Dot11Mgmt) SequenceNumber() uint16 { return m.SequenceControl >> 4 }
func (m *Dot11Mgmt) FragmentNumber() uint16 { return m.SequenceControl & 0x0f }

// InformationElement is one tagged parameter of a management frame body.
type InformationElement struct {
	ID   layers.Dot11InformationElementID
	OUI  []byte // vendor specific elements only
	Info []byte
}

// Elements is the ordered list of information elements of a frame.
type Elements []InformationElement

// Find returns the first element with the given id.
func (e Elements) Find(id layers.Dot11InformationElementID) (InformationElement, bool) {
	for _, ie := range e {
		if ie.ID == id {
			return ie, true
		}
	}
	return InformationElement{}, false
}

// SSID returns the network name, if the frame carries one.
func (e Elements) SSID() (string, bool) {
	ie, ok := e.Find(layers.Dot11InformationElementIDSSID)
	if !ok {
		return "", false
	}
	return string(ie.Info), true
}

// parseElements reads complete elements from data and reports how many
// bytes they span. A truncated trailing element ends the list.
func parseElements(data []byte) (Elements, int) {
	var (
		elems Elements
		off   int
	)
	for len(data)-off >= ieHeaderLen {
		id, length := data[off], int(data[off+1])
		if off+ieHeaderLen+length > len(data) {
			break
		}
		elem := data[off : off+ieHeaderLen+length]
		if id != ieVendorSpecific {
			elems = append(elems, InformationElement{
				ID:   layers.Dot11InformationElementID(id),
				Info: elem[ieHeaderLen:],
			})
			off += len(elem)
			continue
		}
		if length < ouiLen {
			break
		}
		var ie layers.Dot11InformationElement
		if err := ie.DecodeFromBytes(elem, gopacket.NilDecodeFeedback); err != nil {
			break
		}
		elems = append(elems, InformationElement{ID: ie.ID, OUI: ie.OUI, Info: ie.Info})
		off += len(elem)
	}
	return elems, off
}

// Dot11Beacon is a beacon or probe response body.
type Dot11Beacon struct {
	base
	tag        Tag
	Timestamp  uint64
	Interval   uint16
	Capability uint16
	Elements   Elements
}

func (b *Dot11Beacon) Tag() Tag { return b.tag }

// Dot11ProbeRequest is a probe request body: elements only.
type Dot11ProbeRequest struct {
	base
	Elements Elements
}

func (*Dot11ProbeRequest) Tag() Tag { return TagDot11MgmtProbeRequest }

// Dot11Disconnect is a deauthentication or disassociation body.
type Dot11Disconnect struct {
	base
	tag      Tag
	Reason   layers.Dot11Reason
	Elements Elements
}

func (d *Dot11Disconnect) Tag() Tag { return d.tag }

// Dot11Authentication is an authentication body.
type Dot11Authentication struct {
	base
	Algorithm layers.Dot11Algorithm
	Sequence  uint16
	Status    layers.Dot11Status
	Elements  Elements
}

func (*Dot11Authentication) Tag() Tag { return TagDot11MgmtAuthentication }

// Dot11AssociationRequest is an association or reassociation request body.
type Dot11AssociationRequest struct {
	base
	tag            Tag
	Capability     uint16
	ListenInterval uint16
	CurrentAP      net.HardwareAddr // reassociation only
	Elements       Elements
}

func (a *Dot11AssociationRequest) Tag() Tag { return a.tag }

// Dot11AssociationResponse is an association or reassociation response body.
type Dot11AssociationResponse struct {
	base
	tag        Tag
	Capability uint16
	Status     layers.Dot11Status
	AID        uint16
	Elements   Elements
}

func (a *Dot11AssociationResponse) Tag() Tag { return a.tag }

func (d *Decoder) decodeDot11Mgmt(ctx frameContext, data []byte) (Node, error) {
	if len(data) < dot11MgmtHeaderLen {
		return nil, tooShort(TagDot11Mgmt, dot11MgmtHeaderLen, len(data))
	}
	body := data[dot11MgmtHeaderLen:]

	var (
		child Node
		err   error
	)
	if layers.Dot11Flags(ctx.flags()).WEP() {
		// protected management frame bodies are opaque
		child = newData(body)
	} else {
		child, err = decodeMgmtBody(ctx.subtype(), body)
		if err != nil {
			return nil, err
		}
	}
	return &Dot11Mgmt{
		base:               base{header: data[:dot11MgmtHeaderLen], payload: body, child: child},
		Duration:           binary.LittleEndian.Uint16(data[0:2]),
		DestinationAddress: net.HardwareAddr(data[2:8]),
		SourceAddress:      net.HardwareAddr(data[8:14]),
		BSSID:              net.HardwareAddr(data[14:20]),
		SequenceControl:    binary.LittleEndian.Uint16(data[20:22]),
	}, nil
}

// decodeMgmtBody parses the fixed fields of a management subtype and the
// information elements that follow. Unknown subtypes end in Data.
func decodeMgmtBody(subtype uint8, data []byte) (Node, error) {
	var (
		tag   Tag
		fixed int
	)
	switch subtype {
	case mgmtSubtypeBeacon:
		tag, fixed = TagDot11MgmtBeacon, 12
	case mgmtSubtypeProbeResponse:
		tag, fixed = TagDot11MgmtProbeResponse, 12
	case mgmtSubtypeProbeRequest:
		tag, fixed = TagDot11MgmtProbeRequest, 0
	case mgmtSubtypeDeauthentication:
		tag, fixed = TagDot11MgmtDeauthentication, 2
	case mgmtSubtypeDisassociation:
		tag, fixed = TagDot11MgmtDisassociation, 2
	case mgmtSubtypeAuthentication:
		tag, fixed = TagDot11MgmtAuthentication, 6
	case mgmtSubtypeAssociationRequest:
		tag, fixed = TagDot11MgmtAssociationRequest, 4
	case mgmtSubtypeReassociationRequest:
		tag, fixed = TagDot11MgmtReassociationRequest, 10
	case mgmtSubtypeAssociationResponse:
		tag, fixed = TagDot11MgmtAssociationResponse, 6
	case mgmtSubtypeReassociationResponse:
		tag, fixed = TagDot11MgmtReassociationResponse, 6
	default:
		return newData(data), nil
	}
	if len(data) < fixed {
		return nil, tooShort(tag, fixed, len(data))
	}

	elems, n := parseElements(data[fixed:])
	hlen := fixed + n
	rest := data[hlen:]
	b := base{header: data[:hlen], payload: rest, child: newData(rest)}
	df := gopacket.NilDecodeFeedback

	switch tag {
	case TagDot11MgmtBeacon, TagDot11MgmtProbeResponse:
		var l layers.Dot11MgmtBeacon
		if err := l.DecodeFromBytes(data, df); err != nil {
			return nil, malformed(tag, err)
		}
		return &Dot11Beacon{base: b, tag: tag, Timestamp: l.Timestamp, Interval: l.Interval, Capability: l.Flags, Elements: elems}, nil

	case TagDot11MgmtProbeRequest:
		return &Dot11ProbeRequest{base: b, Elements: elems}, nil

	case TagDot11MgmtDeauthentication:
		var l layers.Dot11MgmtDeauthentication
		if err := l.DecodeFromBytes(data, df); err != nil {
			return nil, malformed(tag, err)
		}
		return &Dot11Disconnect{base: b, tag: tag, Reason: l.Reason, Elements: elems}, nil

	case TagDot11MgmtDisassociation:
		var l layers.Dot11MgmtDisassociation
		if err := l.DecodeFromBytes(data, df); err != nil {
			return nil, malformed(tag, err)
		}
		return &Dot11Disconnect{base: b, tag: tag, Reason: l.Reason, Elements: elems}, nil

	case TagDot11MgmtAuthentication:
		var l layers.Dot11MgmtAuthentication
		if err := l.DecodeFromBytes(data, df); err != nil {
			return nil, malformed(tag, err)
		}
		return &Dot11Authentication{base: b, Algorithm: l.Algorithm, Sequence: l.Sequence, Status: l.Status, Elements: elems}, nil

	case TagDot11MgmtAssociationRequest:
		var l layers.Dot11MgmtAssociationReq
		if err := l.DecodeFromBytes(data, df); err != nil {
			return nil, malformed(tag, err)
		}
		return &Dot11AssociationRequest{base: b, tag: tag, Capability: l.CapabilityInfo, ListenInterval: l.ListenInterval, Elements: elems}, nil

	case TagDot11MgmtReassociationRequest:
		var l layers.Dot11MgmtReassociationReq
		if err := l.DecodeFromBytes(data, df); err != nil {
			return nil, malformed(tag, err)
		}
		return &Dot11AssociationRequest{base: b, tag: tag, Capability: l.CapabilityInfo, ListenInterval: l.ListenInterval, CurrentAP: l.CurrentApAddress, Elements: elems}, nil

	default: // association and reassociation responses share a layout
		var l layers.Dot11MgmtAssociationResp
		if err := l.DecodeFromBytes(data, df); err != nil {
			return nil, malformed(tag, err)
		}
		return &Dot11AssociationResponse{base: b, tag: tag, Capability: l.CapabilityInfo, Status: l.Status, AID: l.AID, Elements: elems}, nil
	}
}
