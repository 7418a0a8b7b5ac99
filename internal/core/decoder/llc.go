package decoder

import (
	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

const (
	llcMinLen  = 3
	llcLongLen = 4
	snapLen    = 5
	llcSAPSNAP = 0xaa
	llcCtrlUI  = 0x03
)

// LLC is an IEEE 802.2 LLC header.
type LLC struct {
	base
	DSAP    uint8
	IG      bool // group destination
	SSAP    uint8
	CR      bool // response
	Control uint16
}

func (*LLC) Tag() Tag { return TagLLC }

// IsSNAP reports whether the header announces a SNAP extension.
func (l *LLC) IsSNAP() bool {
	return l.DSAP == llcSAPSNAP && l.SSAP == llcSAPSNAP && l.Control == llcCtrlUI
}

// SNAP is a Subnetwork Access Protocol header.
type SNAP struct {
	base
	OUI  [3]byte
	Type layers.EthernetType
}

func (*SNAP) Tag() Tag { return TagSNAP }

func (d *Decoder) decodeLLC(ctx frameContext, data []byte) (Node, error) {
	if len(data) < llcMinLen {
		return nil, tooShort(TagLLC, llcMinLen, len(data))
	}
	// I and S frames carry a two byte control field.
	if ctrl := data[2]; (ctrl&0x01 == 0 || ctrl&0x03 == 0x01) && len(data) < llcLongLen {
		return nil, tooShort(TagLLC, llcLongLen, len(data))
	}
	var llc layers.LLC
	if err := llc.DecodeFromBytes(data, gopacket.NilDecodeFeedback); err != nil {
		return nil, malformed(TagLLC, err)
	}

	node := &LLC{
		DSAP:    llc.DSAP,
		IG:      llc.IG,
		SSAP:    llc.SSAP,
		CR:      llc.CR,
		Control: llc.Control,
	}
	var (
		child Node
		err   error
	)
	if node.IsSNAP() {
		child, err = d.decodeSNAP(ctx, llc.Payload)
	} else {
		child = newData(llc.Payload)
	}
	if err != nil {
		return nil, err
	}
	node.base = base{header: llc.Contents, payload: llc.Payload, child: child}
	return node, nil
}

func (d *Decoder) decodeSNAP(ctx frameContext, data []byte) (Node, error) {
	if len(data) < snapLen {
		return nil, tooShort(TagSNAP, snapLen, len(data))
	}
	var snap layers.SNAP
	if err := snap.DecodeFromBytes(data, gopacket.NilDecodeFeedback); err != nil {
		return nil, malformed(TagSNAP, err)
	}

	node := &SNAP{Type: snap.Type}
	copy(node.OUI[:], snap.OrganizationalCode)

	var (
		child Node
		err   error
	)
	if node.OUI == [3]byte{} {
		child, err = d.dispatchEtherType(ctx, snap.Type, snap.Payload)
	} else {
		child = newData(snap.Payload)
	}
	if err != nil {
		return nil, err
	}
	node.base = base{header: data[:snapLen], payload: snap.Payload, child: child}
	return node, nil
}
