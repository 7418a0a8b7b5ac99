package decoder

import (
	"fmt"
	"strings"
)

// Tag identifies the protocol of a Node. The set is closed: every Node
// implementation in this package reports exactly one of these.
type Tag uint8

const (
	TagData Tag = iota
	TagEthernet
	TagLinuxSLL
	TagIPv4
	TagARP
	TagTCP
	TagUDP
	TagICMP
	TagRadioTap
	TagDot11
	TagDot11CtrlCTS
	TagDot11CtrlACK
	TagDot11CtrlRTS
	TagDot11CtrlPSPoll
	TagDot11CtrlCFEnd
	TagDot11CtrlCFEndCFAck
	TagDot11Mgmt
	TagDot11MgmtBeacon
	TagDot11MgmtProbeRequest
	TagDot11MgmtProbeResponse
	TagDot11MgmtDeauthentication
	TagDot11MgmtAuthentication
	TagDot11MgmtDisassociation
	TagDot11MgmtAssociationRequest
	TagDot11MgmtAssociationResponse
	TagDot11MgmtReassociationRequest
	TagDot11MgmtReassociationResponse
	TagDot11Data
	TagDot11DataQoS
	TagDot11DataAddr4
	TagDot11DataAddr4QoS
	TagWEP
	TagWEPData
	TagWPA
	TagWPAData
	TagWPA2
	TagWPA2Data
	TagLLC
	TagSNAP
	tagCount
)

var tagNames = [tagCount]string{
	TagData:                           "Data",
	TagEthernet:                       "Ethernet",
	TagLinuxSLL:                       "LinuxSLL",
	TagIPv4:                           "IPv4",
	TagARP:                            "ARP",
	TagTCP:                            "TCP",
	TagUDP:                            "UDP",
	TagICMP:                           "ICMP",
	TagRadioTap:                       "RadioTap",
	TagDot11:                          "Dot11",
	TagDot11CtrlCTS:                   "Dot11ControlCTS",
	TagDot11CtrlACK:                   "Dot11ControlACK",
	TagDot11CtrlRTS:                   "Dot11ControlRTS",
	TagDot11CtrlPSPoll:                "Dot11ControlPSPoll",
	TagDot11CtrlCFEnd:                 "Dot11ControlCFEnd",
	TagDot11CtrlCFEndCFAck:            "Dot11ControlCFEndCFAck",
	TagDot11Mgmt:                      "Dot11Management",
	TagDot11MgmtBeacon:                "Dot11ManagementBeacon",
	TagDot11MgmtProbeRequest:          "Dot11ManagementProbeRequest",
	TagDot11MgmtProbeResponse:         "Dot11ManagementProbeResponse",
	TagDot11MgmtDeauthentication:      "Dot11ManagementDeauthentication",
	TagDot11MgmtAuthentication:        "Dot11ManagementAuthentication",
	TagDot11MgmtDisassociation:        "Dot11ManagementDisassociation",
	TagDot11MgmtAssociationRequest:    "Dot11ManagementAssociationRequest",
	TagDot11MgmtAssociationResponse:   "Dot11ManagementAssociationResponse",
	TagDot11MgmtReassociationRequest:  "Dot11ManagementReassociationRequest",
	TagDot11MgmtReassociationResponse: "Dot11ManagementReassociationResponse",
	TagDot11Data:                      "Dot11DataFrame",
	TagDot11DataQoS:                   "Dot11DataQoSFrame",
	TagDot11DataAddr4:                 "Dot11DataAddr4Frame",
	TagDot11DataAddr4QoS:              "Dot11DataAddr4QoSFrame",
	TagWEP:                            "Dot11WEP",
	TagWEPData:                        "Dot11WEPData",
	TagWPA:                            "Dot11WPA",
	TagWPAData:                        "Dot11WPAData",
	TagWPA2:                           "Dot11WPA2",
	TagWPA2Data:                       "Dot11WPA2Data",
	TagLLC:                            "LLC",
	TagSNAP:                           "SNAP",
}

func (t Tag) String() string {
	if t < tagCount {
		return tagNames[t]
	}
	return fmt.Sprintf("Tag(%d)", uint8(t))
}

// Node is one decoded protocol layer. A node owns at most one child and
// chains are always terminated by a *Data node.
type Node interface {
	Tag() Tag
	// Child returns the encapsulated layer, or nil for Data.
	Child() Node
	// Header returns the bytes this layer consumed as its header.
	Header() []byte
	// Payload returns the bytes handed to the child.
	Payload() []byte

	sealed()
}

type base struct {
	header  []byte
	payload []byte
	child   Node
}

func (b *base) Child() Node     { return b.child }
func (b *base) Header() []byte  { return b.header }
func (b *base) Payload() []byte { return b.payload }
func (*base) sealed()           {}

// Data is the terminal node: bytes that were not, or could not be, decoded further.
type Data struct {
	base
}

func newData(b []byte) *Data {
	return &Data{base{payload: b}}
}

func (*Data) Tag() Tag { return TagData }

// Bytes returns the opaque payload.
func (d *Data) Bytes() []byte { return d.payload }

// Find returns the first node in the chain rooted at n whose tag is t.
func Find(n Node, t Tag) (Node, bool) {
	for ; n != nil; n = n.Child() {
		if n.Tag() == t {
			return n, true
		}
	}
	return nil, false
}

// Tags lists the chain from outermost to innermost.
func Tags(n Node) []Tag {
	var tags []Tag
	for ; n != nil; n = n.Child() {
		tags = append(tags, n.Tag())
	}
	return tags
}

// Leaf returns the innermost node of the chain.
func Leaf(n Node) Node {
	for n != nil && n.Child() != nil {
		n = n.Child()
	}
	return n
}

// Format renders the chain as one protocol name per line, indented by depth.
func Format(n Node) string {
	var sb strings.Builder
	for depth := 0; n != nil; depth++ {
		sb.WriteString(strings.Repeat("  ", depth))
		sb.WriteString(n.Tag().String())
		sb.WriteByte('\n')
		n = n.Child()
	}
	return sb.String()
}
