package decoder

import (
	"fmt"
	"strings"
)

// Describe returns a one-line summary of the fields of n.
func Describe(n Node) string {
	switch v := n.(type) {
	case *Data:
		return fmt.Sprintf("%d bytes", len(v.payload))
	case *Ethernet:
		if v.Length != 0 {
			return fmt.Sprintf("%s > %s length %d", v.SrcMAC, v.DstMAC, v.Length)
		}
		return fmt.Sprintf("%s > %s type %s", v.SrcMAC, v.DstMAC, v.EtherType)
	case *LinuxSLL:
		return fmt.Sprintf("%s addr %s type %s", v.PacketType, v.Addr, v.EtherType)
	case *IPv4:
		s := fmt.Sprintf("%s > %s proto %s ttl %d len %d", v.SrcIP, v.DstIP, v.Protocol, v.TTL, v.Length)
		if v.FragOffset != 0 {
			s += fmt.Sprintf(" frag %d", v.FragOffset*8)
		}
		if v.Truncated {
			s += " truncated"
		}
		return s
	case *ARP:
		return fmt.Sprintf("op %d %s (%s) > %s (%s)", v.Operation,
			v.SourceProtAddress, v.SourceHwAddress, v.DstProtAddress, v.DstHwAddress)
	case *TCP:
		return fmt.Sprintf("%d > %d [%s] seq %d ack %d win %d", v.SrcPort, v.DstPort, tcpFlags(v), v.Seq, v.Ack, v.Window)
	case *UDP:
		return fmt.Sprintf("%d > %d len %d", v.SrcPort, v.DstPort, v.Length)
	case *ICMP:
		return v.TypeCode.String()
	case *RadioTap:
		return fmt.Sprintf("%d MHz rate %s signal %d dBm", v.ChannelFrequency, v.Rate, v.DBMAntennaSignal)
	case *Dot11:
		s := fmt.Sprintf("type %d subtype %d flags %s", v.Type, v.Subtype, v.Flags)
		if v.HasFCS {
			s += fmt.Sprintf(" fcs %#08x valid=%t", v.FCS, v.ChecksumValid())
		}
		return s
	case *Dot11Control:
		if v.Transmitter != nil {
			return fmt.Sprintf("ra %s ta %s", v.Receiver, v.Transmitter)
		}
		return fmt.Sprintf("ra %s", v.Receiver)
	case *Dot11Mgmt:
		return fmt.Sprintf("da %s sa %s bssid %s seq %d", v.DestinationAddress, v.SourceAddress, v.BSSID, v.SequenceNumber())
	case *Dot11Beacon:
		return fmt.Sprintf("interval %d capability %#04x%s", v.Interval, v.Capability, ssid(v.Elements))
	case *Dot11ProbeRequest:
		return strings.TrimSpace(ssid(v.Elements))
	case *Dot11Disconnect:
		return fmt.Sprintf("reason %s", v.Reason)
	case *Dot11Authentication:
		return fmt.Sprintf("algorithm %s seq %d status %s", v.Algorithm, v.Sequence, v.Status)
	case *Dot11AssociationRequest:
		s := fmt.Sprintf("capability %#04x listen %d%s", v.Capability, v.ListenInterval, ssid(v.Elements))
		if v.CurrentAP != nil {
			s += fmt.Sprintf(" current-ap %s", v.CurrentAP)
		}
		return s
	case *Dot11AssociationResponse:
		return fmt.Sprintf("status %s aid %d", v.Status, v.AID&0x3fff)
	case *Dot11DataFrame:
		s := fmt.Sprintf("bssid %s ta %s seq %d flags %s", v.BSSID(), v.Transmitter(), v.SequenceNumber(), v.Flags())
		if v.HasQoS() {
			s += fmt.Sprintf(" tid %d", v.TID())
		}
		return s
	case *WEP:
		return fmt.Sprintf("iv %x key %d", v.IV, v.KeyID)
	case *WEPData:
		return fmt.Sprintf("icv %#08x", v.ICV)
	case *WPA:
		return fmt.Sprintf("tsc %d key %d", v.TSC, v.KeyID)
	case *WPAData:
		return fmt.Sprintf("mic %x", v.MIC)
	case *WPA2:
		return fmt.Sprintf("pn %d key %d", v.PN, v.KeyID)
	case *WPA2Data:
		return fmt.Sprintf("mic %x", v.MIC)
	case *LLC:
		return fmt.Sprintf("dsap %#02x ssap %#02x control %#02x", v.DSAP, v.SSAP, v.Control)
	case *SNAP:
		return fmt.Sprintf("oui %x type %s", v.OUI, v.Type)
	default:
		return ""
	}
}

func ssid(e Elements) string {
	if name, ok := e.SSID(); ok {
		return fmt.Sprintf(" ssid %q", name)
	}
	return ""
}

func tcpFlags(t *TCP) string {
	var sb strings.Builder
	for _, f := range []struct {
		set  bool
		name byte
	}{
		{t.FIN, 'F'}, {t.SYN, 'S'}, {t.RST, 'R'}, {t.PSH, 'P'},
		{t.ACK, '.'}, {t.URG, 'U'}, {t.ECE, 'E'}, {t.CWR, 'W'},
	} {
		if f.set {
			sb.WriteByte(f.name)
		}
	}
	return sb.String()
}
