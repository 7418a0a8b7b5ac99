package decoder

import (
	"encoding/binary"
	"hash/crc32"
	"net"
)

var (
	macDst  = net.HardwareAddr{0x00, 0x11, 0x22, 0x33, 0x44, 0x55}
	macSrc  = net.HardwareAddr{0xaa, 0xbb, 0xcc, 0xdd, 0xee, 0xff}
	apMAC   = net.HardwareAddr{0x00, 0x0c, 0x41, 0x82, 0xb2, 0x55}
	staMAC  = net.HardwareAddr{0x00, 0x0d, 0x93, 0x82, 0x36, 0x3a}
	peerMAC = net.HardwareAddr{0x00, 0x0c, 0x41, 0x00, 0x00, 0x01}
	wdsMAC  = net.HardwareAddr{0x00, 0x0c, 0x41, 0x00, 0x00, 0x02}
)

func concat(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func ethernetFrame(etherType uint16, payload []byte) []byte {
	b := make([]byte, 14, 14+len(payload))
	copy(b[0:6], macDst)
	copy(b[6:12], macSrc)
	binary.BigEndian.PutUint16(b[12:14], etherType)
	return append(b, payload...)
}

func sllFrame(etherType uint16, payload []byte) []byte {
	b := make([]byte, 16, 16+len(payload))
	binary.BigEndian.PutUint16(b[0:2], 0) // to us
	binary.BigEndian.PutUint16(b[2:4], 1) // ARPHRD_ETHER
	binary.BigEndian.PutUint16(b[4:6], 6) // address length
	copy(b[6:12], macSrc)
	binary.BigEndian.PutUint16(b[14:16], etherType)
	return append(b, payload...)
}

// ipv4Packet builds a 20-byte header whose total length covers payload.
func ipv4Packet(proto uint8, payload []byte) []byte {
	return ipv4PacketLen(proto, 20+len(payload), payload)
}

// ipv4PacketLen builds a header declaring totalLen regardless of payload.
func ipv4PacketLen(proto uint8, totalLen int, payload []byte) []byte {
	b := make([]byte, 20, 20+len(payload))
	b[0] = 0x45
	binary.BigEndian.PutUint16(b[2:4], uint16(totalLen))
	binary.BigEndian.PutUint16(b[4:6], 0x1234)
	b[8] = 64
	b[9] = proto
	copy(b[12:16], net.IPv4(192, 168, 1, 1).To4())
	copy(b[16:20], net.IPv4(192, 168, 1, 2).To4())
	return append(b, payload...)
}

func udpDatagram(payload []byte) []byte {
	b := make([]byte, 8, 8+len(payload))
	binary.BigEndian.PutUint16(b[0:2], 5000)
	binary.BigEndian.PutUint16(b[2:4], 5001)
	binary.BigEndian.PutUint16(b[4:6], uint16(8+len(payload)))
	return append(b, payload...)
}

func tcpSegment(payload []byte) []byte {
	b := make([]byte, 20, 20+len(payload))
	binary.BigEndian.PutUint16(b[0:2], 40000)
	binary.BigEndian.PutUint16(b[2:4], 80)
	binary.BigEndian.PutUint32(b[4:8], 1000)
	binary.BigEndian.PutUint32(b[8:12], 2000)
	b[12] = 5 << 4
	b[13] = 0x18 // PSH, ACK
	binary.BigEndian.PutUint16(b[14:16], 65535)
	return append(b, payload...)
}

func icmpMessage(typ, code uint8, body []byte) []byte {
	b := make([]byte, 8, 8+len(body))
	b[0], b[1] = typ, code
	return append(b, body...)
}

func arpRequest() []byte {
	b := make([]byte, 28)
	binary.BigEndian.PutUint16(b[0:2], 1)      // Ethernet
	binary.BigEndian.PutUint16(b[2:4], 0x0800) // IPv4
	b[4], b[5] = 6, 4
	binary.BigEndian.PutUint16(b[6:8], 1) // request
	copy(b[8:14], staMAC)
	copy(b[14:18], net.IPv4(10, 0, 0, 2).To4())
	copy(b[24:28], net.IPv4(10, 0, 0, 1).To4())
	return b
}

func llcSNAP(etherType uint16, payload []byte) []byte {
	b := []byte{0xaa, 0xaa, 0x03, 0x00, 0x00, 0x00, byte(etherType >> 8), byte(etherType)}
	return append(b, payload...)
}

// 802.11 frame control flags
const (
	fcToDS      = 0x01
	fcFromDS    = 0x02
	fcOrder     = 0x80
	fcProtected = 0x40
)

type wlanData struct {
	subtype uint8
	flags   uint8
	addr1   net.HardwareAddr
	addr2   net.HardwareAddr
	addr3   net.HardwareAddr
	addr4   net.HardwareAddr // set with fcToDS|fcFromDS
	seqCtl  uint16
	qos     uint16 // used when subtype has the QoS bit
	htc     uint32 // used with QoS and fcOrder
	body    []byte
}

func (w wlanData) frameControl() [2]byte {
	return [2]byte{0x08 | w.subtype<<4, w.flags}
}

// bytes renders the frame without FCS.
func (w wlanData) bytes() []byte {
	fc := w.frameControl()
	b := []byte{fc[0], fc[1], 0x2c, 0x00}
	b = append(b, w.addr1...)
	b = append(b, w.addr2...)
	b = append(b, w.addr3...)
	b = binary.LittleEndian.AppendUint16(b, w.seqCtl)
	if w.flags&(fcToDS|fcFromDS) == fcToDS|fcFromDS {
		b = append(b, w.addr4...)
	}
	if w.subtype&0x08 != 0 {
		b = binary.LittleEndian.AppendUint16(b, w.qos)
		if w.flags&fcOrder != 0 {
			b = binary.LittleEndian.AppendUint32(b, w.htc)
		}
	}
	return append(b, w.body...)
}

// staToAP is a plain data frame sent by a station to its access point.
func staToAP(body []byte) wlanData {
	return wlanData{
		flags:  fcToDS,
		addr1:  apMAC,
		addr2:  staMAC,
		addr3:  macDst,
		seqCtl: 0x0120,
		body:   body,
	}
}

func withFCS(frame []byte) []byte {
	return binary.LittleEndian.AppendUint32(append([]byte(nil), frame...), crc32.ChecksumIEEE(frame))
}

// radiotapHeader declares flags and rate; fcs sets the FCS flag.
func radiotapHeader(fcs bool) []byte {
	flags := byte(0)
	if fcs {
		flags = 0x10
	}
	return []byte{
		0x00, 0x00, // version, pad
		0x0a, 0x00, // length 10
		0x06, 0x00, 0x00, 0x00, // present: flags, rate
		flags,
		0x0c, // 6 Mb/s
	}
}

func mgmtFrame(subtype uint8, flags uint8, body []byte) []byte {
	b := []byte{subtype << 4, flags, 0x00, 0x00}
	b = append(b, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff)
	b = append(b, apMAC...)
	b = append(b, apMAC...)
	b = append(b, 0x10, 0x00)
	return append(b, body...)
}

func ctrlFrame(subtype uint8, rest []byte) []byte {
	return append([]byte{0x04 | subtype<<4, 0x00}, rest...)
}
