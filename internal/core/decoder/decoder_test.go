package decoder

import (
	"errors"
	"net"
	"testing"

	"github.com/google/gopacket/layers"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/dissector/internal/core"
	"firestige.xyz/dissector/internal/keys"
	"firestige.xyz/dissector/internal/log"
)

func newTestDecoder(t *testing.T, lookup keys.Lookup) (*Decoder, *test.Hook) {
	t.Helper()
	l, hook := test.NewNullLogger()
	l.SetLevel(logrus.DebugLevel)
	cfg := DefaultConfig()
	cfg.Keys = lookup
	cfg.Logger = log.New(l)
	return New(cfg), hook
}

func mustDecode(t *testing.T, d *Decoder, capture core.CaptureType, data []byte) Node {
	t.Helper()
	root, err := d.Decode(capture, data)
	require.NoError(t, err)
	require.NotNil(t, root)
	return root
}

// assertChain checks the tag sequence, the Data terminal and that no
// layer claims more bytes than its parent handed it.
func assertChain(t *testing.T, root Node, want ...Tag) {
	t.Helper()
	assert.Equal(t, want, Tags(root))

	leaf := Leaf(root)
	require.IsType(t, &Data{}, leaf)
	assert.Nil(t, leaf.Child())

	for n := root; n.Child() != nil; n = n.Child() {
		c := n.Child()
		assert.LessOrEqual(t, len(c.Header())+len(c.Payload()), len(n.Payload()),
			"%s overruns %s", c.Tag(), n.Tag())
	}
}

func TestDecode_EthernetIPv4UDP(t *testing.T) {
	d, _ := newTestDecoder(t, nil)
	payload := []byte("hello")
	frame := ethernetFrame(0x0800, ipv4Packet(17, udpDatagram(payload)))

	root := mustDecode(t, d, core.CaptureEthernet, frame)
	assertChain(t, root, TagEthernet, TagIPv4, TagUDP, TagData)

	eth := root.(*Ethernet)
	assert.Equal(t, macSrc, eth.SrcMAC)
	assert.Equal(t, macDst, eth.DstMAC)
	assert.Equal(t, layers.EthernetTypeIPv4, eth.EtherType)

	ip := eth.Child().(*IPv4)
	assert.Equal(t, uint8(4), ip.Version)
	assert.Equal(t, layers.IPProtocolUDP, ip.Protocol)
	assert.Equal(t, net.IPv4(192, 168, 1, 1).To4(), ip.SrcIP)
	assert.False(t, ip.Truncated)

	udp := ip.Child().(*UDP)
	assert.Equal(t, layers.UDPPort(5000), udp.SrcPort)
	assert.Equal(t, int(ip.Length)-ip.HeaderLen()-udpHeaderLen, udp.DataLen())
	assert.Equal(t, payload, Leaf(root).(*Data).Bytes())
}

func TestDecode_IPv4IgnoresLinkPadding(t *testing.T) {
	d, _ := newTestDecoder(t, nil)
	frame := ethernetFrame(0x0800, ipv4Packet(17, udpDatagram(nil)))
	frame = append(frame, make([]byte, 18)...) // pad to 60 bytes

	root := mustDecode(t, d, core.CaptureEthernet, frame)
	assertChain(t, root, TagEthernet, TagIPv4, TagUDP, TagData)
	assert.Empty(t, Leaf(root).(*Data).Bytes())
}

func TestDecode_EthernetTCP(t *testing.T) {
	d, _ := newTestDecoder(t, nil)
	frame := ethernetFrame(0x0800, ipv4Packet(6, tcpSegment([]byte("GET /"))))

	root := mustDecode(t, d, core.CaptureEthernet, frame)
	assertChain(t, root, TagEthernet, TagIPv4, TagTCP, TagData)

	tcp, ok := Find(root, TagTCP)
	require.True(t, ok)
	seg := tcp.(*TCP)
	assert.Equal(t, layers.TCPPort(80), seg.DstPort)
	assert.True(t, seg.PSH)
	assert.True(t, seg.ACK)
	assert.False(t, seg.SYN)
	assert.Equal(t, "GET /", string(Leaf(root).(*Data).Bytes()))
}

func TestDecode_EthernetARP(t *testing.T) {
	d, _ := newTestDecoder(t, nil)
	root := mustDecode(t, d, core.CaptureEthernet, ethernetFrame(0x0806, arpRequest()))
	assertChain(t, root, TagEthernet, TagARP, TagData)

	arp := root.Child().(*ARP)
	assert.Equal(t, uint16(1), arp.Operation)
	assert.Equal(t, staMAC, arp.SourceHwAddress)
	assert.Equal(t, net.IP{10, 0, 0, 1}, arp.DstProtAddress)
}

func TestDecode_UnknownEtherTypeEndsInData(t *testing.T) {
	d, _ := newTestDecoder(t, nil)
	root := mustDecode(t, d, core.CaptureEthernet, ethernetFrame(0x86dd, []byte{0x60, 0, 0, 0}))
	assertChain(t, root, TagEthernet, TagData)
}

func TestDecode_UnknownIPProtocolEndsInData(t *testing.T) {
	d, _ := newTestDecoder(t, nil)
	root := mustDecode(t, d, core.CaptureEthernet, ethernetFrame(0x0800, ipv4Packet(47, []byte{1, 2, 3, 4})))
	assertChain(t, root, TagEthernet, TagIPv4, TagData)
}

func TestDecode_NonFirstFragmentEndsInData(t *testing.T) {
	d, _ := newTestDecoder(t, nil)
	pkt := ipv4Packet(17, udpDatagram([]byte("tail")))
	pkt[6], pkt[7] = 0x00, 0x10 // offset 128 bytes

	root := mustDecode(t, d, core.CaptureEthernet, ethernetFrame(0x0800, pkt))
	assertChain(t, root, TagEthernet, TagIPv4, TagData)
	assert.Equal(t, uint16(16), root.Child().(*IPv4).FragOffset)
}

func TestDecode_LinuxSLL(t *testing.T) {
	d, _ := newTestDecoder(t, nil)
	frame := sllFrame(0x0800, ipv4Packet(17, udpDatagram([]byte{0xde, 0xad})))

	root := mustDecode(t, d, core.CaptureLinuxSLL, frame)
	assertChain(t, root, TagLinuxSLL, TagIPv4, TagUDP, TagData)

	sll := root.(*LinuxSLL)
	assert.Equal(t, layers.LinuxSLLPacketTypeHost, sll.PacketType)
	assert.Equal(t, macSrc, sll.Addr)
	assert.Equal(t, layers.EthernetTypeIPv4, sll.EtherType)
}

func TestDecode_LinuxSLLAddressTooLong(t *testing.T) {
	d, _ := newTestDecoder(t, nil)
	frame := sllFrame(0x0800, nil)
	frame[5] = 9

	_, err := d.Decode(core.CaptureLinuxSLL, frame)
	assert.ErrorIs(t, err, core.ErrMalformedHeader)
}

// An ICMP error quotes the offending IP header and 8 bytes of its
// payload. A quoted TCP header is cut short and must not be parsed.
func TestDecode_ICMPEmbeddedTCPIsNotParsed(t *testing.T) {
	d, _ := newTestDecoder(t, nil)
	quotedTCP := tcpSegment(nil)[:8]
	quoted := ipv4PacketLen(6, 20+20, quotedTCP)
	frame := ethernetFrame(0x0800, ipv4Packet(1, icmpMessage(3, 3, quoted)))

	root := mustDecode(t, d, core.CaptureEthernet, frame)
	assertChain(t, root, TagEthernet, TagIPv4, TagICMP, TagIPv4, TagData)

	icmp := root.Child().Child().(*ICMP)
	assert.Equal(t, uint8(layers.ICMPv4TypeDestinationUnreachable), icmp.TypeCode.Type())

	inner := icmp.Child().(*IPv4)
	assert.True(t, inner.Truncated)
	assert.Equal(t, quotedTCP, Leaf(root).(*Data).Bytes())
}

func TestDecode_ICMPEmbeddedUDPIsParsed(t *testing.T) {
	d, _ := newTestDecoder(t, nil)
	quoted := ipv4PacketLen(17, 20+8+100, udpDatagram(nil))
	frame := ethernetFrame(0x0800, ipv4Packet(1, icmpMessage(3, 3, quoted)))

	root := mustDecode(t, d, core.CaptureEthernet, frame)
	assertChain(t, root, TagEthernet, TagIPv4, TagICMP, TagIPv4, TagUDP, TagData)
}

func TestDecode_ICMPEchoEndsInData(t *testing.T) {
	d, _ := newTestDecoder(t, nil)
	frame := ethernetFrame(0x0800, ipv4Packet(1, icmpMessage(8, 0, []byte("ping"))))

	root := mustDecode(t, d, core.CaptureEthernet, frame)
	assertChain(t, root, TagEthernet, TagIPv4, TagICMP, TagData)
	assert.Equal(t, "ping", string(Leaf(root).(*Data).Bytes()))
}

func TestDecode_TooShort(t *testing.T) {
	tests := []struct {
		name    string
		capture core.CaptureType
		data    []byte
		tag     Tag
	}{
		{"ethernet", core.CaptureEthernet, make([]byte, 10), TagEthernet},
		{"sll", core.CaptureLinuxSLL, make([]byte, 12), TagLinuxSLL},
		{"ipv4", core.CaptureEthernet, ethernetFrame(0x0800, make([]byte, 12)), TagIPv4},
		{"udp", core.CaptureEthernet, ethernetFrame(0x0800, ipv4Packet(17, []byte{1, 2, 3})), TagUDP},
		{"tcp", core.CaptureEthernet, ethernetFrame(0x0800, ipv4Packet(6, make([]byte, 10))), TagTCP},
		{"icmp", core.CaptureEthernet, ethernetFrame(0x0800, ipv4Packet(1, []byte{3, 3})), TagICMP},
		{"arp", core.CaptureEthernet, ethernetFrame(0x0806, arpRequest()[:20]), TagARP},
		{"radiotap", core.CaptureRadioTap, []byte{0, 0, 8}, TagRadioTap},
		{"dot11", core.CaptureDot11, []byte{0x08, 0x00, 0x00}, TagDot11},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, _ := newTestDecoder(t, nil)
			root, err := d.Decode(tt.capture, tt.data)
			require.Error(t, err)
			assert.Nil(t, root)
			assert.True(t, errors.Is(err, core.ErrPacketTooShort), "got %v", err)
			assert.Contains(t, err.Error(), "decode "+tt.tag.String()+":")
			assert.Nil(t, d.Last())
		})
	}
}

func TestDecode_UnsupportedCapture(t *testing.T) {
	d, _ := newTestDecoder(t, nil)
	_, err := d.Decode(core.CaptureUnknown, []byte{1, 2, 3})
	assert.ErrorIs(t, err, core.ErrUnsupportedCapture)
}

func TestDecode_ErrorDoesNotAffectNextFrame(t *testing.T) {
	d, _ := newTestDecoder(t, nil)
	good := ethernetFrame(0x0800, ipv4Packet(17, udpDatagram(nil)))

	_, err := d.Decode(core.CaptureEthernet, good[:20])
	require.Error(t, err)

	root := mustDecode(t, d, core.CaptureEthernet, good)
	assertChain(t, root, TagEthernet, TagIPv4, TagUDP, TagData)
}

func TestDecoder_Introspection(t *testing.T) {
	d, _ := newTestDecoder(t, nil)
	root := mustDecode(t, d, core.CaptureEthernet, ethernetFrame(0x0800, ipv4Packet(17, udpDatagram(nil))))

	assert.Same(t, root, d.Last())

	n, ok := d.Protocol(TagUDP)
	require.True(t, ok)
	assert.Equal(t, TagUDP, n.Tag())

	_, ok = d.Protocol(TagTCP)
	assert.False(t, ok)

	assert.Equal(t, "Ethernet\n  IPv4\n    UDP\n      Data\n", d.String())
}

func TestDecoder_NilKeysDefaultsToEmpty(t *testing.T) {
	d := New(Config{})
	key, ok := d.cfg.Keys.Key(apMAC)
	assert.False(t, ok)
	assert.Empty(t, key.Secret)
}

func BenchmarkDecode_EthernetUDP(b *testing.B) {
	d := New(DefaultConfig())
	frame := ethernetFrame(0x0800, ipv4Packet(17, udpDatagram(make([]byte, 512))))

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := d.Decode(core.CaptureEthernet, frame); err != nil {
			b.Fatal(err)
		}
	}
}
