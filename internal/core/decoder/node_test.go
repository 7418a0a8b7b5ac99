package decoder

import (
	"strings"
	"testing"

	"github.com/google/gopacket/layers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/dissector/internal/core"
	"firestige.xyz/dissector/internal/keys"
)

func TestTagString(t *testing.T) {
	assert.Equal(t, "Data", TagData.String())
	assert.Equal(t, "Dot11DataAddr4QoSFrame", TagDot11DataAddr4QoS.String())
	assert.Equal(t, "Dot11ManagementReassociationResponse", TagDot11MgmtReassociationResponse.String())
	assert.Equal(t, "SNAP", TagSNAP.String())
	assert.Equal(t, "Tag(200)", Tag(200).String())

	for tag := TagData; tag < tagCount; tag++ {
		assert.NotEmpty(t, tagNames[tag], "tag %d has no name", tag)
	}
}

func TestChainHelpersOnNil(t *testing.T) {
	_, ok := Find(nil, TagData)
	assert.False(t, ok)
	assert.Nil(t, Tags(nil))
	assert.Nil(t, Leaf(nil))
	assert.Equal(t, "", Format(nil))

	d := New(DefaultConfig())
	assert.Nil(t, d.Last())
	assert.Equal(t, "", d.String())
	_, ok = d.Protocol(TagData)
	assert.False(t, ok)
}

func TestFind_ReturnsOutermost(t *testing.T) {
	d := New(DefaultConfig())
	quoted := ipv4PacketLen(17, 28, udpDatagram(nil))
	root, err := d.Decode(core.CaptureEthernet, ethernetFrame(0x0800, ipv4Packet(1, icmpMessage(3, 1, quoted))))
	require.NoError(t, err)

	n, ok := Find(root, TagIPv4)
	require.True(t, ok)
	assert.Same(t, root.Child(), n)
	assert.Equal(t, layers.IPProtocolICMPv4, n.(*IPv4).Protocol)
}

func TestFormat_EncryptedChain(t *testing.T) {
	store := keys.NewStore()
	require.NoError(t, store.Add(apMAC, keys.Key{Cipher: keys.CipherWEP, Secret: wepSecret}))
	cfg := DefaultConfig()
	cfg.Keys = store

	root, err := New(cfg).Decode(core.CaptureRadioTap, concat(radiotapHeader(true), withFCS(wepFrame(t, innerPayload()))))
	require.NoError(t, err)

	want := strings.Join([]string{
		"RadioTap",
		"  Dot11",
		"    Dot11DataFrame",
		"      Dot11WEP",
		"        Dot11WEPData",
		"          LLC",
		"            SNAP",
		"              IPv4",
		"                UDP",
		"                  Data",
		"",
	}, "\n")
	assert.Equal(t, want, Format(root))
}

func TestDescribe(t *testing.T) {
	d := New(DefaultConfig())
	root, err := d.Decode(core.CaptureEthernet, ethernetFrame(0x0800, ipv4Packet(6, tcpSegment([]byte("abc")))))
	require.NoError(t, err)

	assert.Equal(t, "aa:bb:cc:dd:ee:ff > 00:11:22:33:44:55 type IPv4", Describe(root))
	assert.Equal(t, "192.168.1.1 > 192.168.1.2 proto TCP ttl 64 len 43", Describe(root.Child()))
	assert.Equal(t, "40000 > 80 [P.] seq 1000 ack 2000 win 65535", Describe(root.Child().Child()))
	assert.Equal(t, "3 bytes", Describe(Leaf(root)))
}

func TestDescribe_EveryNodeOfEncryptedChain(t *testing.T) {
	store := keys.NewStore()
	require.NoError(t, store.Add(apMAC, keys.Key{Cipher: keys.CipherTKIP, Secret: temporal}))
	cfg := DefaultConfig()
	cfg.Keys = store

	root, err := New(cfg).Decode(core.CaptureRadioTap, concat(radiotapHeader(true), withFCS(tkipFrame(t, innerPayload()))))
	require.NoError(t, err)

	for n := root; n != nil; n = n.Child() {
		assert.NotEmpty(t, Describe(n), "%s has no description", n.Tag())
	}
	wpa, _ := Find(root, TagWPA)
	assert.Equal(t, "tsc 258 key 0", Describe(wpa))
	df, _ := Find(root, TagDot11Data)
	assert.Contains(t, Describe(df), "bssid "+apMAC.String())
}
