package cmd

import (
	"bytes"
	"context"
	"encoding/hex"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/dissector/internal/config"
	"firestige.xyz/dissector/internal/core"
	"firestige.xyz/dissector/internal/keys"
	"firestige.xyz/dissector/internal/pipeline"
)

const udpHex = "001122334455 66778899aabb 0800" +
	"4500001e 00010000 40110000 c0a80101 c0a80102" +
	"30390035000a0000 beef"

func defaultConfig(t *testing.T) *config.GlobalConfig {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)
	return cfg
}

func udpFrame(t *testing.T) []byte {
	t.Helper()
	data, err := parseHex(udpHex)
	require.NoError(t, err)
	return data
}

func writePcap(t *testing.T, frames ...[]byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "capture.pcap")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	w := pcapgo.NewWriter(f)
	require.NoError(t, w.WriteFileHeader(65536, layers.LinkTypeEthernet))
	for _, data := range frames {
		require.NoError(t, w.WritePacket(gopacket.CaptureInfo{CaptureLength: len(data), Length: len(data)}, data))
	}
	return path
}

func TestParseHex(t *testing.T) {
	data, err := parseHex("0x00:11 22\n33")
	require.NoError(t, err)
	assert.Equal(t, []byte{0x00, 0x11, 0x22, 0x33}, data)

	_, err = parseHex("zz")
	assert.Error(t, err)
	_, err = parseHex("  ")
	assert.Error(t, err)
}

func TestRunInspect(t *testing.T) {
	var out bytes.Buffer
	err := runInspect(defaultConfig(t), inspectOptions{capture: "ethernet", verbose: true}, udpHex, &out)
	require.NoError(t, err)

	got := out.String()
	assert.True(t, strings.HasPrefix(got, "#1 ethernet len=44\n"), got)
	assert.Contains(t, got, "IPv4  192.168.1.1 > 192.168.1.2")
	assert.Contains(t, got, "UDP  12345 > 53")
	assert.Contains(t, got, "Data  2 bytes")
}

func TestRunInspect_DecodeError(t *testing.T) {
	var out bytes.Buffer
	err := runInspect(defaultConfig(t), inspectOptions{}, "001122", &out)
	assert.ErrorIs(t, err, core.ErrPacketTooShort)
	assert.Contains(t, out.String(), "error:")
}

func TestRunInspect_BadInput(t *testing.T) {
	var out bytes.Buffer
	assert.Error(t, runInspect(defaultConfig(t), inspectOptions{}, "xyz", &out))
	assert.ErrorIs(t, runInspect(defaultConfig(t), inspectOptions{capture: "token_ring"}, udpHex, &out), core.ErrUnsupportedCapture)
	assert.Empty(t, out.String())
}

func TestRunDecode(t *testing.T) {
	frame := udpFrame(t)
	path := writePcap(t, frame, frame[:10], frame)

	var out bytes.Buffer
	stats, err := runDecode(context.Background(), defaultConfig(t), decodeOptions{file: path, workers: 2}, &out)
	require.NoError(t, err)

	assert.Equal(t, uint64(3), stats.Received)
	assert.Equal(t, uint64(2), stats.Decoded)
	assert.Equal(t, uint64(1), stats.DecodeErrors)

	lines := strings.Split(out.String(), "\n")
	assert.True(t, strings.HasPrefix(lines[0], "#1 "), lines[0])
	assert.True(t, strings.HasSuffix(lines[0], " ethernet len=44"), lines[0])
	assert.Contains(t, out.String(), "#2 ")
	assert.Contains(t, out.String(), "packet too short")
	assert.Contains(t, out.String(), "#3 ")
}

func TestRunDecode_JSON(t *testing.T) {
	path := writePcap(t, udpFrame(t))

	var out bytes.Buffer
	_, err := runDecode(context.Background(), defaultConfig(t), decodeOptions{file: path, format: "json"}, &out)
	require.NoError(t, err)
	assert.Contains(t, out.String(), `"protocol":"UDP"`)
}

func TestPrintStats(t *testing.T) {
	var out bytes.Buffer
	printStats(&out, pipeline.Stats{Received: 5, Filtered: 1, Suppressed: 3})
	assert.Contains(t, out.String(), `"warnings_suppressed": 3`)
	assert.Contains(t, out.String(), `"received": 5`)
}

func TestRunDecode_Errors(t *testing.T) {
	cfg := defaultConfig(t)
	var out bytes.Buffer

	_, err := runDecode(context.Background(), cfg, decodeOptions{}, &out)
	assert.Error(t, err, "no file")

	_, err = runDecode(context.Background(), cfg, decodeOptions{file: filepath.Join(t.TempDir(), "none.pcap")}, &out)
	assert.ErrorIs(t, err, os.ErrNotExist)

	path := writePcap(t, udpFrame(t))
	_, err = runDecode(context.Background(), cfg, decodeOptions{file: path, capture: "bogus"}, &out)
	assert.ErrorIs(t, err, core.ErrUnsupportedCapture)

	_, err = runDecode(context.Background(), cfg, decodeOptions{file: path, keySpec: []string{"bssid=nope"}}, &out)
	assert.Error(t, err)
}

func TestKeyStore(t *testing.T) {
	bssid := "00:11:22:33:44:55"
	kc := config.KeysConfig{Entries: []keys.Entry{{BSSID: bssid, Cipher: "wep", Key: "0102030405"}}}

	store, err := keyStore(kc, "", []string{"bssid=" + bssid + ",cipher=ccmp,key=000102030405060708090a0b0c0d0e0f"})
	require.NoError(t, err)
	assert.Equal(t, 1, store.Len())

	mac, _ := net.ParseMAC(bssid)
	key, ok := store.Key(mac)
	require.True(t, ok)
	assert.Equal(t, keys.CipherCCMP, key.Cipher)
	assert.Len(t, kc.Entries, 1, "config entries are not modified")

	keyFile := filepath.Join(t.TempDir(), "keys.yaml")
	require.NoError(t, os.WriteFile(keyFile, []byte(`
keys:
  - bssid: "02:00:00:00:00:0a"
    cipher: tkip
    key: "`+hex.EncodeToString(make([]byte, 16))+`"
`), 0o644))
	store, err = keyStore(config.KeysConfig{}, keyFile, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, store.Len())
}

func TestRunValidate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(`
dissector:
  decoder:
    capture_type: radiotap
  keys:
    entries:
      - bssid: "00:11:22:33:44:55"
        cipher: wep
        key: "0102030405"
  pipeline:
    workers: 2
`), 0o644))

	var out bytes.Buffer
	require.NoError(t, runValidate(path, &out))
	assert.Equal(t, "VALID: capture radiotap, 1 key(s), 2 worker(s), fcs_at_end=true, 0 bpf instruction(s)\n", out.String())
}

func TestRunValidate_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte("dissector:\n  pipeline:\n    workers: -1\n"), 0o644))

	var out bytes.Buffer
	assert.ErrorIs(t, runValidate(path, &out), core.ErrConfigInvalid)
	assert.Error(t, runValidate("", &out))
	assert.Empty(t, out.String())
}
