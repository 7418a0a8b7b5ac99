package console

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"firestige.xyz/dissector/internal/core"
	"firestige.xyz/dissector/internal/core/decoder"
	"firestige.xyz/dissector/internal/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var udpFrame = []byte{
	0x00, 0x11, 0x22, 0x33, 0x44, 0x55, 0x66, 0x77, 0x88, 0x99, 0xaa, 0xbb, 0x08, 0x00,
	0x45, 0x00, 0x00, 0x1e, 0x00, 0x01, 0x00, 0x00, 0x40, 0x11, 0x00, 0x00,
	0xc0, 0xa8, 0x01, 0x01, 0xc0, 0xa8, 0x01, 0x02,
	0x30, 0x39, 0x00, 0x35, 0x00, 0x0a, 0x00, 0x00,
	0xbe, 0xef,
}

func decoded(t *testing.T) pipeline.Result {
	t.Helper()
	frame := core.RawFrame{
		Index:      1,
		Data:       udpFrame,
		Capture:    core.CaptureEthernet,
		CaptureLen: uint32(len(udpFrame)),
		OrigLen:    uint32(len(udpFrame)),
	}
	root, err := decoder.New(decoder.DefaultConfig()).Decode(frame.Capture, frame.Data)
	require.NoError(t, err)
	return pipeline.Result{Frame: frame, Root: root}
}

func failed() pipeline.Result {
	return pipeline.Result{
		Frame: core.RawFrame{Index: 2, Data: []byte{1, 2, 3}, Capture: core.CaptureEthernet, CaptureLen: 3, OrigLen: 60},
		Err:   errors.New("decode Ethernet: dissector: packet too short"),
	}
}

func TestNewSink_Format(t *testing.T) {
	tests := []struct {
		format  string
		want    string
		wantErr bool
	}{
		{"", "text", false},
		{"text", "text", false},
		{"json", "json", false},
		{"xml", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			s, err := NewSink(&bytes.Buffer{}, Options{Format: tt.format})
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, s.format)
		})
	}
}

func TestSink_Text(t *testing.T) {
	var buf bytes.Buffer
	s, err := NewSink(&buf, Options{})
	require.NoError(t, err)

	require.NoError(t, s.Write(decoded(t)))
	require.NoError(t, s.Write(failed()))
	require.NoError(t, s.Close())

	want := "#1 ethernet len=44\n" +
		"  Ethernet\n" +
		"    IPv4\n" +
		"      UDP\n" +
		"        Data\n" +
		"#2 ethernet len=3 orig=60 error: decode Ethernet: dissector: packet too short\n"
	assert.Equal(t, want, buf.String())
	assert.Equal(t, uint64(2), s.Count())
}

func TestSink_TextVerbose(t *testing.T) {
	var buf bytes.Buffer
	s, err := NewSink(&buf, Options{Verbose: true})
	require.NoError(t, err)

	res := decoded(t)
	res.Frame.Timestamp = time.Date(2024, 3, 1, 12, 30, 45, 123456000, time.UTC)
	require.NoError(t, s.Write(res))

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	require.Len(t, lines, 5)
	assert.Equal(t, "#1 12:30:45.123456 ethernet len=44", lines[0])
	assert.Contains(t, lines[2], "IPv4  192.168.1.1 > 192.168.1.2")
	assert.Contains(t, lines[3], "UDP  12345 > 53")
	assert.Equal(t, "        Data  2 bytes", lines[4])
}

func TestSink_JSON(t *testing.T) {
	var buf bytes.Buffer
	s, err := NewSink(&buf, Options{Format: "json", Verbose: true})
	require.NoError(t, err)

	require.NoError(t, s.Write(decoded(t)))
	require.NoError(t, s.Write(failed()))

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	require.Len(t, lines, 2)

	var ok resultJSON
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &ok))
	assert.Equal(t, uint64(1), ok.Index)
	assert.Equal(t, "ethernet", ok.Capture)
	assert.Empty(t, ok.Error)
	require.Len(t, ok.Layers, 4)
	assert.Equal(t, layerJSON{Protocol: "Ethernet", Header: 14, Summary: ok.Layers[0].Summary}, ok.Layers[0])
	assert.Equal(t, "UDP", ok.Layers[2].Protocol)
	assert.Equal(t, 8, ok.Layers[2].Header)
	assert.Equal(t, "2 bytes", ok.Layers[3].Summary)

	var bad resultJSON
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &bad))
	assert.Equal(t, uint64(2), bad.Index)
	assert.True(t, bad.Truncated)
	assert.Contains(t, bad.Error, "packet too short")
	assert.Empty(t, bad.Layers)
}
