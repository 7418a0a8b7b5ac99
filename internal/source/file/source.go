// Package file reads captured frames from pcap and pcapng files.
package file

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"firestige.xyz/dissector/internal/core"
	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"golang.org/x/net/bpf"
)

// Name identifies the source in logs and metrics.
const Name = "file"

// pcapng section header block type, identical in both byte orders.
const ngSectionHeader = 0x0A0D0D0A

// Options tunes how a capture file is read.
type Options struct {
	// Capture overrides the capture type derived from the file's link type.
	Capture core.CaptureType
	// BPF is a classic BPF program (tcpdump -dd). Frames it rejects are skipped.
	BPF []bpf.RawInstruction
}

type packetReader interface {
	ReadPacketData() ([]byte, gopacket.CaptureInfo, error)
	LinkType() layers.LinkType
}

// Source yields the frames of one capture file in order.
type Source struct {
	path     string
	f        *os.File
	r        packetReader
	ng       *pcapgo.NgReader // set for pcapng files, whose interfaces may differ in link type
	capture  core.CaptureType
	override bool
	vm       *bpf.VM
	index    uint64
	filtered uint64
}

// CaptureTypeFor maps a pcap link type to the decoder entry point.
func CaptureTypeFor(lt layers.LinkType) (core.CaptureType, error) {
	switch lt {
	case layers.LinkTypeEthernet:
		return core.CaptureEthernet, nil
	case layers.LinkTypeLinuxSLL:
		return core.CaptureLinuxSLL, nil
	case layers.LinkTypeIEEE80211Radio:
		return core.CaptureRadioTap, nil
	case layers.LinkTypeIEEE802_11:
		return core.CaptureDot11, nil
	default:
		return core.CaptureUnknown, fmt.Errorf("%w: link type %d", core.ErrUnsupportedCapture, lt)
	}
}

// Open opens a pcap or pcapng file. The format is detected from the first block.
func Open(path string, opts Options) (*Source, error) {
	if path == "" {
		return nil, fmt.Errorf("capture file path is required")
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open capture file %s: %w", path, err)
	}

	s := &Source{path: path, f: f}
	if err := s.init(opts); err != nil {
		f.Close()
		return nil, err
	}
	return s, nil
}

func (s *Source) init(opts Options) error {
	br := bufio.NewReader(s.f)
	magic, err := br.Peek(4)
	if err != nil {
		return fmt.Errorf("failed to read capture header of %s: %w", s.path, err)
	}

	s.capture = opts.Capture
	s.override = opts.Capture != core.CaptureUnknown

	if binary.LittleEndian.Uint32(magic) == ngSectionHeader {
		ngOpts := pcapgo.DefaultNgReaderOptions
		ngOpts.WantMixedLinkType = true
		r, err := pcapgo.NewNgReader(br, ngOpts)
		if err != nil {
			return fmt.Errorf("failed to read pcapng file %s: %w", s.path, err)
		}
		s.r, s.ng = r, r
	} else {
		r, err := pcapgo.NewReader(br)
		if err != nil {
			return fmt.Errorf("failed to read pcap file %s: %w", s.path, err)
		}
		s.r = r
		if !s.override {
			if s.capture, err = CaptureTypeFor(r.LinkType()); err != nil {
				return err
			}
		}
	}

	if len(opts.BPF) > 0 {
		insts, ok := bpf.Disassemble(opts.BPF)
		if !ok {
			return fmt.Errorf("%w: bpf program contains undecodable instructions", core.ErrConfigInvalid)
		}
		if s.vm, err = bpf.NewVM(insts); err != nil {
			return fmt.Errorf("%w: bpf: %v", core.ErrConfigInvalid, err)
		}
	}
	return nil
}

// Next returns the next frame accepted by the filter, or io.EOF.
func (s *Source) Next() (core.RawFrame, error) {
	if s.r == nil {
		return core.RawFrame{}, fmt.Errorf("file source %s is closed", s.path)
	}

	for {
		data, ci, err := s.r.ReadPacketData()
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return core.RawFrame{}, io.EOF
			}
			return core.RawFrame{}, fmt.Errorf("failed to read frame %d: %w", s.index+1, err)
		}
		s.index++

		if s.vm != nil {
			n, err := s.vm.Run(data)
			if err != nil {
				return core.RawFrame{}, fmt.Errorf("bpf on frame %d: %w", s.index, err)
			}
			if n == 0 {
				s.filtered++
				continue
			}
		}

		capture, err := s.frameCapture(ci)
		if err != nil {
			return core.RawFrame{}, fmt.Errorf("frame %d: %w", s.index, err)
		}

		return core.RawFrame{
			Index:      s.index,
			Data:       data,
			Capture:    capture,
			Timestamp:  ci.Timestamp,
			CaptureLen: uint32(ci.CaptureLength),
			OrigLen:    uint32(ci.Length),
		}, nil
	}
}

// frameCapture resolves the entry point for one frame. pcapng frames take
// the link type of the interface they were captured on.
func (s *Source) frameCapture(ci gopacket.CaptureInfo) (core.CaptureType, error) {
	if s.override || s.ng == nil {
		return s.capture, nil
	}
	intf, err := s.ng.Interface(ci.InterfaceIndex)
	if err != nil {
		return core.CaptureUnknown, err
	}
	capture, err := CaptureTypeFor(intf.LinkType)
	if err != nil {
		return core.CaptureUnknown, fmt.Errorf("interface %d: %w", ci.InterfaceIndex, err)
	}
	s.capture = capture
	return capture, nil
}

// CaptureType returns the entry point of the file. For pcapng files without
// an override it is the type of the most recent frame, CaptureUnknown
// before the first one.
func (s *Source) CaptureType() core.CaptureType {
	return s.capture
}

// LinkType returns the link type recorded in the pcap file header, or the
// link type of the first pcapng interface read so far.
func (s *Source) LinkType() layers.LinkType {
	if s.r == nil {
		return layers.LinkTypeNull
	}
	if s.ng != nil {
		if intf, err := s.ng.Interface(0); err == nil {
			return intf.LinkType
		}
		return layers.LinkTypeNull
	}
	return s.r.LinkType()
}

// Filtered returns how many frames the BPF program rejected so far.
func (s *Source) Filtered() uint64 {
	return s.filtered
}

func (s *Source) Close() error {
	if s.f == nil {
		return nil
	}
	err := s.f.Close()
	s.f = nil
	s.r = nil
	s.ng = nil
	return err
}
