// Package decoder peels encapsulated protocol headers off captured frames,
// producing a chain of typed nodes from the link layer down to raw data.
package decoder

import (
	"fmt"

	"firestige.xyz/dissector/internal/core"
	"firestige.xyz/dissector/internal/keys"
	"firestige.xyz/dissector/internal/log"
)

// Config is the static configuration of a Decoder.
type Config struct {
	// FCSAtEnd tells whether 802.11 frames carry a trailing FCS when
	// the capture does not say so (no radiotap flags field).
	FCSAtEnd bool
	// Keys resolves BSSIDs to decryption keys. Nil means no keys.
	Keys keys.Lookup
	// Logger receives decryption fallbacks. Nil means log.GetLogger().
	Logger log.Logger
	// Limiter bounds per-network warnings. Nil logs every fallback at debug level.
	Limiter *WarnLimiter
}

// DefaultConfig returns the configuration used when none is given.
func DefaultConfig() Config {
	return Config{FCSAtEnd: true, Keys: keys.Empty{}}
}

// Decoder decodes frames into node chains. A Decoder remembers the last
// chain it produced and is therefore not safe for concurrent use; run one
// per goroutine, sharing the read-only Keys.
type Decoder struct {
	cfg  Config
	last Node
}

// New creates a decoder.
func New(cfg Config) *Decoder {
	if cfg.Keys == nil {
		cfg.Keys = keys.Empty{}
	}
	return &Decoder{cfg: cfg}
}

// frameContext carries per-frame state down the dispatch functions.
// It is passed by value, so a frame never sees flags from a previous one.
type frameContext struct {
	fcsAtEnd bool
	fc       [2]byte // 802.11 frame control, zero outside 802.11
}

func (fc frameContext) frameType() uint8 { return (fc.fc[0] >> 2) & 0x03 }
func (fc frameContext) subtype() uint8   { return fc.fc[0] >> 4 }
func (fc frameContext) flags() uint8     { return fc.fc[1] }

// Decode decodes one frame whose outermost protocol is capture.
// Only structurally malformed headers are reported as errors; anything
// unrecognised ends the chain in a Data node.
func (d *Decoder) Decode(capture core.CaptureType, data []byte) (Node, error) {
	ctx := frameContext{fcsAtEnd: d.cfg.FCSAtEnd}

	var (
		root Node
		err  error
	)
	switch capture {
	case core.CaptureEthernet:
		root, err = d.decodeEthernet(ctx, data)
	case core.CaptureLinuxSLL:
		root, err = d.decodeLinuxSLL(ctx, data)
	case core.CaptureRadioTap:
		root, err = d.decodeRadioTap(ctx, data)
	case core.CaptureDot11:
		root, err = d.decodeDot11(ctx, data)
	default:
		err = fmt.Errorf("%w: %v", core.ErrUnsupportedCapture, capture)
	}
	if err != nil {
		d.last = nil
		return nil, err
	}
	d.last = root
	return root, nil
}

// Last returns the chain produced by the last successful Decode.
func (d *Decoder) Last() Node {
	return d.last
}

// Protocol returns the first node tagged t in the last decoded chain.
func (d *Decoder) Protocol(t Tag) (Node, bool) {
	return Find(d.last, t)
}

// String renders the last decoded chain.
func (d *Decoder) String() string {
	return Format(d.last)
}

func (d *Decoder) logger() log.Logger {
	if d.cfg.Logger != nil {
		return d.cfg.Logger
	}
	return log.GetLogger()
}

func tooShort(t Tag, need, have int) error {
	return fmt.Errorf("decode %s: %w: need %d bytes, have %d", t, core.ErrPacketTooShort, need, have)
}

func malformed(t Tag, err error) error {
	return fmt.Errorf("decode %s: %w: %v", t, core.ErrMalformedHeader, err)
}
