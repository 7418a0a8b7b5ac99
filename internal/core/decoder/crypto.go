package decoder

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"net"
	"time"

	"firestige.xyz/dissector/internal/core"
	"firestige.xyz/dissector/internal/keys"
	"firestige.xyz/dissector/internal/wlancrypto"
)

const (
	wepHeaderLen   = 4 // IV (3) + key id
	extIVHeaderLen = 8 // TKIP and CCMP
	extIVBit       = 0x20
)

// WEP is the WEP envelope: IV and key index. Its child is WEPData when the
// body was decrypted and verified, and Data (the ciphertext) otherwise.
type WEP struct {
	base
	IV    [3]byte
	KeyID uint8
}

func (*WEP) Tag() Tag { return TagWEP }

// WEPData is a verified WEP plaintext, ICV removed.
type WEPData struct {
	base
	ICV uint32
}

func (*WEPData) Tag() Tag { return TagWEPData }

// WPA is the TKIP envelope.
type WPA struct {
	base
	TSC   uint64 // 48-bit sequence counter
	KeyID uint8
}

func (*WPA) Tag() Tag { return TagWPA }

// WPAData is a TKIP plaintext with its ICV verified. The Michael MIC is
// split off but not checked.
type WPAData struct {
	base
	MIC []byte
}

func (*WPAData) Tag() Tag { return TagWPAData }

// WPA2 is the CCMP envelope.
type WPA2 struct {
	base
	PN    uint64 // 48-bit packet number
	KeyID uint8
}

func (*WPA2) Tag() Tag { return TagWPA2 }

// WPA2Data is a CCMP plaintext whose MIC verified.
type WPA2Data struct {
	base
	MIC []byte
}

func (*WPA2Data) Tag() Tag { return TagWPA2Data }

func isWEP(body []byte) bool {
	return len(body) >= wepHeaderLen && body[3]&extIVBit == 0
}

// isWPA tests the TKIP WEP seed relation: byte 1 is (TSC1 | 0x20) & 0x7f.
func isWPA(body []byte) bool {
	return len(body) >= extIVHeaderLen && body[3]&extIVBit != 0 && body[1] == (body[0]|0x20)&0x7f
}

func isWPA2(body []byte) bool {
	return len(body) >= extIVHeaderLen && body[3]&extIVBit != 0 && body[1] != (body[0]|0x20)&0x7f
}

// decodeProtected tries WEP, WPA and WPA2 framing in that order. Missing
// keys and failed integrity checks end the chain in Data under the
// envelope; a body matching no framing ends in Data directly.
func (d *Decoder) decodeProtected(ctx frameContext, f *Dot11DataFrame, body []byte) (Node, error) {
	switch {
	case isWEP(body):
		return d.decodeWEP(ctx, f, body)
	case isWPA(body):
		return d.decodeWPA(ctx, f, body)
	case isWPA2(body):
		return d.decodeWPA2(ctx, f, body)
	default:
		if l := d.logger(); l.IsDebugEnabled() {
			l.WithField("bssid", f.BSSID().String()).Debugf("protected frame matches no WEP/WPA/WPA2 framing, payload left encrypted")
		}
		return newData(body), nil
	}
}

func (d *Decoder) decodeWEP(ctx frameContext, f *Dot11DataFrame, body []byte) (Node, error) {
	node := &WEP{
		IV:    [3]byte{body[0], body[1], body[2]},
		KeyID: body[3] >> 6,
	}
	ct := body[wepHeaderLen:]

	child, err := d.openWEP(ctx, f, node.IV, ct)
	if err != nil {
		return nil, err
	}
	node.base = base{header: body[:wepHeaderLen], payload: ct, child: child}
	return node, nil
}

func (d *Decoder) openWEP(ctx frameContext, f *Dot11DataFrame, iv [3]byte, ct []byte) (Node, error) {
	bssid := f.BSSID()
	key, ok := d.lookupKey(TagWEP, bssid, keys.CipherWEP)
	if !ok {
		return newData(ct), nil
	}
	plain, err := wlancrypto.WEPOpen(iv, key.Secret, ct)
	if err != nil {
		d.fallback(TagWEP, bssid, err)
		return newData(ct), nil
	}
	child, err := d.decodeFrameBody(ctx, plain)
	if err != nil {
		return nil, err
	}
	return &WEPData{
		base: base{payload: plain, child: child},
		ICV:  crc32.ChecksumIEEE(plain),
	}, nil
}

func (d *Decoder) decodeWPA(ctx frameContext, f *Dot11DataFrame, body []byte) (Node, error) {
	node := &WPA{
		// TSC1, WEP seed, TSC0, key id, TSC2..TSC5
		TSC: uint64(body[2]) | uint64(body[0])<<8 |
			uint64(binary.LittleEndian.Uint32(body[4:8]))<<16,
		KeyID: body[3] >> 6,
	}
	ct := body[extIVHeaderLen:]

	child, err := d.openWPA(ctx, f, node.TSC, ct)
	if err != nil {
		return nil, err
	}
	node.base = base{header: body[:extIVHeaderLen], payload: ct, child: child}
	return node, nil
}

func (d *Decoder) openWPA(ctx frameContext, f *Dot11DataFrame, tsc uint64, ct []byte) (Node, error) {
	bssid := f.BSSID()
	key, ok := d.lookupKey(TagWPA, bssid, keys.CipherTKIP)
	if !ok {
		return newData(ct), nil
	}
	plain, err := wlancrypto.TKIPOpen(key.Secret, f.Transmitter(), tsc, ct)
	if err != nil {
		d.fallback(TagWPA, bssid, err)
		return newData(ct), nil
	}
	n := len(plain) - wlancrypto.MICLen
	child, err := d.decodeFrameBody(ctx, plain[:n])
	if err != nil {
		return nil, err
	}
	return &WPAData{
		base: base{payload: plain[:n], child: child},
		MIC:  plain[n:],
	}, nil
}

func (d *Decoder) decodeWPA2(ctx frameContext, f *Dot11DataFrame, body []byte) (Node, error) {
	node := &WPA2{
		// PN0, PN1, reserved, key id, PN2..PN5
		PN: uint64(body[0]) | uint64(body[1])<<8 |
			uint64(binary.LittleEndian.Uint32(body[4:8]))<<16,
		KeyID: body[3] >> 6,
	}
	ct := body[extIVHeaderLen:]

	child, err := d.openWPA2(ctx, f, node.PN, ct)
	if err != nil {
		return nil, err
	}
	node.base = base{header: body[:extIVHeaderLen], payload: ct, child: child}
	return node, nil
}

func (d *Decoder) openWPA2(ctx frameContext, f *Dot11DataFrame, pn uint64, ct []byte) (Node, error) {
	bssid := f.BSSID()
	key, ok := d.lookupKey(TagWPA2, bssid, keys.CipherCCMP)
	if !ok {
		return newData(ct), nil
	}
	hdr := wlancrypto.MACHeader{
		FrameControl: f.fc,
		Addr1:        f.Address1,
		Addr2:        f.Address2,
		Addr3:        f.Address3,
		Addr4:        f.Address4,
		SeqCtl:       f.SequenceControl,
		QoS:          f.QoSControl,
		HasQoS:       f.HasQoS(),
	}
	plain, err := wlancrypto.CCMPOpen(key.Secret, hdr, pn, ct)
	if err != nil {
		d.fallback(TagWPA2, bssid, err)
		return newData(ct), nil
	}
	child, err := d.decodeFrameBody(ctx, plain)
	if err != nil {
		return nil, err
	}
	return &WPA2Data{
		base: base{payload: plain, child: child},
		MIC:  ct[len(ct)-wlancrypto.MICLen:],
	}, nil
}

// decodeFrameBody decodes a cleartext 802.11 frame body.
func (d *Decoder) decodeFrameBody(ctx frameContext, body []byte) (Node, error) {
	if len(body) == 0 {
		return newData(body), nil
	}
	return d.decodeLLC(ctx, body)
}

// lookupKey resolves the key for bssid. A miss or a key for another
// cipher both leave the frame undecrypted.
func (d *Decoder) lookupKey(t Tag, bssid net.HardwareAddr, want keys.Cipher) (keys.Key, bool) {
	key, ok := d.cfg.Keys.Key(bssid)
	if !ok {
		if l := d.logger(); l.IsDebugEnabled() {
			l.WithField("bssid", bssid.String()).Debugf("%s: no key, payload left encrypted", t)
		}
		return keys.Key{}, false
	}
	if key.Cipher != want {
		d.fallback(t, bssid, fmt.Errorf("%w: have %s, need %s", core.ErrUnsupportedCipher, key.Cipher, want))
		return keys.Key{}, false
	}
	return key, true
}

// fallback records a decryption that could not complete. Integrity failures
// are expected on noisy captures and never fail the decode.
func (d *Decoder) fallback(t Tag, bssid net.HardwareAddr, err error) {
	l := d.logger().WithField("bssid", bssid.String()).WithError(err)
	if d.cfg.Limiter != nil {
		if d.cfg.Limiter.Allow(bssid, time.Now()) {
			l.Warnf("%s: decryption failed, payload left encrypted", t)
		}
		return
	}
	l.Debugf("%s: decryption failed, payload left encrypted", t)
}
