package wlancrypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/subtle"
	"encoding/binary"
	"fmt"
	"net"

	"firestige.xyz/dissector/internal/core"
)

// CCMPKeyLen is the AES-128 temporal key length.
const CCMPKeyLen = 16

// MACHeader carries the 802.11 header fields that CCMP authenticates.
type MACHeader struct {
	FrameControl [2]byte
	Addr1        net.HardwareAddr
	Addr2        net.HardwareAddr
	Addr3        net.HardwareAddr
	Addr4        net.HardwareAddr // nil unless the frame uses four addresses
	SeqCtl       uint16
	QoS          uint16
	HasQoS       bool
}

func (h MACHeader) priority() byte {
	if h.HasQoS {
		return byte(h.QoS & 0x0f)
	}
	return 0
}

// aad builds the additional authenticated data with the mutable bits masked.
func (h MACHeader) aad() []byte {
	fc0 := h.FrameControl[0] & 0x8f
	// clear retry, power management and more data; set protected
	fc1 := h.FrameControl[1]&^0x38 | 0x40
	if h.HasQoS {
		fc1 &^= 0x80
	}

	aad := make([]byte, 0, 30)
	aad = append(aad, fc0, fc1)
	aad = append(aad, h.Addr1...)
	aad = append(aad, h.Addr2...)
	aad = append(aad, h.Addr3...)
	aad = binary.LittleEndian.AppendUint16(aad, h.SeqCtl&0x000f)
	if h.Addr4 != nil {
		aad = append(aad, h.Addr4...)
	}
	if h.HasQoS {
		aad = binary.LittleEndian.AppendUint16(aad, h.QoS&0x000f)
	}
	return aad
}

// nonce is priority || A2 || PN5..PN0.
func (h MACHeader) nonce(pn uint64) [13]byte {
	var n [13]byte
	n[0] = h.priority()
	copy(n[1:7], h.Addr2)
	for i := 0; i < 6; i++ {
		n[7+i] = byte(pn >> (8 * (5 - i)))
	}
	return n
}

// ccm is AES-CCM with an 8-byte MIC and a 2-byte length field.
type ccm struct {
	block cipher.Block
}

func newCCM(tk []byte) (ccm, error) {
	if len(tk) != CCMPKeyLen {
		return ccm{}, fmt.Errorf("ccmp: %w: temporal key is %d bytes", core.ErrKeyInvalid, len(tk))
	}
	b, err := aes.NewCipher(tk)
	if err != nil {
		return ccm{}, fmt.Errorf("ccmp: %w", err)
	}
	return ccm{block: b}, nil
}

func (c ccm) cbcUpdate(x *[16]byte, data []byte) {
	for i := 0; i < len(data); i += 16 {
		end := min(i+16, len(data))
		subtle.XORBytes(x[:end-i], x[:end-i], data[i:end])
		c.block.Encrypt(x[:], x[:])
	}
}

// tag computes the raw CBC-MAC over B0, the encoded AAD and the message.
func (c ccm) tag(nonce [13]byte, aad, msg []byte) [16]byte {
	var x [16]byte
	x[0] = 0x59 // Adata, M=8, L=2
	copy(x[1:14], nonce[:])
	binary.BigEndian.PutUint16(x[14:], uint16(len(msg)))
	c.block.Encrypt(x[:], x[:])

	if len(aad) > 0 {
		buf := make([]byte, 2+len(aad))
		binary.BigEndian.PutUint16(buf, uint16(len(aad)))
		copy(buf[2:], aad)
		c.cbcUpdate(&x, buf)
	}
	c.cbcUpdate(&x, msg)
	return x
}

func (c ccm) counterBlock(nonce [13]byte, i uint16) [16]byte {
	var a [16]byte
	a[0] = 0x01 // L-1
	copy(a[1:14], nonce[:])
	binary.BigEndian.PutUint16(a[14:], i)
	c.block.Encrypt(a[:], a[:])
	return a
}

func (c ccm) ctr(nonce [13]byte, dst, src []byte) {
	for i := 0; i < len(src); i += 16 {
		end := min(i+16, len(src))
		s := c.counterBlock(nonce, uint16(i/16+1))
		subtle.XORBytes(dst[i:end], src[i:end], s[:end-i])
	}
}

func (c ccm) mic(nonce [13]byte, aad, msg []byte) [MICLen]byte {
	t := c.tag(nonce, aad, msg)
	s0 := c.counterBlock(nonce, 0)
	var m [MICLen]byte
	subtle.XORBytes(m[:], t[:MICLen], s0[:MICLen])
	return m
}

// CCMPOpen decrypts a CCMP body (after the 8-byte CCMP header) and checks
// its MIC against hdr and the 48-bit packet number pn.
func CCMPOpen(tk []byte, hdr MACHeader, pn uint64, ciphertext []byte) ([]byte, error) {
	if len(ciphertext) < MICLen {
		return nil, fmt.Errorf("ccmp: %w", core.ErrPacketTooShort)
	}
	c, err := newCCM(tk)
	if err != nil {
		return nil, err
	}
	nonce := hdr.nonce(pn)
	n := len(ciphertext) - MICLen
	plain := make([]byte, n)
	c.ctr(nonce, plain, ciphertext[:n])

	want := c.mic(nonce, hdr.aad(), plain)
	if subtle.ConstantTimeCompare(want[:], ciphertext[n:]) != 1 {
		return nil, core.ErrIntegrity
	}
	return plain, nil
}

// CCMPSeal encrypts plaintext and appends the MIC.
func CCMPSeal(tk []byte, hdr MACHeader, pn uint64, plaintext []byte) ([]byte, error) {
	c, err := newCCM(tk)
	if err != nil {
		return nil, err
	}
	nonce := hdr.nonce(pn)
	out := make([]byte, len(plaintext), len(plaintext)+MICLen)
	c.ctr(nonce, out, plaintext)
	m := c.mic(nonce, hdr.aad(), plaintext)
	return append(out, m[:]...), nil
}
