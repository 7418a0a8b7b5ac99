package wlancrypto

import (
	"encoding/binary"
	"fmt"
	"math/bits"
	"net"

	"firestige.xyz/dissector/internal/core"
)

// TKIPKeyLen is the temporal key length. Michael keys may follow it in a
// configured secret and are ignored here.
const TKIPKeyLen = 16

var tkipSbox = buildTKIPSbox()

// buildTKIPSbox derives the 16-bit TKIP S-box from the AES S-box:
// each entry is (2*S[i]) << 8 | (3*S[i]) over GF(2^8).
func buildTKIPSbox() [256]uint16 {
	var box [256]uint16
	for i := range box {
		s := aesSbox(byte(i))
		box[i] = uint16(xtime(s))<<8 | uint16(xtime(s)^s)
	}
	return box
}

func xtime(b byte) byte {
	if b&0x80 != 0 {
		return b<<1 ^ 0x1b
	}
	return b << 1
}

func gfMul(a, b byte) byte {
	var p byte
	for b != 0 {
		if b&1 != 0 {
			p ^= a
		}
		a = xtime(a)
		b >>= 1
	}
	return p
}

func aesSbox(x byte) byte {
	var inv byte
	if x != 0 {
		for c := 1; c < 256; c++ {
			if gfMul(x, byte(c)) == 1 {
				inv = byte(c)
				break
			}
		}
	}
	return inv ^ bits.RotateLeft8(inv, 1) ^ bits.RotateLeft8(inv, 2) ^
		bits.RotateLeft8(inv, 3) ^ bits.RotateLeft8(inv, 4) ^ 0x63
}

func tkipS(v uint16) uint16 {
	return tkipSbox[v&0xff] ^ bits.ReverseBytes16(tkipSbox[v>>8])
}

func tk16(tk []byte, off int) uint16 {
	return binary.LittleEndian.Uint16(tk[off:])
}

// tkipPhase1 mixes the temporal key, transmitter address and the high
// 32 bits of the TSC.
func tkipPhase1(tk []byte, ta net.HardwareAddr, iv32 uint32) [5]uint16 {
	var p1k [5]uint16
	p1k[0] = uint16(iv32)
	p1k[1] = uint16(iv32 >> 16)
	p1k[2] = binary.LittleEndian.Uint16(ta[0:])
	p1k[3] = binary.LittleEndian.Uint16(ta[2:])
	p1k[4] = binary.LittleEndian.Uint16(ta[4:])

	for i := 0; i < 8; i++ {
		j := 2 * (i & 1)
		p1k[0] += tkipS(p1k[4] ^ tk16(tk, 0+j))
		p1k[1] += tkipS(p1k[0] ^ tk16(tk, 4+j))
		p1k[2] += tkipS(p1k[1] ^ tk16(tk, 8+j))
		p1k[3] += tkipS(p1k[2] ^ tk16(tk, 12+j))
		p1k[4] += tkipS(p1k[3]^tk16(tk, 0+j)) + uint16(i)
	}
	return p1k
}

// tkipPhase2 produces the 16-byte per-packet RC4 key.
func tkipPhase2(tk []byte, p1k [5]uint16, iv16 uint16) [16]byte {
	var ppk [6]uint16
	copy(ppk[:5], p1k[:])
	ppk[5] = p1k[4] + iv16

	ppk[0] += tkipS(ppk[5] ^ tk16(tk, 0))
	ppk[1] += tkipS(ppk[0] ^ tk16(tk, 2))
	ppk[2] += tkipS(ppk[1] ^ tk16(tk, 4))
	ppk[3] += tkipS(ppk[2] ^ tk16(tk, 6))
	ppk[4] += tkipS(ppk[3] ^ tk16(tk, 8))
	ppk[5] += tkipS(ppk[4] ^ tk16(tk, 10))
	ppk[0] += bits.RotateLeft16(ppk[5]^tk16(tk, 12), -1)
	ppk[1] += bits.RotateLeft16(ppk[0]^tk16(tk, 14), -1)
	ppk[2] += bits.RotateLeft16(ppk[1], -1)
	ppk[3] += bits.RotateLeft16(ppk[2], -1)
	ppk[4] += bits.RotateLeft16(ppk[3], -1)
	ppk[5] += bits.RotateLeft16(ppk[4], -1)

	var key [16]byte
	key[0] = byte(iv16 >> 8)
	key[1] = (byte(iv16>>8) | 0x20) & 0x7f
	key[2] = byte(iv16)
	key[3] = byte((ppk[5] ^ tk16(tk, 0)) >> 1)
	for i := 0; i < 6; i++ {
		binary.LittleEndian.PutUint16(key[4+2*i:], ppk[i])
	}
	return key
}

// TKIPKey returns the RC4 key for the 48-bit sequence counter tsc sent by ta.
func TKIPKey(tk []byte, ta net.HardwareAddr, tsc uint64) ([16]byte, error) {
	if len(tk) < TKIPKeyLen {
		return [16]byte{}, fmt.Errorf("tkip: %w: temporal key is %d bytes", core.ErrKeyInvalid, len(tk))
	}
	if len(ta) != 6 {
		return [16]byte{}, fmt.Errorf("tkip: %w: transmitter address", core.ErrMalformedHeader)
	}
	p1k := tkipPhase1(tk, ta, uint32(tsc>>16))
	return tkipPhase2(tk, p1k, uint16(tsc)), nil
}

// TKIPOpen decrypts a TKIP body and verifies its ICV. The returned
// plaintext still carries the 8-byte Michael MIC, which is not verified.
func TKIPOpen(tk []byte, ta net.HardwareAddr, tsc uint64, ciphertext []byte) ([]byte, error) {
	if len(ciphertext) < MICLen+ICVLen {
		return nil, fmt.Errorf("tkip: %w", core.ErrPacketTooShort)
	}
	key, err := TKIPKey(tk, ta, tsc)
	if err != nil {
		return nil, err
	}
	plain, err := rc4Apply(key[:], ciphertext)
	if err != nil {
		return nil, err
	}
	return checkICV(plain)
}

// TKIPSeal encrypts plaintext (data || MIC) and appends the encrypted ICV.
func TKIPSeal(tk []byte, ta net.HardwareAddr, tsc uint64, plaintext []byte) ([]byte, error) {
	key, err := TKIPKey(tk, ta, tsc)
	if err != nil {
		return nil, err
	}
	return rc4Apply(key[:], appendICV(plaintext))
}
