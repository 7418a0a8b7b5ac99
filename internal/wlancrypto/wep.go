// Package wlancrypto implements the 802.11 link-layer ciphers needed to open
// protected data frames: WEP, TKIP and CCMP.
package wlancrypto

import (
	"crypto/rc4"
	"encoding/binary"
	"fmt"
	"hash/crc32"

	"firestige.xyz/dissector/internal/core"
)

const (
	// ICVLen is the CRC-32 trailer of WEP and TKIP plaintext.
	ICVLen = 4
	// MICLen is the TKIP Michael MIC and the CCMP MIC length.
	MICLen = 8
)

// WEPOpen decrypts a WEP body (the bytes after IV and key id) with the
// per-packet key IV || secret. It returns the plaintext without the ICV,
// and ErrIntegrity when the decrypted ICV does not match.
func WEPOpen(iv [3]byte, secret, ciphertext []byte) ([]byte, error) {
	if len(ciphertext) < ICVLen {
		return nil, fmt.Errorf("wep: %w", core.ErrPacketTooShort)
	}
	plain, err := rc4Apply(wepKey(iv, secret), ciphertext)
	if err != nil {
		return nil, err
	}
	return checkICV(plain)
}

// WEPSeal is the inverse of WEPOpen.
func WEPSeal(iv [3]byte, secret, plaintext []byte) ([]byte, error) {
	return rc4Apply(wepKey(iv, secret), appendICV(plaintext))
}

func wepKey(iv [3]byte, secret []byte) []byte {
	key := make([]byte, 0, len(iv)+len(secret))
	key = append(key, iv[:]...)
	return append(key, secret...)
}

func rc4Apply(key, src []byte) ([]byte, error) {
	c, err := rc4.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("rc4: %w", err)
	}
	dst := make([]byte, len(src))
	c.XORKeyStream(dst, src)
	return dst, nil
}

func appendICV(plaintext []byte) []byte {
	out := make([]byte, len(plaintext), len(plaintext)+ICVLen)
	copy(out, plaintext)
	return binary.LittleEndian.AppendUint32(out, crc32.ChecksumIEEE(plaintext))
}

func checkICV(plain []byte) ([]byte, error) {
	n := len(plain) - ICVLen
	if binary.LittleEndian.Uint32(plain[n:]) != crc32.ChecksumIEEE(plain[:n]) {
		return nil, core.ErrIntegrity
	}
	return plain[:n], nil
}
