// Package core defines sentinel errors.
package core

import "errors"

var (
	// Frame decoding errors
	ErrPacketTooShort     = errors.New("dissector: packet too short")
	ErrMalformedHeader    = errors.New("dissector: malformed header")
	ErrUnsupportedCapture = errors.New("dissector: unsupported capture type")

	// Decryption errors, resolved internally to raw data
	ErrIntegrity         = errors.New("dissector: integrity check failed")
	ErrUnsupportedCipher = errors.New("dissector: unsupported cipher")

	// Configuration errors
	ErrConfigInvalid = errors.New("dissector: invalid configuration")
	ErrKeyInvalid    = errors.New("dissector: invalid key")

	// Pipeline errors
	ErrPipelineStopped = errors.New("dissector: pipeline stopped")
)
