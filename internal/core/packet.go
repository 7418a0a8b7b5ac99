// Package core defines core data structures with zero external dependencies.
package core

import "time"

// RawFrame is one captured frame as read from a source.
type RawFrame struct {
	Index      uint64      // 1-based position in the capture
	Data       []byte      // Captured bytes, owned by the frame
	Capture    CaptureType // Outermost protocol of Data
	Timestamp  time.Time
	CaptureLen uint32 // Actual captured length
	OrigLen    uint32 // Original frame length on the wire
}

// Truncated reports whether the capture holds fewer bytes than the wire frame.
func (f RawFrame) Truncated() bool {
	return f.CaptureLen < f.OrigLen
}
