package pipeline

import (
	"sync/atomic"
)

// Metrics contains pipeline counters, updated concurrently by the workers.
type Metrics struct {
	Received     atomic.Uint64
	Decoded      atomic.Uint64
	DecodeErrors atomic.Uint64
	Decrypted    atomic.Uint64 // protected frames opened with a key
	Undecrypted  atomic.Uint64 // protected frames left as ciphertext
	Written      atomic.Uint64
	WriteErrors  atomic.Uint64
}

// NewMetrics creates a new metrics instance.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// Reset resets all counters to zero.
func (m *Metrics) Reset() {
	m.Received.Store(0)
	m.Decoded.Store(0)
	m.DecodeErrors.Store(0)
	m.Decrypted.Store(0)
	m.Undecrypted.Store(0)
	m.Written.Store(0)
	m.WriteErrors.Store(0)
}

// Snapshot copies the counters.
func (m *Metrics) Snapshot() Stats {
	return Stats{
		Received:     m.Received.Load(),
		Decoded:      m.Decoded.Load(),
		DecodeErrors: m.DecodeErrors.Load(),
		Decrypted:    m.Decrypted.Load(),
		Undecrypted:  m.Undecrypted.Load(),
		Written:      m.Written.Load(),
		WriteErrors:  m.WriteErrors.Load(),
	}
}

// Stats represents pipeline statistics.
type Stats struct {
	Received     uint64
	Decoded      uint64
	DecodeErrors uint64
	Decrypted    uint64
	Undecrypted  uint64
	Written      uint64
	WriteErrors  uint64
	Filtered     uint64 // frames dropped by the source filter
	Suppressed   uint64 // decryption warnings held back by the warn limiter
}
