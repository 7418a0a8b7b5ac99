package pipeline

import (
	"firestige.xyz/dissector/internal/core/decoder"
	"firestige.xyz/dissector/internal/keys"
	"firestige.xyz/dissector/internal/log"
)

// Builder provides a fluent interface for building pipelines.
// This is an alternative to using Config directly.
type Builder struct {
	config Config
}

// NewBuilder creates a new pipeline builder.
func NewBuilder() *Builder {
	return &Builder{
		config: Config{
			BufferSize: defaultBufferSize,
			Decoder:    decoder.DefaultConfig(),
		},
	}
}

// WithWorkers sets the number of decode workers.
func (b *Builder) WithWorkers(n int) *Builder {
	b.config.Workers = n
	return b
}

// WithBufferSize sets how many frames may be in flight.
func (b *Builder) WithBufferSize(size int) *Builder {
	b.config.BufferSize = size
	return b
}

// WithFCSAtEnd sets the default FCS flag for 802.11 frames.
func (b *Builder) WithFCSAtEnd(fcs bool) *Builder {
	b.config.Decoder.FCSAtEnd = fcs
	return b
}

// WithKeys sets the key lookup shared by all workers.
func (b *Builder) WithKeys(k keys.Lookup) *Builder {
	b.config.Decoder.Keys = k
	return b
}

// WithLimiter bounds decryption warnings per network.
func (b *Builder) WithLimiter(l *decoder.WarnLimiter) *Builder {
	b.config.Decoder.Limiter = l
	return b
}

// WithLogger sets the logger the decoders report fallbacks to.
func (b *Builder) WithLogger(l log.Logger) *Builder {
	b.config.Decoder.Logger = l
	return b
}

// Build creates the pipeline.
func (b *Builder) Build() *Pipeline {
	return New(b.config)
}
