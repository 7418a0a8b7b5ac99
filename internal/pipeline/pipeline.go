// Package pipeline fans captured frames out to decode workers and delivers
// the results to a sink in capture order.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"
	"sync"
	"time"

	"firestige.xyz/dissector/internal/core"
	"firestige.xyz/dissector/internal/core/decoder"
	"firestige.xyz/dissector/internal/log"
	"firestige.xyz/dissector/internal/metrics"
	"golang.org/x/sync/errgroup"
)

const defaultBufferSize = 1024

// Source yields raw frames and returns io.EOF once exhausted.
type Source interface {
	Next() (core.RawFrame, error)
}

// Sink receives decode results, one call per frame, never concurrently.
type Sink interface {
	Write(Result) error
}

// Result is the outcome of decoding one frame. Exactly one of Root and Err is set.
type Result struct {
	Frame core.RawFrame
	Root  decoder.Node
	Err   error
}

// Config contains pipeline configuration.
type Config struct {
	Workers    int // 0 means GOMAXPROCS
	BufferSize int // frames in flight between source and sink
	Decoder    decoder.Config
}

// Pipeline decodes frames on a pool of workers, each owning a Decoder.
// The decoders share the read-only key lookup and warn limiter.
type Pipeline struct {
	workers    int
	bufferSize int
	decoderCfg decoder.Config
	metrics    *Metrics
	filtered   func() uint64
}

// New creates a new pipeline.
func New(cfg Config) *Pipeline {
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.GOMAXPROCS(0)
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = defaultBufferSize
	}
	return &Pipeline{
		workers:    cfg.Workers,
		bufferSize: cfg.BufferSize,
		decoderCfg: cfg.Decoder,
		metrics:    NewMetrics(),
	}
}

type job struct {
	seq   uint64
	frame core.RawFrame
}

type outcome struct {
	seq uint64
	res Result
}

// Run reads src until io.EOF, decodes every frame and writes the results to
// sink in the order the source produced them. Sink errors are counted and
// do not stop the run; source errors do. Cancelling ctx stops the run with
// core.ErrPipelineStopped.
func (p *Pipeline) Run(ctx context.Context, src Source, sink Sink) (Stats, error) {
	if f, ok := src.(interface{ Filtered() uint64 }); ok {
		p.filtered = f.Filtered
	}

	logger := log.GetLogger().WithFields(map[string]interface{}{
		"workers": p.workers,
		"buffer":  p.bufferSize,
	})
	logger.Info("pipeline starting")

	g, gctx := errgroup.WithContext(ctx)
	jobs := make(chan job, p.bufferSize)
	results := make(chan outcome, p.bufferSize)
	// window bounds the frames between reader and sink, so the reorder
	// buffer never outgrows bufferSize.
	window := make(chan struct{}, p.bufferSize)

	g.Go(func() error {
		defer close(jobs)
		return p.readLoop(gctx, src, jobs, window)
	})

	var wg sync.WaitGroup
	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		dec := decoder.New(p.decoderCfg)
		g.Go(func() error {
			defer wg.Done()
			return p.decodeLoop(gctx, dec, jobs, results)
		})
	}
	go func() {
		wg.Wait()
		close(results)
	}()

	pending := make(map[uint64]Result)
	var next uint64
	for out := range results {
		pending[out.seq] = out.res
		for {
			res, ok := pending[next]
			if !ok {
				break
			}
			delete(pending, next)
			next++
			p.write(logger, sink, res)
			<-window
		}
	}

	err := g.Wait()
	stats := p.Stats()
	logger.WithFields(map[string]interface{}{
		"received":      stats.Received,
		"decoded":       stats.Decoded,
		"decode_errors": stats.DecodeErrors,
		"written":       stats.Written,
	}).Info("pipeline stopped")

	switch {
	case err == nil:
		return stats, nil
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return stats, fmt.Errorf("%w: %v", core.ErrPipelineStopped, err)
	default:
		return stats, err
	}
}

func (p *Pipeline) readLoop(ctx context.Context, src Source, jobs chan<- job, window chan<- struct{}) error {
	for seq := uint64(0); ; seq++ {
		select {
		case window <- struct{}{}:
		case <-ctx.Done():
			return ctx.Err()
		}

		frame, err := src.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read frame: %w", err)
		}
		p.metrics.Received.Add(1)
		metrics.FramesTotal.WithLabelValues(frame.Capture.String()).Inc()

		select {
		case jobs <- job{seq: seq, frame: frame}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (p *Pipeline) decodeLoop(ctx context.Context, dec *decoder.Decoder, jobs <-chan job, results chan<- outcome) error {
	for j := range jobs {
		res := p.decode(dec, j.frame)
		select {
		case results <- outcome{seq: j.seq, res: res}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (p *Pipeline) decode(dec *decoder.Decoder, frame core.RawFrame) Result {
	start := time.Now()
	root, err := dec.Decode(frame.Capture, frame.Data)
	metrics.DecodeLatencySeconds.Observe(time.Since(start).Seconds())
	if err != nil {
		p.metrics.DecodeErrors.Add(1)
		metrics.DecodeErrorsTotal.WithLabelValues(frame.Capture.String()).Inc()
		return Result{Frame: frame, Err: fmt.Errorf("frame %d: %w", frame.Index, err)}
	}
	p.metrics.Decoded.Add(1)
	for n := root; n != nil; n = n.Child() {
		metrics.LayersTotal.WithLabelValues(n.Tag().String()).Inc()
	}
	p.countProtected(root)
	return Result{Frame: frame, Root: root}
}

var envelopes = [...]decoder.Tag{decoder.TagWEP, decoder.TagWPA, decoder.TagWPA2}

func (p *Pipeline) countProtected(root decoder.Node) {
	for _, t := range envelopes {
		n, ok := decoder.Find(root, t)
		if !ok {
			continue
		}
		if n.Child() != nil && n.Child().Tag() == decoder.TagData {
			p.metrics.Undecrypted.Add(1)
			metrics.ProtectedFramesTotal.WithLabelValues(t.String(), metrics.ResultUndecrypted).Inc()
		} else {
			p.metrics.Decrypted.Add(1)
			metrics.ProtectedFramesTotal.WithLabelValues(t.String(), metrics.ResultDecrypted).Inc()
		}
		return
	}
}

func (p *Pipeline) write(logger log.Logger, sink Sink, res Result) {
	if err := sink.Write(res); err != nil {
		p.metrics.WriteErrors.Add(1)
		metrics.SinkErrorsTotal.Inc()
		logger.WithError(err).Errorf("sink write failed for frame %d", res.Frame.Index)
		return
	}
	p.metrics.Written.Add(1)
}

// Stats returns pipeline statistics.
func (p *Pipeline) Stats() Stats {
	stats := p.metrics.Snapshot()
	if p.filtered != nil {
		stats.Filtered = p.filtered()
	}
	stats.Suppressed = uint64(p.decoderCfg.Limiter.Suppressed())
	return stats
}
