// Package console renders decode results for a human reader.
// Output is one block per frame in text format or one object per line in JSON format.
package console

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync/atomic"

	"firestige.xyz/dissector/internal/core/decoder"
	"firestige.xyz/dissector/internal/log"
	"firestige.xyz/dissector/internal/pipeline"
)

const Name = "console"

const timeLayout = "15:04:05.000000"

// Options represents console sink configuration.
type Options struct {
	Format  string // "json" or "text", default "text"
	Verbose bool   // print a field summary per layer
}

// Sink writes results to an io.Writer.
type Sink struct {
	w       *bufio.Writer
	format  string
	verbose bool
	count   atomic.Uint64
}

// NewSink creates a console sink writing to w.
func NewSink(w io.Writer, opts Options) (*Sink, error) {
	switch opts.Format {
	case "":
		opts.Format = "text"
	case "text", "json":
	default:
		return nil, fmt.Errorf("invalid format %q, must be json or text", opts.Format)
	}
	return &Sink{w: bufio.NewWriter(w), format: opts.Format, verbose: opts.Verbose}, nil
}

// Write outputs one result.
func (s *Sink) Write(r pipeline.Result) error {
	s.count.Add(1)
	if s.format == "json" {
		return s.writeJSON(r)
	}
	return s.writeText(r)
}

type layerJSON struct {
	Protocol string `json:"protocol"`
	Header   int    `json:"header_len"`
	Summary  string `json:"summary,omitempty"`
}

type resultJSON struct {
	Index     uint64      `json:"index"`
	Timestamp string      `json:"timestamp,omitempty"`
	Capture   string      `json:"capture"`
	Length    int         `json:"len"`
	Truncated bool        `json:"truncated,omitempty"`
	Layers    []layerJSON `json:"layers,omitempty"`
	Error     string      `json:"error,omitempty"`
}

func (s *Sink) writeJSON(r pipeline.Result) error {
	out := resultJSON{
		Index:     r.Frame.Index,
		Capture:   r.Frame.Capture.String(),
		Length:    len(r.Frame.Data),
		Truncated: r.Frame.Truncated(),
	}
	if !r.Frame.Timestamp.IsZero() {
		out.Timestamp = r.Frame.Timestamp.Format("2006-01-02T15:04:05.000000Z07:00")
	}
	if r.Err != nil {
		out.Error = r.Err.Error()
	}
	for n := r.Root; n != nil; n = n.Child() {
		l := layerJSON{Protocol: n.Tag().String(), Header: len(n.Header())}
		if s.verbose {
			l.Summary = decoder.Describe(n)
		}
		out.Layers = append(out.Layers, l)
	}

	data, err := json.Marshal(out)
	if err != nil {
		return fmt.Errorf("json marshal failed: %w", err)
	}
	s.w.Write(data)
	s.w.WriteByte('\n')
	return s.w.Flush()
}

func (s *Sink) writeText(r pipeline.Result) error {
	fmt.Fprintf(s.w, "#%d", r.Frame.Index)
	if !r.Frame.Timestamp.IsZero() {
		fmt.Fprintf(s.w, " %s", r.Frame.Timestamp.Format(timeLayout))
	}
	fmt.Fprintf(s.w, " %s len=%d", r.Frame.Capture, len(r.Frame.Data))
	if r.Frame.Truncated() {
		fmt.Fprintf(s.w, " orig=%d", r.Frame.OrigLen)
	}

	if r.Err != nil {
		fmt.Fprintf(s.w, " error: %v\n", r.Err)
		return s.w.Flush()
	}
	s.w.WriteByte('\n')

	for depth, n := 1, r.Root; n != nil; depth, n = depth+1, n.Child() {
		s.w.WriteString(strings.Repeat("  ", depth))
		s.w.WriteString(n.Tag().String())
		if s.verbose {
			if desc := decoder.Describe(n); desc != "" {
				s.w.WriteString("  ")
				s.w.WriteString(desc)
			}
		}
		s.w.WriteByte('\n')
	}
	return s.w.Flush()
}

// Count returns how many results were written.
func (s *Sink) Count() uint64 {
	return s.count.Load()
}

// Close flushes pending output.
func (s *Sink) Close() error {
	log.GetLogger().WithField("total_written", s.Count()).Debug("console sink closed")
	return s.w.Flush()
}
