// Package metrics implements Prometheus metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// FramesTotal counts frames read from the source by capture type
	FramesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dissector_frames_total",
			Help: "Total number of frames read from the source",
		},
		[]string{"capture"},
	)

	// DecodeErrorsTotal counts frames whose decoding failed
	DecodeErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dissector_decode_errors_total",
			Help: "Total number of frames that failed to decode",
		},
		[]string{"capture"},
	)

	// LayersTotal counts decoded nodes by protocol
	LayersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dissector_layers_total",
			Help: "Total number of decoded protocol layers",
		},
		[]string{"protocol"},
	)

	// ProtectedFramesTotal counts protected 802.11 frames by envelope and outcome
	ProtectedFramesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dissector_protected_frames_total",
			Help: "Total number of protected 802.11 frames by decryption result",
		},
		[]string{"envelope", "result"},
	)

	// SinkErrorsTotal counts results the sink failed to write
	SinkErrorsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dissector_sink_errors_total",
			Help: "Total number of sink write errors",
		},
	)

	// DecodeLatencySeconds measures the time to decode one frame
	DecodeLatencySeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "dissector_decode_latency_seconds",
			Help:    "Latency of decoding one frame in seconds",
			Buckets: prometheus.ExponentialBuckets(0.0000001, 2, 20), // 100ns to ~50ms
		},
	)
)

// Result label values of ProtectedFramesTotal
const (
	ResultDecrypted   = "decrypted"
	ResultUndecrypted = "undecrypted"
)
