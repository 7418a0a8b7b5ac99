package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"firestige.xyz/dissector/internal/config"
	"firestige.xyz/dissector/internal/core"
	"firestige.xyz/dissector/internal/core/decoder"
	"firestige.xyz/dissector/internal/keys"
	"firestige.xyz/dissector/internal/log"
	"firestige.xyz/dissector/internal/metrics"
	"firestige.xyz/dissector/internal/pipeline"
	"firestige.xyz/dissector/internal/sink/console"
	"firestige.xyz/dissector/internal/source/file"
)

type decodeOptions struct {
	file    string
	capture string
	keyFile string
	keySpec []string
	noFCS   bool
	workers int
	verbose bool
	format  string
	metrics string
}

var decodeOpts decodeOptions

var decodeCmd = &cobra.Command{
	Use:   "decode",
	Short: "Decode every frame of a capture file",
	Long: `Decode a pcap or pcapng file and print the protocol chain of each frame.

The capture type is taken from the file's link type unless -t overrides it.
Protected 802.11 frames are decrypted when a key for their BSSID is known.

Examples:
  dissector decode -f capture.pcap
  dissector decode -f wlan.pcapng -k keys.yaml -v
  dissector decode -f monitor.pcap -t dot11 --no-fcs -w 4`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := setup()
		if err != nil {
			exitWithError("failed to load config", err)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if decodeOpts.metrics != "" {
			cfg.Metrics.Enabled = true
			cfg.Metrics.Listen = decodeOpts.metrics
		}
		if cfg.Metrics.Enabled {
			srv := metrics.NewServer(cfg.Metrics.Listen, cfg.Metrics.Path)
			if err := srv.Start(ctx); err != nil {
				exitWithError("failed to start metrics server", err)
			}
			defer srv.Stop(context.Background())
		}

		stats, err := runDecode(ctx, cfg, decodeOpts, os.Stdout)
		printStats(os.Stderr, stats)
		if err != nil && !errors.Is(err, core.ErrPipelineStopped) {
			exitWithError("decode failed", err)
		}
	},
}

func init() {
	decodeCmd.Flags().StringVarP(&decodeOpts.file, "file", "f", "",
		"capture file to decode (default: source.path from config)")
	decodeCmd.Flags().StringVarP(&decodeOpts.capture, "type", "t", "",
		"capture type: ethernet/linux_sll/radiotap/dot11 (default: from link type)")
	decodeCmd.Flags().StringVarP(&decodeOpts.keyFile, "keys", "k", "",
		"key file for protected 802.11 frames")
	decodeCmd.Flags().StringArrayVar(&decodeOpts.keySpec, "key", nil,
		"inline key bssid=..,cipher=wep|tkip|ccmp,key=<hex> (repeatable)")
	decodeCmd.Flags().BoolVar(&decodeOpts.noFCS, "no-fcs", false,
		"802.11 frames without radiotap flags carry no trailing FCS")
	decodeCmd.Flags().IntVarP(&decodeOpts.workers, "workers", "w", 0,
		"decode workers (default: pipeline.workers from config)")
	decodeCmd.Flags().BoolVarP(&decodeOpts.verbose, "verbose", "v", false,
		"print a field summary for each layer")
	decodeCmd.Flags().StringVar(&decodeOpts.format, "format", "text",
		"output format: text or json")
	decodeCmd.Flags().StringVar(&decodeOpts.metrics, "metrics-addr", "",
		"serve Prometheus metrics on this address while decoding")
}

func runDecode(ctx context.Context, cfg *config.GlobalConfig, opts decodeOptions, out io.Writer) (pipeline.Stats, error) {
	path := opts.file
	if path == "" {
		path = cfg.Source.Path
	}
	if path == "" {
		return pipeline.Stats{}, fmt.Errorf("no capture file given (-f or source.path)")
	}

	capture := cfg.Decoder.Capture()
	if opts.capture != "" {
		ct, err := core.ParseCaptureType(opts.capture)
		if err != nil {
			return pipeline.Stats{}, err
		}
		capture = ct
	}

	store, err := keyStore(cfg.Keys, opts.keyFile, opts.keySpec)
	if err != nil {
		return pipeline.Stats{}, err
	}

	src, err := file.Open(path, file.Options{Capture: capture, BPF: cfg.Source.RawInstructions()})
	if err != nil {
		return pipeline.Stats{}, err
	}
	defer src.Close()

	sink, err := console.NewSink(out, console.Options{Format: opts.format, Verbose: opts.verbose})
	if err != nil {
		return pipeline.Stats{}, err
	}
	defer sink.Close()

	workers := cfg.Pipeline.Workers
	if opts.workers > 0 {
		workers = opts.workers
	}

	captureName := "per-interface"
	if ct := src.CaptureType(); ct != core.CaptureUnknown {
		captureName = ct.String()
	}
	log.GetLogger().WithFields(map[string]interface{}{
		"file":    path,
		"capture": captureName,
		"keys":    store.Len(),
	}).Info("decoding capture file")

	p := pipeline.NewBuilder().
		WithWorkers(workers).
		WithBufferSize(cfg.Pipeline.Buffer).
		WithFCSAtEnd(cfg.Decoder.FCSAtEnd && !opts.noFCS).
		WithKeys(store).
		WithLimiter(decoder.NewWarnLimiter(decoder.WarnLimiterConfig{
			MaxPerNetwork: cfg.Decoder.WarnLimit,
			Window:        cfg.Decoder.WarnWindow,
		})).
		Build()
	return p.Run(ctx, src, sink)
}

// keyStore merges the configured keys with the command-line ones.
// Command-line entries win for the same BSSID.
func keyStore(kc config.KeysConfig, file string, specs []string) (*keys.Store, error) {
	if file != "" {
		kc.File = file
	}
	entries := append([]keys.Entry(nil), kc.Entries...)
	for _, spec := range specs {
		e, err := keys.ParseEntrySpec(spec)
		if err != nil {
			return nil, fmt.Errorf("--key %q: %w", spec, err)
		}
		entries = append(entries, e)
	}
	kc.Entries = entries
	return kc.Store()
}

func printStats(w io.Writer, stats pipeline.Stats) {
	data, err := json.MarshalIndent(map[string]uint64{
		"received":            stats.Received,
		"filtered":            stats.Filtered,
		"decoded":             stats.Decoded,
		"decode_errors":       stats.DecodeErrors,
		"decrypted":           stats.Decrypted,
		"undecrypted":         stats.Undecrypted,
		"written":             stats.Written,
		"write_errors":        stats.WriteErrors,
		"warnings_suppressed": stats.Suppressed,
	}, "", "  ")
	if err != nil {
		return
	}
	fmt.Fprintln(w, string(data))
}
