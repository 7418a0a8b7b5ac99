package cmd

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"firestige.xyz/dissector/internal/config"
	"firestige.xyz/dissector/internal/core"
	"firestige.xyz/dissector/internal/core/decoder"
	"firestige.xyz/dissector/internal/pipeline"
	"firestige.xyz/dissector/internal/sink/console"
)

type inspectOptions struct {
	capture string
	keyFile string
	keySpec []string
	noFCS   bool
	verbose bool
	format  string
}

var inspectOpts inspectOptions

var inspectCmd = &cobra.Command{
	Use:   "inspect <hex>",
	Short: "Decode a single frame given as hex",
	Long: `Decode one frame given on the command line as hex digits.
Spaces, colons and a leading 0x are ignored.

Examples:
  dissector inspect -t ethernet 001122334455...
  dissector inspect -t dot11 --no-fcs -v "08 41 00 00 ..."`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := setup()
		if err != nil {
			exitWithError("failed to load config", err)
		}
		if err := runInspect(cfg, inspectOpts, strings.Join(args, ""), os.Stdout); err != nil {
			os.Exit(1)
		}
	},
}

func init() {
	inspectCmd.Flags().StringVarP(&inspectOpts.capture, "type", "t", "",
		"capture type: ethernet/linux_sll/radiotap/dot11 (default: decoder.capture_type, else ethernet)")
	inspectCmd.Flags().StringVarP(&inspectOpts.keyFile, "keys", "k", "",
		"key file for protected 802.11 frames")
	inspectCmd.Flags().StringArrayVar(&inspectOpts.keySpec, "key", nil,
		"inline key bssid=..,cipher=wep|tkip|ccmp,key=<hex> (repeatable)")
	inspectCmd.Flags().BoolVar(&inspectOpts.noFCS, "no-fcs", false,
		"802.11 frames without radiotap flags carry no trailing FCS")
	inspectCmd.Flags().BoolVarP(&inspectOpts.verbose, "verbose", "v", true,
		"print a field summary for each layer")
	inspectCmd.Flags().StringVar(&inspectOpts.format, "format", "text",
		"output format: text or json")
}

var hexNoise = strings.NewReplacer(" ", "", ":", "", "\n", "", "\t", "", "0x", "", "0X", "")

// parseHex decodes a frame written as hex digits.
func parseHex(s string) ([]byte, error) {
	data, err := hex.DecodeString(hexNoise.Replace(s))
	if err != nil {
		return nil, fmt.Errorf("invalid hex frame: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("empty frame")
	}
	return data, nil
}

// runInspect decodes one frame and prints it. A decode error is printed
// with the frame and also returned.
func runInspect(cfg *config.GlobalConfig, opts inspectOptions, input string, out io.Writer) error {
	data, err := parseHex(input)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}

	capture := cfg.Decoder.Capture()
	if opts.capture != "" {
		if capture, err = core.ParseCaptureType(opts.capture); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return err
		}
	}
	if capture == core.CaptureUnknown {
		capture = core.CaptureEthernet
	}

	store, err := keyStore(cfg.Keys, opts.keyFile, opts.keySpec)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}

	sink, err := console.NewSink(out, console.Options{Format: opts.format, Verbose: opts.verbose})
	if err != nil {
		return err
	}
	defer sink.Close()

	dec := decoder.New(decoder.Config{
		FCSAtEnd: cfg.Decoder.FCSAtEnd && !opts.noFCS,
		Keys:     store,
	})
	frame := core.RawFrame{
		Index:      1,
		Data:       data,
		Capture:    capture,
		CaptureLen: uint32(len(data)),
		OrigLen:    uint32(len(data)),
	}
	root, decErr := dec.Decode(capture, data)
	if err := sink.Write(pipeline.Result{Frame: frame, Root: root, Err: decErr}); err != nil {
		return err
	}
	return decErr
}
