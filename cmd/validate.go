package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"firestige.xyz/dissector/internal/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a configuration file and its key file",
	Long: `Validate the configuration given with -c, including the key file and
inline keys it references, without decoding anything.

Examples:
  dissector validate -c config.yml`,
	Run: func(cmd *cobra.Command, args []string) {
		if err := runValidate(configFile, os.Stdout); err != nil {
			fmt.Fprintf(os.Stderr, "INVALID: %v\n", err)
			os.Exit(1)
		}
	},
}

func runValidate(path string, out io.Writer) error {
	if path == "" {
		return fmt.Errorf("no config file given (-c)")
	}
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	store, err := cfg.Keys.Store()
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "VALID: capture %s, %d key(s), %d worker(s), fcs_at_end=%t, %d bpf instruction(s)\n",
		cfg.Decoder.CaptureType,
		store.Len(),
		cfg.Pipeline.Workers,
		cfg.Decoder.FCSAtEnd,
		len(cfg.Source.BPF),
	)
	return nil
}
