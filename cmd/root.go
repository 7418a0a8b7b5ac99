// Package cmd implements CLI commands using cobra framework.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"firestige.xyz/dissector/internal/config"
	"firestige.xyz/dissector/internal/log"
)

var (
	// Global flags
	configFile string
	logLevel   string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "dissector",
	Short: "Dissector - layered decoder for captured network frames",
	Long: `Dissector peels captured frames layer by layer, from the link layer
(Ethernet, Linux cooked capture, RadioTap, raw 802.11) down to the innermost
payload it recognises.

Features:
  - IPv4, ARP, TCP, UDP and ICMP over Ethernet and Linux cooked capture
  - 802.11 control, management and data frames with LLC/SNAP
  - WEP, WPA (TKIP) and WPA2 (CCMP) decryption from a per-network key table
  - pcap and pcapng input with optional classic BPF pre-filter`,
	Version:       "0.1.0",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "",
		"config file path (defaults apply when empty)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"override log level (trace/debug/info/warn/error)")

	// Add subcommands
	rootCmd.AddCommand(decodeCmd)
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(validateCmd)
}

// setup loads the global configuration and initialises logging.
func setup() (*config.GlobalConfig, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if err := log.Init(cfg.Log); err != nil {
		return nil, fmt.Errorf("failed to initialise logging: %w", err)
	}
	return cfg, nil
}

// exitWithError prints error message and exits with code 1
func exitWithError(msg string, err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s: %v\n", msg, err)
	} else {
		fmt.Fprintf(os.Stderr, "Error: %s\n", msg)
	}
	os.Exit(1)
}
