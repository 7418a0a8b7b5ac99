// Package config handles global configuration loading using viper.
package config

import (
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"
	"golang.org/x/net/bpf"

	"firestige.xyz/dissector/internal/core"
	"firestige.xyz/dissector/internal/keys"
)

// GlobalConfig is the top-level configuration.
// Maps to the `dissector:` root key in YAML.
type GlobalConfig struct {
	Log      LogConfig      `mapstructure:"log"`
	Decoder  DecoderConfig  `mapstructure:"decoder"`
	Keys     KeysConfig     `mapstructure:"keys"`
	Source   SourceConfig   `mapstructure:"source"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

// ─── Log ───

// LogConfig contains logging settings.
type LogConfig struct {
	Level   string           `mapstructure:"level"`   // trace / debug / info / warn / error
	Pattern string           `mapstructure:"pattern"` // %time %level %field %msg %caller %func %goroutine
	Time    string           `mapstructure:"time"`    // Go time layout
	File    FileOutputConfig `mapstructure:"file"`
}

// FileOutputConfig configures the rotated log file.
type FileOutputConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Path       string `mapstructure:"path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// ─── Decoder ───

// DecoderConfig configures the frame decoder.
type DecoderConfig struct {
	FCSAtEnd    bool   `mapstructure:"fcs_at_end"`   // trailing FCS on 802.11 frames without radiotap flags
	CaptureType string `mapstructure:"capture_type"` // auto / ethernet / linux_sll / radiotap / dot11
	// Decryption failure warnings per network per window; 0 logs them at debug only.
	WarnLimit  int           `mapstructure:"warn_limit"`
	WarnWindow time.Duration `mapstructure:"warn_window"`

	captureType core.CaptureType
}

// Capture returns the parsed capture type; CaptureUnknown means auto-detect.
func (c DecoderConfig) Capture() core.CaptureType {
	return c.captureType
}

// ─── Keys ───

// KeysConfig lists decryption keys inline and/or in a key file.
type KeysConfig struct {
	File    string       `mapstructure:"file"`
	Entries []keys.Entry `mapstructure:"entries"`
}

// Store builds the key store: the key file first, then inline entries,
// which replace file entries for the same BSSID.
func (c KeysConfig) Store() (*keys.Store, error) {
	store := keys.NewStore()
	if c.File != "" {
		var err error
		if store, err = keys.LoadFile(c.File); err != nil {
			return nil, err
		}
	}
	if err := store.AddEntries(c.Entries); err != nil {
		return nil, fmt.Errorf("keys.entries: %w", err)
	}
	return store, nil
}

// ─── Source ───

// SourceConfig configures the capture file source.
type SourceConfig struct {
	Path string           `mapstructure:"path"`
	BPF  []BPFInstruction `mapstructure:"bpf"`
}

// BPFInstruction is one classic BPF instruction, as printed by tcpdump -dd.
type BPFInstruction struct {
	Op uint16 `mapstructure:"op"`
	Jt uint8  `mapstructure:"jt"`
	Jf uint8  `mapstructure:"jf"`
	K  uint32 `mapstructure:"k"`
}

// RawInstructions converts the program for golang.org/x/net/bpf.
func (c SourceConfig) RawInstructions() []bpf.RawInstruction {
	if len(c.BPF) == 0 {
		return nil
	}
	raw := make([]bpf.RawInstruction, len(c.BPF))
	for i, ins := range c.BPF {
		raw[i] = bpf.RawInstruction{Op: ins.Op, Jt: ins.Jt, Jf: ins.Jf, K: ins.K}
	}
	return raw
}

// ─── Pipeline ───

// PipelineConfig configures the decode workers.
type PipelineConfig struct {
	Workers int `mapstructure:"workers"` // 0 = GOMAXPROCS
	Buffer  int `mapstructure:"buffer"`
}

// ─── Metrics ───

// MetricsConfig configures the Prometheus endpoint served while decoding.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Listen  string `mapstructure:"listen"`
	Path    string `mapstructure:"path"`
}

// ─── Loading ───

// configRoot is the top-level wrapper matching the YAML structure `dissector: ...`.
type configRoot struct {
	Dissector GlobalConfig `mapstructure:"dissector"`
}

// Load loads configuration from file. An empty path yields the defaults.
// Env vars override file values: key "dissector.log.level" → DISSECTOR_LOG_LEVEL.
func Load(path string) (*GlobalConfig, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	var root configRoot
	if err := v.Unmarshal(&root); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg := root.Dissector

	if err := cfg.ValidateAndApplyDefaults(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default values for configuration.
// All keys use the "dissector." prefix to match the YAML root wrapper.
func setDefaults(v *viper.Viper) {
	v.SetDefault("dissector.log.level", "info")
	v.SetDefault("dissector.log.pattern", "%time [%level] %field %msg")
	v.SetDefault("dissector.log.time", "2006-01-02 15:04:05.000")
	v.SetDefault("dissector.log.file.enabled", false)
	v.SetDefault("dissector.log.file.path", "/var/log/dissector/dissector.log")
	v.SetDefault("dissector.log.file.max_size_mb", 100)
	v.SetDefault("dissector.log.file.max_backups", 5)
	v.SetDefault("dissector.log.file.max_age_days", 30)
	v.SetDefault("dissector.log.file.compress", true)

	v.SetDefault("dissector.decoder.fcs_at_end", true)
	v.SetDefault("dissector.decoder.capture_type", "auto")
	v.SetDefault("dissector.decoder.warn_limit", 10)
	v.SetDefault("dissector.decoder.warn_window", "10s")

	v.SetDefault("dissector.keys.file", "")
	v.SetDefault("dissector.source.path", "")

	v.SetDefault("dissector.pipeline.workers", 0)
	v.SetDefault("dissector.pipeline.buffer", 1024)

	v.SetDefault("dissector.metrics.enabled", false)
	v.SetDefault("dissector.metrics.listen", ":9090")
	v.SetDefault("dissector.metrics.path", "/metrics")
}

// ValidateAndApplyDefaults validates configuration and applies runtime defaults.
func (cfg *GlobalConfig) ValidateAndApplyDefaults() error {
	// ── Log ──
	validLevels := map[string]bool{"trace": true, "debug": true, "info": true, "warn": true, "error": true}
	cfg.Log.Level = strings.ToLower(cfg.Log.Level)
	if !validLevels[cfg.Log.Level] {
		return fmt.Errorf("%w: invalid log level: %s (must be trace/debug/info/warn/error)", core.ErrConfigInvalid, cfg.Log.Level)
	}
	if cfg.Log.File.Enabled && cfg.Log.File.Path == "" {
		return fmt.Errorf("%w: log.file.path is required when log.file.enabled=true", core.ErrConfigInvalid)
	}

	// ── Decoder ──
	ct, err := core.ParseCaptureType(cfg.Decoder.CaptureType)
	if err != nil {
		return fmt.Errorf("%w: decoder.capture_type: %v", core.ErrConfigInvalid, err)
	}
	cfg.Decoder.captureType = ct
	if cfg.Decoder.WarnLimit < 0 {
		return fmt.Errorf("%w: decoder.warn_limit must be >= 0", core.ErrConfigInvalid)
	}

	// ── Keys ──
	for i, e := range cfg.Keys.Entries {
		if _, _, err := e.Parse(); err != nil {
			return fmt.Errorf("%w: keys.entries[%d]: %v", core.ErrConfigInvalid, i, err)
		}
	}

	// ── Source ──
	if len(cfg.Source.BPF) > 0 {
		insns, ok := bpf.Disassemble(cfg.Source.RawInstructions())
		if !ok {
			return fmt.Errorf("%w: source.bpf: unknown instruction", core.ErrConfigInvalid)
		}
		if _, err := bpf.NewVM(insns); err != nil {
			return fmt.Errorf("%w: source.bpf: %v", core.ErrConfigInvalid, err)
		}
	}

	// ── Pipeline ──
	if cfg.Pipeline.Workers < 0 {
		return fmt.Errorf("%w: pipeline.workers must be >= 0", core.ErrConfigInvalid)
	}
	if cfg.Pipeline.Workers == 0 {
		cfg.Pipeline.Workers = runtime.GOMAXPROCS(0)
	}
	if cfg.Pipeline.Buffer <= 0 {
		cfg.Pipeline.Buffer = 1024
	}

	// ── Metrics ──
	if cfg.Metrics.Enabled && cfg.Metrics.Listen == "" {
		return fmt.Errorf("%w: metrics.listen is required when metrics.enabled=true", core.ErrConfigInvalid)
	}
	if cfg.Metrics.Path != "" && !strings.HasPrefix(cfg.Metrics.Path, "/") {
		return fmt.Errorf("%w: metrics.path must start with /", core.ErrConfigInvalid)
	}

	return nil
}
