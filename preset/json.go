package preset

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/cwbudde/algo-comp/compressor"
)

// File is the JSON schema for compressor presets. Every field is optional;
// absent fields keep the value of the config the preset is applied to.
type File struct {
	Description    string   `json:"description,omitempty"`
	ThresholdDB    *float64 `json:"threshold_db,omitempty"`
	Ratio          *float64 `json:"ratio,omitempty"`
	KneeDB         *float64 `json:"knee_db,omitempty"`
	AttackMs       *float64 `json:"attack_ms,omitempty"`
	Lookahead      *bool    `json:"lookahead,omitempty"`
	LookaheadMs    *float64 `json:"lookahead_ms,omitempty"`
	LookaheadShape string   `json:"lookahead_shape,omitempty"`
	SidechainHPFHz *float64 `json:"sidechain_hpf_hz,omitempty"`
	Debug          *bool    `json:"debug,omitempty"`
	Bypass         *bool    `json:"bypass,omitempty"`
	FastGain       *bool    `json:"fast_gain,omitempty"`
	MaxLookaheadMs *float64 `json:"max_lookahead_ms,omitempty"`
	BlockSize      *int     `json:"block_size,omitempty"`
	SampleRateHz   *float64 `json:"sample_rate_hz,omitempty"`
}

// LoadJSON loads a preset JSON file and applies it on top of the default
// config.
func LoadJSON(path string) (*compressor.Config, error) {
	f, err := ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := compressor.DefaultConfig()
	if err := ApplyFile(&cfg, f); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &cfg, nil
}

// ReadFile parses a preset file without applying it.
func ReadFile(path string) (*File, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	f, err := Decode(b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// Decode parses preset JSON from memory.
func Decode(b []byte) (*File, error) {
	var f File
	if err := json.Unmarshal(b, &f); err != nil {
		return nil, err
	}
	return &f, nil
}

// ApplyFile applies a parsed preset onto an existing config and validates
// the result. dst is left untouched on error.
func ApplyFile(dst *compressor.Config, f *File) error {
	if dst == nil {
		return fmt.Errorf("nil destination config")
	}
	if f == nil {
		return nil
	}

	cfg := *dst
	if f.ThresholdDB != nil {
		cfg.ThresholdDB = *f.ThresholdDB
	}
	if f.Ratio != nil {
		if *f.Ratio < 1 {
			return invalidf("ratio must be >= 1: %f", *f.Ratio)
		}
		cfg.Ratio = *f.Ratio
	}
	if f.KneeDB != nil {
		if *f.KneeDB < 0 {
			return invalidf("knee_db must be >= 0: %f", *f.KneeDB)
		}
		cfg.KneeDB = *f.KneeDB
	}
	if f.AttackMs != nil {
		if *f.AttackMs < 0 {
			return invalidf("attack_ms must be >= 0: %f", *f.AttackMs)
		}
		cfg.AttackSeconds = *f.AttackMs / 1000
	}
	if f.Lookahead != nil {
		cfg.UseLookahead = *f.Lookahead
	}
	if f.MaxLookaheadMs != nil {
		if *f.MaxLookaheadMs < 0 {
			return invalidf("max_lookahead_ms must be >= 0: %f", *f.MaxLookaheadMs)
		}
		cfg.MaxLookaheadSeconds = *f.MaxLookaheadMs / 1000
	}
	if f.LookaheadMs != nil {
		if *f.LookaheadMs < 0 {
			return invalidf("lookahead_ms must be >= 0: %f", *f.LookaheadMs)
		}
		cfg.LookaheadDelaySeconds = *f.LookaheadMs / 1000
		// Grow the ring rather than reject a preset asking for more
		// lookahead than the default maximum.
		if f.MaxLookaheadMs == nil {
			cfg.MaxLookaheadSeconds = math.Max(cfg.MaxLookaheadSeconds, cfg.LookaheadDelaySeconds)
		}
	}
	if s := strings.TrimSpace(f.LookaheadShape); s != "" {
		cfg.LookaheadShape = strings.ToLower(s)
	}
	if f.SidechainHPFHz != nil {
		cfg.SidechainHighpassHz = *f.SidechainHPFHz
	}
	if f.Debug != nil {
		cfg.Debug = *f.Debug
	}
	if f.Bypass != nil {
		cfg.Bypass = *f.Bypass
	}
	if f.FastGain != nil {
		cfg.FastGain = *f.FastGain
	}
	if f.BlockSize != nil {
		if *f.BlockSize <= 0 {
			return invalidf("block_size must be > 0: %d", *f.BlockSize)
		}
		cfg.BlockSize = *f.BlockSize
	}
	if f.SampleRateHz != nil {
		if *f.SampleRateHz <= 0 {
			return invalidf("sample_rate_hz must be > 0: %f", *f.SampleRateHz)
		}
		cfg.SampleRate = *f.SampleRateHz
	}

	if err := cfg.Validate(); err != nil {
		return err
	}
	*dst = cfg
	return nil
}

// FromConfig captures the runtime settings of cfg as a preset. Buffer sizing
// fields (sample rate, block size) are left to the loader's defaults.
func FromConfig(cfg compressor.Config) *File {
	return &File{
		ThresholdDB:    ptr(cfg.ThresholdDB),
		Ratio:          ptr(cfg.Ratio),
		KneeDB:         ptr(cfg.KneeDB),
		AttackMs:       ptr(cfg.AttackSeconds * 1000),
		Lookahead:      ptr(cfg.UseLookahead),
		LookaheadMs:    ptr(cfg.LookaheadDelaySeconds * 1000),
		MaxLookaheadMs: ptr(cfg.MaxLookaheadSeconds * 1000),
		LookaheadShape: cfg.LookaheadShape,
		SidechainHPFHz: ptr(cfg.SidechainHighpassHz),
		Debug:          ptr(cfg.Debug),
		Bypass:         ptr(cfg.Bypass),
		FastGain:       ptr(cfg.FastGain),
	}
}

// SaveJSON writes f as indented JSON.
func SaveJSON(path string, f *File) error {
	if f == nil {
		return fmt.Errorf("nil preset")
	}
	out := *f
	if out.Ratio != nil && math.IsInf(*out.Ratio, 1) {
		// JSON has no infinity; a ratio this large limits just the same.
		out.Ratio = ptr(math.MaxFloat64)
	}
	b, err := json.MarshalIndent(&out, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(b, '\n'), 0o644)
}

// invalidf reports a preset range error as a config error.
func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{compressor.ErrInvalidConfig}, args...)...)
}

func ptr[T any](v T) *T { return &v }
