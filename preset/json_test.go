package preset

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/cwbudde/algo-comp/compressor"
)

func writePreset(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "preset.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write preset: %v", err)
	}
	return path
}

func TestLoadJSONAppliesOverrides(t *testing.T) {
	path := writePreset(t, `{
  "description": "bus glue",
  "threshold_db": -18,
  "ratio": 4,
  "knee_db": 6,
  "attack_ms": 10,
  "lookahead": true,
  "lookahead_ms": 3,
  "lookahead_shape": "None",
  "sidechain_hpf_hz": 80,
  "debug": false
}`)

	cfg, err := LoadJSON(path)
	if err != nil {
		t.Fatalf("LoadJSON: %v", err)
	}
	if cfg.ThresholdDB != -18 || cfg.Ratio != 4 || cfg.KneeDB != 6 {
		t.Fatalf("curve fields mismatch: %+v", cfg)
	}
	if math.Abs(cfg.AttackSeconds-0.01) > 1e-12 {
		t.Fatalf("attack_ms mismatch: %f", cfg.AttackSeconds)
	}
	if !cfg.UseLookahead || math.Abs(cfg.LookaheadDelaySeconds-0.003) > 1e-12 || cfg.LookaheadShape != compressor.ShapeNone {
		t.Fatalf("lookahead fields mismatch: %+v", cfg)
	}
	if cfg.SidechainHighpassHz != 80 || cfg.Debug {
		t.Fatalf("sidechain/debug mismatch: %+v", cfg)
	}
	// Untouched fields keep their defaults.
	def := compressor.DefaultConfig()
	if cfg.SampleRate != def.SampleRate || cfg.BlockSize != def.BlockSize || cfg.Bypass {
		t.Fatalf("defaults not preserved: %+v", cfg)
	}
}

func TestLoadJSONGrowsMaxLookahead(t *testing.T) {
	cfg, err := LoadJSON(writePreset(t, `{"lookahead_ms": 50}`))
	if err != nil {
		t.Fatalf("LoadJSON: %v", err)
	}
	if cfg.MaxLookaheadSeconds < 0.05 {
		t.Fatalf("expected max lookahead raised to 50 ms, got %f", cfg.MaxLookaheadSeconds)
	}
	if _, err := LoadJSON(writePreset(t, `{"lookahead_ms": 50, "max_lookahead_ms": 10}`)); err == nil {
		t.Fatalf("expected explicit max below the delay to fail")
	}
}

func TestLoadJSONRejectsInvalidRanges(t *testing.T) {
	cases := map[string]string{
		"ratio":      `{"ratio": 0.5}`,
		"knee":       `{"knee_db": -1}`,
		"attack":     `{"attack_ms": -2}`,
		"shape":      `{"lookahead_shape": "exp"}`,
		"highpass":   `{"sidechain_hpf_hz": 96000}`,
		"block size": `{"block_size": 0}`,
		"lookahead":  `{"lookahead_ms": -1}`,
		"max":        `{"max_lookahead_ms": -1}`,
		"rate":       `{"sample_rate_hz": 0}`,
		"syntax":     `{"ratio": }`,
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := LoadJSON(writePreset(t, content))
			if err == nil {
				t.Fatalf("expected error for %s", content)
			}
			if name != "syntax" && !errors.Is(err, compressor.ErrInvalidConfig) {
				t.Fatalf("expected %s error to wrap ErrInvalidConfig, got %v", name, err)
			}
		})
	}

	_, err := LoadJSON(writePreset(t, `{"sidechain_hpf_hz": 96000}`))
	if !errors.Is(err, compressor.ErrInvalidConfig) {
		t.Fatalf("expected config validation error to wrap ErrInvalidConfig, got %v", err)
	}
}

func TestApplyFileLeavesDestinationOnError(t *testing.T) {
	cfg := compressor.DefaultConfig()
	bad := -1.0
	thr := -30.0
	if err := ApplyFile(&cfg, &File{ThresholdDB: &thr, KneeDB: &bad}); err == nil {
		t.Fatalf("expected error")
	}
	if cfg != compressor.DefaultConfig() {
		t.Fatalf("destination modified on error: %+v", cfg)
	}
	if err := ApplyFile(&cfg, nil); err != nil {
		t.Fatalf("nil preset should be a no-op: %v", err)
	}
	if err := ApplyFile(nil, &File{}); err == nil {
		t.Fatalf("expected error for nil destination")
	}
}

func TestSaveJSONRoundTrip(t *testing.T) {
	cfg := compressor.DefaultConfig()
	cfg.ThresholdDB = -12.5
	cfg.Ratio = math.Inf(1)
	cfg.KneeDB = 3
	cfg.AttackSeconds = 0.004
	cfg.UseLookahead = true
	cfg.SidechainHighpassHz = 60

	path := filepath.Join(t.TempDir(), "out.json")
	if err := SaveJSON(path, FromConfig(cfg)); err != nil {
		t.Fatalf("SaveJSON: %v", err)
	}
	got, err := LoadJSON(path)
	if err != nil {
		t.Fatalf("LoadJSON: %v", err)
	}
	if got.ThresholdDB != -12.5 || got.KneeDB != 3 || !got.UseLookahead || got.SidechainHighpassHz != 60 {
		t.Fatalf("round trip mismatch: %+v", got)
	}
	if math.Abs(got.AttackSeconds-0.004) > 1e-12 {
		t.Fatalf("attack mismatch: %f", got.AttackSeconds)
	}
	if got.Ratio < 1e300 {
		t.Fatalf("expected limiter ratio preserved as a huge value, got %g", got.Ratio)
	}
}

func TestDecodeFromMemory(t *testing.T) {
	f, err := Decode([]byte(`{"threshold_db": -9, "lookahead": true}`))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	cfg := compressor.DefaultConfig()
	if err := ApplyFile(&cfg, f); err != nil {
		t.Fatalf("ApplyFile: %v", err)
	}
	if cfg.ThresholdDB != -9 || !cfg.UseLookahead {
		t.Fatalf("decoded preset not applied: %+v", cfg)
	}
	if _, err := Decode([]byte(`{"threshold_db":`)); err == nil {
		t.Fatalf("expected error for truncated JSON")
	}
}
