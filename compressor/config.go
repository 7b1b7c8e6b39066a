package compressor

import (
	"errors"
	"fmt"
	"math"

	"github.com/cwbudde/algo-comp/dsp"
)

// ErrInvalidConfig is wrapped by every configuration error.
var ErrInvalidConfig = errors.New("invalid compressor config")

// Lookahead shapes select the transform run between push and read.
const (
	ShapeNone = "none"
	ShapeRamp = "ramp"
)

const (
	DefaultSampleRate       = 48000.0
	DefaultBlockSize        = 128
	DefaultThresholdDB      = -5.0
	DefaultRatio            = 100.0
	DefaultKneeDB           = 20.0
	DefaultAttackSeconds    = 0.0025
	DefaultLookaheadSeconds = 0.005
	DefaultMaxLookahead     = 0.02
)

// Config holds all compressor settings.
type Config struct {
	SampleRate float64
	BlockSize  int

	ThresholdDB   float64
	Ratio         float64
	KneeDB        float64
	AttackSeconds float64

	UseLookahead          bool
	LookaheadDelaySeconds float64
	// MaxLookaheadSeconds sizes the delay rings; the delay can be changed at
	// runtime up to this value.
	MaxLookaheadSeconds float64
	LookaheadShape      string

	// SidechainHighpassHz filters the detector only; 0 disables it.
	SidechainHighpassHz float64

	Debug    bool
	Bypass   bool
	FastGain bool
}

// DefaultConfig returns the settings of the reference compressor.
func DefaultConfig() Config {
	return Config{
		SampleRate:            DefaultSampleRate,
		BlockSize:             DefaultBlockSize,
		ThresholdDB:           DefaultThresholdDB,
		Ratio:                 DefaultRatio,
		KneeDB:                DefaultKneeDB,
		AttackSeconds:         DefaultAttackSeconds,
		UseLookahead:          false,
		LookaheadDelaySeconds: DefaultLookaheadSeconds,
		MaxLookaheadSeconds:   DefaultMaxLookahead,
		LookaheadShape:        ShapeRamp,
		Debug:                 true,
	}
}

// Validate checks every field and returns the first problem found.
func (c Config) Validate() error {
	if err := validateSampleRate(c.SampleRate); err != nil {
		return err
	}
	if c.BlockSize <= 0 {
		return invalidf("block size must be > 0: %d", c.BlockSize)
	}
	if err := validateThreshold(c.ThresholdDB); err != nil {
		return err
	}
	if err := validateRatio(c.Ratio); err != nil {
		return err
	}
	if err := validateKnee(c.KneeDB); err != nil {
		return err
	}
	if err := validateAttack(c.AttackSeconds); err != nil {
		return err
	}
	if err := validateDelay(c.LookaheadDelaySeconds); err != nil {
		return err
	}
	if err := validateDelay(c.MaxLookaheadSeconds); err != nil {
		return err
	}
	if c.LookaheadDelaySeconds > c.MaxLookaheadSeconds {
		return invalidf("lookahead delay %f s exceeds max lookahead %f s",
			c.LookaheadDelaySeconds, c.MaxLookaheadSeconds)
	}
	switch c.LookaheadShape {
	case ShapeNone, ShapeRamp, "":
	default:
		return invalidf("unknown lookahead shape %q (valid: none, ramp)", c.LookaheadShape)
	}
	if err := dsp.ValidateCutoff(c.SidechainHighpassHz, c.SampleRate); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

// RingCapacity is the lookahead ring size implied by the config: room for
// one block plus the maximum delay, and never less than two blocks.
func (c Config) RingCapacity() int {
	capacity := c.BlockSize + secondsToSamples(c.MaxLookaheadSeconds, c.SampleRate)
	if capacity < 2*c.BlockSize {
		capacity = 2 * c.BlockSize
	}
	return capacity
}

// DelaySamples returns the lookahead delay rounded to whole samples.
func (c Config) DelaySamples() int {
	return secondsToSamples(c.LookaheadDelaySeconds, c.SampleRate)
}

func secondsToSamples(seconds, sampleRate float64) int {
	return int(math.Round(seconds * sampleRate))
}

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrInvalidConfig}, args...)...)
}

func validateSampleRate(sampleRate float64) error {
	if sampleRate <= 0 || math.IsNaN(sampleRate) || math.IsInf(sampleRate, 0) {
		return invalidf("sample rate must be positive and finite: %f", sampleRate)
	}
	return nil
}

func validateThreshold(db float64) error {
	if math.IsNaN(db) || math.IsInf(db, 0) {
		return invalidf("threshold must be finite: %f", db)
	}
	return nil
}

// Ratio +Inf is a brickwall limiter; anything below 1 would amplify.
func validateRatio(ratio float64) error {
	if math.IsNaN(ratio) || ratio < 1 {
		return invalidf("ratio must be >= 1: %f", ratio)
	}
	return nil
}

func validateKnee(db float64) error {
	if math.IsNaN(db) || math.IsInf(db, 0) || db < 0 {
		return invalidf("knee must be finite and >= 0: %f", db)
	}
	return nil
}

func validateAttack(seconds float64) error {
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) || seconds < 0 {
		return invalidf("attack time must be finite and >= 0: %f", seconds)
	}
	return nil
}

func validateDelay(seconds float64) error {
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) || seconds < 0 {
		return invalidf("lookahead delay must be finite and >= 0: %f", seconds)
	}
	return nil
}
