package dsp

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-dsp/dsp/filter/biquad"
	"github.com/cwbudde/algo-dsp/dsp/filter/design"
)

// SidechainFilter high-passes both detector channels before rectification so
// low-frequency energy does not drive the gain computer. A cutoff of 0
// disables filtering.
type SidechainFilter struct {
	left, right *biquad.Section
	cutoffHz    float64
	sampleRate  float64
}

// NewSidechainFilter creates a filter at cutoffHz. The sections are allocated
// once; later SetCutoff calls only swap coefficients.
func NewSidechainFilter(cutoffHz, sampleRate float64) (*SidechainFilter, error) {
	f := &SidechainFilter{
		left:  biquad.NewSection(biquad.Coefficients{B0: 1}),
		right: biquad.NewSection(biquad.Coefficients{B0: 1}),
	}
	if err := f.SetCutoff(cutoffHz, sampleRate); err != nil {
		return nil, err
	}
	return f, nil
}

// ValidateCutoff reports whether cutoffHz is usable at sampleRate.
func ValidateCutoff(cutoffHz, sampleRate float64) error {
	if math.IsNaN(cutoffHz) || math.IsInf(cutoffHz, 0) || cutoffHz < 0 {
		return fmt.Errorf("sidechain cutoff must be finite and >= 0: %f", cutoffHz)
	}
	if cutoffHz > 0 && cutoffHz >= sampleRate/2 {
		return fmt.Errorf("sidechain cutoff must be below Nyquist (%f Hz): %f", sampleRate/2, cutoffHz)
	}
	return nil
}

// SetCutoff redesigns the high-pass. State is kept so a change does not click.
func (f *SidechainFilter) SetCutoff(cutoffHz, sampleRate float64) error {
	if err := ValidateCutoff(cutoffHz, sampleRate); err != nil {
		return err
	}
	f.cutoffHz = cutoffHz
	f.sampleRate = sampleRate
	if cutoffHz == 0 {
		return nil
	}
	c := design.Highpass(cutoffHz, 1/math.Sqrt2, sampleRate)
	f.left.Coefficients = c
	f.right.Coefficients = c
	return nil
}

// Enabled reports whether the filter is active.
func (f *SidechainFilter) Enabled() bool {
	return f.cutoffHz > 0
}

// Cutoff returns the configured cutoff in Hz.
func (f *SidechainFilter) Cutoff() float64 { return f.cutoffHz }

// Detect writes the rectified stereo-linked detector signal into dst.
func (f *SidechainFilter) Detect(dst, left, right []float64) {
	if !f.Enabled() {
		StereoPeak(dst, left, right)
		return
	}
	for i := range left {
		l := f.left.ProcessSample(left[i])
		r := f.right.ProcessSample(right[i])
		dst[i] = math.Max(math.Abs(l), math.Abs(r))
	}
}

// Reset clears filter state.
func (f *SidechainFilter) Reset() {
	f.left.Reset()
	f.right.Reset()
}
