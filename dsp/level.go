package dsp

import (
	"math"

	"github.com/cwbudde/algo-approx"
	"github.com/cwbudde/algo-dsp/dsp/core"
)

// MinMagnitude floors detector input before taking the logarithm (-200 dB).
const MinMagnitude = 1e-10

// MaxMagnitude caps detector input so +Inf still maps to a finite level.
const MaxMagnitude = math.MaxFloat64

// LinearToDecibels converts a linear magnitude to dB (20*log10 convention).
// The sign is discarded; zero maps to -Inf.
func LinearToDecibels(linear float64) float64 {
	return core.LinearToDB(math.Abs(linear))
}

// DecibelsToLinear converts dB to linear amplitude.
func DecibelsToLinear(db float64) float64 {
	return core.DBToLinear(db)
}

// MagnitudeToDecibels is LinearToDecibels with the input clamped to
// [MinMagnitude, MaxMagnitude], so the result is always finite. NaN counts
// as silence.
func MagnitudeToDecibels(magnitude float64) float64 {
	switch {
	case magnitude < MinMagnitude || math.IsNaN(magnitude):
		magnitude = MinMagnitude
	case magnitude > MaxMagnitude:
		magnitude = MaxMagnitude
	}
	return 20 * math.Log10(magnitude)
}

// FastDecibelsToLinear approximates 10^(db/20) with algo-approx. Accuracy is
// float32-level, good enough for gain curves but not for metering.
func FastDecibelsToLinear(db float64) float64 {
	const ln10Div20 = 0.11512925464970228420
	return float64(approx.FastExp(float32(db * ln10Div20)))
}

// StereoPeak writes max(|left[i]|, |right[i]|) into dst.
func StereoPeak(dst, left, right []float64) {
	if len(left) == 0 {
		return
	}
	_ = dst[len(left)-1]
	_ = right[len(left)-1]
	for i := range left {
		dst[i] = math.Max(math.Abs(left[i]), math.Abs(right[i]))
	}
}

// PeakAbs returns the largest magnitude across both channels.
func PeakAbs(left, right []float64) float64 {
	peak := 0.0
	for i := range left {
		if a := math.Abs(left[i]); a > peak {
			peak = a
		}
		if a := math.Abs(right[i]); a > peak {
			peak = a
		}
	}
	return peak
}

// FlushDenormals converts denormal numbers to zero to avoid performance issues
func FlushDenormals(x float64) float64 {
	const epsilon = 1e-30
	if x > -epsilon && x < epsilon {
		return 0.0
	}
	return x
}
