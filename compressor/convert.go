package compressor

import (
	"math"

	"github.com/cwbudde/algo-comp/dsp"
)

// Smallest gain handed to the audio path; keeps the (0, 1] range even for
// absurd reductions that would underflow to zero.
const minLinearGain = math.SmallestNonzeroFloat64

// LinearToDecibels converts a linear magnitude to dB.
func LinearToDecibels(linear float64) float64 {
	return dsp.LinearToDecibels(linear)
}

// DecibelsToLinear converts dB to a linear magnitude.
func DecibelsToLinear(db float64) float64 {
	return dsp.DecibelsToLinear(db)
}

func decibelsToGain(db float64) float64 {
	return clampGain(dsp.DecibelsToLinear(db))
}

func fastDecibelsToGain(db float64) float64 {
	return clampGain(dsp.FastDecibelsToLinear(db))
}

func clampGain(g float64) float64 {
	if g > 1 {
		return 1
	}
	if !(g >= minLinearGain) {
		return minLinearGain
	}
	return g
}
