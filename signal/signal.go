// Package signal generates deterministic test material for the compressor:
// level ramps, tone bursts and impulses on top of the algo-dsp generators.
package signal

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-dsp/dsp/core"
	algosignal "github.com/cwbudde/algo-dsp/dsp/signal"
)

// Generator creates signals at a fixed sample rate.
type Generator struct {
	sampleRate float64
	gen        *algosignal.Generator
}

// NewGenerator creates a generator. seed drives the noise source.
func NewGenerator(sampleRate float64, seed int64) (*Generator, error) {
	if sampleRate <= 0 || math.IsNaN(sampleRate) || math.IsInf(sampleRate, 0) {
		return nil, fmt.Errorf("generator sample rate must be positive and finite: %f", sampleRate)
	}
	return &Generator{
		sampleRate: sampleRate,
		gen: algosignal.NewGeneratorWithOptions(
			[]core.ProcessorOption{core.WithSampleRate(sampleRate)},
			algosignal.WithSeed(seed),
		),
	}, nil
}

// SampleRate returns the generator sample rate.
func (g *Generator) SampleRate() float64 { return g.sampleRate }

// Sine generates a sine wave.
func (g *Generator) Sine(freqHz, amplitude float64, samples int) ([]float64, error) {
	return g.gen.Sine(freqHz, amplitude, samples)
}

// Noise generates white noise in [-amplitude, amplitude].
func (g *Generator) Noise(amplitude float64, samples int) ([]float64, error) {
	return g.gen.WhiteNoise(amplitude, samples)
}

// SineRamp generates a sine whose level moves linearly in dB from fromDB to
// toDB.
func (g *Generator) SineRamp(freqHz, fromDB, toDB float64, samples int) ([]float64, error) {
	carrier, err := g.gen.Sine(freqHz, 1, samples)
	if err != nil {
		return nil, err
	}
	env, err := DBRamp(fromDB, toDB, samples)
	if err != nil {
		return nil, err
	}
	for i := range carrier {
		carrier[i] *= env[i]
	}
	return carrier, nil
}

// ToneBurst generates a sine gated on for onSeconds and off for offSeconds,
// repeating. Gates start on.
func (g *Generator) ToneBurst(freqHz, amplitude, onSeconds, offSeconds float64, samples int) ([]float64, error) {
	if onSeconds <= 0 || offSeconds < 0 {
		return nil, fmt.Errorf("tone burst needs on > 0 and off >= 0: on=%f off=%f", onSeconds, offSeconds)
	}
	out, err := g.gen.Sine(freqHz, amplitude, samples)
	if err != nil {
		return nil, err
	}
	on := max(1, int(math.Round(onSeconds*g.sampleRate)))
	period := on + int(math.Round(offSeconds*g.sampleRate))
	for i := range out {
		if i%period >= on {
			out[i] = 0
		}
	}
	return out, nil
}

// DBRamp returns a positive level sequence moving linearly in dB from fromDB
// to toDB. It doubles as a detector test input and as an envelope.
func DBRamp(fromDB, toDB float64, samples int) ([]float64, error) {
	if samples <= 0 {
		return nil, fmt.Errorf("ramp samples must be > 0: %d", samples)
	}
	if math.IsNaN(fromDB) || math.IsNaN(toDB) || math.IsInf(fromDB, 0) || math.IsInf(toDB, 0) {
		return nil, fmt.Errorf("ramp levels must be finite: %f..%f", fromDB, toDB)
	}
	out := make([]float64, samples)
	if samples == 1 {
		out[0] = core.DBToLinear(fromDB)
		return out, nil
	}
	for i := range out {
		db := fromDB + (toDB-fromDB)*float64(i)/float64(samples-1)
		out[i] = core.DBToLinear(db)
	}
	return out, nil
}

// Impulse returns samples zeros with a single value of amplitude at index at.
func Impulse(samples, at int, amplitude float64) ([]float64, error) {
	if samples <= 0 {
		return nil, fmt.Errorf("impulse samples must be > 0: %d", samples)
	}
	if at < 0 || at >= samples {
		return nil, fmt.Errorf("impulse position %d outside [0, %d)", at, samples)
	}
	out := make([]float64, samples)
	out[at] = amplitude
	return out, nil
}

// Stereo returns two independent copies of mono.
func Stereo(mono []float64) (left, right []float64) {
	left = append([]float64(nil), mono...)
	right = append([]float64(nil), mono...)
	return left, right
}
