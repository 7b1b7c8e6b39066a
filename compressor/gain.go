package compressor

import (
	"math"

	"github.com/cwbudde/algo-comp/dsp"
)

// GainReductionComputer turns a rectified sidechain signal into a smoothed
// gain curve. The static curve is a threshold/ratio model with a quadratic
// soft knee; the envelope is a one-pole smoother driven by the attack time
// alone, in both directions.
//
// The envelope holds the current gain in dB (always <= 0) and is the only
// state carried from one block to the next.
type GainReductionComputer struct {
	thresholdDB   float64
	ratio         float64
	kneeDB        float64
	attackSeconds float64

	sampleRate float64
	prepared   bool

	// derived
	slope       float64 // 1 - 1/ratio
	kneeLow     float64 // threshold - knee/2
	kneeHigh    float64 // threshold + knee/2
	attackCoeff float64

	envelope float64
}

// NewGainReductionComputer returns a computer with the default curve. It must
// be prepared with a sample rate before use.
func NewGainReductionComputer() *GainReductionComputer {
	g := &GainReductionComputer{
		thresholdDB:   DefaultThresholdDB,
		ratio:         DefaultRatio,
		kneeDB:        DefaultKneeDB,
		attackSeconds: DefaultAttackSeconds,
	}
	g.updateCurve()
	return g
}

// Prepare sets the sample rate, derives the attack coefficient and resets the
// envelope to 0 dB.
func (g *GainReductionComputer) Prepare(sampleRate float64) error {
	if err := validateSampleRate(sampleRate); err != nil {
		return err
	}
	g.sampleRate = sampleRate
	g.prepared = true
	g.updateAttack()
	g.Reset()
	return nil
}

// SetThreshold sets the threshold in dB.
func (g *GainReductionComputer) SetThreshold(db float64) error {
	if err := validateThreshold(db); err != nil {
		return err
	}
	g.thresholdDB = db
	g.updateCurve()
	return nil
}

// SetRatio sets the compression ratio. +Inf turns the curve into a limiter.
func (g *GainReductionComputer) SetRatio(ratio float64) error {
	if err := validateRatio(ratio); err != nil {
		return err
	}
	g.ratio = ratio
	g.updateCurve()
	return nil
}

// SetKnee sets the knee width in dB; 0 is a hard knee.
func (g *GainReductionComputer) SetKnee(db float64) error {
	if err := validateKnee(db); err != nil {
		return err
	}
	g.kneeDB = db
	g.updateCurve()
	return nil
}

// SetAttackTime sets the attack time in seconds. The coefficient is updated
// immediately, so the next computed sample already uses it.
func (g *GainReductionComputer) SetAttackTime(seconds float64) error {
	if err := validateAttack(seconds); err != nil {
		return err
	}
	g.attackSeconds = seconds
	g.updateAttack()
	return nil
}

// Threshold returns the threshold in dB.
func (g *GainReductionComputer) Threshold() float64 { return g.thresholdDB }

// Ratio returns the compression ratio.
func (g *GainReductionComputer) Ratio() float64 { return g.ratio }

// Knee returns the knee width in dB.
func (g *GainReductionComputer) Knee() float64 { return g.kneeDB }

// AttackTime returns the attack time in seconds.
func (g *GainReductionComputer) AttackTime() float64 { return g.attackSeconds }

// AttackCoefficient returns the per-sample smoothing coefficient.
func (g *GainReductionComputer) AttackCoefficient() float64 { return g.attackCoeff }

// SampleRate returns the prepared sample rate, 0 before Prepare.
func (g *GainReductionComputer) SampleRate() float64 { return g.sampleRate }

// Envelope returns the current smoothed gain in dB.
func (g *GainReductionComputer) Envelope() float64 { return g.envelope }

// Reset returns the envelope to 0 dB (no attenuation).
func (g *GainReductionComputer) Reset() {
	g.envelope = 0
}

// StaticReduction returns the unsmoothed gain reduction in dB (>= 0) for an
// input level of xDB.
func (g *GainReductionComputer) StaticReduction(xDB float64) float64 {
	switch {
	case xDB <= g.kneeLow:
		return 0
	case xDB >= g.kneeHigh:
		return (xDB - g.thresholdDB) * g.slope
	default:
		d := xDB - g.kneeLow
		return g.slope * d * d / (2 * g.kneeDB)
	}
}

// ComputeGainInDecibels writes the smoothed gain in dB (<= 0) for every
// sidechain sample into out.
func (g *GainReductionComputer) ComputeGainInDecibels(sidechain, out []float64) {
	g.mustBePrepared()
	_ = out[:len(sidechain)]
	for i, s := range sidechain {
		out[i] = g.next(s)
	}
}

// ComputeLinearGain writes the smoothed linear gain in (0, 1] for every
// sidechain sample into out.
func (g *GainReductionComputer) ComputeLinearGain(sidechain, out []float64) {
	g.mustBePrepared()
	_ = out[:len(sidechain)]
	for i, s := range sidechain {
		out[i] = decibelsToGain(g.next(s))
	}
}

func (g *GainReductionComputer) next(sample float64) float64 {
	target := -g.StaticReduction(dsp.MagnitudeToDecibels(sample))
	env := g.envelope + (target-g.envelope)*g.attackCoeff
	if math.IsNaN(env) || math.IsInf(env, 0) {
		// Restart from the static curve instead of carrying a poisoned state.
		env = target
	}
	g.envelope = dsp.FlushDenormals(env)
	return g.envelope
}

func (g *GainReductionComputer) mustBePrepared() {
	if !g.prepared {
		panic("compressor: gain computer used before Prepare")
	}
}

func (g *GainReductionComputer) updateCurve() {
	g.slope = 1 - 1/g.ratio
	g.kneeLow = g.thresholdDB - g.kneeDB/2
	g.kneeHigh = g.thresholdDB + g.kneeDB/2
}

// The envelope covers 1-1/e (~63%) of a step after attackSeconds.
func (g *GainReductionComputer) updateAttack() {
	if !g.prepared {
		return
	}
	if g.attackSeconds == 0 {
		g.attackCoeff = 1
		return
	}
	g.attackCoeff = 1 - math.Exp(-1/(g.attackSeconds*g.sampleRate))
}
