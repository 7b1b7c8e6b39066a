package analysis

import (
	"math"
	"math/cmplx"

	algofft "github.com/cwbudde/algo-fft"
	"gonum.org/v1/gonum/floats"
)

// Metrics contains distance measurements between a reference rendering and a
// candidate compressor output. Levels are compared absolutely: a compressor
// that attenuates too much must score worse than one that matches.
type Metrics struct {
	SampleRate int `json:"sample_rate"`

	ReferenceFrames int `json:"reference_frames"`
	CandidateFrames int `json:"candidate_frames"`
	AlignedFrames   int `json:"aligned_frames"`
	LagSamples      int `json:"lag_samples"`

	TimeRMSE       float64 `json:"time_rmse"`
	EnvelopeRMSEDB float64 `json:"envelope_rmse_db"`
	SpectralRMSEDB float64 `json:"spectral_rmse_db"`
	RefCrestDB     float64 `json:"ref_crest_db"`
	CandCrestDB    float64 `json:"cand_crest_db"`
	CrestDiffDB    float64 `json:"crest_diff_db"`

	Score      float64 `json:"score"`
	Similarity float64 `json:"similarity"`
}

const (
	envelopeFrame   = 256
	envelopeHop     = 128
	spectralSize    = 4096
	silenceFloorLin = 1e-6
	minAligned      = 256
)

// Compare returns distance metrics and a combined score in [0,1], 0 meaning
// identical.
func Compare(reference []float64, candidate []float64, sampleRate int) Metrics {
	m := Metrics{
		SampleRate:      sampleRate,
		ReferenceFrames: len(reference),
		CandidateFrames: len(candidate),
		Score:           1.0,
	}
	if sampleRate <= 0 || len(reference) == 0 || len(candidate) == 0 {
		return m
	}

	// Lookahead latency is at most a few tens of ms.
	maxLag := max(1, min(sampleRate/10, len(reference)-1, len(candidate)-1))
	lag := estimateLag(reference, candidate, maxLag)
	m.LagSamples = lag

	refA, candA := alignByLag(reference, candidate, lag)
	n := min(len(refA), len(candA))
	if n < minAligned {
		return m
	}
	if maxFrames := sampleRate * 12; n > maxFrames {
		n = maxFrames
	}
	refA = refA[:n]
	candA = candA[:n]
	m.AlignedFrames = n

	m.TimeRMSE = rmse(refA, candA)

	refEnv := rmsEnvelope(refA, envelopeFrame, envelopeHop)
	candEnv := rmsEnvelope(candA, envelopeFrame, envelopeHop)
	if envN := min(len(refEnv), len(candEnv)); envN > 0 {
		envDiff := make([]float64, envN)
		for i := range envDiff {
			envDiff[i] = linToDB(refEnv[i]) - linToDB(candEnv[i])
		}
		m.EnvelopeRMSEDB = rms1(envDiff)
	}

	m.SpectralRMSEDB = spectralRMSEDB(refA, candA)

	m.RefCrestDB = CrestFactorDB(refA)
	m.CandCrestDB = CrestFactorDB(candA)
	m.CrestDiffDB = math.Abs(m.RefCrestDB - m.CandCrestDB)

	timeNorm := clamp01(m.TimeRMSE / 0.25)
	envNorm := clamp01(m.EnvelopeRMSEDB / 20.0)
	specNorm := clamp01(m.SpectralRMSEDB / 30.0)
	crestNorm := clamp01(m.CrestDiffDB / 12.0)
	m.Score = clamp01(0.20*timeNorm + 0.40*envNorm + 0.20*specNorm + 0.20*crestNorm)
	m.Similarity = clamp01(math.Exp(-4.0 * m.Score))
	return m
}

// CrestFactorDB returns peak over RMS in dB, 0 for silence.
func CrestFactorDB(x []float64) float64 {
	r := rms1(x)
	if r <= silenceFloorLin {
		return 0
	}
	peak := math.Max(floats.Max(x), -floats.Min(x))
	return linToDB(peak / r)
}

// GainReductionDB returns the per-frame RMS level difference output minus
// input in dB, framed like the envelope metric. Frames where the input is
// silent report 0.
func GainReductionDB(input, output []float64) []float64 {
	n := min(len(input), len(output))
	inEnv := rmsEnvelope(input[:n], envelopeFrame, envelopeHop)
	outEnv := rmsEnvelope(output[:n], envelopeFrame, envelopeHop)
	gr := make([]float64, len(inEnv))
	for i := range gr {
		if inEnv[i] <= silenceFloorLin {
			continue
		}
		gr[i] = linToDB(outEnv[i]) - linToDB(inEnv[i])
	}
	return gr
}

// estimateLag finds the shift maximizing sum(ref[i+lag]*cand[i]) over
// |lag| <= maxLag, using FFT cross-correlation.
func estimateLag(ref []float64, cand []float64, maxLag int) int {
	if len(ref) == 0 || len(cand) == 0 {
		return 0
	}
	a := make([]float32, len(ref))
	for i, v := range ref {
		a[i] = float32(v)
	}
	b := make([]float32, len(cand))
	for i, v := range cand {
		b[len(cand)-1-i] = float32(v)
	}
	corr := make([]float32, len(a)+len(b)-1)
	if err := algofft.ConvolveReal(corr, a, b); err != nil {
		return estimateLagDirect(ref, cand, maxLag)
	}

	zero := len(cand) - 1
	bestLag := 0
	best := math.Inf(-1)
	for lag := -maxLag; lag <= maxLag; lag++ {
		k := zero + lag
		if k < 0 || k >= len(corr) {
			continue
		}
		if s := float64(corr[k]); s > best {
			best = s
			bestLag = lag
		}
	}
	return bestLag
}

func estimateLagDirect(ref []float64, cand []float64, maxLag int) int {
	bestLag := 0
	best := math.Inf(-1)
	for lag := -maxLag; lag <= maxLag; lag++ {
		if s := dotAtLag(ref, cand, lag); s > best {
			best = s
			bestLag = lag
		}
	}
	return bestLag
}

func dotAtLag(a []float64, b []float64, lag int) float64 {
	var ai, bi int
	if lag >= 0 {
		ai = lag
	} else {
		bi = -lag
	}
	n := min(len(a)-ai, len(b)-bi)
	if n <= 0 {
		return 0
	}
	return floats.Dot(a[ai:ai+n], b[bi:bi+n])
}

func alignByLag(ref []float64, cand []float64, lag int) ([]float64, []float64) {
	if lag >= 0 {
		if lag >= len(ref) {
			return nil, nil
		}
		return ref[lag:], cand
	}
	o := -lag
	if o >= len(cand) {
		return nil, nil
	}
	return ref, cand[o:]
}

func rmse(a []float64, b []float64) float64 {
	n := min(len(a), len(b))
	if n == 0 {
		return 0
	}
	return floats.Distance(a[:n], b[:n], 2) / math.Sqrt(float64(n))
}

func rms1(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	return floats.Norm(x, 2) / math.Sqrt(float64(len(x)))
}

func rmsEnvelope(x []float64, frame int, hop int) []float64 {
	if frame <= 0 || hop <= 0 || len(x) < frame {
		return nil
	}
	n := 1 + (len(x)-frame)/hop
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		start := i * hop
		out[i] = rms1(x[start : start+frame])
	}
	return out
}

// spectralRMSEDB compares Hann-windowed magnitude spectra averaged over
// frames of spectralSize samples.
func spectralRMSEDB(a []float64, b []float64) float64 {
	n := min(len(a), len(b))
	size := spectralSize
	for size > n && size > 512 {
		size /= 2
	}
	if n < size {
		return 0
	}
	plan, err := algofft.NewPlanReal64(size)
	if err != nil {
		return 0
	}

	hann := make([]float64, size)
	for i := range hann {
		hann[i] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(size-1))
	}
	bins := size / 2
	specA := make([]complex128, bins+1)
	specB := make([]complex128, bins+1)
	bufA := make([]float64, size)
	bufB := make([]float64, size)
	avgA := make([]float64, bins)
	avgB := make([]float64, bins)

	frames := 0
	for pos := 0; pos+size <= n; pos += size / 2 {
		floats.MulTo(bufA, a[pos:pos+size], hann)
		floats.MulTo(bufB, b[pos:pos+size], hann)
		plan.Forward(specA, bufA)
		plan.Forward(specB, bufB)
		for k := 1; k < bins; k++ {
			avgA[k] += cmplx.Abs(specA[k])
			avgB[k] += cmplx.Abs(specB[k])
		}
		frames++
	}

	scale := 1.0 / float64(frames)
	var sum float64
	for k := 1; k < bins; k++ {
		d := linToDB(avgA[k]*scale) - linToDB(avgB[k]*scale)
		sum += d * d
	}
	return math.Sqrt(sum / float64(bins-1))
}

func linToDB(x float64) float64 {
	if x < 1e-12 {
		x = 1e-12
	}
	return 20.0 * math.Log10(x)
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
