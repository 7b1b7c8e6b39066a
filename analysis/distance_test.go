package analysis

import (
	"math"
	"math/rand"
	"testing"
)

func TestCompareIdenticalSignalsHasLowDistance(t *testing.T) {
	sr := 48000
	x := makeDecaySine(sr, 440.0, 1.5, 0.7)
	m := Compare(x, x, sr)
	if m.Score > 0.05 {
		t.Fatalf("expected very low score for identical signals, got %f", m.Score)
	}
	if m.Similarity < 0.85 {
		t.Fatalf("expected high similarity for identical signals, got %f", m.Similarity)
	}
	if m.LagSamples != 0 || m.AlignedFrames != len(x) {
		t.Fatalf("unexpected alignment: lag=%d aligned=%d", m.LagSamples, m.AlignedFrames)
	}
}

func TestCompareDifferentSignalsHasHigherDistance(t *testing.T) {
	sr := 48000
	a := makeDecaySine(sr, 261.63, 1.8, 0.8)
	b := makeDecaySine(sr, 330.0, 0.8, 0.25)
	m := Compare(a, b, sr)
	if m.Score < 0.25 {
		t.Fatalf("expected higher score for different signals, got %f", m.Score)
	}
}

func TestCompareIsLevelSensitive(t *testing.T) {
	sr := 48000
	a := makeDecaySine(sr, 440.0, 1.0, 2.0)
	quieter := make([]float64, len(a))
	for i, v := range a {
		quieter[i] = v * 0.5
	}
	m := Compare(a, quieter, sr)
	if math.Abs(m.EnvelopeRMSEDB-6.02) > 0.05 {
		t.Fatalf("expected ~6 dB envelope error for half level, got %f", m.EnvelopeRMSEDB)
	}
	if m.CrestDiffDB > 1e-6 {
		t.Fatalf("scaling must not change crest factor, diff %f", m.CrestDiffDB)
	}
}

func TestCompareAlignsLatency(t *testing.T) {
	sr := 48000
	const latency = 240
	a := makeDecaySine(sr, 440.0, 1.0, 0.5)
	delayed := make([]float64, len(a)+latency)
	copy(delayed[latency:], a)
	m := Compare(a, delayed, sr)
	if m.LagSamples != -latency {
		t.Fatalf("expected lag %d, got %d", -latency, m.LagSamples)
	}
	if m.Score > 0.05 {
		t.Fatalf("expected aligned signals to match, score %f", m.Score)
	}
}

func TestCompareDegenerateInputs(t *testing.T) {
	if m := Compare(nil, []float64{1}, 48000); m.Score != 1 || m.Similarity != 0 {
		t.Fatalf("expected worst score for empty reference, got %+v", m)
	}
	if m := Compare(make([]float64, 100), make([]float64, 100), 48000); m.Score != 1 {
		t.Fatalf("expected worst score for too-short input, got %+v", m)
	}
}

func TestEstimateLagFindsPositiveShift(t *testing.T) {
	const (
		n      = 8192
		shift  = 237
		maxLag = 600
	)
	ref := randomSignal(n, 7)
	cand := make([]float64, n)
	copy(cand, ref[shift:])

	got := estimateLag(ref, cand, maxLag)
	if got != shift {
		t.Fatalf("estimateLag() = %d, want %d", got, shift)
	}
}

func TestEstimateLagFindsNegativeShift(t *testing.T) {
	const (
		n      = 8192
		shift  = -191
		maxLag = 600
	)
	ref := randomSignal(n, 11)
	cand := make([]float64, n)
	copy(cand[-shift:], ref)

	got := estimateLag(ref, cand, maxLag)
	if got != shift {
		t.Fatalf("estimateLag() = %d, want %d", got, shift)
	}
}

func TestEstimateLagFFTMatchesDirect(t *testing.T) {
	const (
		n      = 16000
		shift  = 443
		maxLag = 1000
	)
	ref := randomSignal(n, 23)
	cand := make([]float64, n)
	copy(cand, ref[shift:])

	got := estimateLag(ref, cand, maxLag)
	want := estimateLagDirect(ref, cand, maxLag)
	if got != want {
		t.Fatalf("estimateLag() = %d, direct = %d", got, want)
	}
}

func TestCrestFactorDB(t *testing.T) {
	sine := makeDecaySine(48000, 1000, 1.0, math.Inf(1))
	if got := CrestFactorDB(sine); math.Abs(got-3.0103) > 0.01 {
		t.Fatalf("expected sine crest 3.01 dB, got %f", got)
	}
	square := make([]float64, 1000)
	for i := range square {
		square[i] = 0.5
		if i%2 == 1 {
			square[i] = -0.5
		}
	}
	if got := CrestFactorDB(square); math.Abs(got) > 1e-9 {
		t.Fatalf("expected square crest 0 dB, got %f", got)
	}
	if got := CrestFactorDB(make([]float64, 10)); got != 0 {
		t.Fatalf("expected 0 dB for silence, got %f", got)
	}
}

func TestGainReductionDB(t *testing.T) {
	in := makeDecaySine(48000, 500, 0.5, math.Inf(1))
	out := make([]float64, len(in))
	for i, v := range in {
		out[i] = 0.25 * v
	}
	gr := GainReductionDB(in, out)
	if len(gr) == 0 {
		t.Fatalf("expected frames")
	}
	for i, v := range gr {
		if math.Abs(v+12.04) > 0.01 {
			t.Fatalf("frame %d: expected -12.04 dB, got %f", i, v)
		}
	}
	silent := GainReductionDB(make([]float64, 1024), make([]float64, 1024))
	for i, v := range silent {
		if v != 0 {
			t.Fatalf("frame %d: expected 0 for silent input, got %f", i, v)
		}
	}
}

func makeDecaySine(sr int, freq float64, durationSec float64, decaySec float64) []float64 {
	n := int(float64(sr) * durationSec)
	if n < 1 {
		n = 1
	}
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		t := float64(i) / float64(sr)
		env := math.Exp(-t / decaySec)
		out[i] = env * math.Sin(2*math.Pi*freq*t)
	}
	return out
}

func randomSignal(n int, seed int64) []float64 {
	rng := rand.New(rand.NewSource(seed))
	out := make([]float64, n)
	for i := range out {
		out[i] = rng.Float64()*2 - 1
	}
	return out
}
