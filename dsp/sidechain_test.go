package dsp

import (
	"math"
	"testing"
)

func TestSidechainDisabledIsPeak(t *testing.T) {
	f, err := NewSidechainFilter(0, 48000)
	if err != nil {
		t.Fatalf("NewSidechainFilter: %v", err)
	}
	if f.Enabled() {
		t.Fatalf("expected filter disabled at 0 Hz")
	}
	left := []float64{0.5, -0.25}
	right := []float64{-0.75, 0.1}
	dst := make([]float64, 2)
	f.Detect(dst, left, right)
	if dst[0] != 0.75 || dst[1] != 0.25 {
		t.Fatalf("expected plain stereo peak, got %v", dst)
	}
}

func TestSidechainRemovesDC(t *testing.T) {
	const sampleRate = 48000.0
	f, err := NewSidechainFilter(100, sampleRate)
	if err != nil {
		t.Fatalf("NewSidechainFilter: %v", err)
	}
	n := 48000
	dc := make([]float64, n)
	for i := range dc {
		dc[i] = 0.5
	}
	dst := make([]float64, n)
	f.Detect(dst, dc, dc)
	if tail := dst[n-1]; tail > 1e-3 {
		t.Fatalf("expected DC to be rejected, tail level %g", tail)
	}

	f.Reset()
	tone := make([]float64, n)
	for i := range tone {
		tone[i] = 0.5 * math.Sin(2*math.Pi*5000*float64(i)/sampleRate)
	}
	f.Detect(dst, tone, tone)
	peak := 0.0
	for _, v := range dst[n/2:] {
		peak = math.Max(peak, v)
	}
	if math.Abs(peak-0.5) > 0.02 {
		t.Fatalf("expected 5 kHz tone to pass at ~0.5, got %f", peak)
	}
}

func TestSidechainValidateCutoff(t *testing.T) {
	cases := []float64{-1, math.NaN(), math.Inf(1), 24000, 30000}
	for _, hz := range cases {
		if err := ValidateCutoff(hz, 48000); err == nil {
			t.Fatalf("expected error for cutoff %f", hz)
		}
	}
	if err := ValidateCutoff(80, 48000); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	f, _ := NewSidechainFilter(0, 48000)
	if err := f.SetCutoff(-5, 48000); err == nil {
		t.Fatalf("expected SetCutoff to reject negative cutoff")
	}
	if f.Cutoff() != 0 {
		t.Fatalf("rejected cutoff must not be stored, got %f", f.Cutoff())
	}
}
