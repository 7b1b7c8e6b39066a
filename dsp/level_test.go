package dsp

import (
	"math"
	"testing"
)

func TestDecibelRoundTrip(t *testing.T) {
	for _, db := range []float64{-120, -60, -20, -6, 0, 6, 12} {
		got := LinearToDecibels(DecibelsToLinear(db))
		if math.Abs(got-db) > 1e-9 {
			t.Fatalf("round trip of %f dB gave %f", db, got)
		}
	}
	if got := LinearToDecibels(-0.5); math.Abs(got-LinearToDecibels(0.5)) > 1e-12 {
		t.Fatalf("expected sign to be discarded, got %f", got)
	}
}

func TestMagnitudeToDecibelsFloor(t *testing.T) {
	floor := 20 * math.Log10(MinMagnitude)
	for _, v := range []float64{0, 1e-20, math.NaN()} {
		if got := MagnitudeToDecibels(v); got != floor {
			t.Fatalf("expected floor %f for %v, got %f", floor, v, got)
		}
	}
	if got := MagnitudeToDecibels(1); got != 0 {
		t.Fatalf("expected 0 dB for unity, got %f", got)
	}
}

func TestMagnitudeToDecibelsCeiling(t *testing.T) {
	ceiling := 20 * math.Log10(MaxMagnitude)
	got := MagnitudeToDecibels(math.Inf(1))
	if math.IsInf(got, 0) || math.IsNaN(got) {
		t.Fatalf("expected finite level for +Inf, got %f", got)
	}
	if got != ceiling {
		t.Fatalf("expected ceiling %f for +Inf, got %f", ceiling, got)
	}
}

func TestFastDecibelsToLinearAccuracy(t *testing.T) {
	for db := -60.0; db <= 0; db += 0.5 {
		exact := DecibelsToLinear(db)
		fast := FastDecibelsToLinear(db)
		if rel := math.Abs(fast-exact) / exact; rel > 1e-2 {
			t.Fatalf("%f dB: fast %g vs exact %g (rel err %g)", db, fast, exact, rel)
		}
	}
}

func TestStereoPeakAndPeakAbs(t *testing.T) {
	left := []float64{0.1, -0.7, 0.2}
	right := []float64{-0.3, 0.4, -0.9}
	dst := make([]float64, 3)
	StereoPeak(dst, left, right)
	want := []float64{0.3, 0.7, 0.9}
	for i := range want {
		if dst[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, dst)
		}
	}
	if got := PeakAbs(left, right); got != 0.9 {
		t.Fatalf("expected peak 0.9, got %f", got)
	}
	StereoPeak(nil, nil, nil)
}

func TestFlushDenormals(t *testing.T) {
	if got := FlushDenormals(1e-35); got != 0 {
		t.Fatalf("expected tiny value flushed, got %g", got)
	}
	if got := FlushDenormals(-3); got != -3 {
		t.Fatalf("expected -3 kept, got %g", got)
	}
}
