package audiofile

import (
	"math"
	"path/filepath"
	"testing"
)

func TestWriteReadStereoRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "out.wav")
	in := &Stereo{
		Left:       []float64{0, 0.5, -0.5, 0.25},
		Right:      []float64{0.1, -0.1, 0.9, -0.9},
		SampleRate: 48000,
	}
	if err := WriteStereo(path, in); err != nil {
		t.Fatalf("WriteStereo: %v", err)
	}
	got, err := ReadStereo(path)
	if err != nil {
		t.Fatalf("ReadStereo: %v", err)
	}
	if got.SampleRate != 48000 || got.Frames() != 4 {
		t.Fatalf("unexpected format: rate=%d frames=%d", got.SampleRate, got.Frames())
	}
	for i := range in.Left {
		if math.Abs(got.Left[i]-in.Left[i]) > 1e-3 || math.Abs(got.Right[i]-in.Right[i]) > 1e-3 {
			t.Fatalf("frame %d: got [%f %f], want [%f %f]", i, got.Left[i], got.Right[i], in.Left[i], in.Right[i])
		}
	}
}

func TestReadStereoDuplicatesMono(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mono.wav")
	if err := WriteInterleaved(path, []float32{0.2, -0.4, 0.6}, 1, 44100); err != nil {
		t.Fatalf("WriteInterleaved: %v", err)
	}
	got, err := ReadStereo(path)
	if err != nil {
		t.Fatalf("ReadStereo: %v", err)
	}
	if got.Frames() != 3 {
		t.Fatalf("expected 3 frames, got %d", got.Frames())
	}
	for i := range got.Left {
		if got.Left[i] != got.Right[i] {
			t.Fatalf("frame %d: mono not duplicated (%f vs %f)", i, got.Left[i], got.Right[i])
		}
	}
	mono := got.Mono()
	if math.Abs(mono[1]+0.4) > 1e-3 {
		t.Fatalf("expected mono -0.4, got %f", mono[1])
	}
}

func TestResampleChangesLength(t *testing.T) {
	n := 4410
	s := &Stereo{Left: make([]float64, n), Right: make([]float64, n), SampleRate: 44100}
	for i := 0; i < n; i++ {
		v := 0.5 * math.Sin(2*math.Pi*440*float64(i)/44100)
		s.Left[i], s.Right[i] = v, -v
	}
	if err := s.Resample(48000); err != nil {
		t.Fatalf("Resample: %v", err)
	}
	if s.SampleRate != 48000 {
		t.Fatalf("expected rate 48000, got %d", s.SampleRate)
	}
	if want := 4800; math.Abs(float64(s.Frames()-want)) > 480 {
		t.Fatalf("expected about %d frames, got %d", want, s.Frames())
	}
	if err := s.Resample(0); err == nil {
		t.Fatalf("expected error for zero rate")
	}
}

func TestReadStereoRejectsGarbage(t *testing.T) {
	if _, err := ReadStereo(filepath.Join(t.TempDir(), "missing.wav")); err == nil {
		t.Fatalf("expected error for missing file")
	}
	if err := WriteStereo(filepath.Join(t.TempDir(), "x.wav"), &Stereo{Left: []float64{1}, SampleRate: 48000}); err == nil {
		t.Fatalf("expected error for channel length mismatch")
	}
}
