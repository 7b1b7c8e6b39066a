// Package audiofile reads and writes the stereo WAV files the CLIs work on.
package audiofile

import (
	"fmt"
	"os"
	"path/filepath"

	dspresample "github.com/cwbudde/algo-dsp/dsp/resample"
	"github.com/cwbudde/wav"
	"github.com/go-audio/audio"
)

// Stereo is a planar two-channel signal.
type Stereo struct {
	Left       []float64
	Right      []float64
	SampleRate int
}

// Frames returns the number of sample frames.
func (s *Stereo) Frames() int { return len(s.Left) }

// Mono returns the channel average.
func (s *Stereo) Mono() []float64 {
	out := make([]float64, len(s.Left))
	for i := range out {
		out[i] = 0.5 * (s.Left[i] + s.Right[i])
	}
	return out
}

// Resample converts both channels to toRate in place.
func (s *Stereo) Resample(toRate int) error {
	if toRate <= 0 {
		return fmt.Errorf("target sample rate must be > 0: %d", toRate)
	}
	if s.SampleRate == toRate {
		return nil
	}
	left, err := resample(s.Left, s.SampleRate, toRate)
	if err != nil {
		return err
	}
	right, err := resample(s.Right, s.SampleRate, toRate)
	if err != nil {
		return err
	}
	n := min(len(left), len(right))
	s.Left, s.Right, s.SampleRate = left[:n], right[:n], toRate
	return nil
}

// ReadStereo loads a WAV file. Mono files are duplicated to both channels;
// channels beyond the second are ignored.
func ReadStereo(path string) (*Stereo, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("invalid wav file: %s", path)
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, err
	}
	if buf == nil || buf.Format == nil || buf.Format.NumChannels < 1 {
		return nil, fmt.Errorf("invalid wav buffer: %s", path)
	}
	ch := buf.Format.NumChannels
	frames := len(buf.Data) / ch
	s := &Stereo{
		Left:       make([]float64, frames),
		Right:      make([]float64, frames),
		SampleRate: buf.Format.SampleRate,
	}
	for i := 0; i < frames; i++ {
		l := float64(buf.Data[i*ch])
		r := l
		if ch > 1 {
			r = float64(buf.Data[i*ch+1])
		}
		s.Left[i], s.Right[i] = l, r
	}
	return s, nil
}

// WriteStereo writes a 16-bit stereo WAV, creating parent directories.
func WriteStereo(path string, s *Stereo) error {
	if len(s.Left) != len(s.Right) {
		return fmt.Errorf("left/right length mismatch")
	}
	data := make([]float32, len(s.Left)*2)
	for i := range s.Left {
		data[i*2] = float32(s.Left[i])
		data[i*2+1] = float32(s.Right[i])
	}
	return WriteInterleaved(path, data, 2, s.SampleRate)
}

// WriteInterleaved writes interleaved float samples as a 16-bit WAV.
func WriteInterleaved(path string, samples []float32, channels, sampleRate int) error {
	if channels < 1 {
		return fmt.Errorf("channel count must be >= 1: %d", channels)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := wav.NewEncoder(f, sampleRate, 16, channels, 1)

	buf := &audio.Float32Buffer{
		Format: &audio.Format{
			SampleRate:  sampleRate,
			NumChannels: channels,
		},
		Data:           samples,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		return err
	}
	return enc.Close()
}

func resample(in []float64, fromRate int, toRate int) ([]float64, error) {
	r, err := dspresample.NewForRates(
		float64(fromRate),
		float64(toRate),
		dspresample.WithQuality(dspresample.QualityBest),
	)
	if err != nil {
		return nil, err
	}
	return r.Process(in), nil
}
