package fitcommon

import (
	"math"

	"github.com/cwbudde/algo-comp/compressor"
	"github.com/cwbudde/algo-comp/internal/audiofile"
)

// Render runs src through a fresh engine built from cfg and returns the
// output aligned with the input: the lookahead latency is flushed with
// silence and dropped from the front. Diagnostics are disabled. src is not
// modified.
func Render(cfg compressor.Config, src *audiofile.Stereo) (*audiofile.Stereo, compressor.BlockStats, error) {
	cfg.Debug = false
	engine, err := compressor.NewEngine(cfg)
	if err != nil {
		return nil, compressor.BlockStats{}, err
	}

	frames := src.Frames()
	latency := engine.Latency()
	total := frames + latency
	left := make([]float64, total)
	right := make([]float64, total)
	copy(left, src.Left)
	copy(right, src.Right)

	overall := compressor.BlockStats{Duck: 1}
	for pos := 0; pos < total; pos += cfg.BlockSize {
		end := MinInt(pos+cfg.BlockSize, total)
		s := engine.Process(left[pos:end], right[pos:end])
		overall.PrePeak = math.Max(overall.PrePeak, s.PrePeak)
		overall.Duck = math.Min(overall.Duck, s.Duck)
		overall.PostPeak = math.Max(overall.PostPeak, s.PostPeak)
	}

	out := &audiofile.Stereo{
		Left:       left[latency:],
		Right:      right[latency:],
		SampleRate: src.SampleRate,
	}
	return out, overall, nil
}
