package main

import (
	"flag"
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/cwbudde/algo-comp/compressor"
	"github.com/cwbudde/algo-comp/internal/audiofile"
	"github.com/cwbudde/algo-comp/preset"
	"github.com/cwbudde/algo-comp/signal"
)

func main() {
	input := flag.String("input", "", "Input WAV path (mono or stereo). Overrides -signal")
	signalName := flag.String("signal", "ramp", "Generated input when -input is empty: ramp, burst, impulse, sine, noise")
	duration := flag.Float64("duration", 2.0, "Generated signal duration in seconds")
	freq := flag.Float64("freq", 440, "Generated signal frequency in Hz")
	sampleRate := flag.Int("sample-rate", int(compressor.DefaultSampleRate), "Processing sample rate in Hz (input WAVs are resampled)")
	blockSize := flag.Int("block", compressor.DefaultBlockSize, "Processing block size in frames")
	presetPath := flag.String("preset", "", "Preset JSON file path (optional)")
	threshold := flag.Float64("threshold", compressor.DefaultThresholdDB, "Threshold in dB")
	ratio := flag.Float64("ratio", compressor.DefaultRatio, "Compression ratio (>= 1, inf for limiting)")
	knee := flag.Float64("knee", compressor.DefaultKneeDB, "Knee width in dB")
	attackMs := flag.Float64("attack-ms", compressor.DefaultAttackSeconds*1000, "Attack time in ms")
	lookahead := flag.Bool("lookahead", false, "Enable lookahead")
	lookaheadMs := flag.Float64("lookahead-ms", compressor.DefaultLookaheadSeconds*1000, "Lookahead delay in ms")
	shape := flag.String("shape", compressor.ShapeRamp, "Lookahead shape: ramp or none")
	hpf := flag.Float64("hpf", 0, "Sidechain high-pass cutoff in Hz (0 = off)")
	fastGain := flag.Bool("fast-gain", false, "Use the approximate dB-to-gain conversion")
	bypass := flag.Bool("bypass", false, "Pass audio through untouched")
	debug := flag.Bool("debug", true, "Print block stats to stderr when they change")
	tail := flag.Bool("tail", true, "Render extra frames to flush the lookahead delay")
	output := flag.String("output", "output.wav", "Output WAV file path")
	flag.Parse()

	cfg := compressor.DefaultConfig()
	if *presetPath != "" {
		p, err := preset.LoadJSON(*presetPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading preset %q: %v\n", *presetPath, err)
			os.Exit(1)
		}
		cfg = *p
	}
	cfg.SampleRate = float64(*sampleRate)
	cfg.BlockSize = *blockSize

	// Explicit flags win over the preset.
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "threshold":
			cfg.ThresholdDB = *threshold
		case "ratio":
			cfg.Ratio = *ratio
		case "knee":
			cfg.KneeDB = *knee
		case "attack-ms":
			cfg.AttackSeconds = *attackMs / 1000
		case "lookahead":
			cfg.UseLookahead = *lookahead
		case "lookahead-ms":
			cfg.LookaheadDelaySeconds = *lookaheadMs / 1000
			cfg.MaxLookaheadSeconds = math.Max(cfg.MaxLookaheadSeconds, cfg.LookaheadDelaySeconds)
		case "shape":
			cfg.LookaheadShape = strings.ToLower(*shape)
		case "hpf":
			cfg.SidechainHighpassHz = *hpf
		case "fast-gain":
			cfg.FastGain = *fastGain
		case "bypass":
			cfg.Bypass = *bypass
		case "debug":
			cfg.Debug = *debug
		}
	})

	engine, err := compressor.NewEngine(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating compressor: %v\n", err)
		os.Exit(1)
	}

	var src *audiofile.Stereo
	if *input != "" {
		src, err = audiofile.ReadStereo(*input)
		if err == nil {
			err = src.Resample(*sampleRate)
		}
	} else {
		src, err = generate(*signalName, *sampleRate, *duration, *freq)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error preparing input: %v\n", err)
		os.Exit(1)
	}

	frames := src.Frames()
	if *tail {
		frames += engine.Latency()
	}
	fmt.Printf("Compressing %d frames at %d Hz (threshold %.1f dB, ratio %.1f, knee %.1f dB, attack %.2f ms, lookahead %v)...\n",
		src.Frames(), *sampleRate, cfg.ThresholdDB, cfg.Ratio, cfg.KneeDB, cfg.AttackSeconds*1000, cfg.UseLookahead)

	samples := make([]float32, 0, frames*2)
	block := make([]float32, 2*cfg.BlockSize)
	minDuck := 1.0
	prePeak, postPeak := 0.0, 0.0
	for pos := 0; pos < frames; pos += cfg.BlockSize {
		n := min(cfg.BlockSize, frames-pos)
		buf := block[:2*n]
		for i := 0; i < n; i++ {
			var l, r float64
			if j := pos + i; j < src.Frames() {
				l, r = src.Left[j], src.Right[j]
			}
			buf[2*i], buf[2*i+1] = float32(l), float32(r)
		}
		s := engine.ProcessInterleaved(buf)
		minDuck = math.Min(minDuck, s.Duck)
		prePeak = math.Max(prePeak, s.PrePeak)
		postPeak = math.Max(postPeak, s.PostPeak)
		samples = append(samples, buf...)
	}

	if err := audiofile.WriteInterleaved(*output, samples, 2, *sampleRate); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing WAV file: %v\n", err)
		os.Exit(1)
	}

	summary := compressor.BlockStats{PrePeak: prePeak, Duck: minDuck, PostPeak: postPeak}
	fmt.Printf("Overall %s\n", summary)
	fmt.Printf("Successfully wrote %s (%d frames, latency %d)\n", *output, frames, engine.Latency())
}

func generate(name string, sampleRate int, duration, freq float64) (*audiofile.Stereo, error) {
	n := int(float64(sampleRate) * duration)
	if n < 1 {
		n = 1
	}
	g, err := signal.NewGenerator(float64(sampleRate), 1)
	if err != nil {
		return nil, err
	}

	var mono []float64
	switch strings.ToLower(name) {
	case "ramp":
		mono, err = g.SineRamp(freq, -40, 0, n)
	case "burst":
		mono, err = g.ToneBurst(freq, 0.9, 0.05, 0.2, n)
	case "impulse":
		mono, err = signal.Impulse(n, n/2, 1)
	case "sine":
		mono, err = g.Sine(freq, 0.9, n)
	case "noise":
		mono, err = g.Noise(0.5, n)
	default:
		return nil, fmt.Errorf("unknown signal %q (valid: ramp, burst, impulse, sine, noise)", name)
	}
	if err != nil {
		return nil, err
	}
	left, right := signal.Stereo(mono)
	return &audiofile.Stereo{Left: left, Right: right, SampleRate: sampleRate}, nil
}
