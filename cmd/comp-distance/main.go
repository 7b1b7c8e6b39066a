package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/cwbudde/algo-comp/analysis"
	"github.com/cwbudde/algo-comp/compressor"
	"github.com/cwbudde/algo-comp/internal/audiofile"
	fitcommon "github.com/cwbudde/algo-comp/internal/fitcommon"
	"github.com/cwbudde/algo-comp/preset"
)

func main() {
	referencePath := flag.String("reference", "", "Reference (target) WAV path")
	candidatePath := flag.String("candidate", "", "Candidate WAV path; if empty, render -input through -preset")
	inputPath := flag.String("input", "", "Dry input WAV path for the rendered candidate")
	presetPath := flag.String("preset", "", "Preset JSON path for the rendered candidate (optional)")
	sampleRate := flag.Int("sample-rate", int(compressor.DefaultSampleRate), "Analysis sample rate in Hz")
	writeCandidate := flag.String("write-candidate", "", "Optional path to write rendered candidate WAV")
	jsonOut := flag.Bool("json", false, "Print metrics as JSON")
	flag.Parse()

	if *referencePath == "" {
		die("reference is required")
	}
	ref, err := readResampled(*referencePath, *sampleRate)
	if err != nil {
		die("failed to read reference: %v", err)
	}

	var cand *audiofile.Stereo
	var stats *compressor.BlockStats
	switch {
	case *candidatePath != "":
		cand, err = readResampled(*candidatePath, *sampleRate)
		if err != nil {
			die("failed to read candidate: %v", err)
		}
	case *inputPath != "":
		cfg := compressor.DefaultConfig()
		if *presetPath != "" {
			p, err := preset.LoadJSON(*presetPath)
			if err != nil {
				die("failed to load preset: %v", err)
			}
			cfg = *p
		}
		cfg.SampleRate = float64(*sampleRate)
		in, err := readResampled(*inputPath, *sampleRate)
		if err != nil {
			die("failed to read input: %v", err)
		}
		var s compressor.BlockStats
		cand, s, err = fitcommon.Render(cfg, in)
		if err != nil {
			die("failed to render candidate: %v", err)
		}
		stats = &s
		if *writeCandidate != "" {
			if err := audiofile.WriteStereo(*writeCandidate, cand); err != nil {
				die("failed to write candidate wav: %v", err)
			}
		}
	default:
		die("either candidate or input is required")
	}

	metrics := analysis.Compare(ref.Mono(), cand.Mono(), *sampleRate)
	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(metrics); err != nil {
			die("json encode failed: %v", err)
		}
		return
	}

	fmt.Printf("Reference frames: %d\n", metrics.ReferenceFrames)
	fmt.Printf("Candidate frames: %d\n", metrics.CandidateFrames)
	fmt.Printf("Aligned frames:   %d\n", metrics.AlignedFrames)
	fmt.Printf("Lag:              %d samples (%.3f ms)\n", metrics.LagSamples, 1000.0*float64(metrics.LagSamples)/float64(metrics.SampleRate))
	fmt.Println()
	fmt.Printf("Time RMSE:        %.6f\n", metrics.TimeRMSE)
	fmt.Printf("Envelope RMSE:    %.2f dB\n", metrics.EnvelopeRMSEDB)
	fmt.Printf("Spectral RMSE:    %.2f dB\n", metrics.SpectralRMSEDB)
	fmt.Printf("Crest factor:     ref=%.2f dB  cand=%.2f dB  diff=%.2f dB\n", metrics.RefCrestDB, metrics.CandCrestDB, metrics.CrestDiffDB)
	fmt.Printf("Score:            %.4f  (0 best, 1 worst)\n", metrics.Score)
	fmt.Printf("Similarity:       %.2f%%\n", metrics.Similarity*100.0)
	if stats != nil {
		fmt.Printf("\nRender %s\n", stats)
	}
}

func readResampled(path string, sampleRate int) (*audiofile.Stereo, error) {
	s, err := audiofile.ReadStereo(path)
	if err != nil {
		return nil, err
	}
	if err := s.Resample(sampleRate); err != nil {
		return nil, err
	}
	return s, nil
}

func die(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
