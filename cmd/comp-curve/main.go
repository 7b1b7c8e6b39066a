package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"math"
	"os"

	"github.com/cwbudde/algo-comp/compressor"
	fitcommon "github.com/cwbudde/algo-comp/internal/fitcommon"
	"github.com/cwbudde/algo-comp/preset"
	"github.com/cwbudde/algo-dsp/dsp/effects/dynamics"
)

// Limits of the dynamics package compressor used for the reference column.
const (
	referenceMaxRatio = 100
	referenceMaxKnee  = 24
)

type curvePoint struct {
	InputDB     float64  `json:"input_db"`
	ReductionDB float64  `json:"reduction_db"`
	OutputDB    float64  `json:"output_db"`
	ReferenceDB *float64 `json:"reference_db,omitempty"`
}

type curveReport struct {
	ThresholdDB float64      `json:"threshold_db"`
	Ratio       float64      `json:"ratio"`
	KneeDB      float64      `json:"knee_db"`
	Points      []curvePoint `json:"points"`
}

func main() {
	presetPath := flag.String("preset", "", "Preset JSON file path (optional)")
	threshold := flag.Float64("threshold", compressor.DefaultThresholdDB, "Threshold in dB")
	ratio := flag.String("ratio", "", "Compression ratio (>= 1, inf for limiting); default from preset")
	knee := flag.Float64("knee", compressor.DefaultKneeDB, "Knee width in dB")
	from := flag.Float64("from", -60, "First input level in dB")
	to := flag.Float64("to", 6, "Last input level in dB")
	step := flag.Float64("step", 1, "Input level step in dB")
	reference := flag.Bool("reference", false, "Add the dynamics package compressor curve as a reference column")
	jsonOut := flag.Bool("json", false, "Print the curve as JSON")
	flag.Parse()

	cfg := compressor.DefaultConfig()
	if *presetPath != "" {
		p, err := preset.LoadJSON(*presetPath)
		if err != nil {
			die("failed to load preset: %v", err)
		}
		cfg = *p
	}
	var flagErr error
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "threshold":
			cfg.ThresholdDB = *threshold
		case "ratio":
			r, err := fitcommon.ParseRatio(*ratio)
			if err != nil {
				flagErr = fmt.Errorf("invalid -ratio: %w", err)
				return
			}
			cfg.Ratio = r
		case "knee":
			cfg.KneeDB = *knee
		}
	})
	if flagErr != nil {
		die("%v", flagErr)
	}

	rep, err := buildCurve(cfg, *from, *to, *step, *reference)
	if err != nil {
		die("failed to build curve: %v", err)
	}

	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(rep); err != nil {
			die("json encode failed: %v", err)
		}
		return
	}

	fmt.Printf("Threshold %.1f dB, ratio %s, knee %.1f dB\n\n", rep.ThresholdDB, formatRatio(rep.Ratio), rep.KneeDB)
	if *reference {
		fmt.Printf("%10s %12s %10s %12s\n", "Input dB", "Reduction", "Output dB", "Reference")
	} else {
		fmt.Printf("%10s %12s %10s\n", "Input dB", "Reduction", "Output dB")
	}
	for _, p := range rep.Points {
		if p.ReferenceDB != nil {
			fmt.Printf("%10.2f %12.2f %10.2f %12.2f\n", p.InputDB, p.ReductionDB, p.OutputDB, *p.ReferenceDB)
			continue
		}
		fmt.Printf("%10.2f %12.2f %10.2f\n", p.InputDB, p.ReductionDB, p.OutputDB)
	}
}

func buildCurve(cfg compressor.Config, from, to, step float64, withReference bool) (curveReport, error) {
	if step <= 0 || math.IsNaN(step) {
		return curveReport{}, fmt.Errorf("step must be > 0: %f", step)
	}
	if to < from {
		return curveReport{}, fmt.Errorf("to (%f) must not be below from (%f)", to, from)
	}

	g := compressor.NewGainReductionComputer()
	if err := errors.Join(g.SetThreshold(cfg.ThresholdDB), g.SetRatio(cfg.Ratio), g.SetKnee(cfg.KneeDB)); err != nil {
		return curveReport{}, err
	}

	var ref *dynamics.Compressor
	if withReference {
		var err error
		ref, err = newReference(cfg)
		if err != nil {
			return curveReport{}, fmt.Errorf("reference compressor: %w", err)
		}
	}

	rep := curveReport{ThresholdDB: cfg.ThresholdDB, Ratio: cfg.Ratio, KneeDB: cfg.KneeDB}
	n := int(math.Floor((to-from)/step+1e-9)) + 1
	rep.Points = make([]curvePoint, 0, n)
	for i := 0; i < n; i++ {
		x := from + float64(i)*step
		r := g.StaticReduction(x)
		p := curvePoint{InputDB: x, ReductionDB: r, OutputDB: x - r}
		if ref != nil {
			out := compressor.LinearToDecibels(ref.CalculateOutputLevel(compressor.DecibelsToLinear(x)))
			p.ReferenceDB = &out
		}
		rep.Points = append(rep.Points, p)
	}
	return rep, nil
}

// The dynamics compressor caps ratio and knee, so the reference column only
// matches inside those limits.
func newReference(cfg compressor.Config) (*dynamics.Compressor, error) {
	c, err := dynamics.NewCompressor(cfg.SampleRate)
	if err != nil {
		return nil, err
	}
	return c, errors.Join(
		c.SetThreshold(cfg.ThresholdDB),
		c.SetRatio(math.Min(cfg.Ratio, referenceMaxRatio)),
		c.SetKnee(math.Min(cfg.KneeDB, referenceMaxKnee)),
		c.SetAutoMakeup(false),
		c.SetMakeupGain(0),
	)
}

func formatRatio(r float64) string {
	if math.IsInf(r, 1) {
		return "inf:1"
	}
	return fmt.Sprintf("%g:1", r)
}

func die(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
