package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/cwbudde/algo-comp/analysis"
	"github.com/cwbudde/algo-comp/compressor"
	"github.com/cwbudde/algo-comp/internal/audiofile"
	fitcommon "github.com/cwbudde/algo-comp/internal/fitcommon"
	"github.com/cwbudde/algo-comp/preset"
	"github.com/cwbudde/mayfly"
)

type knobDef struct {
	Name  string
	Min   float64
	Max   float64
	IsInt bool
}

type candidate struct {
	Vals []float64
}

type topCandidate struct {
	Eval       int                `json:"eval"`
	Score      float64            `json:"score"`
	Similarity float64            `json:"similarity"`
	Knobs      map[string]float64 `json:"knobs"`
}

type runReport struct {
	InputPath       string             `json:"input_path"`
	TargetPath      string             `json:"target_path"`
	PresetPath      string             `json:"preset_path"`
	OutputPreset    string             `json:"output_preset"`
	SampleRate      int                `json:"sample_rate"`
	DurationSec     float64            `json:"elapsed_seconds"`
	Evaluations     int                `json:"evaluations"`
	MayflyVariant   string             `json:"mayfly_variant"`
	BestScore       float64            `json:"best_score"`
	BestSimilarity  float64            `json:"best_similarity"`
	BestMetrics     analysis.Metrics   `json:"best_metrics"`
	BestKnobs       map[string]float64 `json:"best_knobs"`
	CheckpointCount int                `json:"checkpoint_count"`
	TopCandidates   []topCandidate     `json:"top_candidates,omitempty"`
}

func main() {
	inputPath := flag.String("input", "", "Dry input WAV path")
	targetPath := flag.String("target", "", "Compressed target WAV path to match")
	presetPath := flag.String("preset", "", "Base preset JSON path (optional)")
	outputPreset := flag.String("output-preset", "out/fitted.json", "Path to write best fitted preset JSON")
	reportPath := flag.String("report", "", "Optional report JSON path (default: <output-preset>.report.json)")
	sampleRate := flag.Int("sample-rate", int(compressor.DefaultSampleRate), "Render/analysis sample rate")
	seed := flag.Int64("seed", 1, "Random seed")
	timeBudget := flag.Float64("time-budget", 60.0, "Optimization time budget in seconds")
	maxEvals := flag.Int("max-evals", 2000, "Maximum objective evaluations")
	reportEvery := flag.Int("report-every", 20, "Print progress every N evaluations")
	checkpointEvery := flag.Int("checkpoint-every", 1, "Write checkpoint every N best-score improvements")
	topK := flag.Int("top-k", 5, "How many top candidates to keep in report")
	resume := flag.Bool("resume", true, "Resume from previous best_knobs report when available")
	fitLookahead := flag.Bool("fit-lookahead", false, "Enable lookahead and fit its delay as well")
	maxRatio := flag.Float64("max-ratio", 30, "Upper bound of the ratio search range")

	mayflyVariant := flag.String("mayfly-variant", "desma", "Mayfly variant: ma|desma|olce|eobbma|gsasma|mpma|aoblmoa")
	mayflyPop := flag.Int("mayfly-pop", 10, "Male and female population size per Mayfly run")
	mayflyRoundEvals := flag.Int("mayfly-round-evals", 240, "Target eval budget per Mayfly round")
	flag.Parse()

	if *inputPath == "" || *targetPath == "" {
		die("input and target are required")
	}
	if *outputPreset == "" {
		die("output-preset must not be empty")
	}
	if *maxEvals < 1 {
		die("max-evals must be >= 1")
	}
	if *timeBudget <= 0 {
		die("time-budget must be > 0")
	}
	if *maxRatio <= 1 {
		die("max-ratio must be > 1")
	}
	if *reportEvery < 1 {
		*reportEvery = 1
	}
	if *checkpointEvery < 1 {
		*checkpointEvery = 1
	}
	if *mayflyPop < 2 {
		*mayflyPop = 2
	}
	if *mayflyRoundEvals < *mayflyPop*2 {
		*mayflyRoundEvals = *mayflyPop * 2
	}
	if *topK < 1 {
		*topK = 1
	}
	if *reportPath == "" {
		*reportPath = *outputPreset + ".report.json"
	}
	variant := strings.ToLower(*mayflyVariant)

	base := compressor.DefaultConfig()
	if *presetPath != "" {
		p, err := preset.LoadJSON(*presetPath)
		if err != nil {
			die("failed to load preset: %v", err)
		}
		base = *p
	}
	base.SampleRate = float64(*sampleRate)
	base.Bypass = false
	if *fitLookahead {
		base.UseLookahead = true
	}

	input, err := readResampled(*inputPath, *sampleRate)
	if err != nil {
		die("failed to read input: %v", err)
	}
	target, err := readResampled(*targetPath, *sampleRate)
	if err != nil {
		die("failed to read target: %v", err)
	}
	targetMono := target.Mono()

	defs, initCand := initCandidate(base, *maxRatio, *fitLookahead)
	if *resume {
		if resumed, ok, err := loadCandidateFromReport(*reportPath, defs, initCand); err != nil {
			fmt.Fprintf(os.Stderr, "resume skipped (%s): %v\n", *reportPath, err)
		} else if ok {
			initCand = resumed
			fmt.Printf("Resumed candidate from %s\n", *reportPath)
		}
	}

	evaluate := func(c candidate) (analysis.Metrics, compressor.Config, error) {
		cfg := applyCandidate(base, defs, c)
		out, _, err := fitcommon.Render(cfg, input)
		if err != nil {
			return analysis.Metrics{}, cfg, err
		}
		return analysis.Compare(targetMono, out.Mono(), *sampleRate), cfg, nil
	}

	start := time.Now()
	deadline := start.Add(time.Duration(*timeBudget * float64(time.Second)))
	evals := 0
	bestImproves := 0
	checkpoints := 0
	top := make([]topCandidate, 0, *topK)

	best := initCand
	bestM, bestCfg, err := evaluate(best)
	if err != nil {
		die("initial evaluation failed: %v", err)
	}
	evals++
	top = updateTopCandidates(top, *topK, evals, bestM, defs, best)
	fmt.Printf("Start score=%.4f similarity=%.2f%%\n", bestM.Score, bestM.Similarity*100.0)

	write := func(checkpointCount int) error {
		return writeOutputs(runReport{
			InputPath:       *inputPath,
			TargetPath:      *targetPath,
			PresetPath:      *presetPath,
			OutputPreset:    *outputPreset,
			SampleRate:      *sampleRate,
			DurationSec:     time.Since(start).Seconds(),
			Evaluations:     evals,
			MayflyVariant:   variant,
			BestScore:       bestM.Score,
			BestSimilarity:  bestM.Similarity,
			BestMetrics:     bestM,
			BestKnobs:       knobMap(defs, best),
			CheckpointCount: checkpointCount,
			TopCandidates:   top,
		}, *reportPath, bestCfg)
	}

	round := 0
	for evals < *maxEvals && time.Now().Before(deadline) {
		round++
		remaining := *maxEvals - evals
		budget := fitcommon.MinInt(*mayflyRoundEvals, remaining)
		iters := fitcommon.MaxInt(1, budget/(2*(*mayflyPop)))

		cfg, err := newMayflyConfig(variant, *mayflyPop, len(defs), iters)
		if err != nil {
			die("invalid mayfly variant: %v", err)
		}
		cfg.Rand = rand.New(rand.NewSource(*seed + int64(round)*7919))

		cfg.ObjectiveFunc = func(pos []float64) float64 {
			if evals >= *maxEvals || time.Now().After(deadline) {
				return bestM.Score + 1.0
			}
			cand := fromNormalized(pos, defs)
			m, compCfg, err := evaluate(cand)
			evals++
			if err != nil {
				return bestM.Score + 0.8
			}

			top = updateTopCandidates(top, *topK, evals, m, defs, cand)

			if m.Score < bestM.Score {
				best = cand
				bestM = m
				bestCfg = compCfg
				bestImproves++
				fmt.Printf("Improved #%d eval=%d score=%.4f sim=%.2f%% %s\n",
					bestImproves, evals, bestM.Score, bestM.Similarity*100.0, describe(defs, best))
				if bestImproves%*checkpointEvery == 0 {
					if err := write(checkpoints + 1); err != nil {
						fmt.Fprintf(os.Stderr, "checkpoint write failed: %v\n", err)
					} else {
						checkpoints++
					}
				}
			}

			if evals%*reportEvery == 0 {
				fmt.Printf("Progress round=%d eval=%d elapsed=%.1fs best=%.4f\n", round, evals, time.Since(start).Seconds(), bestM.Score)
			}
			return m.Score
		}

		if _, err := runMayfly(cfg); err != nil {
			fmt.Fprintf(os.Stderr, "mayfly round %d failed: %v\n", round, err)
			continue
		}
	}

	if err := write(checkpoints); err != nil {
		die("failed to write outputs: %v", err)
	}
	fmt.Printf("Done evals=%d elapsed=%.1fs best_score=%.4f best_similarity=%.2f%% variant=%s\n",
		evals, time.Since(start).Seconds(), bestM.Score, bestM.Similarity*100.0, variant)
	fmt.Printf("Best %s\n", describe(defs, best))
}

func initCandidate(base compressor.Config, maxRatio float64, fitLookahead bool) ([]knobDef, candidate) {
	ratio := base.Ratio
	if math.IsInf(ratio, 1) {
		ratio = maxRatio
	}
	defs := []knobDef{
		{Name: "threshold_db", Min: -60, Max: 0},
		{Name: "ratio", Min: 1, Max: maxRatio},
		{Name: "knee_db", Min: 0, Max: 24},
		{Name: "attack_ms", Min: 0, Max: 200},
	}
	vals := []float64{base.ThresholdDB, ratio, base.KneeDB, base.AttackSeconds * 1000}
	if fitLookahead {
		defs = append(defs, knobDef{Name: "lookahead_ms", Min: 0, Max: base.MaxLookaheadSeconds * 1000})
		vals = append(vals, base.LookaheadDelaySeconds*1000)
	}
	for i := range vals {
		vals[i] = fitcommon.Clamp(vals[i], defs[i].Min, defs[i].Max)
	}
	return defs, candidate{Vals: vals}
}

func applyCandidate(base compressor.Config, defs []knobDef, c candidate) compressor.Config {
	cfg := base
	for i, d := range defs {
		v := c.Vals[i]
		switch d.Name {
		case "threshold_db":
			cfg.ThresholdDB = v
		case "ratio":
			cfg.Ratio = v
		case "knee_db":
			cfg.KneeDB = v
		case "attack_ms":
			cfg.AttackSeconds = v / 1000
		case "lookahead_ms":
			cfg.LookaheadDelaySeconds = v / 1000
		}
	}
	return cfg
}

func describe(defs []knobDef, c candidate) string {
	parts := make([]string, len(defs))
	for i, d := range defs {
		parts[i] = fmt.Sprintf("%s=%.3f", d.Name, c.Vals[i])
	}
	return strings.Join(parts, " ")
}

func knobMap(defs []knobDef, c candidate) map[string]float64 {
	knobs := make(map[string]float64, len(defs))
	for i, d := range defs {
		knobs[d.Name] = c.Vals[i]
	}
	return knobs
}

func updateTopCandidates(top []topCandidate, topK int, eval int, metrics analysis.Metrics, defs []knobDef, cand candidate) []topCandidate {
	top = append(top, topCandidate{
		Eval:       eval,
		Score:      metrics.Score,
		Similarity: metrics.Similarity,
		Knobs:      knobMap(defs, cand),
	})
	sort.Slice(top, func(i, j int) bool {
		if top[i].Score == top[j].Score {
			return top[i].Eval < top[j].Eval
		}
		return top[i].Score < top[j].Score
	})
	if len(top) > topK {
		top = top[:topK]
	}
	return top
}

func writeOutputs(rep runReport, reportPath string, cfg compressor.Config) error {
	if err := os.MkdirAll(filepath.Dir(rep.OutputPreset), 0o755); err != nil {
		return err
	}
	f := preset.FromConfig(cfg)
	f.Description = fmt.Sprintf("fitted to %s (score %.4f)", filepath.Base(rep.TargetPath), rep.BestScore)
	if err := preset.SaveJSON(rep.OutputPreset, f); err != nil {
		return err
	}
	return writeJSON(reportPath, rep)
}

func loadCandidateFromReport(path string, defs []knobDef, fallback candidate) (candidate, bool, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fallback, false, nil
		}
		return fallback, false, err
	}
	var rep runReport
	if err := json.Unmarshal(b, &rep); err != nil {
		return fallback, false, err
	}
	if len(rep.BestKnobs) == 0 {
		return fallback, false, nil
	}

	vals := make([]float64, len(fallback.Vals))
	copy(vals, fallback.Vals)
	updated := false
	for i, d := range defs {
		if v, ok := rep.BestKnobs[d.Name]; ok {
			vals[i] = fitcommon.Clamp(v, d.Min, d.Max)
			updated = true
		}
	}
	if !updated {
		return fallback, false, nil
	}
	return candidate{Vals: vals}, true, nil
}

func fromNormalized(pos []float64, defs []knobDef) candidate {
	vals := make([]float64, len(defs))
	for i := range defs {
		x := 0.0
		if i < len(pos) {
			x = fitcommon.Clamp(pos[i], 0, 1)
		}
		v := defs[i].Min + x*(defs[i].Max-defs[i].Min)
		if defs[i].IsInt {
			v = math.Round(v)
		}
		vals[i] = v
	}
	return candidate{Vals: vals}
}

func newMayflyConfig(variant string, pop int, dims int, iters int) (*mayfly.Config, error) {
	var cfg *mayfly.Config
	switch variant {
	case "ma":
		cfg = mayfly.NewDefaultConfig()
	case "desma":
		cfg = mayfly.NewDESMAConfig()
	case "olce":
		cfg = mayfly.NewOLCEConfig()
	case "eobbma":
		cfg = mayfly.NewEOBBMAConfig()
	case "gsasma":
		cfg = mayfly.NewGSASMAConfig()
	case "mpma":
		cfg = mayfly.NewMPMAConfig()
	case "aoblmoa":
		cfg = mayfly.NewAOBLMOAConfig()
	default:
		return nil, fmt.Errorf("unsupported variant %q", variant)
	}
	cfg.ProblemSize = dims
	cfg.LowerBound = 0.0
	cfg.UpperBound = 1.0
	cfg.MaxIterations = iters
	cfg.NPop = pop
	cfg.NPopF = pop
	cfg.NC = 2 * pop
	cfg.NM = fitcommon.MaxInt(1, int(math.Round(0.05*float64(pop))))
	return cfg, nil
}

func runMayfly(cfg *mayfly.Config) (_ *mayfly.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("mayfly panic: %v", r)
		}
	}()
	return mayfly.Optimize(cfg)
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

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	b = append(b, '\n')
	return os.WriteFile(path, b, 0o644)
}

func die(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
