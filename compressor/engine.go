package compressor

import (
	"fmt"
	"io"
	"math"
	"os"
	"sync"
	"sync/atomic"

	"github.com/cwbudde/algo-comp/dsp"
	"github.com/cwbudde/algo-dsp/dsp/delay"
)

// Engine is a stereo-linked block compressor with optional lookahead.
//
// Process, ProcessFrames and ProcessInterleaved must be called from a single
// goroutine (the audio callback). Setters may be called from any goroutine:
// they validate, then hand a new settings snapshot to the audio goroutine,
// which swaps it in before the next block. Nothing on the audio path locks
// or allocates, apart from the diagnostic line emitted on stats changes.
type Engine struct {
	cfg     Config // owned by the audio goroutine
	latency int

	mu        sync.Mutex
	requested Config
	pending   atomic.Pointer[Config]

	gain      *GainReductionComputer
	lookahead *LookaheadProcessor
	detector  *dsp.SidechainFilter
	audioL    *delay.Line
	audioR    *delay.Line

	sidechain  []float64
	gainDB     []float64
	gainLinear []float64
	lookDB     []float64
	left       []float64
	right      []float64

	lastN    int
	stats    BlockStats
	previous BlockStats
	reporter Reporter
	emitted  int
}

// Option customizes an Engine.
type Option func(*Engine)

// WithReporter sets the receiver of changed block stats.
func WithReporter(r Reporter) Option {
	return func(e *Engine) {
		if r != nil {
			e.reporter = r
		}
	}
}

// WithDiagnostics prints changed block stats to w.
func WithDiagnostics(w io.Writer) Option {
	return func(e *Engine) {
		if w != nil {
			e.reporter = WriterReporter{W: w}
		}
	}
}

// NewEngine validates cfg and allocates every buffer the engine will use.
// Diagnostics go to os.Stderr unless an option says otherwise.
func NewEngine(cfg Config, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	g := NewGainReductionComputer()
	if err := g.SetThreshold(cfg.ThresholdDB); err != nil {
		return nil, err
	}
	if err := g.SetRatio(cfg.Ratio); err != nil {
		return nil, err
	}
	if err := g.SetKnee(cfg.KneeDB); err != nil {
		return nil, err
	}
	if err := g.SetAttackTime(cfg.AttackSeconds); err != nil {
		return nil, err
	}
	if err := g.Prepare(cfg.SampleRate); err != nil {
		return nil, err
	}

	la, err := NewLookaheadProcessor(cfg.BlockSize)
	if err != nil {
		return nil, err
	}
	if err := la.SetDelayTime(cfg.LookaheadDelaySeconds); err != nil {
		return nil, err
	}
	capacity := cfg.RingCapacity()
	if err := la.Prepare(cfg.SampleRate, capacity); err != nil {
		return nil, err
	}
	la.SetTransform(transformFor(cfg.LookaheadShape))

	// One extra slot: the sample written this step sits at Read(1).
	audioL, err := delay.New(capacity + 1)
	if err != nil {
		return nil, fmt.Errorf("audio delay: %w", err)
	}
	audioR, err := delay.New(capacity + 1)
	if err != nil {
		return nil, fmt.Errorf("audio delay: %w", err)
	}

	detector, err := dsp.NewSidechainFilter(cfg.SidechainHighpassHz, cfg.SampleRate)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	n := cfg.BlockSize
	e := &Engine{
		cfg:        cfg,
		requested:  cfg,
		gain:       g,
		lookahead:  la,
		detector:   detector,
		audioL:     audioL,
		audioR:     audioR,
		sidechain:  make([]float64, n),
		gainDB:     make([]float64, n),
		gainLinear: make([]float64, n),
		lookDB:     make([]float64, n),
		left:       make([]float64, n),
		right:      make([]float64, n),
		previous:   initialStats,
		stats:      initialStats,
		reporter:   WriterReporter{W: os.Stderr},
	}
	e.updateLatency()
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e, nil
}

// Config returns the most recently requested settings. They reach the audio
// path at the next block boundary.
func (e *Engine) Config() Config {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.requested
}

// Configure replaces all runtime settings at once. SampleRate, BlockSize and
// MaxLookaheadSeconds size the engine's buffers and cannot change.
func (e *Engine) Configure(cfg Config) error {
	return e.update(func(c *Config) { *c = cfg })
}

// SetThreshold sets the threshold in dB.
func (e *Engine) SetThreshold(db float64) error {
	return e.update(func(c *Config) { c.ThresholdDB = db })
}

// SetRatio sets the compression ratio (>= 1, +Inf for limiting).
func (e *Engine) SetRatio(ratio float64) error {
	return e.update(func(c *Config) { c.Ratio = ratio })
}

// SetKnee sets the knee width in dB.
func (e *Engine) SetKnee(db float64) error {
	return e.update(func(c *Config) { c.KneeDB = db })
}

// SetAttackTime sets the attack time in seconds.
func (e *Engine) SetAttackTime(seconds float64) error {
	return e.update(func(c *Config) { c.AttackSeconds = seconds })
}

// SetLookahead enables or disables the lookahead path. Toggling re-primes
// the delay rings.
func (e *Engine) SetLookahead(enabled bool) error {
	return e.update(func(c *Config) { c.UseLookahead = enabled })
}

// SetLookaheadDelay sets the lookahead delay in seconds. The rings are
// re-primed between blocks, so the change never desynchronizes cursors.
func (e *Engine) SetLookaheadDelay(seconds float64) error {
	return e.update(func(c *Config) { c.LookaheadDelaySeconds = seconds })
}

// SetLookaheadShape selects the lookahead transform (ShapeRamp or ShapeNone).
func (e *Engine) SetLookaheadShape(shape string) error {
	return e.update(func(c *Config) { c.LookaheadShape = shape })
}

// SetSidechainHighpass sets the detector high-pass cutoff; 0 disables it.
func (e *Engine) SetSidechainHighpass(hz float64) error {
	return e.update(func(c *Config) { c.SidechainHighpassHz = hz })
}

// SetDebug toggles diagnostic reporting.
func (e *Engine) SetDebug(enabled bool) error {
	return e.update(func(c *Config) { c.Debug = enabled })
}

// SetBypass toggles bypass. A bypassed engine leaves audio untouched.
func (e *Engine) SetBypass(enabled bool) error {
	return e.update(func(c *Config) { c.Bypass = enabled })
}

// SetFastGain toggles the approximate dB-to-gain conversion.
func (e *Engine) SetFastGain(enabled bool) error {
	return e.update(func(c *Config) { c.FastGain = enabled })
}

func (e *Engine) update(fn func(*Config)) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	next := e.requested
	fn(&next)
	if err := next.Validate(); err != nil {
		return err
	}
	if next.SampleRate != e.requested.SampleRate ||
		next.BlockSize != e.requested.BlockSize ||
		next.MaxLookaheadSeconds != e.requested.MaxLookaheadSeconds {
		return invalidf("sample rate, block size and max lookahead are fixed at construction")
	}
	e.requested = next
	snapshot := next
	e.pending.Store(&snapshot)
	return nil
}

// applyPending swaps in settings published by the setters. Only called by the
// audio goroutine between blocks.
func (e *Engine) applyPending() {
	next := e.pending.Swap(nil)
	if next == nil {
		return
	}
	prev := e.cfg
	e.cfg = *next

	// Already validated by update; errors are impossible here.
	_ = e.gain.SetThreshold(next.ThresholdDB)
	_ = e.gain.SetRatio(next.Ratio)
	_ = e.gain.SetKnee(next.KneeDB)
	if next.AttackSeconds != prev.AttackSeconds {
		_ = e.gain.SetAttackTime(next.AttackSeconds)
	}
	if next.SidechainHighpassHz != prev.SidechainHighpassHz {
		_ = e.detector.SetCutoff(next.SidechainHighpassHz, next.SampleRate)
	}
	if next.LookaheadShape != prev.LookaheadShape {
		e.lookahead.SetTransform(transformFor(next.LookaheadShape))
	}
	if next.LookaheadDelaySeconds != prev.LookaheadDelaySeconds {
		_ = e.lookahead.SetDelayTime(next.LookaheadDelaySeconds)
		e.primeDelays()
	} else if next.UseLookahead != prev.UseLookahead {
		e.primeDelays()
	}
	e.updateLatency()
}

// Process compresses one stereo block in place and returns its stats.
// The block must not be longer than the configured block size.
func (e *Engine) Process(left, right []float64) BlockStats {
	if len(left) != len(right) {
		panic(fmt.Sprintf("compressor: channel length mismatch %d != %d", len(left), len(right)))
	}
	if len(left) > e.cfg.BlockSize {
		panic(fmt.Sprintf("compressor: block of %d frames exceeds block size %d", len(left), e.cfg.BlockSize))
	}
	e.applyPending()

	n := len(left)
	e.lastN = n

	if e.cfg.Bypass {
		unity := e.gainLinear[:n]
		for i := range unity {
			unity[i] = 1
		}
		peak := dsp.PeakAbs(left, right)
		e.stats = BlockStats{PrePeak: peak, Duck: 1, PostPeak: peak}
		return e.stats
	}

	sidechain := e.sidechain[:n]
	gains := e.gainLinear[:n]

	e.detector.Detect(sidechain, left, right)

	switch {
	case e.cfg.UseLookahead:
		db := e.gainDB[:n]
		look := e.lookDB[:n]
		e.gain.ComputeGainInDecibels(sidechain, db)
		e.lookahead.PushSamples(db)
		e.lookahead.Process()
		e.lookahead.ReadSamples(look)
		e.toLinear(gains, look)
		e.delayAudio(left, right)
	case e.cfg.FastGain:
		db := e.gainDB[:n]
		e.gain.ComputeGainInDecibels(sidechain, db)
		e.toLinear(gains, db)
	default:
		e.gain.ComputeLinearGain(sidechain, gains)
	}

	s := applyGain(left, right, gains)
	e.updateStats(s)
	return s
}

// ProcessFrames compresses a block of [L, R] frames in place.
func (e *Engine) ProcessFrames(frames [][2]float64) BlockStats {
	n := len(frames)
	if n > e.cfg.BlockSize {
		panic(fmt.Sprintf("compressor: block of %d frames exceeds block size %d", n, e.cfg.BlockSize))
	}
	left, right := e.left[:n], e.right[:n]
	for i, f := range frames {
		left[i], right[i] = f[0], f[1]
	}
	s := e.Process(left, right)
	for i := range frames {
		frames[i] = [2]float64{left[i], right[i]}
	}
	return s
}

// ProcessInterleaved compresses an interleaved stereo float32 block in place.
func (e *Engine) ProcessInterleaved(samples []float32) BlockStats {
	if len(samples)%2 != 0 {
		panic(fmt.Sprintf("compressor: interleaved stereo block has odd length %d", len(samples)))
	}
	n := len(samples) / 2
	if n > e.cfg.BlockSize {
		panic(fmt.Sprintf("compressor: block of %d frames exceeds block size %d", n, e.cfg.BlockSize))
	}
	left, right := e.left[:n], e.right[:n]
	for i := 0; i < n; i++ {
		left[i] = float64(samples[i*2])
		right[i] = float64(samples[i*2+1])
	}
	s := e.Process(left, right)
	for i := 0; i < n; i++ {
		samples[i*2] = float32(left[i])
		samples[i*2+1] = float32(right[i])
	}
	return s
}

// Gains returns the linear gains applied to the last processed block, all
// unity while bypassed. The slice is reused by the next call.
func (e *Engine) Gains() []float64 {
	return e.gainLinear[:e.lastN]
}

// Stats returns the stats of the last processed block.
func (e *Engine) Stats() BlockStats { return e.stats }

// Emitted returns how many diagnostic reports have been produced.
func (e *Engine) Emitted() int { return e.emitted }

// Latency returns the delay in samples the engine adds to the program audio.
// Only the audio goroutine may call it.
func (e *Engine) Latency() int { return e.latency }

// Envelope returns the current detector envelope in dB.
func (e *Engine) Envelope() float64 { return e.gain.Envelope() }

// Reset clears detector, filter, rings and stats history. Like Process it
// belongs to the audio goroutine.
func (e *Engine) Reset() {
	e.applyPending()
	e.gain.Reset()
	e.detector.Reset()
	e.primeDelays()
	e.stats = initialStats
	e.previous = initialStats
}

func (e *Engine) toLinear(dst, db []float64) {
	if e.cfg.FastGain {
		for i, v := range db {
			dst[i] = fastDecibelsToGain(v)
		}
		return
	}
	for i, v := range db {
		dst[i] = decibelsToGain(v)
	}
}

// delayAudio shifts the program audio by the lookahead delay so it lines up
// with the delayed gain sequence.
func (e *Engine) delayAudio(left, right []float64) {
	d := e.lookahead.DelaySamples() + 1
	for i := range left {
		e.audioL.Write(left[i])
		left[i] = e.audioL.Read(d)
		e.audioR.Write(right[i])
		right[i] = e.audioR.Read(d)
	}
}

func (e *Engine) primeDelays() {
	e.lookahead.Reset()
	e.audioL.Reset()
	e.audioR.Reset()
}

func (e *Engine) updateLatency() {
	if e.cfg.UseLookahead {
		e.latency = e.lookahead.DelaySamples()
		return
	}
	e.latency = 0
}

func (e *Engine) updateStats(s BlockStats) {
	e.stats = s
	if !e.cfg.Debug || s.ApproxEqual(e.previous) {
		return
	}
	e.previous = s
	e.emitted++
	e.reporter.Report(s)
}

func applyGain(left, right, gains []float64) BlockStats {
	s := BlockStats{Duck: 1}
	for i, g := range gains {
		l, r := left[i], right[i]
		s.PrePeak = max(s.PrePeak, math.Abs(l), math.Abs(r))
		s.Duck = min(s.Duck, g)
		l *= g
		r *= g
		left[i], right[i] = l, r
		s.PostPeak = max(s.PostPeak, math.Abs(l), math.Abs(r))
	}
	return s
}

func transformFor(shape string) Transform {
	if shape == ShapeNone {
		return nil
	}
	return RampTransform{}
}
