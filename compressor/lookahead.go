package compressor

import (
	"fmt"

	"github.com/cwbudde/algo-comp/dsp"
)

// Transform reshapes the not-yet-read part of a lookahead ring between
// PushSamples and ReadSamples.
type Transform interface {
	Apply(w Window)
}

// TransformFunc adapts a function to Transform.
type TransformFunc func(w Window)

// Apply calls f(w).
func (f TransformFunc) Apply(w Window) { f(w) }

// Window is the unread region of a lookahead ring, indexed oldest first.
// The last Pushed() values are the ones pushed since the previous read.
type Window struct {
	ring   *dsp.Ring
	n      int
	pushed int
}

// Len returns the number of unread values (delay plus pending samples).
func (w Window) Len() int { return w.n }

// Pushed returns how many of the newest values were pushed this cycle.
func (w Window) Pushed() int { return w.pushed }

// Delay returns the number of unread values older than this cycle's pushes.
func (w Window) Delay() int { return w.n - w.pushed }

// At returns value i, 0 being the oldest unread one.
func (w Window) At(i int) float64 { return w.ring.Read(w.n - i) }

// Set overwrites value i.
func (w Window) Set(i int, v float64) { w.ring.Set(w.n-i, v) }

// LookaheadProcessor delays a dB gain sequence by a fixed number of samples
// through a ring primed with 0 dB. The write cursor leads the read cursor by
// exactly the delay once every pushed block has been read back.
type LookaheadProcessor struct {
	blockSize    int
	sampleRate   float64
	delaySeconds float64
	delay        int

	ring      *dsp.Ring
	pending   int
	transform Transform
}

// NewLookaheadProcessor creates an unprepared processor for blocks of at most
// blockSize samples.
func NewLookaheadProcessor(blockSize int) (*LookaheadProcessor, error) {
	if blockSize <= 0 {
		return nil, invalidf("lookahead block size must be > 0: %d", blockSize)
	}
	return &LookaheadProcessor{blockSize: blockSize}, nil
}

// Prepare allocates the ring with the given capacity and primes it. The
// capacity must hold at least two blocks and the configured delay plus one
// block.
func (l *LookaheadProcessor) Prepare(sampleRate float64, capacity int) error {
	if err := validateSampleRate(sampleRate); err != nil {
		return err
	}
	if capacity < 2*l.blockSize {
		return invalidf("lookahead capacity %d is below two blocks (%d)", capacity, 2*l.blockSize)
	}
	delay := secondsToSamples(l.delaySeconds, sampleRate)
	if delay > capacity-l.blockSize {
		return invalidf("lookahead delay of %d samples exceeds capacity %d minus one block", delay, capacity)
	}
	ring, err := dsp.NewRing(capacity, 0)
	if err != nil {
		return fmt.Errorf("lookahead ring: %w", err)
	}
	l.sampleRate = sampleRate
	l.ring = ring
	l.delay = delay
	l.pending = 0
	return nil
}

// SetDelayTime sets the lookahead delay. On a prepared processor the ring is
// re-primed, which drops anything in flight; only call it while idle.
func (l *LookaheadProcessor) SetDelayTime(seconds float64) error {
	if err := validateDelay(seconds); err != nil {
		return err
	}
	if l.ring == nil {
		l.delaySeconds = seconds
		return nil
	}
	delay := secondsToSamples(seconds, l.sampleRate)
	if delay > l.ring.Len()-l.blockSize {
		return invalidf("lookahead delay of %d samples exceeds capacity %d minus one block", delay, l.ring.Len())
	}
	l.delaySeconds = seconds
	l.delay = delay
	l.Reset()
	return nil
}

// SetTransform installs the transform run by Process; nil disables it.
func (l *LookaheadProcessor) SetTransform(t Transform) {
	l.transform = t
}

// DelayTime returns the delay in seconds.
func (l *LookaheadProcessor) DelayTime() float64 { return l.delaySeconds }

// DelaySamples returns the delay in samples, valid after Prepare.
func (l *LookaheadProcessor) DelaySamples() int { return l.delay }

// Capacity returns the ring size, 0 before Prepare.
func (l *LookaheadProcessor) Capacity() int {
	if l.ring == nil {
		return 0
	}
	return l.ring.Len()
}

// Reset primes every slot with 0 dB and drops pending samples.
func (l *LookaheadProcessor) Reset() {
	if l.ring != nil {
		l.ring.Fill(0)
	}
	l.pending = 0
}

// PushSamples writes dB values at the write cursor.
func (l *LookaheadProcessor) PushSamples(in []float64) {
	l.mustBePrepared()
	if l.delay+l.pending+len(in) > l.ring.Len() {
		panic(fmt.Sprintf("compressor: lookahead push of %d samples overruns ring of %d (delay %d, pending %d)",
			len(in), l.ring.Len(), l.delay, l.pending))
	}
	l.ring.WriteBlock(in)
	l.pending += len(in)
}

// Process runs the installed transform over the unread region. Without a
// transform it does nothing.
func (l *LookaheadProcessor) Process() {
	l.mustBePrepared()
	if l.transform == nil {
		return
	}
	l.transform.Apply(Window{ring: l.ring, n: l.delay + l.pending, pushed: l.pending})
}

// ReadSamples reads len(out) delayed values starting at the read cursor and
// advances it.
func (l *LookaheadProcessor) ReadSamples(out []float64) {
	l.mustBePrepared()
	if len(out) > l.pending {
		panic(fmt.Sprintf("compressor: lookahead read of %d samples with only %d pushed", len(out), l.pending))
	}
	l.ring.ReadBlock(out, l.delay+l.pending-len(out))
	l.pending -= len(out)
}

func (l *LookaheadProcessor) mustBePrepared() {
	if l.ring == nil {
		panic("compressor: lookahead processor used before Prepare")
	}
}

// RampTransform fades gain reduction in linearly over the delay window, so
// the gain starts falling up to Delay() samples before the sample that
// caused it.
type RampTransform struct{}

// Apply implements Transform.
func (RampTransform) Apply(w Window) {
	delay := w.Delay()
	if delay == 0 {
		return
	}
	var next, step float64
	i := w.Len() - 1
	first := w.Len() - w.Pushed()
	for ; i >= first; i-- {
		v := w.At(i)
		if v > next {
			w.Set(i, next)
			next += step
		} else {
			step = -v / float64(delay)
			next = v + step
		}
	}
	// Older values only need touching while the ramp still reaches them.
	for ; i >= 0; i-- {
		v := w.At(i)
		if v <= next {
			break
		}
		w.Set(i, next)
		next += step
	}
}
