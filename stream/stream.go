// Package stream plugs the compressor into beep's pull model.
package stream

import (
	"github.com/gopxl/beep"

	"github.com/cwbudde/algo-comp/compressor"
)

// Compressor is a beep.Streamer that compresses another streamer. Pulls of
// any size are split into chunks no longer than the engine block size.
type Compressor struct {
	src       beep.Streamer
	engine    *compressor.Engine
	blockSize int

	flushTail bool
	tail      int
	drained   bool
	last      compressor.BlockStats
}

// Option customizes a Compressor.
type Option func(*Compressor)

// WithTail makes the streamer emit the engine latency worth of extra frames
// after the source drains, so lookahead does not cut off the end.
func WithTail() Option {
	return func(c *Compressor) { c.flushTail = true }
}

// New wraps src. The engine must not be processed by anything else while the
// streamer is in use.
func New(src beep.Streamer, engine *compressor.Engine, opts ...Option) *Compressor {
	c := &Compressor{
		src:       src,
		engine:    engine,
		blockSize: engine.Config().BlockSize,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// Stream implements beep.Streamer.
func (c *Compressor) Stream(samples [][2]float64) (n int, ok bool) {
	for n < len(samples) {
		chunk := samples[n:min(n+c.blockSize, len(samples))]
		got := c.pull(chunk)
		if got == 0 {
			break
		}
		c.last = c.engine.ProcessFrames(chunk[:got])
		n += got
		if got < len(chunk) {
			break
		}
	}
	return n, n > 0
}

// Err implements beep.Streamer.
func (c *Compressor) Err() error {
	return c.src.Err()
}

// Stats returns the stats of the last processed chunk.
func (c *Compressor) Stats() compressor.BlockStats { return c.last }

// pull fills chunk from the source, then from the silent tail once the
// source is drained.
func (c *Compressor) pull(chunk [][2]float64) int {
	if !c.drained {
		got, ok := c.src.Stream(chunk)
		if !ok || got == 0 {
			c.drained = true
			if c.flushTail {
				c.tail = c.engine.Latency()
			}
		}
		if got > 0 {
			return got
		}
	}
	got := min(c.tail, len(chunk))
	for i := range chunk[:got] {
		chunk[i] = [2]float64{}
	}
	c.tail -= got
	return got
}
