package dsp

import "fmt"

// Ring is a fixed-capacity circular buffer of samples. The write cursor
// always points at the oldest slot, which is the next one to be overwritten.
type Ring struct {
	buffer   []float64
	writePos int
	size     int
}

// NewRing creates a ring with the given capacity, every slot set to fill.
func NewRing(size int, fill float64) (*Ring, error) {
	if size <= 0 {
		return nil, fmt.Errorf("ring size must be > 0: %d", size)
	}
	r := &Ring{
		buffer: make([]float64, size),
		size:   size,
	}
	r.Fill(fill)
	return r, nil
}

// Len returns the ring capacity.
func (r *Ring) Len() int {
	return r.size
}

// Write appends one sample at the write cursor.
func (r *Ring) Write(sample float64) {
	r.buffer[r.writePos] = sample
	r.writePos++
	if r.writePos == r.size {
		r.writePos = 0
	}
}

// WriteBlock appends all samples of in, wrapping around as needed.
func (r *Ring) WriteBlock(in []float64) {
	if len(in) > r.size {
		panic(fmt.Sprintf("dsp: ring write of %d samples exceeds capacity %d", len(in), r.size))
	}
	n := copy(r.buffer[r.writePos:], in)
	if n < len(in) {
		copy(r.buffer, in[n:])
	}
	r.writePos = (r.writePos + len(in)) % r.size
}

// Read returns the sample written age writes ago. Age 1 is the most recent
// sample, age Len() the oldest one still held.
func (r *Ring) Read(age int) float64 {
	return r.buffer[r.index(age)]
}

// Set overwrites the sample written age writes ago.
func (r *Ring) Set(age int, v float64) {
	r.buffer[r.index(age)] = v
}

// ReadBlock fills out, oldest first, with the len(out) samples that precede
// the lag most recent writes.
func (r *Ring) ReadBlock(out []float64, lag int) {
	n := len(out)
	if n+lag > r.size {
		panic(fmt.Sprintf("dsp: ring read of %d samples at lag %d exceeds capacity %d", n, lag, r.size))
	}
	start := r.writePos - lag - n
	if start < 0 {
		start += r.size
	}
	c := copy(out, r.buffer[start:])
	if c < n {
		copy(out[c:], r.buffer)
	}
}

// Fill sets every slot to v and rewinds the write cursor.
func (r *Ring) Fill(v float64) {
	for i := range r.buffer {
		r.buffer[i] = v
	}
	r.writePos = 0
}

// Reset clears the ring to zero.
func (r *Ring) Reset() {
	r.Fill(0)
}

func (r *Ring) index(age int) int {
	if age < 1 || age > r.size {
		panic(fmt.Sprintf("dsp: ring age %d out of range [1, %d]", age, r.size))
	}
	i := r.writePos - age
	if i < 0 {
		i += r.size
	}
	return i
}
