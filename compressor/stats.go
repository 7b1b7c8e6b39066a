package compressor

import (
	"fmt"
	"io"
	"math"
)

// statsTolerance is the per-field difference below which two blocks count as
// unchanged for diagnostics.
const statsTolerance = 1e-4

// BlockStats summarizes one processed block.
type BlockStats struct {
	PrePeak  float64 // max |sample| before gain
	Duck     float64 // smallest linear gain applied
	PostPeak float64 // max |sample| after gain
}

// initialStats is what a silent, unattenuated block produces.
var initialStats = BlockStats{PrePeak: 0, Duck: 1, PostPeak: 0}

// ApproxEqual reports whether every field of s and o differs by less than
// 1e-4.
func (s BlockStats) ApproxEqual(o BlockStats) bool {
	return approxEqual(s.PrePeak, o.PrePeak) &&
		approxEqual(s.Duck, o.Duck) &&
		approxEqual(s.PostPeak, o.PostPeak)
}

// String formats the stats in dB as a diagnostic line.
func (s BlockStats) String() string {
	return fmt.Sprintf("pre_peak:  %10.2f dB  compress:  %10.2f dB  post_peak: %10.2f dB",
		LinearToDecibels(s.PrePeak), LinearToDecibels(s.Duck), LinearToDecibels(s.PostPeak))
}

func approxEqual(l, r float64) bool {
	return math.Abs(l-r) < statsTolerance
}

// Reporter receives block stats whenever they change.
type Reporter interface {
	Report(s BlockStats)
}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(s BlockStats)

// Report calls f(s).
func (f ReporterFunc) Report(s BlockStats) { f(s) }

// WriterReporter prints one diagnostic line per report.
type WriterReporter struct {
	W io.Writer
}

// Report implements Reporter.
func (r WriterReporter) Report(s BlockStats) {
	fmt.Fprintln(r.W, s.String())
}
