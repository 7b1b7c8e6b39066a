package compressor

import (
	"errors"
	"testing"
)

func newPreparedLookahead(t *testing.T, block int, delaySeconds, sampleRate float64, capacity int) *LookaheadProcessor {
	t.Helper()
	l, err := NewLookaheadProcessor(block)
	if err != nil {
		t.Fatalf("NewLookaheadProcessor: %v", err)
	}
	if err := l.SetDelayTime(delaySeconds); err != nil {
		t.Fatalf("SetDelayTime: %v", err)
	}
	if err := l.Prepare(sampleRate, capacity); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	return l
}

func TestLookaheadDelaysAcrossBlocks(t *testing.T) {
	// 3 samples of delay at 1 kHz, blocks of 4.
	l := newPreparedLookahead(t, 4, 0.003, 1000, 8)
	if l.DelaySamples() != 3 {
		t.Fatalf("expected delay of 3 samples, got %d", l.DelaySamples())
	}

	var got []float64
	out := make([]float64, 4)
	for b := 0; b < 4; b++ {
		in := make([]float64, 4)
		for i := range in {
			in[i] = -float64(b*4 + i + 1)
		}
		l.PushSamples(in)
		l.Process()
		l.ReadSamples(out)
		got = append(got, out...)
	}

	// The first 3 values come from the 0 dB priming.
	for i, v := range got {
		want := 0.0
		if i >= 3 {
			want = -float64(i - 2)
		}
		if v != want {
			t.Fatalf("sample %d: expected %f, got %f (all %v)", i, want, v, got)
		}
	}
}

func TestLookaheadPartialBlocks(t *testing.T) {
	l := newPreparedLookahead(t, 4, 0.002, 1000, 8)
	l.PushSamples([]float64{-1, -2, -3})
	out := make([]float64, 3)
	l.ReadSamples(out)
	if out[0] != 0 || out[1] != 0 || out[2] != -1 {
		t.Fatalf("expected [0 0 -1], got %v", out)
	}
	l.PushSamples([]float64{-4})
	l.ReadSamples(out[:1])
	if out[0] != -2 {
		t.Fatalf("expected -2, got %f", out[0])
	}
}

func TestLookaheadZeroDelayPassesThrough(t *testing.T) {
	l := newPreparedLookahead(t, 4, 0, 1000, 8)
	in := []float64{-1, -2, -3, -4}
	l.PushSamples(in)
	l.Process()
	out := make([]float64, 4)
	l.ReadSamples(out)
	for i := range in {
		if out[i] != in[i] {
			t.Fatalf("expected pass-through %v, got %v", in, out)
		}
	}
}

func TestLookaheadResetPrimesWithZero(t *testing.T) {
	l := newPreparedLookahead(t, 4, 0.004, 1000, 8)
	l.PushSamples([]float64{-9, -9, -9, -9})
	l.ReadSamples(make([]float64, 4))
	l.Reset()
	l.PushSamples([]float64{-1, -1, -1, -1})
	out := make([]float64, 4)
	l.ReadSamples(out)
	for i, v := range out {
		if v != 0 {
			t.Fatalf("sample %d: expected primed 0 dB after Reset, got %f", i, v)
		}
	}
}

func TestLookaheadCapacityErrors(t *testing.T) {
	l, _ := NewLookaheadProcessor(4)
	if err := l.Prepare(1000, 7); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected capacity below two blocks to fail, got %v", err)
	}
	_ = l.SetDelayTime(0.005)
	if err := l.Prepare(1000, 8); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected delay beyond capacity to fail, got %v", err)
	}
	if err := l.SetDelayTime(-1); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected negative delay to fail, got %v", err)
	}

	l = newPreparedLookahead(t, 4, 0.001, 1000, 8)
	if err := l.SetDelayTime(0.005); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected runtime delay beyond capacity to fail, got %v", err)
	}
	if l.DelaySamples() != 1 {
		t.Fatalf("rejected delay must not be applied, got %d", l.DelaySamples())
	}
	if _, err := NewLookaheadProcessor(0); err == nil {
		t.Fatalf("expected zero block size to fail")
	}
}

func TestLookaheadPanicsOnMisuse(t *testing.T) {
	cases := map[string]func(l *LookaheadProcessor){
		"read more than pushed": func(l *LookaheadProcessor) {
			l.PushSamples([]float64{-1})
			l.ReadSamples(make([]float64, 2))
		},
		"push overrun": func(l *LookaheadProcessor) {
			l.PushSamples(make([]float64, 4))
			l.PushSamples(make([]float64, 4))
		},
	}
	for name, fn := range cases {
		t.Run(name, func(t *testing.T) {
			l := newPreparedLookahead(t, 4, 0.002, 1000, 8)
			defer func() {
				if recover() == nil {
					t.Fatalf("expected panic")
				}
			}()
			fn(l)
		})
	}
	t.Run("unprepared", func(t *testing.T) {
		l, _ := NewLookaheadProcessor(4)
		defer func() {
			if recover() == nil {
				t.Fatalf("expected panic")
			}
		}()
		l.Process()
	})
}

func TestRampTransformFadesIn(t *testing.T) {
	// Delay 4, one block of 4 with a -8 dB step on its last sample.
	l := newPreparedLookahead(t, 4, 0.004, 1000, 8)
	l.SetTransform(RampTransform{})
	l.PushSamples([]float64{0, 0, 0, -8})
	l.Process()

	out := make([]float64, 4)
	l.ReadSamples(out)
	for i, v := range out {
		if v != 0 {
			t.Fatalf("sample %d: expected primed 0 dB, got %f", i, v)
		}
	}

	// The step lands at the end of the second read block; the three values
	// before it fade in linearly.
	l.PushSamples([]float64{-8, -8, -8, -8})
	l.Process()
	l.ReadSamples(out)
	want := []float64{-2, -4, -6, -8}
	for i := range want {
		if diff := out[i] - want[i]; diff > 1e-12 || diff < -1e-12 {
			t.Fatalf("expected %v, got %v", want, out)
		}
	}

	l.PushSamples([]float64{-8, -8, -8, -8})
	l.Process()
	l.ReadSamples(out)
	for i, v := range out {
		if v != -8 {
			t.Fatalf("sample %d: expected held -8 dB, got %f", i, v)
		}
	}
}

func TestRampTransformNeverRaisesGain(t *testing.T) {
	l := newPreparedLookahead(t, 8, 0.006, 1000, 16)
	l.SetTransform(RampTransform{})
	blocks := [][]float64{
		{0, -1, -3, -2, 0, 0, -12, -12},
		{-6, -6, 0, 0, 0, 0, 0, -20},
		{0, 0, 0, 0, 0, 0, 0, 0},
	}
	var raw, shaped []float64
	out := make([]float64, 8)
	ref := newPreparedLookahead(t, 8, 0.006, 1000, 16)
	refOut := make([]float64, 8)
	for _, b := range blocks {
		in := append([]float64(nil), b...)
		l.PushSamples(in)
		l.Process()
		l.ReadSamples(out)
		shaped = append(shaped, out...)

		ref.PushSamples(b)
		ref.ReadSamples(refOut)
		raw = append(raw, refOut...)
	}
	for i := range raw {
		if shaped[i] > raw[i]+1e-12 {
			t.Fatalf("sample %d: ramp raised gain from %f to %f", i, raw[i], shaped[i])
		}
	}
}

func TestTransformFuncSeesWindow(t *testing.T) {
	l := newPreparedLookahead(t, 4, 0.002, 1000, 8)
	var gotLen, gotPushed, gotDelay int
	l.SetTransform(TransformFunc(func(w Window) {
		gotLen, gotPushed, gotDelay = w.Len(), w.Pushed(), w.Delay()
		w.Set(0, -42)
	}))
	l.PushSamples([]float64{-1, -2, -3})
	l.Process()
	if gotLen != 5 || gotPushed != 3 || gotDelay != 2 {
		t.Fatalf("unexpected window len=%d pushed=%d delay=%d", gotLen, gotPushed, gotDelay)
	}
	out := make([]float64, 3)
	l.ReadSamples(out)
	if out[0] != -42 {
		t.Fatalf("expected transform edit to be read back first, got %v", out)
	}
}
