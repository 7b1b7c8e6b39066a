//go:build js && wasm

package main

import (
	"syscall/js"
	"unsafe"

	"github.com/cwbudde/algo-comp/compressor"
	"github.com/cwbudde/algo-comp/preset"
)

var (
	globalEngine *compressor.Engine
	ioBuffer     []float32
)

func main() {
	// Keep program running
	c := make(chan struct{})

	js.Global().Set("wasmInit", js.FuncOf(wasmInit))
	js.Global().Set("wasmSetParam", js.FuncOf(wasmSetParam))
	js.Global().Set("wasmLoadPreset", js.FuncOf(wasmLoadPreset))
	js.Global().Set("wasmGetBufferPointer", js.FuncOf(wasmGetBufferPointer))
	js.Global().Set("wasmProcessBlock", js.FuncOf(wasmProcessBlock))
	js.Global().Set("wasmLatency", js.FuncOf(wasmLatency))
	js.Global().Set("wasmGetMemoryBuffer", js.FuncOf(wasmGetMemoryBuffer))

	println("WASM compressor module loaded")
	<-c
}

func wasmInit(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return nil
	}
	cfg := compressor.DefaultConfig()
	cfg.SampleRate = float64(args[0].Int())
	if len(args) > 1 {
		cfg.BlockSize = args[1].Int()
	}
	// The browser console is no place for per-block stats.
	cfg.Debug = false

	engine, err := compressor.NewEngine(cfg)
	if err != nil {
		println("Compressor init failed:", err.Error())
		return nil
	}
	globalEngine = engine
	ioBuffer = make([]float32, cfg.BlockSize*2)

	println("Compressor initialized at", int(cfg.SampleRate), "Hz, block", cfg.BlockSize)
	return nil
}

// wasmSetParam(name, value) returns an error string, or null on success.
func wasmSetParam(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 || globalEngine == nil {
		return "not initialized"
	}
	name := args[0].String()
	v := args[1]

	var err error
	switch name {
	case "threshold":
		err = globalEngine.SetThreshold(v.Float())
	case "ratio":
		err = globalEngine.SetRatio(v.Float())
	case "knee":
		err = globalEngine.SetKnee(v.Float())
	case "attack_ms":
		err = globalEngine.SetAttackTime(v.Float() / 1000)
	case "lookahead":
		err = globalEngine.SetLookahead(v.Truthy())
	case "lookahead_ms":
		err = globalEngine.SetLookaheadDelay(v.Float() / 1000)
	case "shape":
		err = globalEngine.SetLookaheadShape(v.String())
	case "hpf":
		err = globalEngine.SetSidechainHighpass(v.Float())
	case "bypass":
		err = globalEngine.SetBypass(v.Truthy())
	case "fast_gain":
		err = globalEngine.SetFastGain(v.Truthy())
	default:
		return "unknown parameter: " + name
	}
	if err != nil {
		return err.Error()
	}
	return nil
}

// wasmLoadPreset(json) applies a preset string on top of the current
// settings.
func wasmLoadPreset(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 || globalEngine == nil {
		return "not initialized"
	}
	f, err := preset.Decode([]byte(args[0].String()))
	if err != nil {
		return err.Error()
	}
	cfg := globalEngine.Config()
	if err := preset.ApplyFile(&cfg, f); err != nil {
		return err.Error()
	}
	cfg.Debug = false
	if err := globalEngine.Configure(cfg); err != nil {
		return err.Error()
	}
	return nil
}

// JS writes interleaved stereo frames here before wasmProcessBlock and reads
// the compressed frames back from the same place.
func wasmGetBufferPointer(this js.Value, args []js.Value) interface{} {
	if len(ioBuffer) == 0 {
		return 0
	}
	ptr := &ioBuffer[0]
	return js.ValueOf(uintptr(unsafe.Pointer(ptr)))
}

func wasmProcessBlock(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 || globalEngine == nil {
		return nil
	}
	numFrames := args[0].Int()
	if maxFrames := len(ioBuffer) / 2; numFrames > maxFrames {
		numFrames = maxFrames
	}
	if numFrames <= 0 {
		return nil
	}

	s := globalEngine.ProcessInterleaved(ioBuffer[:numFrames*2])
	return js.ValueOf(map[string]interface{}{
		"prePeakDB":  compressor.LinearToDecibels(s.PrePeak),
		"compressDB": compressor.LinearToDecibels(s.Duck),
		"postPeakDB": compressor.LinearToDecibels(s.PostPeak),
	})
}

func wasmLatency(this js.Value, args []js.Value) interface{} {
	if globalEngine == nil {
		return 0
	}
	return globalEngine.Latency()
}

func wasmGetMemoryBuffer(this js.Value, args []js.Value) interface{} {
	// Return WASM memory buffer for access from JS
	return js.Global().Get("Go").Get("_inst").Get("exports").Get("mem").Get("buffer")
}
