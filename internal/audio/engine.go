// SPDX-License-Identifier: MIT
/*
Package audio captures live input with PortAudio and feeds it, one buffer per
callback, into an analysis.SampleProcessor:
- Mono mixdown into a pre-allocated float buffer
- Noise gate with branchless peak detection; gated buffers are fed as silence
- Optional WAV recording of the raw input

Thread Safety:
- Atomic counters and gate threshold; the recorder is mutex guarded
- Pre-allocates buffers to avoid GC in hot path
- Locks OS thread during audio processing
*/
package audio

import (
	"fmt"
	"math"
	"os"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/gordonklaus/portaudio"

	"beatsense/internal/analysis"
	"beatsense/internal/config"
	"beatsense/internal/log"
)

// int32Scale maps a full-scale int32 sample onto [-1, 1).
const int32Scale = 1.0 / (1 << 31)

type Engine struct {
	// Core configuration and state.
	config *config.AudioConfig
	sink   analysis.SampleProcessor
	now    func() time.Time

	// Audio input handling.
	inputBuffer  []int32
	inputDevice  *portaudio.DeviceInfo
	inputLatency time.Duration
	inputStream  *portaudio.Stream

	// Mono float buffer handed to the sink.
	mono []float64

	// Noise gate peak threshold in int32 amplitude; 0 disables it.
	gateThreshold atomic.Int32

	// Counters, read by Stats.
	buffers    atomic.Uint64
	gated      atomic.Uint64
	sinkErrors atomic.Uint64

	// Recording state and buffers.
	recMu       sync.Mutex  // Guards the encoder between the callback and Stop.
	isRecording atomic.Bool // Lets the callback skip the lock when idle.
	outputFile  *os.File
	wavEncoder  *wav.Encoder
	sampleBuf   *audio.IntBuffer // Reusable buffer for format conversion
}

// EngineStats counts processed buffers.
type EngineStats struct {
	Buffers    uint64
	Gated      uint64
	SinkErrors uint64
}

// NewEngine opens nothing yet; it resolves the input device and sizes the
// buffers. Call StartInputStream to begin capture.
func NewEngine(cfg *config.AudioConfig, sink analysis.SampleProcessor) (*Engine, error) {
	if sink == nil {
		return nil, fmt.Errorf("audio engine needs a sample sink: %w", analysis.ErrInvalidInput)
	}
	inputDevice, err := InputDevice(cfg.InputDevice)
	if err != nil {
		return nil, err
	}

	engine := newEngine(cfg, sink)
	engine.inputDevice = inputDevice
	if cfg.LowLatency {
		engine.inputLatency = inputDevice.DefaultLowInputLatency
	} else {
		engine.inputLatency = inputDevice.DefaultHighInputLatency
	}

	log.Infof("Audio: Engine ready on %q (%d ch, %.0f Hz, %d frames, latency %s)",
		inputDevice.Name, cfg.InputChannels, cfg.SampleRate, cfg.FramesPerBuffer, engine.inputLatency)
	return engine, nil
}

// newEngine allocates the buffers without touching PortAudio.
func newEngine(cfg *config.AudioConfig, sink analysis.SampleProcessor) *Engine {
	e := &Engine{
		config:      cfg,
		sink:        sink,
		now:         time.Now,
		inputBuffer: make([]int32, cfg.FramesPerBuffer*cfg.InputChannels),
		mono:        make([]float64, cfg.FramesPerBuffer),
	}
	if err := e.SetNoiseGate(cfg.NoiseGate); err != nil {
		log.Warnf("Audio: %v, gate disabled", err)
	}
	return e
}

func (e *Engine) StartInputStream() error {
	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Channels: e.config.InputChannels,
			Device:   e.inputDevice,
			Latency:  e.inputLatency,
		},
		Output: portaudio.StreamDeviceParameters{
			Channels: 0, // No output device
			Device:   nil,
		},
		FramesPerBuffer: e.config.FramesPerBuffer,
		SampleRate:      e.config.SampleRate,
	}

	stream, err := portaudio.OpenStream(params, e.processInputStream)
	if err != nil {
		return fmt.Errorf("failed to open input stream: %w", err)
	}
	e.inputStream = stream

	if err := e.inputStream.Start(); err != nil {
		e.inputStream.Close()
		e.inputStream = nil
		return fmt.Errorf("failed to start input stream: %w", err)
	}

	log.Info("Audio: Input stream started")
	return nil
}

func (e *Engine) StopInputStream() error {
	if e.inputStream != nil {
		if err := e.inputStream.Stop(); err != nil {
			return err
		}

		if err := e.inputStream.Close(); err != nil {
			return err
		}

		e.inputStream = nil
		log.Info("Audio: Input stream stopped")
	}

	return nil
}

// processInputStream is the core audio processing callback.
// Performance Critical:
// - Runs in a dedicated OS thread (LockOSThread)
// - Uses pre-allocated buffers only
// - No dynamic allocations in the hot path
func (e *Engine) processInputStream(in []int32) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	copy(e.inputBuffer, in)
	e.processBuffer(e.inputBuffer, e.now())
	e.record(e.inputBuffer)
}

// processBuffer mixes the interleaved buffer down to mono and hands it to
// the sink. A closed gate sends silence so downstream state keeps ticking.
// Performance Critical (Hot Path):
// - No allocations
// - Branchless noise gate implementation
func (e *Engine) processBuffer(buffer []int32, ts time.Time) {
	e.buffers.Add(1)

	open := e.gateOpen(buffer)
	channels := e.config.InputChannels
	frames := min(len(e.mono), len(buffer)/channels)
	if !open {
		e.gated.Add(1)
		clear(e.mono)
	} else if channels == 1 {
		for i := range frames {
			e.mono[i] = float64(buffer[i]) * int32Scale
		}
	} else {
		norm := int32Scale / float64(channels)
		for i := range frames {
			var sum float64
			frame := buffer[i*channels : (i+1)*channels]
			for _, s := range frame {
				sum += float64(s)
			}
			e.mono[i] = sum * norm
		}
	}
	// Short callbacks leave the tail silent.
	clear(e.mono[frames:])

	if err := e.sink.ProcessSamples(e.mono, ts); err != nil {
		e.sinkErrors.Add(1)
	}
}

// peakAmplitude returns max |sample| without branching.
func peakAmplitude(buffer []int32) int32 {
	var maxAmplitude int32
	for _, sample := range buffer {
		mask := sample >> 31
		amplitude := (sample ^ mask) - mask
		diff := amplitude - maxAmplitude
		maxAmplitude += (diff & (diff >> 31)) ^ diff
	}
	return maxAmplitude
}

// Stats returns the buffer counters.
func (e *Engine) Stats() EngineStats {
	return EngineStats{
		Buffers:    e.buffers.Load(),
		Gated:      e.gated.Load(),
		SinkErrors: e.sinkErrors.Load(),
	}
}

// Device returns the resolved input device, or nil.
func (e *Engine) Device() *portaudio.DeviceInfo { return e.inputDevice }

// Level converts an int32 amplitude to a [0,1] fraction of full scale.
func Level(amplitude int32) float64 {
	return float64(amplitude) / float64(math.MaxInt32)
}
