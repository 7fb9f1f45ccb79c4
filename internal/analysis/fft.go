// SPDX-License-Identifier: MIT
package analysis

import (
	"fmt"
	"math"
	"math/cmplx"
	"strings"
	"sync"
	"time"

	"beatsense/internal/log"
	"beatsense/pkg/bitint"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/dsp/window"
)

// WindowFunc defines the type for selecting an FFT window function.
type WindowFunc int

// Enum for available window functions.
const (
	BartlettHann WindowFunc = iota
	Blackman
	BlackmanNuttall
	Hann
	Hamming
	Lanczos
	Nuttall
)

func (w WindowFunc) String() string {
	switch w {
	case BartlettHann:
		return "bartletthann"
	case Blackman:
		return "blackman"
	case BlackmanNuttall:
		return "blackmannuttall"
	case Hann:
		return "hann"
	case Hamming:
		return "hamming"
	case Lanczos:
		return "lanczos"
	case Nuttall:
		return "nuttall"
	default:
		return fmt.Sprintf("window(%d)", int(w))
	}
}

// FFTConfig describes an analyser. The defaults mirror a browser
// AnalyserNode: 2048 point Blackman window, 0.8 smoothing, -90..-10 dB.
type FFTConfig struct {
	Size        int        // Number of points (power of 2). Produces Size/2 bins.
	SampleRate  float64    // Input sample rate in Hz.
	Window      WindowFunc // Window applied before the transform.
	Smoothing   float64    // Time constant in [0,1] blending each frame with the previous one.
	MinDecibels float64    // Maps to byte 0.
	MaxDecibels float64    // Maps to byte 255.
}

// DefaultFFTConfig returns the analyser defaults for the given sample rate.
func DefaultFFTConfig(sampleRate float64) FFTConfig {
	return FFTConfig{
		Size:        2048,
		SampleRate:  sampleRate,
		Window:      Blackman,
		Smoothing:   0.8,
		MinDecibels: -90,
		MaxDecibels: -10,
	}
}

// Validate reports ErrInvalidInput for an unusable configuration.
func (c FFTConfig) Validate() error {
	switch {
	case !bitint.IsPowerOfTwo(c.Size) || c.Size < 4:
		return fmt.Errorf("fft size must be a power of 2 and at least 4, got %d: %w", c.Size, ErrInvalidInput)
	case !(c.SampleRate > 0):
		return fmt.Errorf("sample rate must be positive, got %f: %w", c.SampleRate, ErrInvalidInput)
	case !(c.Smoothing >= 0 && c.Smoothing <= 1):
		return fmt.Errorf("smoothing must be within [0,1], got %f: %w", c.Smoothing, ErrInvalidInput)
	case !(c.MinDecibels < c.MaxDecibels):
		return fmt.Errorf("min decibels %.1f must be below max decibels %.1f: %w", c.MinDecibels, c.MaxDecibels, ErrInvalidInput)
	}
	return nil
}

// Pre-allocated buffers for FFT calculations.
type fftWorkspace struct {
	history    []float64    // Most recent Size input samples, oldest first.
	input      []float64    // Windowed copy of history fed to the transform.
	fftOutput  []complex128 // Size/2+1 complex coefficients.
	smoothed   []float64    // Smoothed linear magnitudes, Size/2 bins.
	window     []float64    // Pre-calculated window coefficients.
	magnitudes []uint8      // Byte-scaled magnitudes, Size/2 bins.
	timeDomain []uint8      // Byte-scaled recent samples, Size/2 entries.
	mu         sync.RWMutex // Protects the byte buffers against concurrent readers.
}

// FFTProcessor converts PCM buffers into the byte spectra that the spectral
// frontend consumes. Processing is allocation free once constructed.
type FFTProcessor struct {
	fftCalculator *fourier.FFT // Reusable FFT calculator instance.
	cfg           FFTConfig
	dbScale       float64 // 255 / (MaxDecibels - MinDecibels)
	workspace     fftWorkspace
}

// Compile-time checks for interface implementations.
var (
	_ SampleProcessor  = (*FFTProcessor)(nil)
	_ SpectrumProvider = (*FFTProcessor)(nil)
	_ Closer           = (*FFTProcessor)(nil)
)

// NewFFTProcessor validates cfg and pre-allocates every buffer the analyser needs.
func NewFFTProcessor(cfg FFTConfig) (*FFTProcessor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	windowCoeffs := make([]float64, cfg.Size)
	applyWindow(windowCoeffs, cfg.Window)
	bins := cfg.Size / 2

	log.Infof("Analysis: Initializing FFTProcessor (Size: %d, SampleRate: %.1f Hz, Window: %v, Smoothing: %.2f)",
		cfg.Size, cfg.SampleRate, cfg.Window, cfg.Smoothing)

	p := &FFTProcessor{
		fftCalculator: fourier.NewFFT(cfg.Size),
		cfg:           cfg,
		dbScale:       maxMagnitude / (cfg.MaxDecibels - cfg.MinDecibels),
		workspace: fftWorkspace{
			history:    make([]float64, cfg.Size),
			input:      make([]float64, cfg.Size),
			fftOutput:  make([]complex128, bins+1),
			smoothed:   make([]float64, bins),
			window:     windowCoeffs,
			magnitudes: make([]uint8, bins),
			timeDomain: make([]uint8, bins),
		},
	}
	for i := range p.workspace.timeDomain {
		p.workspace.timeDomain[i] = 128
	}
	return p, nil
}

// ProcessSamples shifts samples into the analysis window, transforms it and
// refreshes the byte spectra. Samples are expected in [-1, 1).
func (p *FFTProcessor) ProcessSamples(samples []float64, _ time.Time) error {
	if len(samples) == 0 {
		return fmt.Errorf("fft: empty sample buffer: %w", ErrInvalidInput)
	}
	ws := &p.workspace
	size := p.cfg.Size

	// --- 1. Slide the analysis window ---
	if len(samples) >= size {
		copy(ws.history, samples[len(samples)-size:])
	} else {
		copy(ws.history, ws.history[len(samples):])
		copy(ws.history[size-len(samples):], samples)
	}
	for i, s := range ws.history {
		ws.input[i] = s * ws.window[i]
	}

	// --- 2. Perform FFT ---
	p.fftCalculator.Coefficients(ws.fftOutput, ws.input)

	ws.mu.Lock()
	defer ws.mu.Unlock()

	// --- 3. Smooth and convert to bytes. The Nyquist bin is dropped. ---
	tau := p.cfg.Smoothing
	norm := 1 / float64(size)
	for i := range ws.smoothed {
		mag := cmplx.Abs(ws.fftOutput[i]) * norm
		ws.smoothed[i] = tau*ws.smoothed[i] + (1-tau)*mag
		ws.magnitudes[i] = p.toByte(ws.smoothed[i])
	}

	// --- 4. Time-domain bytes from the newest samples ---
	recent := ws.history[size-len(ws.timeDomain):]
	for i, s := range recent {
		ws.timeDomain[i] = clampByte(128 * (1 + s))
	}
	return nil
}

// toByte maps a linear magnitude onto the configured decibel range.
func (p *FFTProcessor) toByte(mag float64) uint8 {
	if mag <= 0 {
		return 0
	}
	db := 20 * math.Log10(mag)
	return clampByte(p.dbScale * (db - p.cfg.MinDecibels))
}

func clampByte(v float64) uint8 {
	switch {
	case v <= 0 || math.IsNaN(v):
		return 0
	case v >= maxMagnitude:
		return 255
	default:
		return uint8(v)
	}
}

// Spectrum returns the internal byte buffers. They are overwritten by the next
// ProcessSamples call; use MagnitudesInto to read from another goroutine.
func (p *FFTProcessor) Spectrum() (magnitudes, timeDomain []uint8) {
	return p.workspace.magnitudes, p.workspace.timeDomain
}

// MagnitudesInto copies the latest byte magnitudes into dest, which must have
// BinCount entries.
func (p *FFTProcessor) MagnitudesInto(dest []uint8) error {
	p.workspace.mu.RLock()
	defer p.workspace.mu.RUnlock()

	if len(dest) != len(p.workspace.magnitudes) {
		return fmt.Errorf("destination slice length %d does not match required length %d: %w",
			len(dest), len(p.workspace.magnitudes), ErrInvalidInput)
	}
	copy(dest, p.workspace.magnitudes)
	return nil
}

// FrequencyForBin returns the center frequency (Hz) for a given bin index, or 0
// when the index is out of range.
func (p *FFTProcessor) FrequencyForBin(bin int) float64 {
	if bin < 0 || bin >= p.BinCount() {
		return 0.0
	}
	return float64(bin) * (p.cfg.SampleRate / float64(p.cfg.Size))
}

// BinCount returns Size/2.
func (p *FFTProcessor) BinCount() int { return p.cfg.Size / 2 }

// Config returns the analyser configuration.
func (p *FFTProcessor) Config() FFTConfig { return p.cfg }

// Reset clears the smoothing state and the sample window.
func (p *FFTProcessor) Reset() {
	ws := &p.workspace
	ws.mu.Lock()
	defer ws.mu.Unlock()
	clear(ws.history)
	clear(ws.smoothed)
	clear(ws.magnitudes)
	for i := range ws.timeDomain {
		ws.timeDomain[i] = 128
	}
}

// Close is a no-op; the processor holds no external resources.
func (p *FFTProcessor) Close() error {
	log.Debugf("Analysis: Closing FFTProcessor (no specific resources to release)")
	return nil
}

// ParseWindowFunc converts a string name (case-insensitive) to a WindowFunc.
// Unknown names return Blackman and an error.
func ParseWindowFunc(name string) (WindowFunc, error) {
	switch strings.ToLower(name) {
	case "bartletthann":
		return BartlettHann, nil
	case "blackman", "":
		return Blackman, nil
	case "blackmannuttall":
		return BlackmanNuttall, nil
	case "hann", "hanning":
		return Hann, nil
	case "hamming":
		return Hamming, nil
	case "lanczos":
		return Lanczos, nil
	case "nuttall":
		return Nuttall, nil
	default:
		return Blackman, fmt.Errorf("unknown FFT window function name: '%s': %w", name, ErrInvalidInput)
	}
}

// applyWindow fills coeffs with the selected window, falling back to Blackman.
func applyWindow(coeffs []float64, windowType WindowFunc) {
	// gonum windows scale in place, so start from a flat window.
	for i := range coeffs {
		coeffs[i] = 1.0
	}
	switch windowType {
	case BartlettHann:
		window.BartlettHann(coeffs)
	case Blackman:
		window.Blackman(coeffs)
	case BlackmanNuttall:
		window.BlackmanNuttall(coeffs)
	case Hann:
		window.Hann(coeffs)
	case Hamming:
		window.Hamming(coeffs)
	case Lanczos:
		window.Lanczos(coeffs)
	case Nuttall:
		window.Nuttall(coeffs)
	default:
		log.Warnf("Analysis: Unknown window function type %d, defaulting to Blackman", windowType)
		window.Blackman(coeffs)
	}
}
