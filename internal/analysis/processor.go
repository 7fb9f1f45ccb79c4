// SPDX-License-Identifier: MIT
package analysis

import "time"

// SampleProcessor is implemented by anything that consumes raw mono PCM
// buffers. Implementations are called from the audio callback hot path and
// should avoid allocation.
type SampleProcessor interface {
	// ProcessSamples analyzes one buffer of normalized samples in [-1, 1)
	// captured at ts.
	ProcessSamples(samples []float64, ts time.Time) error
}

// SpectrumProvider decouples consumers from the concrete FFT implementation.
type SpectrumProvider interface {
	// Spectrum returns the latest byte-scaled magnitudes and time-domain bytes.
	// Both slices are owned by the provider and only valid until the next call
	// to its Process method.
	Spectrum() (magnitudes, timeDomain []uint8)
	FrequencyForBin(bin int) float64 // Centre frequency (Hz) of a magnitude bin.
	BinCount() int                   // Number of magnitude bins (fft size / 2).
}

// Closer is implemented by processors holding resources.
type Closer interface {
	Close() error
}
