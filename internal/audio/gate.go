// SPDX-License-Identifier: MIT
package audio

import (
	"fmt"
	"math"

	"beatsense/internal/analysis"
)

// SetNoiseGate sets the peak level, as a fraction of full scale, below which
// a capture buffer is replaced by silence. 0 opens the gate permanently. It
// is safe to call while the input stream is running.
func (e *Engine) SetNoiseGate(level float64) error {
	if math.IsNaN(level) || level < 0 || level >= 1 {
		return fmt.Errorf("noise gate %v out of range [0, 1): %w", level, analysis.ErrInvalidInput)
	}
	e.gateThreshold.Store(int32(level * float64(math.MaxInt32)))
	return nil
}

// NoiseGate returns the current gate level. 0 means the gate is open.
func (e *Engine) NoiseGate() float64 {
	return Level(e.gateThreshold.Load())
}

// gateOpen reports whether buffer is loud enough to pass.
func (e *Engine) gateOpen(buffer []int32) bool {
	threshold := e.gateThreshold.Load()
	return threshold == 0 || peakAmplitude(buffer) > threshold
}
