package driver

import (
	"slices"

	"beatsense/internal/haptic"
)

// FakeDriver is a test double that records every actuation.
type FakeDriver struct {
	// Caps is returned by Probe.
	Caps haptic.Capabilities

	// Patterns holds a copy of every pattern passed to Vibrate.
	Patterns [][]int

	// Cancels counts Cancel calls.
	Cancels int

	// VibrateError, if set, will be returned by Vibrate.
	VibrateError error

	// CancelError, if set, will be returned by Cancel.
	CancelError error
}

// NewFakeDriver creates a FakeDriver that reports a vibrating phone.
func NewFakeDriver() *FakeDriver {
	return &FakeDriver{Caps: haptic.Capabilities{Vibration: true, Class: haptic.ClassPhone}}
}

// Vibrate records the pattern.
func (f *FakeDriver) Vibrate(pattern []int) error {
	if f.VibrateError != nil {
		return f.VibrateError
	}
	f.Patterns = append(f.Patterns, slices.Clone(pattern))
	return nil
}

// Cancel counts the call.
func (f *FakeDriver) Cancel() error {
	f.Cancels++
	return f.CancelError
}

// Probe returns Caps.
func (f *FakeDriver) Probe() haptic.Capabilities { return f.Caps }

// Last returns the most recent pattern, or nil.
func (f *FakeDriver) Last() []int {
	if len(f.Patterns) == 0 {
		return nil
	}
	return f.Patterns[len(f.Patterns)-1]
}

// Reset clears recorded calls.
func (f *FakeDriver) Reset() {
	f.Patterns = nil
	f.Cancels = 0
	f.VibrateError = nil
	f.CancelError = nil
}

var _ haptic.Driver = (*FakeDriver)(nil)
