// SPDX-License-Identifier: MIT
package analysis

import "errors"

// Error taxonomy shared by every stage of the pipeline. Callers match with
// errors.Is; producers wrap with fmt.Errorf("...: %w", Err...).
var (
	// ErrInvalidInput rejects an operation synchronously. The operation has no effect.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotInitialized is returned when an operation runs before its required
	// setup, e.g. a tick before an audio source has been attached.
	ErrNotInitialized = errors.New("not initialized")

	// ErrUnsupportedCapability marks a missing device capability. Actuation
	// reports it as a false return, never as a fatal condition.
	ErrUnsupportedCapability = errors.New("unsupported capability")
)
