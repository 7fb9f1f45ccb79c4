package haptic

import (
	"errors"

	"beatsense/internal/analysis"
)

// The pipeline shares one error taxonomy; these aliases let haptic callers
// match without importing analysis.
var (
	ErrInvalidInput          = analysis.ErrInvalidInput
	ErrNotInitialized        = analysis.ErrNotInitialized
	ErrUnsupportedCapability = analysis.ErrUnsupportedCapability
)

// ErrDisabled is returned by Gateway.Trigger while haptics are switched off.
var ErrDisabled = errors.New("haptics disabled")
