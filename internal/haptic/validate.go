package haptic

import (
	"fmt"
	"math"
)

// MaxPatternDuration caps externally supplied patterns at ten seconds.
const MaxPatternDuration = 10000

// ValidatePattern checks a pattern received from outside the process: it must
// be non-empty, hold only non-negative durations and not exceed
// MaxPatternDuration in total.
func ValidatePattern(pattern []int) error {
	if err := checkDurations(pattern); err != nil {
		return err
	}
	if total := Total(pattern); total > MaxPatternDuration {
		return fmt.Errorf("pattern lasts %dms, limit is %dms: %w", total, MaxPatternDuration, ErrInvalidInput)
	}
	return nil
}

// checkDurations enforces the structural rules every played pattern obeys.
func checkDurations(pattern []int) error {
	if len(pattern) == 0 {
		return fmt.Errorf("pattern is empty: %w", ErrInvalidInput)
	}
	for i, v := range pattern {
		if v < 0 {
			return fmt.Errorf("pattern entry %d is negative (%d): %w", i, v, ErrInvalidInput)
		}
	}
	return nil
}

// ValidateIntensity rejects intensities outside [0,1] instead of clamping.
func ValidateIntensity(v float64) error {
	if math.IsNaN(v) || v < 0 || v > 1 {
		return fmt.Errorf("intensity must be between 0 and 1, got %v: %w", v, ErrInvalidInput)
	}
	return nil
}
