package pipeline

import (
	"fmt"
	"strings"

	"beatsense/internal/analysis"
)

// Mode selects which outputs a pipeline drives.
type Mode string

const (
	ModeVisual   Mode = "visual"   // Transports only, the motor stays idle.
	ModeHaptic   Mode = "haptic"   // Motor only, nothing is sent to transports.
	ModeCombined Mode = "combined" // Both.
)

// ParseMode accepts the lowercase mode names. Empty means combined.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(s)); m {
	case ModeVisual, ModeHaptic, ModeCombined:
		return m, nil
	case "":
		return ModeCombined, nil
	default:
		return "", fmt.Errorf("unknown mode %q: %w", s, analysis.ErrInvalidInput)
	}
}

// Haptics reports whether beats in this mode reach the gateway.
func (m Mode) Haptics() bool { return m != ModeVisual }

// Visuals reports whether messages in this mode reach the transports.
func (m Mode) Visuals() bool { return m != ModeHaptic }

// Strategy selects how a beat becomes a vibration pattern.
type Strategy string

const (
	StrategyMood     Strategy = "mood"     // Library pattern picked from beat energy.
	StrategyAdaptive Strategy = "adaptive" // Pattern synthesised from bands and tempo.
)

// ParseStrategy accepts the lowercase strategy names. Empty means mood.
func ParseStrategy(s string) (Strategy, error) {
	switch st := Strategy(strings.ToLower(s)); st {
	case StrategyMood, StrategyAdaptive:
		return st, nil
	case "":
		return StrategyMood, nil
	default:
		return "", fmt.Errorf("unknown strategy %q: %w", s, analysis.ErrInvalidInput)
	}
}
