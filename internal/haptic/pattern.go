// Package haptic translates beat events into vibration patterns and drives a
// single vibration device through the Gateway.
//
// A pattern is a sequence of millisecond durations that alternates idle and
// active, starting with idle: index 0 and even indices are idle time, odd
// indices are vibration time.
package haptic

import (
	"slices"
	"strings"
)

// PatternID names an entry of the built-in pattern library.
type PatternID string

// Built-in pattern identifiers.
const (
	Pulse            PatternID = "PULSE"
	DoublePulse      PatternID = "DOUBLE_PULSE"
	BassHeavy        PatternID = "BASS_HEAVY"
	BassLight        PatternID = "BASS_LIGHT"
	RhythmSteady     PatternID = "RHYTHM_STEADY"
	RhythmSyncopated PatternID = "RHYTHM_SYNCOPATED"
	Calm             PatternID = "CALM"
	Energetic        PatternID = "ENERGETIC"
	Intense          PatternID = "INTENSE"
	Wave             PatternID = "WAVE"
	Sparkle          PatternID = "SPARKLE"
)

// VibrationPattern is a named, immutable haptic pattern. Values handed out by
// this package never alias the library table.
type VibrationPattern struct {
	ID            PatternID `json:"-"`
	Name          string    `json:"name"`
	Description   string    `json:"description"`
	Pattern       []int     `json:"pattern"`
	BaseIntensity *float64  `json:"intensity,omitempty"` // Suggested intensity in [0,1], if any.
}

// Clone returns a deep copy of p.
func (p VibrationPattern) Clone() VibrationPattern {
	p.Pattern = slices.Clone(p.Pattern)
	if p.BaseIntensity != nil {
		v := *p.BaseIntensity
		p.BaseIntensity = &v
	}
	return p
}

// Duration is the summed length of the pattern in milliseconds.
func (p VibrationPattern) Duration() int { return Total(p.Pattern) }

func ptr(v float64) *float64 { return &v }

// library is built once and never mutated. Accessors return clones.
var library = map[PatternID]VibrationPattern{
	Pulse: {
		Name:        "Pulse",
		Description: "Simple pulse for beats",
		Pattern:     []int{0, 50, 100, 50},
	},
	DoublePulse: {
		Name:        "Double Pulse",
		Description: "Double pulse for emphasis",
		Pattern:     []int{0, 50, 50, 50, 100, 50},
	},
	BassHeavy: {
		Name:          "Bass Heavy",
		Description:   "Strong vibration for bass frequencies",
		Pattern:       []int{0, 200, 100, 100},
		BaseIntensity: ptr(1.0),
	},
	BassLight: {
		Name:          "Bass Light",
		Description:   "Gentle vibration for bass",
		Pattern:       []int{0, 100, 50, 50},
		BaseIntensity: ptr(0.6),
	},
	RhythmSteady: {
		Name:        "Steady Rhythm",
		Description: "Consistent rhythm pattern",
		Pattern:     []int{0, 50, 100, 50, 100, 50, 100, 50},
	},
	RhythmSyncopated: {
		Name:        "Syncopated",
		Description: "Off-beat rhythm pattern",
		Pattern:     []int{0, 30, 150, 30, 100, 30, 150, 30},
	},
	Calm: {
		Name:          "Calm",
		Description:   "Gentle waves for calm music",
		Pattern:       []int{0, 150, 200, 150, 200, 150},
		BaseIntensity: ptr(0.4),
	},
	Energetic: {
		Name:          "Energetic",
		Description:   "Fast pulses for energetic music",
		Pattern:       []int{0, 30, 50, 30, 50, 30, 50, 30, 50, 30},
		BaseIntensity: ptr(0.9),
	},
	Intense: {
		Name:          "Intense",
		Description:   "Powerful vibrations for intense music",
		Pattern:       []int{0, 100, 50, 100, 50, 100},
		BaseIntensity: ptr(1.0),
	},
	Wave: {
		Name:          "Wave",
		Description:   "Gradual wave effect",
		Pattern:       []int{0, 200, 100, 200, 100, 200, 100, 200},
		BaseIntensity: ptr(0.7),
	},
	Sparkle: {
		Name:          "Sparkle",
		Description:   "Quick bursts for high frequencies",
		Pattern:       []int{0, 20, 80, 20, 80, 20, 80, 20, 80, 20},
		BaseIntensity: ptr(0.5),
	},
}

// order is the library's presentation order.
var order = []PatternID{
	Pulse, DoublePulse, BassHeavy, BassLight, RhythmSteady, RhythmSyncopated,
	Calm, Energetic, Intense, Wave, Sparkle,
}

// Lookup returns a copy of the named pattern. The id is matched
// case-insensitively so "calm" and "CALM" are equivalent.
func Lookup(id PatternID) (VibrationPattern, bool) {
	key := PatternID(strings.ToUpper(string(id)))
	p, ok := library[key]
	if !ok {
		return VibrationPattern{}, false
	}
	p = p.Clone()
	p.ID = key
	return p, true
}

// MustLookup is Lookup for identifiers known at compile time.
func MustLookup(id PatternID) VibrationPattern {
	p, ok := Lookup(id)
	if !ok {
		panic("haptic: unknown pattern " + string(id))
	}
	return p
}

// Patterns returns copies of every library entry in presentation order.
func Patterns() []VibrationPattern {
	out := make([]VibrationPattern, 0, len(order))
	for _, id := range order {
		out = append(out, MustLookup(id))
	}
	return out
}

// Mood ladder boundaries. Each is the inclusive lower bound of the next step.
const (
	moodSteady    = 0.3
	moodEnergetic = 0.6
	moodIntense   = 0.8
)

// PatternForMood picks a library pattern from an energy level in [0,1]:
// below 0.3 CALM, below 0.6 RHYTHM_STEADY, below 0.8 ENERGETIC, else INTENSE.
func PatternForMood(energy float64) VibrationPattern {
	switch {
	case energy < moodSteady:
		return MustLookup(Calm)
	case energy < moodEnergetic:
		return MustLookup(RhythmSteady)
	case energy < moodIntense:
		return MustLookup(Energetic)
	default:
		return MustLookup(Intense)
	}
}
