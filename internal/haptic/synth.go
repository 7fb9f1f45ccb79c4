package haptic

import "math"

// Synthesis constants in milliseconds.
const (
	defaultBeatMs = 500 // Beat length when the tempo is unknown.
	flatBassMs    = 50  // Bass segment when bass is weak.
	midPauseMs    = 50  // Pause between the mid segment and treble bursts.
	burstMs       = 30  // Length of each treble burst and its gap.
)

// SynthesizePattern builds an adaptive pattern from band energies and tempo.
// The output always starts with a 0 idle entry, then a bass segment, a pause
// of a fifth of a beat, an optional mid segment, a 50ms pause and up to three
// 30ms treble bursts. Every duration is truncated. Identical inputs always
// produce identical output.
func SynthesizePattern(bass, mid, treble float64, bpm int) []int {
	beatMs := defaultBeatMs
	if bpm > 0 {
		beatMs = 60000 / bpm
	}
	beat := float64(beatMs)

	pattern := make([]int, 0, 12)
	pattern = append(pattern, 0)

	if bass > 0.5 {
		pattern = append(pattern, floor(beat*0.3*bass))
	} else {
		pattern = append(pattern, flatBassMs)
	}

	pattern = append(pattern, floor(beat*0.2))

	if mid > 0.4 {
		pattern = append(pattern, floor(beat*0.2*mid))
	}

	pattern = append(pattern, midPauseMs)

	if treble > 0.3 {
		for range floor(treble * 3) {
			pattern = append(pattern, burstMs, burstMs)
		}
	}
	return pattern
}

// Scale multiplies every entry after the leading idle delay by intensity,
// truncating to whole milliseconds. The caller clamps intensity to [0,1].
func Scale(pattern []int, intensity float64) []int {
	scaled := make([]int, len(pattern))
	for i, v := range pattern {
		if i == 0 {
			scaled[i] = v
			continue
		}
		scaled[i] = floor(float64(v) * intensity)
	}
	return scaled
}

// Total returns the summed duration of a pattern in milliseconds.
func Total(pattern []int) int {
	var sum int
	for _, v := range pattern {
		sum += v
	}
	return sum
}

func floor(v float64) int { return int(math.Floor(v)) }
