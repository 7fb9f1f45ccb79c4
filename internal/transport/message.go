package transport

import (
	"beatsense/internal/analysis"
	"beatsense/internal/haptic"
)

// MessageTypeTick marks a per-tick pipeline message.
const MessageTypeTick = "tick"

// Message is what the pipeline publishes once per tick. The JSON form carries
// the band summary and beat verdict; raw magnitudes travel only in the binary
// UDP packet.
type Message struct {
	Type     string                 `json:"type"`
	Session  string                 `json:"session"`
	Source   string                 `json:"source"`
	Sequence uint64                 `json:"seq"`
	Frame    analysis.SpectralFrame `json:"frame"`
	Beat     analysis.BeatEvent     `json:"beat"`
	Haptic   HapticState            `json:"haptic"`
}

// HapticState records what the haptic stage did with this tick.
type HapticState struct {
	Pattern string `json:"pattern,omitempty"` // Library id, "adaptive", or empty when nothing was attempted.
	Played  bool   `json:"played"`
	haptic.HapticConfig
}

// IsBeat reports whether data is a Message carrying a beat.
func IsBeat(data any) bool {
	switch m := data.(type) {
	case Message:
		return m.Beat.IsBeat
	case *Message:
		return m != nil && m.Beat.IsBeat
	default:
		return false
	}
}

// asMessage unwraps the value and pointer forms.
func asMessage(data any) (Message, bool) {
	switch m := data.(type) {
	case Message:
		return m, true
	case *Message:
		if m == nil {
			return Message{}, false
		}
		return *m, true
	default:
		return Message{}, false
	}
}
