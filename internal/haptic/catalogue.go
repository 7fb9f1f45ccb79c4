package haptic

import "strings"

// CatalogueVersion tags the exported catalogue format.
const CatalogueVersion = "1.0"

// CatalogueEntry is a library pattern as exported to clients.
type CatalogueEntry struct {
	ID string `json:"id"` // Lowercase pattern id, e.g. "double_pulse".
	VibrationPattern
}

// Catalogue is the exported pattern library together with which device
// classes can play it.
type Catalogue struct {
	Patterns      []CatalogueEntry     `json:"patterns"`
	DeviceSupport map[DeviceClass]bool `json:"deviceSupport"`
	Version       string               `json:"version"`
}

// DefaultCatalogue reports phones as supported and every other class as not.
func DefaultCatalogue() Catalogue {
	return newCatalogue(map[DeviceClass]bool{
		ClassPhone:    true,
		ClassWatch:    false,
		ClassWearable: false,
	})
}

// CatalogueFor starts from DefaultCatalogue and records the probed device.
func CatalogueFor(caps Capabilities) Catalogue {
	c := DefaultCatalogue()
	if caps.Class != "" && caps.Class != ClassNone {
		c.DeviceSupport[caps.Class] = caps.Vibration
	}
	return c
}

func newCatalogue(support map[DeviceClass]bool) Catalogue {
	patterns := Patterns()
	entries := make([]CatalogueEntry, 0, len(patterns))
	for _, p := range patterns {
		entries = append(entries, CatalogueEntry{
			ID:               strings.ToLower(string(p.ID)),
			VibrationPattern: p,
		})
	}
	return Catalogue{Patterns: entries, DeviceSupport: support, Version: CatalogueVersion}
}
