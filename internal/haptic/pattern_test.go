package haptic

import (
	"encoding/json"
	"slices"
	"testing"
)

func TestPatternForMood(t *testing.T) {
	tests := []struct {
		energy float64
		want   PatternID
	}{
		{0, Calm},
		{0.25, Calm},
		{0.3, RhythmSteady},
		{0.59, RhythmSteady},
		{0.6, Energetic},
		{0.79, Energetic},
		{0.8, Intense},
		{0.85, Intense},
		{1, Intense},
		{7, Intense},
	}

	for _, tt := range tests {
		t.Run(string(tt.want), func(t *testing.T) {
			if got := PatternForMood(tt.energy); got.ID != tt.want {
				t.Errorf("PatternForMood(%v) = %s, want %s", tt.energy, got.ID, tt.want)
			}
		})
	}
}

func TestLibraryContents(t *testing.T) {
	patterns := Patterns()
	if len(patterns) != 11 {
		t.Fatalf("Patterns() returned %d entries, want 11", len(patterns))
	}

	for _, p := range patterns {
		t.Run(string(p.ID), func(t *testing.T) {
			if p.Name == "" || p.Description == "" {
				t.Error("pattern is missing a name or description")
			}
			if p.Pattern[0] != 0 {
				t.Errorf("leading idle = %d, want 0", p.Pattern[0])
			}
			if err := ValidatePattern(p.Pattern); err != nil {
				t.Errorf("ValidatePattern() error = %v", err)
			}
			if b := p.BaseIntensity; b != nil && (*b < 0 || *b > 1) {
				t.Errorf("base intensity %f outside [0,1]", *b)
			}
		})
	}

	calm := MustLookup(Calm)
	if !slices.Equal(calm.Pattern, []int{0, 150, 200, 150, 200, 150}) || *calm.BaseIntensity != 0.4 {
		t.Errorf("CALM = %v @ %v", calm.Pattern, *calm.BaseIntensity)
	}
	intense := MustLookup(Intense)
	if !slices.Equal(intense.Pattern, []int{0, 100, 50, 100, 50, 100}) {
		t.Errorf("INTENSE = %v", intense.Pattern)
	}
}

func TestLookupReturnsCopies(t *testing.T) {
	p, ok := Lookup("pulse")
	if !ok {
		t.Fatal("Lookup(\"pulse\") not found")
	}
	p.Pattern[1] = 9999

	again := MustLookup(Pulse)
	if again.Pattern[1] != 50 {
		t.Errorf("library mutated through a returned pattern: %v", again.Pattern)
	}

	bass := MustLookup(BassHeavy)
	*bass.BaseIntensity = 0
	if *MustLookup(BassHeavy).BaseIntensity != 1 {
		t.Error("library base intensity mutated through a returned pattern")
	}

	if _, ok := Lookup("MISSING"); ok {
		t.Error("Lookup(\"MISSING\") reported found")
	}
}

func TestDefaultCatalogue(t *testing.T) {
	data, err := json.Marshal(DefaultCatalogue())
	if err != nil {
		t.Fatalf("json.Marshal() error = %v", err)
	}

	var decoded struct {
		Patterns []struct {
			ID        string   `json:"id"`
			Name      string   `json:"name"`
			Pattern   []int    `json:"pattern"`
			Intensity *float64 `json:"intensity"`
		} `json:"patterns"`
		DeviceSupport map[string]bool `json:"deviceSupport"`
		Version       string          `json:"version"`
	}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("json.Unmarshal() error = %v", err)
	}

	if decoded.Version != "1.0" {
		t.Errorf("version = %q, want 1.0", decoded.Version)
	}
	if len(decoded.Patterns) != 11 || decoded.Patterns[1].ID != "double_pulse" {
		t.Errorf("patterns = %+v", decoded.Patterns)
	}
	if decoded.Patterns[0].Intensity != nil {
		t.Error("PULSE carries an intensity, want it omitted")
	}
	if !decoded.DeviceSupport["phone"] || decoded.DeviceSupport["watch"] || decoded.DeviceSupport["wearable"] {
		t.Errorf("deviceSupport = %v", decoded.DeviceSupport)
	}
}

func TestCatalogueForProbedDevice(t *testing.T) {
	c := CatalogueFor(Capabilities{Vibration: true, Class: ClassWearable})
	if !c.DeviceSupport[ClassWearable] {
		t.Error("probed wearable not marked as supported")
	}
	if !c.DeviceSupport[ClassPhone] {
		t.Error("phone support dropped")
	}
}
