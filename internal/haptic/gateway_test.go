package haptic_test

import (
	"errors"
	"math"
	"slices"
	"testing"
	"time"

	"beatsense/internal/haptic"
	"beatsense/internal/haptic/driver"
)

// clock is a manually advanced time source.
type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newGateway(t *testing.T, d haptic.Driver) (*haptic.Gateway, *clock) {
	t.Helper()
	c := &clock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	opts := haptic.DefaultGatewayOptions()
	opts.Now = c.now
	g, err := haptic.NewGateway(d, opts)
	if err != nil {
		t.Fatalf("NewGateway() error = %v", err)
	}
	return g, c
}

func TestGatewayPlayScalesAndExpires(t *testing.T) {
	fake := driver.NewFakeDriver()
	g, c := newGateway(t, fake)

	if !g.Play([]int{0, 100, 50, 100}) {
		t.Fatal("Play() = false, want true")
	}
	// Default intensity 0.8 leaves the leading idle alone.
	if want := []int{0, 80, 40, 80}; !slices.Equal(fake.Last(), want) {
		t.Errorf("driver got %v, want %v", fake.Last(), want)
	}

	if !g.IsActuating() {
		t.Error("IsActuating() = false right after Play()")
	}
	c.advance(199 * time.Millisecond)
	if !g.IsActuating() {
		t.Error("IsActuating() = false before the 200ms pattern elapsed")
	}
	c.advance(time.Millisecond)
	if g.IsActuating() {
		t.Error("IsActuating() = true after the pattern elapsed")
	}
}

func TestGatewayPlayRejections(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(*haptic.Gateway, *driver.FakeDriver)
		caps    haptic.Capabilities
		pattern []int
		wantErr error
	}{
		{
			name:    "Disabled",
			setup:   func(g *haptic.Gateway, _ *driver.FakeDriver) { g.SetEnabled(false) },
			pattern: []int{0, 50},
			wantErr: haptic.ErrDisabled,
		},
		{
			name:    "Unsupported",
			caps:    haptic.Capabilities{Vibration: false, Class: haptic.ClassNone},
			pattern: []int{0, 50},
			wantErr: haptic.ErrUnsupportedCapability,
		},
		{
			name:    "Empty Pattern",
			pattern: nil,
			wantErr: haptic.ErrInvalidInput,
		},
		{
			name:    "Negative Entry",
			pattern: []int{0, -1},
			wantErr: haptic.ErrInvalidInput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := driver.NewFakeDriver()
			if tt.caps != (haptic.Capabilities{}) {
				fake.Caps = tt.caps
			}
			g, _ := newGateway(t, fake)
			if tt.setup != nil {
				tt.setup(g, fake)
			}

			if err := g.Trigger(tt.pattern); !errors.Is(err, tt.wantErr) {
				t.Errorf("Trigger() error = %v, want %v", err, tt.wantErr)
			}
			if g.Play(tt.pattern) {
				t.Error("Play() = true, want false")
			}
			if len(fake.Patterns) != 0 || g.IsActuating() {
				t.Errorf("rejected play had side effects: %v, actuating=%v", fake.Patterns, g.IsActuating())
			}
		})
	}
}

func TestGatewayDriverErrorLeavesStateUntouched(t *testing.T) {
	fake := driver.NewFakeDriver()
	fake.VibrateError = errors.New("motor jammed")
	g, _ := newGateway(t, fake)

	if g.Play([]int{0, 50}) {
		t.Error("Play() = true despite a driver error")
	}
	if g.IsActuating() {
		t.Error("IsActuating() = true after a failed play")
	}
}

func TestGatewayStopAndDisable(t *testing.T) {
	fake := driver.NewFakeDriver()
	g, _ := newGateway(t, fake)

	g.Play([]int{0, 1000})
	g.Stop()
	if g.IsActuating() || fake.Cancels != 1 {
		t.Errorf("after Stop() actuating=%v cancels=%d", g.IsActuating(), fake.Cancels)
	}

	g.Play([]int{0, 1000})
	g.SetEnabled(false)
	if g.IsActuating() || fake.Cancels != 2 {
		t.Errorf("after SetEnabled(false) actuating=%v cancels=%d", g.IsActuating(), fake.Cancels)
	}

	g.SetEnabled(true)
	if !g.Pulse(0) {
		t.Fatal("Pulse() = false after re-enabling")
	}
	if want := []int{0, 40}; !slices.Equal(fake.Last(), want) {
		t.Errorf("Pulse(0) played %v, want %v", fake.Last(), want)
	}
}

func TestGatewaySetIntensity(t *testing.T) {
	g, _ := newGateway(t, driver.NewFakeDriver())

	tests := []struct {
		input float64
		want  float64
	}{
		{-0.5, 0},
		{0, 0},
		{0.3, 0.3},
		{1, 1},
		{4, 1},
	}
	for _, tt := range tests {
		if err := g.SetIntensity(tt.input); err != nil {
			t.Fatalf("SetIntensity(%v) error = %v", tt.input, err)
		}
		if got := g.Intensity(); got != tt.want {
			t.Errorf("SetIntensity(%v) -> %v, want %v", tt.input, got, tt.want)
		}
	}

	if err := g.SetIntensity(math.NaN()); !errors.Is(err, haptic.ErrInvalidInput) {
		t.Errorf("SetIntensity(NaN) error = %v, want ErrInvalidInput", err)
	}
	if g.Intensity() != 1 {
		t.Errorf("NaN changed the intensity to %v", g.Intensity())
	}
}

func TestGatewayZeroIntensityPlaysSilence(t *testing.T) {
	fake := driver.NewFakeDriver()
	g, c := newGateway(t, fake)
	_ = g.SetIntensity(0)

	if !g.PlayPattern(haptic.MustLookup(haptic.Calm)) {
		t.Fatal("PlayPattern() = false")
	}
	if total := haptic.Total(fake.Last()); total != 0 {
		t.Errorf("scaled pattern total = %d, want 0", total)
	}
	c.advance(time.Nanosecond)
	if g.IsActuating() {
		t.Error("an all-zero pattern should not leave the gateway busy")
	}
}

func TestGatewayConfigAndProbe(t *testing.T) {
	fake := driver.NewFakeDriver()
	fake.Caps.Class = haptic.ClassWatch

	opts := haptic.DefaultGatewayOptions()
	opts.DeviceClass = haptic.ClassWearable
	opts.Intensity = 2
	g, err := haptic.NewGateway(fake, opts)
	if err != nil {
		t.Fatalf("NewGateway() error = %v", err)
	}

	cfg := g.Config()
	if cfg.DeviceClass != haptic.ClassWearable || cfg.Intensity != 1 || !cfg.Enabled || cfg.IsActuating {
		t.Errorf("Config() = %+v", cfg)
	}

	// Capabilities are probed once; later driver changes are not observed.
	fake.Caps.Vibration = false
	if !g.IsSupported() {
		t.Error("IsSupported() changed after construction")
	}

	if _, err := haptic.NewGateway(nil, opts); !errors.Is(err, haptic.ErrInvalidInput) {
		t.Errorf("NewGateway(nil) error = %v, want ErrInvalidInput", err)
	}
}
