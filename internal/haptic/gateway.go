package haptic

import (
	"fmt"
	"math"
	"time"

	"beatsense/internal/log"
)

// DefaultIntensity is the gateway's starting intensity.
const DefaultIntensity = 0.8

// DefaultPulse is the length of a Pulse when none is given.
const DefaultPulse = 50 * time.Millisecond

// HapticConfig is a snapshot of the gateway state.
type HapticConfig struct {
	Enabled     bool        `json:"enabled"`
	Intensity   float64     `json:"intensity"`
	DeviceClass DeviceClass `json:"deviceClass"`
	IsActuating bool        `json:"isActuating"`
}

// GatewayOptions configures a Gateway.
type GatewayOptions struct {
	Enabled     bool
	Intensity   float64          // Clamped to [0,1].
	DeviceClass DeviceClass      // Overrides the driver's probe when set.
	Now         func() time.Time // Clock used for the busy expiry. Defaults to time.Now.
}

// DefaultGatewayOptions returns an enabled gateway at DefaultIntensity.
func DefaultGatewayOptions() GatewayOptions {
	return GatewayOptions{Enabled: true, Intensity: DefaultIntensity}
}

// Gateway wraps one vibration device. Support and device class are probed
// once at construction. The busy state is an expiry timestamp compared against
// the clock on every query, so no timer is ever scheduled.
//
// A Gateway is owned by a single pipeline and is not safe for concurrent use.
type Gateway struct {
	driver    Driver
	now       func() time.Time
	supported bool
	class     DeviceClass
	enabled   bool
	intensity float64
	busyUntil time.Time
}

// NewGateway probes d and applies opts.
func NewGateway(d Driver, opts GatewayOptions) (*Gateway, error) {
	if d == nil {
		return nil, fmt.Errorf("haptic gateway: nil driver: %w", ErrInvalidInput)
	}
	if math.IsNaN(opts.Intensity) {
		return nil, fmt.Errorf("haptic gateway: intensity is NaN: %w", ErrInvalidInput)
	}

	caps := d.Probe()
	g := &Gateway{
		driver:    d,
		now:       opts.Now,
		supported: caps.Vibration,
		class:     caps.Class,
		enabled:   opts.Enabled,
		intensity: clamp01(opts.Intensity),
	}
	if g.now == nil {
		g.now = time.Now
	}
	if opts.DeviceClass != "" {
		g.class = opts.DeviceClass
	}
	if g.class == "" {
		g.class = ClassNone
	}

	log.Infof("Haptic: Gateway ready (Supported: %t, Class: %s, Enabled: %t, Intensity: %.2f)",
		g.supported, g.class, g.enabled, g.intensity)
	return g, nil
}

// IsSupported reports whether the device can vibrate.
func (g *Gateway) IsSupported() bool { return g.supported }

// DeviceClass returns the class determined at construction.
func (g *Gateway) DeviceClass() DeviceClass { return g.class }

// Enabled reports whether playback is allowed.
func (g *Gateway) Enabled() bool { return g.enabled }

// Intensity returns the current scaling factor.
func (g *Gateway) Intensity() float64 { return g.intensity }

// SetEnabled toggles playback. Disabling stops any active pattern at once.
func (g *Gateway) SetEnabled(enabled bool) {
	g.enabled = enabled
	if !enabled {
		g.Stop()
	}
}

// SetIntensity clamps v to [0,1]. NaN is rejected and leaves the intensity
// unchanged.
func (g *Gateway) SetIntensity(v float64) error {
	if math.IsNaN(v) {
		return fmt.Errorf("set intensity: NaN: %w", ErrInvalidInput)
	}
	g.intensity = clamp01(v)
	return nil
}

// Trigger scales pattern by the current intensity and hands it to the driver.
// On success the gateway reports actuating until the scaled pattern's total
// duration has elapsed. Any failure leaves the gateway state untouched.
func (g *Gateway) Trigger(pattern []int) error {
	if !g.enabled {
		return ErrDisabled
	}
	if !g.supported {
		return fmt.Errorf("vibration: %w", ErrUnsupportedCapability)
	}
	if err := checkDurations(pattern); err != nil {
		return err
	}

	scaled := Scale(pattern, g.intensity)
	if err := g.driver.Vibrate(scaled); err != nil {
		return fmt.Errorf("failed to actuate pattern: %w", err)
	}
	g.busyUntil = g.now().Add(time.Duration(Total(scaled)) * time.Millisecond)
	return nil
}

// Play is Trigger reduced to a boolean. Haptics are an enhancement, so a
// pattern that cannot be played is reported and otherwise ignored.
func (g *Gateway) Play(pattern []int) bool {
	if err := g.Trigger(pattern); err != nil {
		log.Debugf("Haptic: Pattern not played: %v", err)
		return false
	}
	return true
}

// PlayPattern plays a library or synthesized pattern.
func (g *Gateway) PlayPattern(p VibrationPattern) bool {
	return g.Play(p.Pattern)
}

// Pulse plays a single vibration of length d, or DefaultPulse when d <= 0.
func (g *Gateway) Pulse(d time.Duration) bool {
	if d <= 0 {
		d = DefaultPulse
	}
	return g.Play([]int{0, int(d.Milliseconds())})
}

// Stop cancels output and clears the busy state.
func (g *Gateway) Stop() {
	g.busyUntil = time.Time{}
	if !g.supported {
		return
	}
	if err := g.driver.Cancel(); err != nil {
		log.Warnf("Haptic: Failed to stop vibration: %v", err)
	}
}

// IsActuating reports whether the last pattern is still running.
func (g *Gateway) IsActuating() bool {
	return !g.busyUntil.IsZero() && g.now().Before(g.busyUntil)
}

// Config returns a snapshot of the gateway state.
func (g *Gateway) Config() HapticConfig {
	return HapticConfig{
		Enabled:     g.enabled,
		Intensity:   g.intensity,
		DeviceClass: g.class,
		IsActuating: g.IsActuating(),
	}
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
