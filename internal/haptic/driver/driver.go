// Package driver holds the haptic.Driver implementations: a recording fake for
// tests, a logging driver for hosts without a motor, a GPIO driver for a motor
// wired to a Linux GPIO line, and a browser driver for js builds.
package driver

import (
	"fmt"
	"strings"

	"beatsense/internal/haptic"
)

// Kind names a driver implementation.
type Kind string

const (
	KindLog     Kind = "log"
	KindGPIO    Kind = "gpio"
	KindBrowser Kind = "browser"
	KindNone    Kind = "none"
)

// ParseKind accepts the lowercase driver names.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(s)); k {
	case KindLog, KindGPIO, KindBrowser, KindNone:
		return k, nil
	case "":
		return KindLog, nil
	default:
		return "", fmt.Errorf("unknown haptic driver %q: %w", s, haptic.ErrInvalidInput)
	}
}

// Unsupported is the driver for hosts without any vibration capability. Every
// actuation fails with haptic.ErrUnsupportedCapability.
type Unsupported struct{}

func (Unsupported) Vibrate([]int) error { return haptic.ErrUnsupportedCapability }
func (Unsupported) Cancel() error       { return nil }
func (Unsupported) Probe() haptic.Capabilities {
	return haptic.Capabilities{Vibration: false, Class: haptic.ClassNone}
}

var _ haptic.Driver = Unsupported{}
