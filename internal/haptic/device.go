package haptic

import (
	"fmt"
	"regexp"
	"strings"
)

// DeviceClass is the coarse kind of device that carries the vibration motor.
type DeviceClass string

const (
	ClassPhone    DeviceClass = "phone"
	ClassWatch    DeviceClass = "watch"
	ClassWearable DeviceClass = "wearable"
	ClassNone     DeviceClass = "none"
)

// ParseDeviceClass accepts the lowercase class names. The empty string
// parses to "" which means "ask the driver".
func ParseDeviceClass(s string) (DeviceClass, error) {
	switch c := DeviceClass(strings.ToLower(s)); c {
	case "", ClassPhone, ClassWatch, ClassWearable, ClassNone:
		return c, nil
	default:
		return "", fmt.Errorf("unknown device class %q: %w", s, ErrInvalidInput)
	}
}

// Capabilities is what a driver reports about its device. It is probed once,
// when the Gateway is constructed.
type Capabilities struct {
	Vibration bool        // Device can vibrate at all.
	Class     DeviceClass // Best guess at the device form factor.
}

// Driver is the single actuation call into a vibration device.
type Driver interface {
	// Vibrate starts the given idle/active millisecond pattern and returns
	// without waiting. A call made while a pattern is playing replaces it.
	Vibrate(pattern []int) error

	// Cancel stops any output immediately.
	Cancel() error

	// Probe reports the device capabilities.
	Probe() Capabilities
}

var mobileUA = regexp.MustCompile(`android|iphone|ipad|ipod|mobile`)

// ClassifyUserAgent guesses the device class from a browser user agent
// string. It is one possible probe; drivers are free to answer differently.
func ClassifyUserAgent(ua string) DeviceClass {
	ua = strings.ToLower(ua)
	switch {
	case strings.Contains(ua, "watch"), strings.Contains(ua, "wearable"):
		return ClassWatch
	case mobileUA.MatchString(ua):
		return ClassPhone
	default:
		return ClassNone
	}
}
