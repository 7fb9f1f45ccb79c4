//go:build !linux

package driver

import "errors"

// GPIODriver is not available on non-Linux platforms.
type GPIODriver struct {
	*LineDriver
}

// NewGPIODriver returns an error on non-Linux platforms.
func NewGPIODriver(chipName string, offset int, activeLow bool) (*GPIODriver, error) {
	return nil, errors.New("gpio: not supported on this platform (requires Linux)")
}

// Close is a no-op on non-Linux platforms.
func (d *GPIODriver) Close() error {
	return nil
}
