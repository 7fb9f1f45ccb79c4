package driver

import (
	"fmt"
	"io"

	"beatsense/internal/haptic"
)

// Options selects and configures a driver for Open.
type Options struct {
	Kind  Kind
	Class haptic.DeviceClass // Class reported by the log driver.

	// GPIO line settings, used by KindGPIO only.
	Chip      string
	Line      int
	ActiveLow bool
}

// Open constructs the driver named by opts.Kind. Drivers holding OS resources
// also implement io.Closer; use Close to release them.
func Open(opts Options) (haptic.Driver, error) {
	switch opts.Kind {
	case KindLog, "":
		return NewLogDriver(opts.Class), nil
	case KindGPIO:
		d, err := NewGPIODriver(opts.Chip, opts.Line, opts.ActiveLow)
		if err != nil {
			return nil, err
		}
		return d, nil
	case KindBrowser:
		return openBrowser()
	case KindNone:
		return Unsupported{}, nil
	default:
		return nil, fmt.Errorf("unknown haptic driver %q: %w", opts.Kind, haptic.ErrInvalidInput)
	}
}

// Close releases d if it holds resources.
func Close(d haptic.Driver) error {
	if c, ok := d.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
