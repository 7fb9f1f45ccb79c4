//go:build linux

package driver

import (
	"errors"
	"fmt"

	"github.com/warthog618/go-gpiocdev"

	"beatsense/internal/haptic"
	"beatsense/internal/log"
)

// GPIODriver drives a vibration motor (through a transistor or motor driver
// board) from a Linux GPIO character device line.
type GPIODriver struct {
	*LineDriver
	chip *gpiocdev.Chip
	line *gpiocdev.Line
}

// NewGPIODriver requests offset on chipName as an output, initially low.
func NewGPIODriver(chipName string, offset int, activeLow bool) (*GPIODriver, error) {
	chip, err := gpiocdev.NewChip(chipName, gpiocdev.WithConsumer("beatsense"))
	if err != nil {
		return nil, fmt.Errorf("open gpio chip %s: %w", chipName, err)
	}

	opts := []gpiocdev.LineReqOption{gpiocdev.AsOutput(0)}
	if activeLow {
		opts = append(opts, gpiocdev.AsActiveLow)
	}
	line, err := chip.RequestLine(offset, opts...)
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("request motor line %d: %w", offset, err)
	}

	log.Infof("Haptic: Using GPIODriver (%s line %d, active low: %t)", chipName, offset, activeLow)
	return &GPIODriver{
		LineDriver: NewLineDriver(line, haptic.ClassWearable),
		chip:       chip,
		line:       line,
	}, nil
}

// Close stops the motor and releases the line and chip.
func (d *GPIODriver) Close() error {
	var errs []error
	if err := d.Cancel(); err != nil {
		errs = append(errs, fmt.Errorf("stop motor: %w", err))
	}
	if d.line != nil {
		if err := d.line.Reconfigure(gpiocdev.AsInput); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure motor line: %w", err))
		}
		if err := d.line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close motor line: %w", err))
		}
	}
	if d.chip != nil {
		if err := d.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}
	return errors.Join(errs...)
}
