package driver

import (
	"slices"
	"sync"
	"time"

	"beatsense/internal/haptic"
	"beatsense/internal/log"
)

// Line is a digital output that switches a motor on (1) or off (0).
type Line interface {
	SetValue(value int) error
}

// LineDriver plays patterns on a Line from a background goroutine. Idle
// entries drive the line low, active entries drive it high. Starting a new
// pattern cancels the one in flight, so the last call wins.
type LineDriver struct {
	line  Line
	class haptic.DeviceClass

	mu   sync.Mutex
	stop chan struct{} // Closed to cancel the current player.
	done chan struct{} // Closed when the current player has exited.
}

// NewLineDriver wraps line. The line should already be configured as an
// output driven low.
func NewLineDriver(line Line, class haptic.DeviceClass) *LineDriver {
	return &LineDriver{line: line, class: class}
}

// Vibrate starts pattern and returns immediately.
func (d *LineDriver) Vibrate(pattern []int) error {
	pattern = slices.Clone(pattern)

	d.mu.Lock()
	defer d.mu.Unlock()
	d.halt()

	stop, done := make(chan struct{}), make(chan struct{})
	d.stop, d.done = stop, done
	go d.play(pattern, stop, done)
	return nil
}

// Cancel stops the current pattern and drives the line low.
func (d *LineDriver) Cancel() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.halt()
	return d.line.SetValue(0)
}

// Probe reports a vibrating device of the configured class.
func (d *LineDriver) Probe() haptic.Capabilities {
	return haptic.Capabilities{Vibration: true, Class: d.class}
}

// Wait blocks until the current pattern, if any, has finished.
func (d *LineDriver) Wait() {
	d.mu.Lock()
	done := d.done
	d.mu.Unlock()
	if done != nil {
		<-done
	}
}

// halt cancels the running player and waits for it to release the line.
// Callers hold d.mu.
func (d *LineDriver) halt() {
	if d.stop == nil {
		return
	}
	close(d.stop)
	<-d.done
	d.stop, d.done = nil, nil
}

func (d *LineDriver) play(pattern []int, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	defer func() {
		if err := d.line.SetValue(0); err != nil {
			log.Warnf("Haptic: Failed to release line: %v", err)
		}
	}()

	timer := time.NewTimer(time.Hour)
	timer.Stop()
	for i, ms := range pattern {
		if err := d.line.SetValue(i % 2); err != nil {
			log.Warnf("Haptic: Failed to drive line: %v", err)
			return
		}
		if ms <= 0 {
			continue
		}
		timer.Reset(time.Duration(ms) * time.Millisecond)
		select {
		case <-stop:
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

var _ haptic.Driver = (*LineDriver)(nil)
