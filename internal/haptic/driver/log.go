package driver

import (
	"beatsense/internal/haptic"
	"beatsense/internal/log"
)

// LogDriver writes each actuation to the log instead of moving a motor. It is
// the default on desktops, where it makes the haptic channel observable.
type LogDriver struct {
	class haptic.DeviceClass
}

// NewLogDriver reports itself as a vibrating device of the given class.
func NewLogDriver(class haptic.DeviceClass) *LogDriver {
	if class == "" {
		class = haptic.ClassNone
	}
	log.Info("Haptic: Using LogDriver")
	return &LogDriver{class: class}
}

func (d *LogDriver) Vibrate(pattern []int) error {
	log.Infof("Haptic: vibrate %v (%dms)", pattern, haptic.Total(pattern))
	return nil
}

func (d *LogDriver) Cancel() error {
	log.Debugf("Haptic: cancel")
	return nil
}

func (d *LogDriver) Probe() haptic.Capabilities {
	return haptic.Capabilities{Vibration: true, Class: d.class}
}

var _ haptic.Driver = (*LogDriver)(nil)
