package driver

import (
	"errors"
	"testing"

	"beatsense/internal/haptic"
)

func TestOpen(t *testing.T) {
	tests := []struct {
		name      string
		opts      Options
		wantCaps  haptic.Capabilities
		wantErrIs error
	}{
		{"default is log", Options{}, haptic.Capabilities{Vibration: true, Class: haptic.ClassNone}, nil},
		{"log with class", Options{Kind: KindLog, Class: haptic.ClassWatch}, haptic.Capabilities{Vibration: true, Class: haptic.ClassWatch}, nil},
		{"none", Options{Kind: KindNone}, haptic.Capabilities{Class: haptic.ClassNone}, nil},
		{"unknown", Options{Kind: "rumble"}, haptic.Capabilities{}, haptic.ErrInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := Open(tt.opts)
			if tt.wantErrIs != nil {
				if !errors.Is(err, tt.wantErrIs) {
					t.Fatalf("Open() error = %v, want %v", err, tt.wantErrIs)
				}
				return
			}
			if err != nil {
				t.Fatalf("Open() error = %v", err)
			}
			if got := d.Probe(); got != tt.wantCaps {
				t.Errorf("Probe() = %+v, want %+v", got, tt.wantCaps)
			}
			if err := Close(d); err != nil {
				t.Errorf("Close() error = %v", err)
			}
		})
	}
}
