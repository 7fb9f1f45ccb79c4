//go:build !js

package driver

import (
	"fmt"

	"beatsense/internal/haptic"
)

func openBrowser() (haptic.Driver, error) {
	return nil, fmt.Errorf("browser driver needs a js build: %w", haptic.ErrUnsupportedCapability)
}
