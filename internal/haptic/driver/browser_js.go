//go:build js

package driver

import (
	"fmt"

	"github.com/gopherjs/gopherjs/js"

	"beatsense/internal/haptic"
)

// BrowserDriver vibrates through the Web Vibration API when the pipeline is
// compiled to JavaScript.
type BrowserDriver struct {
	navigator *js.Object
	method    string // navigator method name, empty when unsupported
}

// NewBrowserDriver looks up the standard or a vendor-prefixed vibrate method.
func NewBrowserDriver() *BrowserDriver {
	d := &BrowserDriver{navigator: js.Global.Get("navigator")}
	if d.navigator == nil || d.navigator == js.Undefined {
		return d
	}
	for _, m := range []string{"vibrate", "mozVibrate", "webkitVibrate"} {
		if fn := d.navigator.Get(m); fn != nil && fn != js.Undefined {
			d.method = m
			break
		}
	}
	return d
}

// Vibrate hands the pattern to the browser.
func (d *BrowserDriver) Vibrate(pattern []int) (err error) {
	if d.method == "" {
		return haptic.ErrUnsupportedCapability
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("navigator.%s: %v", d.method, r)
		}
	}()
	d.navigator.Call(d.method, browserPattern(pattern))
	return nil
}

// Cancel calls vibrate(0).
func (d *BrowserDriver) Cancel() (err error) {
	if d.method == "" {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("navigator.%s(0): %v", d.method, r)
		}
	}()
	d.navigator.Call(d.method, 0)
	return nil
}

// Probe reports vibration support and classifies the user agent.
func (d *BrowserDriver) Probe() haptic.Capabilities {
	caps := haptic.Capabilities{Vibration: d.method != "", Class: haptic.ClassNone}
	if d.navigator != nil && d.navigator != js.Undefined {
		caps.Class = haptic.ClassifyUserAgent(d.navigator.Get("userAgent").String())
	}
	return caps
}

var _ haptic.Driver = (*BrowserDriver)(nil)

// browserPattern converts an idle-first pattern into the Web Vibration API
// order, which starts with a vibration period.
func browserPattern(pattern []int) []int {
	if len(pattern) > 0 && pattern[0] == 0 {
		return pattern[1:]
	}
	return append([]int{0}, pattern...)
}

func openBrowser() (haptic.Driver, error) {
	return NewBrowserDriver(), nil
}
