// SPDX-License-Identifier: MIT
//
// Package build carries the name, version, commit and build time stamped into
// the beatsense binary by the linker:
//
//	go build -ldflags "-X beatsense/pkg/build.buildVersion=v1.2.0 ..."
//
// Fields the linker left empty fall back to the module's embedded VCS
// information, then to "unknown".
package build

import (
	"errors"
	"fmt"
	"runtime/debug"
)

// Description is the one-line summary shown by the CLI.
const Description = "Turns live or recorded audio into beat events and haptic patterns"

const unknown = "unknown"

// Info describes the running binary.
type Info struct {
	Name    string
	Version string
	Commit  string
	Time    string
}

// String formats the info for version output.
func (i Info) String() string {
	return fmt.Sprintf("%s %s (commit %s, built %s)", i.Name, i.Version, i.Commit, i.Time)
}

// Set with -ldflags -X.
var (
	buildName    string
	buildTime    string
	buildCommit  string
	buildVersion string
)

var current = Info{Name: "beatsense", Version: unknown, Commit: unknown, Time: unknown}

// readBuildInfo is replaced in tests.
var readBuildInfo = debug.ReadBuildInfo

// Initialize resolves the build info. The returned error names every linker
// variable that was not set; the info is usable either way.
func Initialize() error {
	var errs []error
	take := func(dst *string, val, flag string) {
		if val == "" {
			errs = append(errs, fmt.Errorf("%s not set", flag))
			return
		}
		*dst = val
	}
	take(&current.Name, buildName, "buildName")
	take(&current.Version, buildVersion, "buildVersion")
	take(&current.Commit, buildCommit, "buildCommit")
	take(&current.Time, buildTime, "buildTime")

	if len(errs) > 0 {
		fillFromVCS(&current)
	}
	return errors.Join(errs...)
}

// fillFromVCS replaces unknown fields with what the go command embedded.
func fillFromVCS(info *Info) {
	bi, ok := readBuildInfo()
	if !ok {
		return
	}
	if info.Version == unknown && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		info.Version = bi.Main.Version
	}
	for _, s := range bi.Settings {
		switch {
		case s.Key == "vcs.revision" && info.Commit == unknown:
			info.Commit = s.Value
		case s.Key == "vcs.time" && info.Time == unknown:
			info.Time = s.Value
		}
	}
}

// Current returns the build info resolved by Initialize.
func Current() Info {
	return current
}
