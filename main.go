// SPDX-License-Identifier: MIT
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"beatsense/cmd"
	"beatsense/internal/log"
	"beatsense/pkg/build"
)

func main() {
	// Development builds carry no ldflags; build info falls back to VCS data.
	if err := build.Initialize(); err != nil {
		log.Debugf("Build: %v", err)
	}

	// One thread for the capture callback, one for the pipeline consumers
	// and UI.
	runtime.GOMAXPROCS(2)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := cmd.Execute(ctx, os.Args[1:])
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
