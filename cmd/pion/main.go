// Package main implements the pion daemon: an event processing platform
// that reads, transforms and stores typed events through configurable
// chains of reactors, served over its own HTTP front end.
package main

import (
	"fmt"
	"os"
	"runtime"
)

const (
	// Version is the release version stamped into logs and the CLI.
	Version = "0.1.0"
	appName = "pion"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, buf[:n])
			os.Exit(2)
		}
	}()

	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
