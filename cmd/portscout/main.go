// Command portscout is the portscout CLI entry point. All command
// wiring lives in cmd/cli; this package only injects build metadata.
package main

import (
	"github.com/anstrom/portscout/cmd/cli"
)

// Build information - set by ldflags during build.
var (
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

func main() {
	cli.SetVersion(version, commit, buildTime)
	cli.Execute()
}
