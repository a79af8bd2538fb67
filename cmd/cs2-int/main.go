// cs2-int moves CS2 items between the inventory and storage units through
// ArchiSteamFarm's CS2 interface plugin.
package main

import (
	"os"

	"github.com/cs2interlink/cs2-int/internal/cli"
	"github.com/cs2interlink/cs2-int/internal/progress"
	"github.com/cs2interlink/cs2-int/internal/version"
)

// Version information, overridden with -ldflags at release builds.
var (
	Version   = "v0.1.0-dev"
	BuildTime = "unknown"
)

func main() {
	version.Version = Version
	version.BuildTime = BuildTime

	progress.EnableANSI(os.Stdout)
	progress.EnableANSI(os.Stderr)

	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
