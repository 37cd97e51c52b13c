// Command reconnoiter runs port scans, subdomain enumeration and host sweeps,
// from the command line or behind an HTTP API.
package main

import "github.com/anstrom/reconnoiter/cmd/cli"

// Set by ldflags, e.g. -X main.version=v1.0.0.
var (
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

func main() {
	cli.SetVersion(version, commit, buildTime)
	cli.Execute()
}
