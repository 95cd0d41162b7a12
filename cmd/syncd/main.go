// Command syncd runs the incremental sync engine.
package main

import (
	"os"

	"github.com/custodia-labs/syncd/internal/adapters/driving/cli"
)

// version is set at build time via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	cli.SetVersion(version)
	cli.SetOpener(openServices)
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
