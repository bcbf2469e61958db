// Command dhall evaluates, type-checks, hashes, and exports typed
// configuration files.
package main

import (
	"os"

	"github.com/roach88/dhall/internal/cli"
)

func main() {
	os.Exit(cli.Main())
}
