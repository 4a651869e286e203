// cfgblock parses indentation-structured device configurations and
// selects blocks from them.
package main

import (
	"fmt"
	"os"
)

// version is set at build time.
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "cfgblock: %v\n", err)
		os.Exit(1)
	}
}
