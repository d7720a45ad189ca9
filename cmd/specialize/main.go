// Command specialize compiles node kind declarations, runs conformance
// scenarios against the dispatcher, and inspects recorded traces.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/specialize/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.GetExitCode(err))
	}
}
