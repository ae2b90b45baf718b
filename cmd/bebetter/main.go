// Command bebetter is the gamified habit tracker CLI and its sync server.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/bebetter/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
