// Command timingsrc looks up, validates and sequences timed cue datasets.
package main

import (
	"fmt"
	"os"

	"github.com/webtiming/timingsrc/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(cli.GetExitCode(err))
	}
}
