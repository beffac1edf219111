// Command csvrunner runs the command in one column of a CSV or YAML table
// for every row and records the outcomes next to the input.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/csvrunner/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.GetExitCode(err))
	}
}
