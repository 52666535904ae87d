// Command qshape plans, executes and tests shaped relational queries.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/qshape/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
