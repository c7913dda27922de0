// Command livemark compiles reactive templates and runs binding scenarios.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/livemark/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.GetExitCode(err))
	}
}
