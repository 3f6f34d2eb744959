// Command appsim validates, inspects and runs declarative app definitions.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/appsim/internal/cli"
)

func main() {
	root := cli.NewRootCommand()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.GetExitCode(err))
	}
}
