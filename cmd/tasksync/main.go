// Command tasksync synchronizes tasks across local, GitHub, and Linear
// workspaces.
package main

import (
	"os"

	"github.com/alexbrand/tasksync/internal/cli"
	"github.com/alexbrand/tasksync/internal/credentials"
)

func main() {
	if err := credentials.Init(); err != nil {
		cli.PrintError(err)
		os.Exit(cli.ExitConfigError)
	}

	if err := cli.Execute(); err != nil {
		cli.PrintError(err)
		os.Exit(cli.GetExitCode(err))
	}
}
