// Command ctprun parses CTP trigger configurations and tracks runs.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/ctprun/internal/cli"
)

func main() {
	err := cli.NewRootCommand().Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
	}
	os.Exit(cli.GetExitCode(err))
}
