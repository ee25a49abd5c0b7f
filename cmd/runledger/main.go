// Command runledger manages append-only run event logs.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/runledger/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.GetExitCode(err))
	}
}
