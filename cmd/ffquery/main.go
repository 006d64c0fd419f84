// Command ffquery queries clinical studies and medical citations.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/ffquery/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
