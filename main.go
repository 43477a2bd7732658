// dbt_rocket is a CLI tool that runs a dbt project through the dbt
// command-line tool and reports the outcome through its exit status.
//
// See README.md for usage documentation.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/riyasyash/dbt_rocket/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		var exitErr *cmd.ExitError
		if !errors.As(err, &exitErr) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(cmd.ExitCode(err))
	}
}
