// Command fieldrules validates rule files and runs rule scenarios.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/roach88/fieldrules/internal/cli"
)

func main() {
	err := cli.NewRootCommand().Execute()
	if err == nil {
		return
	}
	// Commands report their own failures; print only what they did not.
	var exitErr *cli.ExitError
	if !errors.As(err, &exitErr) {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	os.Exit(cli.GetExitCode(err))
}
