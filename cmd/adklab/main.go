// Command adklab runs the travel agent system from the command line.
package main

import (
	"os"

	"github.com/shanjing/adk-lab/internal/cli"
)

func main() {
	if err := cli.NewRootCommand(os.Stdin, os.Stdout, os.Stderr).Execute(); err != nil {
		os.Exit(1)
	}
}
