// Command rete runs rule scenarios against a Rete network and inspects
// their journals.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/rete/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
