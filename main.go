// Command abml is the runtime's CLI entrypoint: run/validate/trace over
// ABML documents (SPEC_FULL.md's AMBIENT STACK "CLI" section). Grounded on
// the teacher's main.go + cli/cmd/root.go split between the binary
// entrypoint and the cobra command tree.
package main

import (
	"fmt"
	"os"

	"github.com/bdnk1/abml/cli/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
