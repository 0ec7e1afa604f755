// Package cmd implements the abml CLI's command tree: run, validate, and
// trace. Grounded on the teacher's cli/cmd/root.go cobra wiring (a package
// global rootCmd, subcommands added from init), adapted from the teacher's
// build-a-deployable-binary tool to the spec's three ambient CLI
// operations (SPEC_FULL.md's AMBIENT STACK "CLI" section).
package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "abml",
	Short: "ABML runtime -- parse, validate, and run behavior documents",
	Long: `abml interprets ABML behavior documents: YAML-authored flows and
cooperatively scheduled channels driving NPC decision logic, branching
dialogue, and multi-channel cutscenes.`,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(traceCmd)
}
