package cmd

import (
	"fmt"

	"github.com/bdnk1/abml/document"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate <document.yaml>",
	Short: "Parse and structurally validate an ABML document",
	Args:  cobra.ExactArgs(1),
	RunE:  runValidate,
}

func runValidate(_ *cobra.Command, args []string) error {
	doc, err := document.Load(args[0])
	if err != nil {
		return fmt.Errorf("validate: %w", err)
	}
	fmt.Printf("OK: %s (version %s, %d flow(s), %d channel(s))\n",
		doc.Metadata.ID, doc.Version, len(doc.Flows), len(doc.Channels))
	return nil
}
