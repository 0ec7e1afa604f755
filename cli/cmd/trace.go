package cmd

import (
	"fmt"

	"github.com/Jeffail/gabs/v2"
	"github.com/bdnk1/abml/document"
	"github.com/bdnk1/abml/exec"
	"github.com/bdnk1/abml/expr/bytecode"
	"github.com/bdnk1/abml/expr/compiler"
	"github.com/bdnk1/abml/scope"
	"github.com/bdnk1/abml/value"
	"github.com/bdnk1/abml/vm"
	"github.com/spf13/cobra"
)

var traceCmd = &cobra.Command{
	Use:   "trace <document.yaml> <expression>",
	Short: "Compile and execute a single ABML expression, printing its instruction trace",
	Long: `trace compiles the given expression (the same embedded-expression
grammar used inside a document's "${...}" interpolations) and runs it on
the register VM with tracing enabled, printing one JSON document whose
"steps" array holds one entry per executed instruction, followed by the
expression's "result" or its "error" (§4.3 "Tracing mode").

The document argument seeds the expression's scope from
metadata.properties, so an expression can reference values a real
document would expose at its root scope.`,
	Args: cobra.ExactArgs(2),
	RunE: runTrace,
}

func runTrace(_ *cobra.Command, args []string) error {
	doc, err := document.Load(args[0])
	if err != nil {
		return fmt.Errorf("trace: %w", err)
	}

	compiled, err := compiler.Compile(args[1])
	if err != nil {
		return fmt.Errorf("trace: compile: %w", err)
	}

	scp := scope.New()
	for k, v := range doc.Metadata.Properties {
		scp.SetLocal(k, value.FromGo(v))
	}
	funcs := exec.NewFuncRegistry()

	root := gabs.New()
	m := vm.New()
	result, runErr := m.ExecuteTrace(compiled, scp, funcs, func(pc int, op bytecode.Opcode, destReg uint8, snapshot string) {
		root.ArrayAppend(map[string]any{
			"pc":       pc,
			"op":       op.String(),
			"register": destReg,
			"value":    snapshot,
		}, "steps")
	})

	if runErr != nil {
		root.Set(runErr.Error(), "error")
	} else {
		root.Set(result.String(), "result")
	}
	fmt.Println(root.StringIndent("", "  "))
	return runErr
}
