package cmd

import (
	"github.com/bdnk1/abml/examples/httpaction"
	"github.com/bdnk1/abml/handler"
)

// registerExampleHandlers wires the reference domain handlers shipped under
// examples/ (§4.5 "domain handlers are registered by the host") so
// examples/docs/*.yaml documents that use http_request run out of the box
// from the CLI, the same way a real host would register its own.
func registerExampleHandlers(reg *handler.Registry) {
	reg.Register(httpaction.New())
}
