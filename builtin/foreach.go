package builtin

import (
	"sort"

	"github.com/bdnk1/abml/document"
	"github.com/bdnk1/abml/handler"
	"github.com/bdnk1/abml/value"
)

type forEachHandler struct{}

func (forEachHandler) Name() string { return document.ActionForEach }

// Execute implements "for_each { variable, collection, do }" (§4.6, §8
// "loop variable isolation"). The loop variable is bound in a dedicated
// child scope created once before the loop and discarded after it, so an
// outer binding of the same name is untouched regardless of how many
// iterations run. A mapping is iterated by its keys sorted lexically: the
// runtime's map.Value is an unordered Go map, so "insertion order" as
// written in the source document cannot be recovered after YAML decode;
// sorted-key order is used instead as a deterministic, documented stand-in.
func (h forEachHandler) Execute(action *document.Action, ctx handler.Context) handler.Result {
	coll, err := ctx.EvalInterpolated(action.Collection)
	if err != nil {
		return errResult(err, ctx.FlowName(), document.ActionForEach)
	}

	var elems []value.Value
	switch coll.Kind() {
	case value.KindSeq:
		elems = coll.SeqElems()
	case value.KindMap:
		m := coll.MapEntries()
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		elems = make([]value.Value, len(keys))
		for i, k := range keys {
			elems[i] = m[k]
		}
	default:
		return structuralErr(ctx.FlowName(), document.ActionForEach, "for_each: collection must be a sequence or mapping, got %s", coll.Kind())
	}

	loopScope := ctx.ChildScope()
	for _, el := range elems {
		loopScope.SetLocal(action.Variable, el)
		res, err := ctx.RunActionsIn(loopScope, action.Do)
		if err != nil {
			return errResult(err, ctx.FlowName(), document.ActionForEach)
		}
		if res.Kind == handler.StopFlow {
			return handler.ContinueResult()
		}
		if res.Kind != handler.Continue {
			return res
		}
	}
	return handler.ContinueResult()
}
