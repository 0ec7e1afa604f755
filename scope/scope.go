// Package scope implements the variable scope chain described in §4.4: a
// parent-linked tree of identifier-to-value bindings with three distinct
// write modes (set, set_local, set_global), used by the document executor
// for lexical assignment, call-frame isolation, and the global escape hatch.
//
// Grounded on a contrast with the teacher's flat dotted-key value store
// (runtime/engine/dsl/value_store.go, runtime/engine/yaml/value_store.go):
// that teacher store is a single flat map with no parent chain, which
// cannot express §4.4's call/loop isolation invariants, so this package is
// a fresh parent-linked tree instead of an adaptation of that file. stdlib
// only -- see DESIGN.md's standard-library justifications.
package scope

import "github.com/bdnk1/abml/value"

// Scope is one node in the parent-linked chain (§3 VariableScope). The root
// scope (document scope) has a nil parent and bounds the lifetime of every
// descendant.
type Scope struct {
	parent *Scope
	vars   map[string]value.Value
}

// New returns a fresh root scope with no parent.
func New() *Scope {
	return &Scope{vars: make(map[string]value.Value)}
}

// CreateChild returns a new empty scope whose parent is s.
func (s *Scope) CreateChild() *Scope {
	return &Scope{parent: s, vars: make(map[string]value.Value)}
}

// Root walks to the top of the chain, i.e. the document scope.
func (s *Scope) Root() *Scope {
	cur := s
	for cur.parent != nil {
		cur = cur.parent
	}
	return cur
}

// Get walks parent links, returning the first binding found, or value.Null
// if name is unbound anywhere in the chain.
func (s *Scope) Get(name string) value.Value {
	for cur := s; cur != nil; cur = cur.parent {
		if v, ok := cur.vars[name]; ok {
			return v
		}
	}
	return value.Null
}

// Lookup is like Get but also reports whether the binding exists, so
// callers can distinguish "bound to null" from "unbound".
func (s *Scope) Lookup(name string) (value.Value, bool) {
	for cur := s; cur != nil; cur = cur.parent {
		if v, ok := cur.vars[name]; ok {
			return v, true
		}
	}
	return value.Null, false
}

// Set walks parent links; if a binding for name exists anywhere in the
// chain, it is mutated in place. Otherwise a new binding is created in the
// current (local) scope. This is natural lexical assignment.
func (s *Scope) Set(name string, v value.Value) {
	for cur := s; cur != nil; cur = cur.parent {
		if _, ok := cur.vars[name]; ok {
			cur.vars[name] = v
			return
		}
	}
	s.vars[name] = v
}

// SetLocal always creates or overwrites name in the current scope,
// shadowing any parent binding. Used for for_each loop variables and call
// frames, which must be isolated from their enclosing scope.
func (s *Scope) SetLocal(name string, v value.Value) {
	s.vars[name] = v
}

// SetGlobal creates or overwrites name in the root (document) scope,
// regardless of intervening bindings. The escape hatch for state that must
// outlive a call, e.g. _error_handled or cross-flow flags.
func (s *Scope) SetGlobal(name string, v value.Value) {
	s.Root().vars[name] = v
}

// DeleteLocal removes name from the current scope only (does not affect a
// parent binding the key might shadow). Used to clear _error_handled before
// running an error chain (§4.6 step 2) so a stale true doesn't mask a new
// error.
func (s *Scope) DeleteLocal(name string) {
	delete(s.vars, name)
}
