package scope

import (
	"testing"

	"github.com/bdnk1/abml/value"
)

func TestGetWalksParentChain(t *testing.T) {
	root := New()
	root.SetLocal("x", value.Int(1))
	child := root.CreateChild()

	if got := child.Get("x"); got.Int() != 1 {
		t.Errorf("child.Get(x) = %v, want 1", got)
	}
	if got := child.Get("missing"); !got.IsNull() {
		t.Errorf("child.Get(missing) = %v, want null", got)
	}
}

func TestSetMutatesExistingBindingInAncestor(t *testing.T) {
	root := New()
	root.SetLocal("x", value.Int(1))
	child := root.CreateChild()

	child.Set("x", value.Int(2))

	if got := root.Get("x"); got.Int() != 2 {
		t.Errorf("root.Get(x) after child.Set = %v, want 2", got)
	}
}

func TestSetCreatesLocalBindingWhenNoneExists(t *testing.T) {
	root := New()
	child := root.CreateChild()

	child.Set("y", value.Int(5))

	if _, ok := root.Lookup("y"); ok {
		t.Errorf("root should not see y created by child.Set")
	}
	if got := child.Get("y"); got.Int() != 5 {
		t.Errorf("child.Get(y) = %v, want 5", got)
	}
}

func TestSetLocalShadowsParentBinding(t *testing.T) {
	root := New()
	root.SetLocal("x", value.Int(1))
	child := root.CreateChild()

	child.SetLocal("x", value.Int(2))

	if got := root.Get("x"); got.Int() != 1 {
		t.Errorf("root.Get(x) = %v, want unchanged 1", got)
	}
	if got := child.Get("x"); got.Int() != 2 {
		t.Errorf("child.Get(x) = %v, want 2", got)
	}
}

func TestSetGlobalWritesRootRegardlessOfDepth(t *testing.T) {
	root := New()
	mid := root.CreateChild()
	leaf := mid.CreateChild()

	leaf.SetGlobal("g", value.String("v"))

	if got := root.Get("g"); got.Str() != "v" {
		t.Errorf("root.Get(g) = %v, want v", got)
	}
}

func TestDeleteLocalDoesNotAffectParent(t *testing.T) {
	root := New()
	root.SetLocal("h", value.Bool(true))
	child := root.CreateChild()
	child.SetLocal("h", value.Bool(true))

	child.DeleteLocal("h")

	if got := child.Get("h"); !got.Bool() {
		t.Errorf("child.Get(h) after DeleteLocal should fall through to parent's true, got %v", got)
	}
	child.DeleteLocal("nonexistent") // no-op, must not panic
}

func TestLookupDistinguishesUnboundFromNull(t *testing.T) {
	root := New()
	root.SetLocal("n", value.Null)

	v, ok := root.Lookup("n")
	if !ok || !v.IsNull() {
		t.Errorf("Lookup(n) = (%v, %v), want (null, true)", v, ok)
	}
	_, ok = root.Lookup("missing")
	if ok {
		t.Errorf("Lookup(missing) ok = true, want false")
	}
}
