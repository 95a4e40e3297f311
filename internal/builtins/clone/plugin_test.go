package clone_test

import (
	"testing"

	_ "github.com/oyc-lang/oyc/internal/builtins/clone"
	"github.com/oyc-lang/oyc/internal/runtime"
	"github.com/oyc-lang/oyc/internal/vm"
)

func TestCloneIsRegisteredArityOne(t *testing.T) {
	spec, ok := runtime.LookupByName("clone")
	if !ok {
		t.Fatalf("expected clone to be registered by its init()")
	}
	if spec.Arity != 1 {
		t.Fatalf("expected clone's arity to be 1, got %d", spec.Arity)
	}
}

func TestCloneGivesArrayFreshIdentity(t *testing.T) {
	spec, _ := runtime.LookupByName("clone")
	m := vm.New(nil)

	orig := vm.Value{Kind: vm.KindArray, Arr: &vm.ArrayObj{Items: []vm.Value{vm.Int(1), vm.Int(2)}}}
	out, err := spec.Handler(m, []vm.Value{orig})
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if out.Kind != vm.KindArray {
		t.Fatalf("expected array, got %#v", out)
	}
	if out.Arr == orig.Arr {
		t.Fatalf("expected a distinct array object, got the same pointer")
	}
	out.Arr.Items[0] = vm.Int(99)
	if orig.Arr.Items[0].I != 1 {
		t.Fatalf("expected mutating the clone to leave the original untouched, got %#v", orig.Arr.Items[0])
	}
}

func TestCloneOnScalarIsIdentity(t *testing.T) {
	spec, _ := runtime.LookupByName("clone")
	m := vm.New(nil)
	out, err := spec.Handler(m, []vm.Value{vm.Int(7)})
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if out.Kind != vm.KindInt || out.I != 7 {
		t.Fatalf("expected int 7 unchanged, got %#v", out)
	}
}
