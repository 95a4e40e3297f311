package runtime

import (
	"testing"

	"github.com/oyc-lang/oyc/internal/bytecode"
	"github.com/oyc-lang/oyc/internal/vm"
)

func noopHandler(_ *vm.VM, _ []vm.Value) (vm.Value, error) { return vm.Null(), nil }

func TestRegisterAndLookupByName(t *testing.T) {
	Register(Spec{Name: "t_lookup_me", Arity: 2, Handler: noopHandler})

	spec, ok := LookupByName("t_lookup_me")
	if !ok {
		t.Fatalf("expected t_lookup_me to be registered")
	}
	if spec.Arity != 2 {
		t.Fatalf("expected arity 2, got %d", spec.Arity)
	}

	if _, ok := LookupByName("t_never_registered"); ok {
		t.Fatalf("expected t_never_registered to be absent")
	}
}

func TestRegisterAlsoPublishesBytecodeDisplayMetadata(t *testing.T) {
	Register(Spec{Name: "t_disasm_meta", Arity: 3, Handler: noopHandler})

	info, ok := bytecode.LookupNativeInfo("t_disasm_meta")
	if !ok {
		t.Fatalf("expected disassembler metadata for t_disasm_meta")
	}
	if info.Arity != 3 {
		t.Fatalf("expected arity 3, got %d", info.Arity)
	}
}

func TestRegisterPanicsOnDuplicateName(t *testing.T) {
	Register(Spec{Name: "t_duplicate", Arity: 0, Handler: noopHandler})

	defer func() {
		if recover() == nil {
			t.Fatalf("expected registering t_duplicate twice to panic")
		}
	}()
	Register(Spec{Name: "t_duplicate", Arity: 0, Handler: noopHandler})
}

func TestRegisterPanicsOnNilHandler(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected registering a nil handler to panic")
		}
	}()
	Register(Spec{Name: "t_nil_handler"})
}

func TestAllIncludesEveryRegisteredSpec(t *testing.T) {
	Register(Spec{Name: "t_all_member", Arity: 1, Handler: noopHandler})

	found := false
	for _, spec := range All() {
		if spec.Name == "t_all_member" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected All() to include t_all_member")
	}
}
