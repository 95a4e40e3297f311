// Package clone registers oyc's clone(v) builtin (spec.md §3.2: arrays and
// structs are reference types, so copy semantics need an explicit call).
package clone

import (
	"github.com/oyc-lang/oyc/internal/runtime"
	"github.com/oyc-lang/oyc/internal/vm"
)

func init() {
	runtime.Register(runtime.Spec{
		Name:    "clone",
		Arity:   1,
		Handler: run,
	})
}

// run deep-copies args[0], giving any array, struct, or closure reached from
// it fresh identity while preserving shared and cyclic structure.
func run(m *vm.VM, args []vm.Value) (vm.Value, error) {
	return vm.Clone(args[0]), nil
}
