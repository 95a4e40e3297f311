// Package trace registers oyc's sole required builtin: trace(args…)
// (spec.md §4.6).
package trace

import (
	"fmt"

	"github.com/oyc-lang/oyc/internal/runtime"
	"github.com/oyc-lang/oyc/internal/vm"
)

func init() {
	runtime.Register(runtime.Spec{
		Name:    "trace",
		Arity:   -1, // variadic
		Handler: run,
	})
}

// run writes each argument's formatted representation separated by a
// single space, followed by a newline, to the VM's output sink.
func run(m *vm.VM, args []vm.Value) (vm.Value, error) {
	out := m.Output()
	for i, a := range args {
		if i > 0 {
			fmt.Fprint(out, " ")
		}
		fmt.Fprint(out, vm.Trace(a))
	}
	fmt.Fprintln(out)
	return vm.Void(), nil
}
