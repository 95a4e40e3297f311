// Package runtime is the registry builtin packages install themselves
// into via init(): one Register call per script-visible native function.
package runtime

import (
	"fmt"

	"github.com/oyc-lang/oyc/internal/bytecode"
	"github.com/oyc-lang/oyc/internal/vm"
)

// Spec describes a native function bound into every VM's globals.
type Spec struct {
	Name    string
	Arity   int
	Handler vm.NativeFunc
}

var byName = map[string]Spec{}

// Register installs a native for both the VM's global table and the
// disassembler's display metadata.
func Register(spec Spec) {
	if spec.Handler == nil {
		panic(fmt.Sprintf("builtin %s has nil handler", spec.Name))
	}
	if _, exists := byName[spec.Name]; exists {
		panic(fmt.Sprintf("builtin %s already registered", spec.Name))
	}
	byName[spec.Name] = spec
	vm.RegisterNative(spec.Name, spec.Arity, spec.Handler)
	bytecode.RegisterNativeInfo(spec.Name, spec.Arity)
}

// LookupByName finds a builtin by its script-visible name.
func LookupByName(name string) (Spec, bool) {
	spec, ok := byName[name]
	return spec, ok
}

// All returns all registered builtins.
func All() []Spec {
	out := make([]Spec, 0, len(byName))
	for _, spec := range byName {
		out = append(out, spec)
	}
	return out
}
