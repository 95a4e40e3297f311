package vm

import (
	"fmt"
	"io"
	"sort"

	"github.com/oyc-lang/oyc/internal/bytecode"
)

// Disassemble emits assembly-style bytecode output for every closure
// currently bound in the VM's global namespace, in name order.
func (vm *VM) Disassemble(w io.Writer) error {
	if vm == nil {
		return fmt.Errorf("nil VM")
	}
	if w == nil {
		return fmt.Errorf("nil writer")
	}
	names := make([]string, 0, len(vm.globals))
	for name, val := range vm.globals {
		if val.Kind == KindClosure && val.Clos != nil && val.Clos.Proto != nil {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	dis := bytecode.NewDisassembler(w)
	for _, name := range names {
		if err := dis.DisassemblePrototype(name, vm.globals[name].Clos.Proto); err != nil {
			return err
		}
	}
	return nil
}

// DisassembleModule emits assembly-style bytecode output for a compiled
// module, without requiring it to be bound into any VM's globals.
func DisassembleModule(w io.Writer, m *bytecode.Module) error {
	return bytecode.NewDisassembler(w).DisassembleModule(m)
}
