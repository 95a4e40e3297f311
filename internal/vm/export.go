package vm

import "fmt"

// currentFrame returns the innermost active call frame, or nil if the VM
// isn't running (e.g. a host constructing a RuntimeError before Run).
func (vm *VM) currentFrame() *frame {
	if len(vm.frames) == 0 {
		return nil
	}
	return vm.frames[len(vm.frames)-1]
}

// RuntimeErrorf builds a RuntimeError carrying rt's current frame location,
// for a host to raise from a native function body.
func RuntimeErrorf(rt *VM, format string, args ...interface{}) (Value, error) {
	if rt == nil {
		return Value{}, fmt.Errorf(format, args...)
	}
	return Value{}, rt.errorf(rt.currentFrame(), format, args...)
}

// TypeName reports the dynamic type name for a value (spec.md §4.6).
func TypeName(v Value) string {
	return typeName(v)
}

// Index reads target[index] the way OP_IDX_GET does: out-of-range array
// reads and absent struct keys both yield void rather than an error.
func Index(target, index Value) (Value, error) {
	return indexGet(target, index)
}
