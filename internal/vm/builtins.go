package vm

type nativeSpec struct {
	name    string
	arity   int
	handler NativeFunc
}

var nativeRegistry []nativeSpec

// RegisterNative installs a native function under name, to be bound into
// every new VM's globals by installBuiltins. Called from each builtin
// package's init(), mirroring the teacher's opcode-registry pattern but
// keyed by name since oyc natives are ordinary closure values, not opcodes.
func RegisterNative(name string, arity int, handler NativeFunc) {
	if handler == nil {
		panic("nil native handler for " + name)
	}
	nativeRegistry = append(nativeRegistry, nativeSpec{name: name, arity: arity, handler: handler})
}

func installBuiltins(vm *VM) {
	for _, spec := range nativeRegistry {
		vm.globals[spec.name] = NewClosure(&Closure{Native: spec.handler, Name: spec.name})
	}
}
