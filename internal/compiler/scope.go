package compiler

// funcScope tracks register allocation, block-nested locals, and upvalue
// capture for one function body (the implicit top-level program is a
// function too). Registers are allocated off a single stack pointer (top):
// locals occupy a register for the lifetime of their enclosing block,
// temporaries are allocated above the current locals and freed in LIFO
// order once the expression that needed them has produced its result.
// highWater records the largest top ever reached, which becomes the
// compiled Prototype's RegisterCount.
type funcScope struct {
	parent       *funcScope
	blocks       []*blockScope
	upvalues     []UpvalueDesc
	upvalueIndex map[string]uint8
	top          uint8
	highWater    uint8
	captured     map[uint8]bool
}

// blockScope is one nested `{ ... }` lexical block within a function.
type blockScope struct {
	locals   map[string]uint8
	savedTop uint8
}

func newFuncScope(parent *funcScope) *funcScope {
	fs := &funcScope{parent: parent, upvalueIndex: make(map[string]uint8)}
	fs.pushBlock()
	return fs
}

func (fs *funcScope) pushBlock() {
	fs.blocks = append(fs.blocks, &blockScope{locals: make(map[string]uint8), savedTop: fs.top})
}

// popBlock releases every register owned by the block (its locals and any
// temporaries allocated above them) back to the allocator.
func (fs *funcScope) popBlock() {
	n := len(fs.blocks)
	b := fs.blocks[n-1]
	fs.blocks = fs.blocks[:n-1]
	fs.top = b.savedTop
}

// declareLocal reserves the next register for a named local in the
// innermost block.
func (fs *funcScope) declareLocal(name string) uint8 {
	reg := fs.alloc()
	fs.blocks[len(fs.blocks)-1].locals[name] = reg
	return reg
}

// resolveLocal searches this function's block chain, innermost first.
func (fs *funcScope) resolveLocal(name string) (uint8, bool) {
	for i := len(fs.blocks) - 1; i >= 0; i-- {
		if reg, ok := fs.blocks[i].locals[name]; ok {
			return reg, true
		}
	}
	return 0, false
}

// resolveUpvalue walks enclosing function scopes to find name, recording a
// capture chain of UpvalueDesc entries as it goes. Repeated lookups for the
// same name reuse the same upvalue slot.
func (fs *funcScope) resolveUpvalue(name string) (uint8, bool) {
	if idx, ok := fs.upvalueIndex[name]; ok {
		return idx, true
	}
	if fs.parent == nil {
		return 0, false
	}
	if reg, ok := fs.parent.resolveLocal(name); ok {
		fs.parent.markCaptured(reg)
		return fs.addUpvalue(name, UpvalueDesc{FromParentLocal: true, Index: reg}), true
	}
	if idx, ok := fs.parent.resolveUpvalue(name); ok {
		return fs.addUpvalue(name, UpvalueDesc{FromParentLocal: false, Index: idx}), true
	}
	return 0, false
}

// markCaptured records that reg (a local register in this scope) has been
// captured as an upvalue by some nested closure, so the compiler must emit
// CLOSE_UP for it when its owning block exits, before the register is
// recycled for an unrelated local or temporary (spec.md §3.6: an open
// upvalue's target register must be a live slot of the variable it names).
func (fs *funcScope) markCaptured(reg uint8) {
	if fs.captured == nil {
		fs.captured = make(map[uint8]bool)
	}
	fs.captured[reg] = true
}

func (fs *funcScope) addUpvalue(name string, desc UpvalueDesc) uint8 {
	fs.upvalues = append(fs.upvalues, desc)
	idx := uint8(len(fs.upvalues) - 1)
	fs.upvalueIndex[name] = idx
	return idx
}

// alloc reserves the next free register without binding it to a name.
func (fs *funcScope) alloc() uint8 {
	reg := fs.top
	fs.top++
	if fs.top > fs.highWater {
		fs.highWater = fs.top
	}
	return reg
}

// mark snapshots the current stack pointer, to be restored by freeTo once a
// temporary's lifetime ends.
func (fs *funcScope) mark() uint8 { return fs.top }

// freeTo releases every temporary allocated since mark, in LIFO order.
func (fs *funcScope) freeTo(mark uint8) { fs.top = mark }
