package bytecode

// OpCode enumerates the register-machine instructions. Every instruction is
// a fixed-width (opcode, A, B, C) triple; individual opcodes interpret A/B/C
// as registers, constant-pool indices, or signed jump offsets as documented
// per group below.
const (
	OP_NOP byte = iota

	// Loads. A=dst.
	OP_LOAD_NULL
	OP_LOAD_VOID
	OP_LOAD_BOOL  // B = 0/1
	OP_LOAD_CONST // B = const index
	OP_MOVE       // B = src

	// Globals. A=reg, B=const index (name).
	OP_GET_GLOBAL
	OP_SET_GLOBAL

	// Arithmetic/bitwise/compare. A=dst, B=left, C=right.
	OP_ADD
	OP_SUB
	OP_MUL
	OP_DIV
	OP_MOD
	OP_SHL
	OP_SHR
	OP_BAND
	OP_BOR
	OP_BXOR
	OP_EQ
	OP_NEQ
	OP_LT
	OP_LTE
	OP_GT
	OP_GTE

	// Unary. A=dst, B=src.
	OP_NEG
	OP_NOT
	OP_BNOT
	OP_TO_BOOL

	// Casts. A=dst, B=src.
	OP_CAST_INT
	OP_CAST_FLOAT
	OP_CAST_STR
	OP_CAST_BOOL

	// Containers.
	OP_NEW_ARRAY    // A=dst
	OP_NEW_STRUCT   // A=dst
	OP_ARRAY_APPEND // A=arr, B=value (append at next dense index)
	OP_ARRAY_SET    // A=arr, B=index, C=value (gap-filled with null)
	OP_STRUCT_SET   // A=struct, B=key, C=value
	OP_IDX_GET      // A=dst, B=container, C=index
	OP_IDX_SET      // A=container, B=index, C=value
	OP_FIELD_GET    // A=dst, B=struct, C=const index (field name)
	OP_FIELD_SET    // A=struct, B=const index (field name), C=value
	OP_DEL_INDEX    // A=container, B=index
	OP_DEL_FIELD    // A=struct, B=const index (field name)
	OP_TYPEOF       // A=dst, B=src
	OP_SIZEOF       // A=dst, B=src

	// Control flow. Offsets are relative to the instruction following the jump.
	OP_JMP            // B = signed offset
	OP_JMP_IF_FALSE   // A = cond reg, B = signed offset
	OP_JMP_IF_TRUE    // A = cond reg, B = signed offset

	// Calls. A=fnReg (argBase = fnReg+1), B=argCount, C=retReg.
	OP_CALL
	OP_RETURN      // A = src reg
	OP_RETURN_VOID

	// Closures/upvalues.
	OP_CLOSE_FN // A=dst, B=proto index; followed by upvalue-count descriptor words in the code stream
	OP_UP_GET   // A=dst, B=upvalue index
	OP_UP_SET   // A=upvalue index, B=src
	OP_CLOSE_UP // A=reg

	// Iteration (foreach lowering).
	OP_ITER_INIT // A=dst (cursor), B=src (iterable)
	OP_ITER_NEXT // A=ok dst (bool), B=cursor
	OP_ITER_KEY  // A=dst, B=cursor
	OP_ITER_VAL  // A=dst, B=cursor

	// require(path, args...). A=dst, B=argCount, C=pathReg (argBase = pathReg+1).
	OP_REQUIRE
)

// IsJump reports whether op carries a relative jump offset in B.
func IsJump(op byte) bool {
	switch op {
	case OP_JMP, OP_JMP_IF_FALSE, OP_JMP_IF_TRUE:
		return true
	default:
		return false
	}
}
