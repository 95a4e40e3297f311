package compiler

import "github.com/oyc-lang/oyc/internal/bytecode"

const (
	OP_NOP          = bytecode.OP_NOP
	OP_LOAD_NULL    = bytecode.OP_LOAD_NULL
	OP_LOAD_VOID    = bytecode.OP_LOAD_VOID
	OP_LOAD_BOOL    = bytecode.OP_LOAD_BOOL
	OP_LOAD_CONST   = bytecode.OP_LOAD_CONST
	OP_MOVE         = bytecode.OP_MOVE
	OP_GET_GLOBAL   = bytecode.OP_GET_GLOBAL
	OP_SET_GLOBAL   = bytecode.OP_SET_GLOBAL
	OP_ADD          = bytecode.OP_ADD
	OP_SUB          = bytecode.OP_SUB
	OP_MUL          = bytecode.OP_MUL
	OP_DIV          = bytecode.OP_DIV
	OP_MOD          = bytecode.OP_MOD
	OP_SHL          = bytecode.OP_SHL
	OP_SHR          = bytecode.OP_SHR
	OP_BAND         = bytecode.OP_BAND
	OP_BOR          = bytecode.OP_BOR
	OP_BXOR         = bytecode.OP_BXOR
	OP_EQ           = bytecode.OP_EQ
	OP_NEQ          = bytecode.OP_NEQ
	OP_LT           = bytecode.OP_LT
	OP_LTE          = bytecode.OP_LTE
	OP_GT           = bytecode.OP_GT
	OP_GTE          = bytecode.OP_GTE
	OP_NEG          = bytecode.OP_NEG
	OP_NOT          = bytecode.OP_NOT
	OP_BNOT         = bytecode.OP_BNOT
	OP_TO_BOOL      = bytecode.OP_TO_BOOL
	OP_CAST_INT     = bytecode.OP_CAST_INT
	OP_CAST_FLOAT   = bytecode.OP_CAST_FLOAT
	OP_CAST_STR     = bytecode.OP_CAST_STR
	OP_CAST_BOOL    = bytecode.OP_CAST_BOOL
	OP_NEW_ARRAY    = bytecode.OP_NEW_ARRAY
	OP_NEW_STRUCT   = bytecode.OP_NEW_STRUCT
	OP_ARRAY_APPEND = bytecode.OP_ARRAY_APPEND
	OP_ARRAY_SET    = bytecode.OP_ARRAY_SET
	OP_STRUCT_SET   = bytecode.OP_STRUCT_SET
	OP_IDX_GET      = bytecode.OP_IDX_GET
	OP_IDX_SET      = bytecode.OP_IDX_SET
	OP_FIELD_GET    = bytecode.OP_FIELD_GET
	OP_FIELD_SET    = bytecode.OP_FIELD_SET
	OP_DEL_INDEX    = bytecode.OP_DEL_INDEX
	OP_DEL_FIELD    = bytecode.OP_DEL_FIELD
	OP_TYPEOF       = bytecode.OP_TYPEOF
	OP_SIZEOF       = bytecode.OP_SIZEOF
	OP_JMP          = bytecode.OP_JMP
	OP_JMP_IF_FALSE = bytecode.OP_JMP_IF_FALSE
	OP_JMP_IF_TRUE  = bytecode.OP_JMP_IF_TRUE
	OP_CALL         = bytecode.OP_CALL
	OP_RETURN       = bytecode.OP_RETURN
	OP_RETURN_VOID  = bytecode.OP_RETURN_VOID
	OP_CLOSE_FN     = bytecode.OP_CLOSE_FN
	OP_UP_GET       = bytecode.OP_UP_GET
	OP_UP_SET       = bytecode.OP_UP_SET
	OP_CLOSE_UP     = bytecode.OP_CLOSE_UP
	OP_ITER_INIT    = bytecode.OP_ITER_INIT
	OP_ITER_NEXT    = bytecode.OP_ITER_NEXT
	OP_ITER_KEY     = bytecode.OP_ITER_KEY
	OP_ITER_VAL     = bytecode.OP_ITER_VAL
	OP_REQUIRE      = bytecode.OP_REQUIRE
)
