package bytecode

import (
	"fmt"
	"io"
	"strconv"
)

// Disassembler prints human-readable listings of compiled prototypes. A
// single instance walks a tree of prototypes reached via OP_CLOSE_FN const
// references, printing each one exactly once.
type Disassembler struct {
	w       io.Writer
	visited map[*Prototype]bool
}

// NewDisassembler creates a Disassembler writing to w.
func NewDisassembler(w io.Writer) *Disassembler {
	return &Disassembler{w: w, visited: map[*Prototype]bool{}}
}

// DisassembleModule prints the module's entry prototype and every nested
// prototype reachable from its constant pools, depth-first.
func (d *Disassembler) DisassembleModule(m *Module) error {
	if m == nil || m.Entry == nil {
		return fmt.Errorf("disassemble: empty module")
	}
	return d.DisassemblePrototype("main", m.Entry)
}

// DisassemblePrototype prints one prototype under the given label, followed
// by any nested prototypes found in its constant pool.
func (d *Disassembler) DisassemblePrototype(label string, proto *Prototype) error {
	if proto == nil {
		return fmt.Errorf("disassemble %s: nil prototype", label)
	}
	if d.visited[proto] {
		return nil
	}
	d.visited[proto] = true

	d.startSection(label, proto)
	if err := d.disassembleChunk(proto); err != nil {
		return err
	}

	var nested []*Prototype
	for _, c := range proto.Chunk.Consts {
		if p, ok := c.(*Prototype); ok {
			nested = append(nested, p)
		}
	}
	for i, p := range nested {
		if _, err := fmt.Fprintln(d.w); err != nil {
			return err
		}
		if err := d.DisassemblePrototype(fmt.Sprintf("%s::%d", label, i), p); err != nil {
			return err
		}
	}
	return nil
}

func (d *Disassembler) startSection(label string, proto *Prototype) {
	name := proto.Name
	if name == "" {
		name = label
	}
	fmt.Fprintf(d.w, "func %s(params=%d, registers=%d)\n", name, proto.NumParams, proto.RegisterCount)
	if len(proto.Upvalues) > 0 {
		fmt.Fprintf(d.w, "  upvalues:")
		for i, uv := range proto.Upvalues {
			kind := "upvalue"
			if uv.FromParentLocal {
				kind = "local"
			}
			fmt.Fprintf(d.w, " [%d]=%s(%d)", i, kind, uv.Index)
		}
		fmt.Fprintln(d.w)
	}
}

func (d *Disassembler) disassembleChunk(proto *Prototype) error {
	chunk := proto.Chunk
	ip := 0
	for ip < len(chunk.Code) {
		op, a, b, c, nextIP, err := Decode(chunk.Code, ip)
		if err != nil {
			return err
		}
		line := lineForOffset(chunk.Lines, ip)
		fmt.Fprintf(d.w, "  %04d  line %-4d  %s\n", ip, line, d.decodeOperands(op, a, b, c, chunk, ip, nextIP))
		ip = nextIP
		if op == OP_CLOSE_FN {
			target := d.protoAt(chunk, b)
			if target != nil {
				for i := 0; i < len(target.Upvalues); i++ {
					fromLocal, idx, next, err := ReadUpvalueDescriptor(chunk.Code, ip)
					if err != nil {
						return err
					}
					kind := "upvalue"
					if fromLocal {
						kind = "local"
					}
					fmt.Fprintf(d.w, "  %04d  upvalue %s(%d)\n", ip, kind, idx)
					ip = next
				}
			}
		}
	}
	return nil
}

func (d *Disassembler) protoAt(chunk *Chunk, idx int16) *Prototype {
	if int(idx) < 0 || int(idx) >= len(chunk.Consts) {
		return nil
	}
	p, _ := chunk.Consts[idx].(*Prototype)
	return p
}

func (d *Disassembler) decodeOperands(op byte, a uint8, b, c int16, chunk *Chunk, ip, nextIP int) string {
	name := opName(op)
	switch op {
	case OP_LOAD_NULL, OP_LOAD_VOID, OP_NEW_ARRAY, OP_NEW_STRUCT:
		return fmt.Sprintf("%-16s r%d", name, a)
	case OP_LOAD_BOOL:
		return fmt.Sprintf("%-16s r%d, %v", name, a, b != 0)
	case OP_LOAD_CONST:
		return fmt.Sprintf("%-16s r%d, const[%d] ; %s", name, a, b, formatConst(chunk, b))
	case OP_MOVE, OP_NEG, OP_NOT, OP_BNOT, OP_TO_BOOL,
		OP_CAST_INT, OP_CAST_FLOAT, OP_CAST_STR, OP_CAST_BOOL,
		OP_TYPEOF, OP_SIZEOF, OP_UP_GET, OP_ITER_KEY, OP_ITER_VAL:
		return fmt.Sprintf("%-16s r%d, r%d", name, a, b)
	case OP_GET_GLOBAL, OP_SET_GLOBAL:
		return fmt.Sprintf("%-16s r%d, %s", name, a, formatConst(chunk, b))
	case OP_ADD, OP_SUB, OP_MUL, OP_DIV, OP_MOD, OP_SHL, OP_SHR,
		OP_BAND, OP_BOR, OP_BXOR, OP_EQ, OP_NEQ, OP_LT, OP_LTE, OP_GT, OP_GTE,
		OP_ARRAY_SET, OP_STRUCT_SET, OP_IDX_GET, OP_IDX_SET:
		return fmt.Sprintf("%-16s r%d, r%d, r%d", name, a, b, c)
	case OP_ARRAY_APPEND:
		return fmt.Sprintf("%-16s r%d, r%d", name, a, b)
	case OP_FIELD_GET:
		return fmt.Sprintf("%-16s r%d, r%d, %s", name, a, b, formatConst(chunk, c))
	case OP_FIELD_SET:
		return fmt.Sprintf("%-16s r%d, %s, r%d", name, a, formatConst(chunk, b), c)
	case OP_DEL_INDEX:
		return fmt.Sprintf("%-16s r%d, r%d", name, a, b)
	case OP_DEL_FIELD:
		return fmt.Sprintf("%-16s r%d, %s", name, a, formatConst(chunk, b))
	case OP_JMP:
		return fmt.Sprintf("%-16s -> %04d (offset %d)", name, nextIP+int(b), b)
	case OP_JMP_IF_FALSE, OP_JMP_IF_TRUE:
		return fmt.Sprintf("%-16s r%d, -> %04d (offset %d)", name, a, nextIP+int(b), b)
	case OP_CALL:
		return fmt.Sprintf("%-16s r%d, argc=%d, ret=r%d", name, a, b, c)
	case OP_RETURN:
		return fmt.Sprintf("%-16s r%d", name, a)
	case OP_RETURN_VOID:
		return name
	case OP_CLOSE_FN:
		return fmt.Sprintf("%-16s r%d, proto[%d]", name, a, b)
	case OP_UP_SET:
		return fmt.Sprintf("%-16s upvalue[%d], r%d", name, a, b)
	case OP_CLOSE_UP:
		return fmt.Sprintf("%-16s r%d", name, a)
	case OP_ITER_INIT:
		return fmt.Sprintf("%-16s r%d, r%d", name, a, b)
	case OP_ITER_NEXT:
		return fmt.Sprintf("%-16s r%d, r%d", name, a, b)
	case OP_REQUIRE:
		return fmt.Sprintf("%-16s r%d, argc=%d, path=r%d", name, a, b, c)
	case OP_NOP:
		return name
	default:
		return fmt.Sprintf("%-16s a=%d b=%d c=%d ; unknown opcode 0x%02x", name, a, b, c, op)
	}
}

func formatConst(chunk *Chunk, idx int16) string {
	if int(idx) < 0 || int(idx) >= len(chunk.Consts) {
		return "<bad const>"
	}
	return formatConstValue(chunk.Consts[idx])
}

func formatConstValue(v interface{}) string {
	switch c := v.(type) {
	case string:
		return strconv.Quote(c)
	case int64:
		return strconv.FormatInt(c, 10)
	case float64:
		return strconv.FormatFloat(c, 'g', -1, 64)
	case *Prototype:
		return fmt.Sprintf("<func %s>", c.Name)
	default:
		return fmt.Sprintf("%v", c)
	}
}

func lineForOffset(lines []LineInfo, offset int) int {
	line := 0
	for _, li := range lines {
		if li.Offset > offset {
			break
		}
		line = li.Line
	}
	return line
}

func opName(op byte) string {
	if n, ok := opNames[op]; ok {
		return n
	}
	return fmt.Sprintf("OP_0x%02x", op)
}

var opNames = map[byte]string{
	OP_NOP:          "NOP",
	OP_LOAD_NULL:    "LOAD_NULL",
	OP_LOAD_VOID:    "LOAD_VOID",
	OP_LOAD_BOOL:    "LOAD_BOOL",
	OP_LOAD_CONST:   "LOAD_CONST",
	OP_MOVE:         "MOVE",
	OP_GET_GLOBAL:   "GET_GLOBAL",
	OP_SET_GLOBAL:   "SET_GLOBAL",
	OP_ADD:          "ADD",
	OP_SUB:          "SUB",
	OP_MUL:          "MUL",
	OP_DIV:          "DIV",
	OP_MOD:          "MOD",
	OP_SHL:          "SHL",
	OP_SHR:          "SHR",
	OP_BAND:         "BAND",
	OP_BOR:          "BOR",
	OP_BXOR:         "BXOR",
	OP_EQ:           "EQ",
	OP_NEQ:          "NEQ",
	OP_LT:           "LT",
	OP_LTE:          "LTE",
	OP_GT:           "GT",
	OP_GTE:          "GTE",
	OP_NEG:          "NEG",
	OP_NOT:          "NOT",
	OP_BNOT:         "BNOT",
	OP_TO_BOOL:      "TO_BOOL",
	OP_CAST_INT:     "CAST_INT",
	OP_CAST_FLOAT:   "CAST_FLOAT",
	OP_CAST_STR:     "CAST_STR",
	OP_CAST_BOOL:    "CAST_BOOL",
	OP_NEW_ARRAY:    "NEW_ARRAY",
	OP_NEW_STRUCT:   "NEW_STRUCT",
	OP_ARRAY_APPEND: "ARRAY_APPEND",
	OP_ARRAY_SET:    "ARRAY_SET",
	OP_STRUCT_SET:   "STRUCT_SET",
	OP_IDX_GET:      "IDX_GET",
	OP_IDX_SET:      "IDX_SET",
	OP_FIELD_GET:    "FIELD_GET",
	OP_FIELD_SET:    "FIELD_SET",
	OP_DEL_INDEX:    "DEL_INDEX",
	OP_DEL_FIELD:    "DEL_FIELD",
	OP_TYPEOF:       "TYPEOF",
	OP_SIZEOF:       "SIZEOF",
	OP_JMP:          "JMP",
	OP_JMP_IF_FALSE: "JMP_IF_FALSE",
	OP_JMP_IF_TRUE:  "JMP_IF_TRUE",
	OP_CALL:         "CALL",
	OP_RETURN:       "RETURN",
	OP_RETURN_VOID:  "RETURN_VOID",
	OP_CLOSE_FN:     "CLOSE_FN",
	OP_UP_GET:       "UP_GET",
	OP_UP_SET:       "UP_SET",
	OP_CLOSE_UP:     "CLOSE_UP",
	OP_ITER_INIT:    "ITER_INIT",
	OP_ITER_NEXT:    "ITER_NEXT",
	OP_ITER_KEY:     "ITER_KEY",
	OP_ITER_VAL:     "ITER_VAL",
	OP_REQUIRE:      "REQUIRE",
}
