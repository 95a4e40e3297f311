package bytecode

import (
	"bytes"
	"strings"
	"testing"
)

func TestDisassembleSimpleArithmetic(t *testing.T) {
	chunk := &Chunk{Lines: []LineInfo{{Offset: 0, Line: 1}}}
	chunk.AddConst(int64(2))
	chunk.AddConst(int64(3))
	chunk.Emit(OP_LOAD_CONST, 0, 0, 0)
	chunk.Emit(OP_LOAD_CONST, 1, 1, 0)
	chunk.Emit(OP_ADD, 2, 0, 1)
	chunk.Emit(OP_RETURN, 2, 0, 0)

	proto := &Prototype{Name: "main", NumParams: 1, RegisterCount: 3, Chunk: chunk}

	var buf bytes.Buffer
	dis := NewDisassembler(&buf)
	if err := dis.DisassemblePrototype("main", proto); err != nil {
		t.Fatalf("disassemble: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "func main(params=1, registers=3)") {
		t.Fatalf("expected header, got:\n%s", out)
	}
	if !strings.Contains(out, "LOAD_CONST") || !strings.Contains(out, "ADD") || !strings.Contains(out, "RETURN") {
		t.Fatalf("expected instruction mnemonics, got:\n%s", out)
	}
	if !strings.Contains(out, `const[0] ; 2`) {
		t.Fatalf("expected const annotation, got:\n%s", out)
	}
}

func TestDisassembleJumpShowsResolvedTarget(t *testing.T) {
	chunk := &Chunk{Lines: []LineInfo{{Offset: 0, Line: 1}}}
	chunk.Emit(OP_LOAD_BOOL, 0, 1, 0)
	jumpOffset := chunk.Emit(OP_JMP_IF_FALSE, 0, 0, 0)
	chunk.Emit(OP_LOAD_NULL, 1, 0, 0)
	chunk.PatchB(jumpOffset, int16(len(chunk.Code)-(jumpOffset+InstructionWidth)))
	chunk.Emit(OP_RETURN_VOID, 0, 0, 0)

	proto := &Prototype{Name: "main", RegisterCount: 2, Chunk: chunk}
	var buf bytes.Buffer
	dis := NewDisassembler(&buf)
	if err := dis.DisassemblePrototype("main", proto); err != nil {
		t.Fatalf("disassemble: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "JMP_IF_FALSE") {
		t.Fatalf("expected jump mnemonic, got:\n%s", out)
	}
	if !strings.Contains(out, "-> 0018") {
		t.Fatalf("expected resolved jump target, got:\n%s", out)
	}
}

func TestDisassembleNestedClosureWithUpvalues(t *testing.T) {
	innerChunk := &Chunk{Lines: []LineInfo{{Offset: 0, Line: 2}}}
	innerChunk.Emit(OP_UP_GET, 0, 0, 0)
	innerChunk.Emit(OP_RETURN, 0, 0, 0)
	inner := &Prototype{
		Name:          "closure",
		RegisterCount: 1,
		Chunk:         innerChunk,
		Upvalues:      []UpvalueDesc{{FromParentLocal: true, Index: 0}},
	}

	outerChunk := &Chunk{Lines: []LineInfo{{Offset: 0, Line: 1}}}
	protoIdx := outerChunk.AddConst(inner)
	outerChunk.Emit(OP_CLOSE_FN, 1, int16(protoIdx), 0)
	outerChunk.EmitUpvalueDescriptor(true, 0)
	outerChunk.Emit(OP_RETURN, 1, 0, 0)
	outer := &Prototype{Name: "main", RegisterCount: 2, Chunk: outerChunk}

	var buf bytes.Buffer
	dis := NewDisassembler(&buf)
	if err := dis.DisassemblePrototype("main", outer); err != nil {
		t.Fatalf("disassemble: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "CLOSE_FN") {
		t.Fatalf("expected CLOSE_FN, got:\n%s", out)
	}
	if !strings.Contains(out, "upvalue local(0)") {
		t.Fatalf("expected upvalue descriptor line, got:\n%s", out)
	}
	if !strings.Contains(out, "func closure") {
		t.Fatalf("expected nested prototype section, got:\n%s", out)
	}
	if !strings.Contains(out, "UP_GET") {
		t.Fatalf("expected inner body instructions, got:\n%s", out)
	}
}

func TestNativeInfoRegistry(t *testing.T) {
	RegisterNativeInfo("trace", -1)
	info, ok := LookupNativeInfo("trace")
	if !ok {
		t.Fatalf("expected trace to be registered")
	}
	if info.Name != "trace" {
		t.Fatalf("unexpected name: %q", info.Name)
	}
	if _, ok := LookupNativeInfo("does-not-exist"); ok {
		t.Fatalf("expected lookup miss for unregistered name")
	}
}
