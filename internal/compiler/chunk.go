package compiler

import "github.com/oyc-lang/oyc/internal/bytecode"

type Chunk = bytecode.Chunk
type Prototype = bytecode.Prototype
type Module = bytecode.Module
type UpvalueDesc = bytecode.UpvalueDesc
type LineInfo = bytecode.LineInfo
