package bytecode

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// constKind tags a Consts pool entry's dynamic type for serialization:
// interface{} slots can hold int64, float64, string, or a nested
// *Prototype (for closure literals), and a wire format needs an explicit
// tag to round-trip that polymorphism.
type constKind byte

const (
	constKindInt constKind = iota
	constKindFloat
	constKindString
	constKindProto
)

// wireConst is Consts[i] tagged for msgpack encoding.
type wireConst struct {
	Kind  constKind
	Int   int64      `msgpack:",omitempty"`
	Float float64    `msgpack:",omitempty"`
	Str   string     `msgpack:",omitempty"`
	Proto *wireProto `msgpack:",omitempty"`
}

type wireChunk struct {
	Code   []byte
	Consts []wireConst
	Lines  []LineInfo
}

type wireProto struct {
	Name          string
	Source        string
	NumParams     int
	RegisterCount int
	Chunk         *wireChunk
	Upvalues      []UpvalueDesc
}

// MarshalModule serializes m to msgpack bytes, tagging each Consts pool
// entry so its int64/float64/string/*Prototype polymorphism round-trips.
func MarshalModule(m *Module) ([]byte, error) {
	w, err := encodeProto(m.Entry)
	if err != nil {
		return nil, err
	}
	return msgpack.Marshal(w)
}

// UnmarshalModule is MarshalModule's inverse.
func UnmarshalModule(data []byte) (*Module, error) {
	var w wireProto
	if err := msgpack.Unmarshal(data, &w); err != nil {
		return nil, err
	}
	proto, err := decodeProto(&w)
	if err != nil {
		return nil, err
	}
	return &Module{Entry: proto}, nil
}

func encodeProto(p *Prototype) (*wireProto, error) {
	if p == nil {
		return nil, nil
	}
	wc, err := encodeChunk(p.Chunk)
	if err != nil {
		return nil, err
	}
	return &wireProto{
		Name:          p.Name,
		Source:        p.Source,
		NumParams:     p.NumParams,
		RegisterCount: p.RegisterCount,
		Chunk:         wc,
		Upvalues:      p.Upvalues,
	}, nil
}

func decodeProto(w *wireProto) (*Prototype, error) {
	if w == nil {
		return nil, nil
	}
	chunk, err := decodeChunk(w.Chunk)
	if err != nil {
		return nil, err
	}
	return &Prototype{
		Name:          w.Name,
		Source:        w.Source,
		NumParams:     w.NumParams,
		RegisterCount: w.RegisterCount,
		Chunk:         chunk,
		Upvalues:      w.Upvalues,
	}, nil
}

func encodeChunk(c *Chunk) (*wireChunk, error) {
	if c == nil {
		return nil, nil
	}
	consts := make([]wireConst, len(c.Consts))
	for i, v := range c.Consts {
		switch x := v.(type) {
		case int64:
			consts[i] = wireConst{Kind: constKindInt, Int: x}
		case float64:
			consts[i] = wireConst{Kind: constKindFloat, Float: x}
		case string:
			consts[i] = wireConst{Kind: constKindString, Str: x}
		case *Prototype:
			wp, err := encodeProto(x)
			if err != nil {
				return nil, err
			}
			consts[i] = wireConst{Kind: constKindProto, Proto: wp}
		default:
			return nil, fmt.Errorf("bytecode: cannot serialize constant of type %T", v)
		}
	}
	return &wireChunk{Code: c.Code, Consts: consts, Lines: c.Lines}, nil
}

func decodeChunk(w *wireChunk) (*Chunk, error) {
	if w == nil {
		return nil, nil
	}
	consts := make([]interface{}, len(w.Consts))
	for i, wc := range w.Consts {
		switch wc.Kind {
		case constKindInt:
			consts[i] = wc.Int
		case constKindFloat:
			consts[i] = wc.Float
		case constKindString:
			consts[i] = wc.Str
		case constKindProto:
			p, err := decodeProto(wc.Proto)
			if err != nil {
				return nil, err
			}
			consts[i] = p
		default:
			return nil, fmt.Errorf("bytecode: unknown constant tag %d", wc.Kind)
		}
	}
	return &Chunk{Code: w.Code, Consts: consts, Lines: w.Lines}, nil
}
