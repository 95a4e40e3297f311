package vm

import (
	"fmt"
	"strconv"

	"github.com/oyc-lang/oyc/internal/bytecode"
)

// Kind identifies a Value's dynamic type (spec.md §3.1). kindIterator is an
// internal-only cursor state produced by ITER_INIT and never observable
// from script code: typeof/trace never see it.
type Kind int

const (
	KindNull Kind = iota
	KindVoid
	KindBool
	KindInt
	KindFloat
	KindString
	KindArray
	KindStruct
	KindClosure
	kindIterator
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindVoid:
		return "void"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "str"
	case KindArray:
		return "array"
	case KindStruct:
		return "struct"
	case KindClosure:
		return "closure"
	default:
		return "iterator"
	}
}

// NativeFunc is a host-provided callable bound into the globals table as an
// ordinary KindClosure value.
type NativeFunc func(m *VM, args []Value) (Value, error)

// Closure is either a compiled Prototype plus its captured upvalues, or a
// host-provided native function (Proto == nil).
type Closure struct {
	Proto    *bytecode.Prototype
	Upvalues []*upvalue
	Native   NativeFunc
	Name     string
}

// ArrayObj backs KindArray. Represented as a Go pointer so assignment and
// parameter passing share the same underlying storage (spec.md §3.2:
// arrays are reference types), letting Go's GC reclaim it with no manual
// refcounting.
type ArrayObj struct {
	Items []Value
}

// StructObj backs KindStruct, preserving first-assignment key order
// (spec.md §3.3). Keys are string or int Values; a type-tagged index lets
// the int key 5 and the string key "5" coexist as distinct entries.
type StructObj struct {
	Index  map[string]int
	Keys   []Value
	Values []Value
}

func NewStructObj() *StructObj {
	return &StructObj{Index: make(map[string]int)}
}

// structKeyString encodes a struct key for indexing. Only string and int
// keys are permitted (spec.md §3.3); the type tag prefix keeps the int key 5
// and the string key "5" from colliding.
func structKeyString(key Value) (string, error) {
	switch key.Kind {
	case KindString:
		return "s:" + key.S, nil
	case KindInt:
		return "i:" + strconv.FormatInt(key.I, 10), nil
	default:
		return "", fmt.Errorf("struct key must be string or int, got %s", key.Kind)
	}
}

func (s *StructObj) Get(key Value) (Value, bool, error) {
	ks, err := structKeyString(key)
	if err != nil {
		return Value{}, false, err
	}
	i, ok := s.Index[ks]
	if !ok {
		return Value{}, false, nil
	}
	return s.Values[i], true, nil
}

// Set inserts key in first-assignment order if new, else overwrites in place.
func (s *StructObj) Set(key Value, v Value) error {
	ks, err := structKeyString(key)
	if err != nil {
		return err
	}
	if i, ok := s.Index[ks]; ok {
		s.Values[i] = v
		return nil
	}
	s.Index[ks] = len(s.Keys)
	s.Keys = append(s.Keys, key)
	s.Values = append(s.Values, v)
	return nil
}

func (s *StructObj) Delete(key Value) error {
	ks, err := structKeyString(key)
	if err != nil {
		return err
	}
	i, ok := s.Index[ks]
	if !ok {
		return nil
	}
	delete(s.Index, ks)
	s.Keys = append(s.Keys[:i], s.Keys[i+1:]...)
	s.Values = append(s.Values[:i], s.Values[i+1:]...)
	for k := i; k < len(s.Keys); k++ {
		nk, _ := structKeyString(s.Keys[k])
		s.Index[nk] = k
	}
	return nil
}

// iteratorState is the cursor driven by ITER_INIT/NEXT/KEY/VAL; kindIterator
// values are never exposed to script code (spec.md §4.2).
type iteratorState struct {
	arr    *ArrayObj
	str    *StructObj
	cursor int
}

// Value is the tagged union of every runtime value oyc scripts manipulate.
// Heap-shaped kinds (array/struct/closure) hold a pointer so copies of a
// Value alias the same underlying storage, matching spec.md's reference
// semantics for containers and functions.
type Value struct {
	Kind  Kind
	I     int64
	F     float64
	B     bool
	S     string
	Arr   *ArrayObj
	Struc *StructObj
	Clos  *Closure
	iter  *iteratorState
}

func Null() Value           { return Value{Kind: KindNull} }
func Void() Value           { return Value{Kind: KindVoid} }
func Bool(b bool) Value     { return Value{Kind: KindBool, B: b} }
func Int(i int64) Value     { return Value{Kind: KindInt, I: i} }
func Float(f float64) Value { return Value{Kind: KindFloat, F: f} }
func String(s string) Value { return Value{Kind: KindString, S: s} }
func NewArray(items []Value) Value {
	return Value{Kind: KindArray, Arr: &ArrayObj{Items: items}}
}
func NewStruct(s *StructObj) Value { return Value{Kind: KindStruct, Struc: s} }
func NewClosure(c *Closure) Value  { return Value{Kind: KindClosure, Clos: c} }
func newIterator(it *iteratorState) Value {
	return Value{Kind: kindIterator, iter: it}
}

// Truthy implements spec.md §4.2's coercion rule for if/while/&&/||: null,
// void, false, 0, 0.0, "", and empty containers are falsy; everything
// else, including closures, is truthy.
func Truthy(v Value) bool {
	switch v.Kind {
	case KindNull, KindVoid:
		return false
	case KindBool:
		return v.B
	case KindInt:
		return v.I != 0
	case KindFloat:
		return v.F != 0
	case KindString:
		return v.S != ""
	case KindArray:
		return v.Arr != nil && len(v.Arr.Items) > 0
	case KindStruct:
		return v.Struc != nil && len(v.Struc.Keys) > 0
	default:
		return true
	}
}

// Equal implements spec.md §3.1's equality table: a type mismatch (including
// int vs float) is never equal; same-type scalars compare by value (NaN
// permitted unequal to itself via Go's native float ==); arrays, structs,
// and closures compare by heap identity.
func Equal(a, b Value) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case KindNull, KindVoid:
		return true
	case KindBool:
		return a.B == b.B
	case KindInt:
		return a.I == b.I
	case KindFloat:
		return a.F == b.F
	case KindString:
		return a.S == b.S
	case KindArray:
		return a.Arr == b.Arr
	case KindStruct:
		return a.Struc == b.Struc
	case KindClosure:
		return a.Clos == b.Clos
	default:
		return false
	}
}

func typeName(v Value) string {
	return v.Kind.String()
}

// stringify renders v the way trace()/str() format it (spec.md §4.6):
// cycle-safe, insertion-ordered struct keys, bracketed array/struct syntax.
// str() returns a bare string for KindString itself rather than calling
// this — stringify is only reached for the quoted, nested, or non-string
// cases.
func stringify(v Value) string {
	var sb []byte
	sb = appendValue(sb, v, map[interface{}]bool{})
	return string(sb)
}

func appendValue(buf []byte, v Value, seen map[interface{}]bool) []byte {
	switch v.Kind {
	case KindNull:
		return append(buf, "null"...)
	case KindVoid:
		return append(buf, "void"...)
	case KindBool:
		return append(buf, strconv.FormatBool(v.B)...)
	case KindInt:
		return append(buf, strconv.FormatInt(v.I, 10)...)
	case KindFloat:
		return append(buf, strconv.FormatFloat(v.F, 'g', -1, 64)...)
	case KindString:
		return append(buf, strconv.Quote(v.S)...)
	case KindArray:
		if v.Arr == nil {
			return append(buf, "[] {}"...)
		}
		if seen[v.Arr] {
			return append(buf, "[] {...}"...)
		}
		seen[v.Arr] = true
		buf = append(buf, "[] {"...)
		for i, item := range v.Arr.Items {
			if i > 0 {
				buf = append(buf, ", "...)
			}
			buf = appendValue(buf, item, seen)
		}
		buf = append(buf, '}')
		delete(seen, v.Arr)
		return buf
	case KindStruct:
		if v.Struc == nil {
			return append(buf, "struct {}"...)
		}
		if seen[v.Struc] {
			return append(buf, "struct {...}"...)
		}
		seen[v.Struc] = true
		buf = append(buf, "struct {"...)
		for i, k := range v.Struc.Keys {
			if i > 0 {
				buf = append(buf, ", "...)
			}
			buf = append(buf, '[')
			buf = appendValue(buf, k, seen)
			buf = append(buf, "] = "...)
			buf = appendValue(buf, v.Struc.Values[i], seen)
		}
		buf = append(buf, '}')
		delete(seen, v.Struc)
		return buf
	case KindClosure:
		return append(buf, "closure"...)
	default:
		return append(buf, "<iterator>"...)
	}
}
