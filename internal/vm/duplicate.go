package vm

// Clone deep-copies v, giving arrays, structs, and closures fresh identity
// (spec.md §3.2/§3.3: containers are reference types, so plain `=` aliases;
// a host or script wanting an independent copy needs this instead). Cyclic
// and shared structures are preserved: two references to the same array
// reaching Clone end up pointing at the same cloned array, and a cycle
// clones to an equally-cyclic structure rather than looping forever.
func Clone(v Value) Value {
	return newCloneState().cloneValue(v)
}

type cloneState struct {
	arrays   map[*ArrayObj]*ArrayObj
	structs  map[*StructObj]*StructObj
	closures map[*Closure]*Closure
	upvalues map[*upvalue]*upvalue
}

func newCloneState() *cloneState {
	return &cloneState{
		arrays:   make(map[*ArrayObj]*ArrayObj),
		structs:  make(map[*StructObj]*StructObj),
		closures: make(map[*Closure]*Closure),
		upvalues: make(map[*upvalue]*upvalue),
	}
}

func (cs *cloneState) cloneValue(v Value) Value {
	switch v.Kind {
	case KindArray:
		if v.Arr == nil {
			return v
		}
		if out, ok := cs.arrays[v.Arr]; ok {
			return Value{Kind: KindArray, Arr: out}
		}
		out := &ArrayObj{}
		cs.arrays[v.Arr] = out
		out.Items = make([]Value, len(v.Arr.Items))
		for i, item := range v.Arr.Items {
			out.Items[i] = cs.cloneValue(item)
		}
		return Value{Kind: KindArray, Arr: out}
	case KindStruct:
		if v.Struc == nil {
			return v
		}
		if out, ok := cs.structs[v.Struc]; ok {
			return Value{Kind: KindStruct, Struc: out}
		}
		out := &StructObj{Index: make(map[string]int, len(v.Struc.Index))}
		cs.structs[v.Struc] = out
		for k, i := range v.Struc.Index {
			out.Index[k] = i
		}
		out.Keys = append([]Value(nil), v.Struc.Keys...)
		out.Values = make([]Value, len(v.Struc.Values))
		for i, val := range v.Struc.Values {
			out.Values[i] = cs.cloneValue(val)
		}
		return Value{Kind: KindStruct, Struc: out}
	case KindClosure:
		if v.Clos == nil {
			return v
		}
		return Value{Kind: KindClosure, Clos: cs.cloneClosure(v.Clos)}
	default:
		return v
	}
}

func (cs *cloneState) cloneClosure(c *Closure) *Closure {
	if out, ok := cs.closures[c]; ok {
		return out
	}
	out := &Closure{Proto: c.Proto, Native: c.Native, Name: c.Name}
	cs.closures[c] = out
	if c.Upvalues != nil {
		out.Upvalues = make([]*upvalue, len(c.Upvalues))
		for i, uv := range c.Upvalues {
			out.Upvalues[i] = cs.cloneUpvalue(uv)
		}
	}
	return out
}

func (cs *cloneState) cloneUpvalue(uv *upvalue) *upvalue {
	if uv == nil {
		return nil
	}
	if out, ok := cs.upvalues[uv]; ok {
		return out
	}
	out := &upvalue{}
	cs.upvalues[uv] = out
	out.closed = cs.cloneValue(uv.get())
	return out
}
