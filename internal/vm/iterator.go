package vm

import "fmt"

// newIteratorState builds the cursor ITER_INIT installs (spec.md §9): array
// iteration re-reads the current length each step, so appending during
// iteration extends the visited range; struct iteration snapshots the key
// list up front, so mutations during iteration never change which keys are
// visited. cursor starts at -1 so the first ITER_NEXT advances to index 0.
func newIteratorState(src Value) (*iteratorState, error) {
	switch src.Kind {
	case KindArray:
		return &iteratorState{arr: src.Arr, cursor: -1}, nil
	case KindStruct:
		snapshot := append([]Value(nil), src.Struc.Keys...)
		return &iteratorState{str: &StructObj{Keys: snapshot, Values: src.Struc.Values, Index: src.Struc.Index}, cursor: -1}, nil
	default:
		return nil, fmt.Errorf("type error: foreach requires an array or struct, got %s", src.Kind)
	}
}

// advance moves the cursor forward and reports whether a value is available.
func (it *iteratorState) advance() bool {
	it.cursor++
	if it.arr != nil {
		return it.cursor < len(it.arr.Items)
	}
	return it.cursor < len(it.str.Keys)
}

func (it *iteratorState) key() Value {
	if it.arr != nil {
		return Int(int64(it.cursor))
	}
	return it.str.Keys[it.cursor]
}

func (it *iteratorState) value() Value {
	if it.arr != nil {
		return it.arr.Items[it.cursor]
	}
	// Struct values are looked up live by key, not from the snapshot, so a
	// value reassigned mid-iteration (but not deleted or added) is observed.
	name, _ := structKeyString(it.str.Keys[it.cursor])
	if i, ok := it.str.Index[name]; ok {
		return it.str.Values[i]
	}
	return Void()
}
