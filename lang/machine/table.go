package machine

import (
	"fmt"
	"sort"

	"golang.org/x/exp/maps"
)

// Table is the runtime representation of a table constructor (spec.md §4.4,
// §7). Unlike real Lua's array/hash split, this is a single map keyed by a
// canonical comparable Go value (float64 for numbers, string for strings) —
// a deliberate simplification for this scope (see DESIGN.md) — plus a
// running count used by Append for SETLIST-style sequential population.
type Table struct {
	hash map[any]Value
	n    int
}

// NewTable returns an empty table, as CREATETABLE does (the size hint u is
// advisory only; Go's map does its own growth).
func NewTable() *Table {
	return &Table{hash: make(map[any]Value)}
}

func (t *Table) String() string { return fmt.Sprintf("table: %p", t) }
func (t *Table) Type() string   { return "table" }

func tableKey(k Value) (any, error) {
	switch k := k.(type) {
	case Number:
		return float64(k), nil
	case String:
		return string(k), nil
	case Nil:
		return nil, fmt.Errorf("table index is nil")
	default:
		return nil, fmt.Errorf("attempt to index a table with a %s key", k.Type())
	}
}

// Get implements GETTABLE's read side. A missing key reads as Nil, not an
// error.
func (t *Table) Get(k Value) (Value, error) {
	key, err := tableKey(k)
	if err != nil {
		return nil, err
	}
	if v, ok := t.hash[key]; ok {
		return v, nil
	}
	return Nil{}, nil
}

// Set implements SETTABLE/SETTABLEPOP/SETMAP's write side. Assigning Nil
// removes the key, matching the language's "unset by assigning nil" rule.
func (t *Table) Set(k, v Value) error {
	key, err := tableKey(k)
	if err != nil {
		return err
	}
	if _, isNil := v.(Nil); isNil {
		delete(t.hash, key)
		return nil
	}
	t.hash[key] = v
	return nil
}

// Append pushes v at the next sequential integer index, used by SETLIST's
// list-half flush (spec.md §4.4's table constructor list half): successive
// Append calls populate index 1, 2, 3, ... regardless of what record-half
// keys already occupy the table.
func (t *Table) Append(v Value) {
	t.n++
	t.hash[float64(t.n)] = v
}

// Keys returns the table's keys as Values, in a deterministic order (by
// type name, then by string form).
func (t *Table) Keys() []Value {
	raw := maps.Keys(t.hash)
	out := make([]Value, 0, len(raw))
	for _, k := range raw {
		switch k := k.(type) {
		case float64:
			out = append(out, Number(k))
		case string:
			out = append(out, String(k))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		ti, tj := out[i].Type(), out[j].Type()
		if ti != tj {
			return ti < tj
		}
		return out[i].String() < out[j].String()
	})
	return out
}
