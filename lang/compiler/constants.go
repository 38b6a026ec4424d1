package compiler

import (
	"github.com/mna/luon/lang/intern"
)

// numberScanWindow bounds the backward linear search for number-constant
// de-duplication (spec.md §4.2: "scan backwards over at most the last 20
// entries").
const numberScanWindow = 20

// constPool manages one prototype's three constant vectors, per spec.md
// §4.2. Strings de-duplicate by interned identity with a one-entry cache per
// symbol; numbers de-duplicate by a bounded backward scan; nested prototypes
// are never de-duplicated.
type constPool struct {
	proto *Prototype

	// stringIndex caches, for each interned symbol seen by this prototype,
	// the index it was last stored at — the "cached index into some
	// prototype's string constant vector" of spec.md §4.2. Indexed by symbol
	// pointer, so identity (not value) is what matters.
	stringIndex map[*intern.Symbol]int
}

func newConstPool(proto *Prototype) *constPool {
	return &constPool{proto: proto, stringIndex: make(map[*intern.Symbol]int)}
}

// string returns the index of sym in the prototype's string constant
// vector, reusing the cached index if it still refers to sym, appending
// otherwise.
func (c *constPool) string(line int32, sym *intern.Symbol) int {
	if idx, ok := c.stringIndex[sym]; ok && idx < len(c.proto.Strings) && c.proto.Strings[idx] == sym {
		return idx
	}
	if len(c.proto.Strings) > MaxArgU {
		fail(line, ErrLimit, "too many string constants")
	}
	idx := len(c.proto.Strings)
	c.proto.Strings = append(c.proto.Strings, sym)
	c.stringIndex[sym] = idx
	return idx
}

// number returns the index of n in the prototype's number constant vector,
// reusing a match found within the last numberScanWindow entries, appending
// otherwise.
func (c *constPool) number(line int32, n float64) int {
	nums := c.proto.Numbers
	start := 0
	if len(nums) > numberScanWindow {
		start = len(nums) - numberScanWindow
	}
	for i := len(nums) - 1; i >= start; i-- {
		if nums[i] == n {
			return i
		}
	}
	if len(nums) > MaxArgU {
		fail(line, ErrLimit, "too many number constants")
	}
	idx := len(nums)
	c.proto.Numbers = append(c.proto.Numbers, n)
	return idx
}

// stringAt returns the text of the string constant at idx, for diagnostics
// (close_exp's Global case notifies the runtime of the name referenced).
func (c *constPool) stringAt(idx int) (string, bool) {
	if idx < 0 || idx >= len(c.proto.Strings) {
		return "", false
	}
	return c.proto.Strings[idx].Name(), true
}

// child appends proto as a nested prototype and returns its index. Never
// de-duplicated (spec.md §4.2).
func (c *constPool) child(line int32, proto *Prototype) int {
	if len(c.proto.Children) > MaxArgA {
		fail(line, ErrLimit, "too many nested functions")
	}
	idx := len(c.proto.Children)
	c.proto.Children = append(c.proto.Children, proto)
	return idx
}
