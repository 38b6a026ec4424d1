// Package intern implements the string-interning table that lang/scanner and
// lang/compiler rely on as an external collaborator (spec.md §1, §4.2):
// every NAME and STRING token is resolved to a canonical *Symbol so that
// lang/compiler's constant pool can de-duplicate string constants "by
// interned identity" instead of by value comparison.
package intern

import (
	"github.com/dolthub/swiss"
)

// A Symbol is the canonical, interned representation of a source string. Two
// Symbols are the same string if and only if they are the same pointer -
// this pointer identity is what lang/compiler's constant pool cache (spec.md
// §4.2: "if the cached index ... refers to the same interned object, reuse
// it") depends on.
type Symbol struct {
	name string
}

// Name returns the interned string value.
func (s *Symbol) Name() string { return s.name }

func (s *Symbol) String() string { return s.name }

// Table is the interning table. The zero value is not usable; use New.
//
// Table is not safe for concurrent use, matching spec.md §5's "non-reentrant
// during a single compilation" contract for the string table collaborator.
type Table struct {
	byName *swiss.Map[string, *Symbol]
}

// New returns an empty interning table sized for an initial capacity hint.
func New(sizeHint uint32) *Table {
	if sizeHint == 0 {
		sizeHint = 64
	}
	return &Table{byName: swiss.NewMap[string, *Symbol](sizeHint)}
}

// Intern returns the canonical Symbol for name, creating and storing one on
// first use. Subsequent calls with an equal string return the identical
// *Symbol pointer.
func (t *Table) Intern(name string) *Symbol {
	if sym, ok := t.byName.Get(name); ok {
		return sym
	}
	sym := &Symbol{name: name}
	t.byName.Put(name, sym)
	return sym
}

// Len returns the number of distinct interned strings.
func (t *Table) Len() int { return t.byName.Count() }
