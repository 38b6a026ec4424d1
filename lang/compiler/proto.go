package compiler

import (
	"golang.org/x/exp/slices"

	"github.com/mna/luon/lang/intern"
)

// LocalDebug records one local variable's name and declaration line, for the
// optional debug vector described by spec.md §3/§4.3.
type LocalDebug struct {
	Name *intern.Symbol
	Line int32
}

// UpvalueSource records how a closure captures one of its upvalues from the
// enclosing function's frame, at the moment CLOSURE is executed: either the
// parent's local slot Index, or (if Index refers to the parent's own
// string-constant pool) the global named there. This is the runtime
// counterpart of the compiler's upvalDesc (spec.md §4.3, §4.5: "CLOSURE
// ... with b upvalues").
type UpvalueSource struct {
	Local bool
	Index int
}

// Prototype is the compiled representation of one function: its code
// vector, constant pools, and declared metadata (spec.md §3, "Prototype (the
// output)"). It is built incrementally by a *state record while a function
// body is open, then trimmed and frozen when the function closes.
type Prototype struct {
	Source string // source-name reference, carried for diagnostics

	Code []Instruction

	Strings  []*intern.Symbol
	Numbers  []float64
	Children []*Prototype

	NumParams int
	IsVararg  bool
	MaxStack  int

	// Upvalues has one entry per upvalue the function references (spec.md
	// §4.3's upvalue vector), in bindUpvalue's assignment order, matching
	// CLOSURE's b operand.
	Upvalues []UpvalueSource

	// Locals is nil when debug info is disabled (spec.md §9 "Debug info":
	// sentinel count -1 means the vector is never allocated).
	Locals []LocalDebug

	// Lines holds one source line per instruction in Code, when debug info is
	// enabled. Otherwise nil.
	Lines []int32
}

// debugEnabled reports whether p is tracking per-local and per-instruction
// debug info.
func (p *Prototype) debugEnabled() bool { return p.Locals != nil || p.Lines != nil }

// trim shrinks every growable vector to its exact used length, the close-time
// invariant spec.md §3 requires ("at close, all four vectors are trimmed to
// their exact used length").
func (p *Prototype) trim() {
	p.Code = slices.Clip(p.Code)
	p.Strings = slices.Clip(p.Strings)
	p.Numbers = slices.Clip(p.Numbers)
	p.Children = slices.Clip(p.Children)
	p.Upvalues = slices.Clip(p.Upvalues)
	if p.Locals != nil {
		p.Locals = slices.Clip(p.Locals)
	}
	if p.Lines != nil {
		p.Lines = slices.Clip(p.Lines)
	}
}
