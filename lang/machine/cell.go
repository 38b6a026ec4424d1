package machine

import "fmt"

// cell.go holds the two Callable kinds that are not bytecode Closures. The
// teacher's own cell.go boxes a captured free variable so a closure can see
// live writes to it; this language captures upvalues by value instead (see
// closure.go), so there is no such box to adapt here. What the teacher's
// broader value.go Callable taxonomy does need, and what this file houses
// instead, is every non-bytecode callable: native Go functions, and the
// bound-method value PUSHSELF produces.

// Builtin is a callable implemented in Go, for names installed directly in
// a Runtime's global table (e.g. print) rather than compiled from source.
type Builtin struct {
	Name string
	Fn   func(th *Thread, args []Value) ([]Value, error)
}

func (b *Builtin) String() string { return fmt.Sprintf("builtin: %s", b.Name) }
func (b *Builtin) Type() string   { return "function" }
func (b *Builtin) Call(th *Thread, args []Value) ([]Value, error) {
	return b.Fn(th, args)
}

// BoundMethod is what PUSHSELF pushes (spec.md §6, "PUSHSELF u: push
// receiver and method-name[u]"): a single value pairing a receiver with the
// method looked up on it, so that CALL's "stack[a], args above" convention
// needs no dedicated self-argument slot — BoundMethod.Call prepends Receiver
// to the argument list, so CALL treats it like any other callee (see
// DESIGN.md's "PUSHSELF as a bound value, not a self slot" note).
type BoundMethod struct {
	Receiver Value
	Fn       Callable
}

func (m *BoundMethod) String() string { return "method" }
func (m *BoundMethod) Type() string   { return "function" }
func (m *BoundMethod) Call(th *Thread, args []Value) ([]Value, error) {
	full := make([]Value, 0, len(args)+1)
	full = append(full, m.Receiver)
	full = append(full, args...)
	return th.Call(m.Fn, full)
}
