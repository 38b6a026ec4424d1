package machine

import "github.com/mna/luon/lang/compiler"

// Callable is any value CALL can invoke: a bytecode Closure, a Builtin, or a
// BoundMethod (cell.go).
type Callable interface {
	Value
	Call(th *Thread, args []Value) ([]Value, error)
}

// Closure is a runtime function value: a compiled Prototype paired with the
// values of the upvalues it captured at closure-creation time. CLOSURE's
// upvalue operands are ordinary materialised pushes (PUSHLOCAL/GETGLOBAL),
// not a bind-cell mechanism, so a closure captures its free variables by
// value-snapshot at the moment it is created, matching the language
// family's historical behaviour before live-cell closures existed (see
// DESIGN.md's "upvalues captured by value" note).
type Closure struct {
	Proto    *compiler.Prototype
	Upvalues []Value
}

func (c *Closure) String() string { return "function" }
func (c *Closure) Type() string   { return "function" }

func (c *Closure) Call(th *Thread, args []Value) ([]Value, error) {
	return th.run(c, args)
}
