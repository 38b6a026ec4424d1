package machine

import (
	"fmt"

	"github.com/mna/luon/lang/compiler"
)

// Thread executes compiled prototypes against a shared global table
// (spec.md §5, §7). A Thread is not safe for concurrent use by multiple
// goroutines; spec.md's concurrency model (§5) only asks that prototypes
// under construction stay reachable during compilation, not that the
// executor itself be concurrent.
type Thread struct {
	// Globals is the shared table GETGLOBAL/SETGLOBAL read and write.
	Globals *Table

	// MaxSteps bounds the number of instructions a single Run may execute
	// before it is aborted, a safety cutoff for untrusted/runaway programs.
	// Zero means unlimited.
	MaxSteps int

	// MaxCallDepth bounds nested Go-level recursion through Call. Zero means
	// unlimited.
	MaxCallDepth int

	depth int
}

// NewThread returns a Thread with a fresh global table (or globals, if
// non-nil).
func NewThread(globals *Table) *Thread {
	if globals == nil {
		globals = NewTable()
	}
	return &Thread{Globals: globals}
}

// Run invokes the top-level closure produced by compiling a chunk (spec.md
// §8's end-to-end scenarios: "compile, then run, asserting the returned
// value").
func (th *Thread) Run(cl *Closure, args []Value) ([]Value, error) {
	return th.Call(cl, args)
}

// Call invokes any Callable, enforcing MaxCallDepth. CALL's own
// implementation and BoundMethod.Call both route back through here so every
// nested invocation, not just the top-level one, is depth-checked.
func (th *Thread) Call(c Callable, args []Value) ([]Value, error) {
	th.depth++
	defer func() { th.depth-- }()
	if th.MaxCallDepth > 0 && th.depth > th.MaxCallDepth {
		return nil, fmt.Errorf("stack overflow")
	}
	return c.Call(th, args)
}

// run is the bytecode interpreter loop for one Closure invocation: it
// executes exactly the opcode table of spec.md §6 against a per-call
// operand stack sized to the prototype's MaxStack. Parameter slots and
// temporaries share the same stack (no separate locals array), matching how
// lang/compiler addresses both PUSHLOCAL/SETLOCAL and temporaries by the
// same absolute slot index.
func (th *Thread) run(cl *Closure, args []Value) ([]Value, error) {
	proto := cl.Proto
	stack := make([]Value, proto.MaxStack)
	for i := range stack {
		stack[i] = Nil{}
	}

	nparams := proto.NumParams
	regular := nparams
	if proto.IsVararg {
		regular = nparams - 1
	}
	for i := 0; i < regular && i < len(args); i++ {
		stack[i] = args[i]
	}
	if proto.IsVararg {
		argt := NewTable()
		n := 0
		for i := regular; i < len(args); i++ {
			n++
			argt.Set(Number(n), args[i])
		}
		argt.Set(String("n"), Number(n))
		stack[nparams-1] = argt
	}

	sp := nparams
	pc := 0
	var steps uint64

	for {
		if th.MaxSteps > 0 {
			steps++
			if steps > uint64(th.MaxSteps) {
				return nil, runtimeErr(proto, pc, fmt.Errorf("exceeded step limit"))
			}
		}

		in := proto.Code[pc]
		switch in.Op {
		case compiler.ENDCODE:
			return nil, nil

		case compiler.PUSHNIL:
			n := int(in.U()) + 1
			for i := 0; i < n; i++ {
				stack[sp] = Nil{}
				sp++
			}

		case compiler.POP:
			sp -= int(in.U())

		case compiler.PUSHINT:
			stack[sp] = Number(float64(in.S()))
			sp++

		case compiler.PUSHNUM:
			stack[sp] = Number(proto.Numbers[in.U()])
			sp++

		case compiler.PUSHSTRING:
			stack[sp] = String(proto.Strings[in.U()].Name())
			sp++

		case compiler.PUSHLOCAL:
			stack[sp] = stack[in.U()]
			sp++

		case compiler.PUSHUPVALUE:
			stack[sp] = cl.Upvalues[in.U()]
			sp++

		case compiler.PUSHSELF:
			name := proto.Strings[in.U()].Name()
			recv := stack[sp-1]
			fn, err := th.resolveMethod(recv, name)
			if err != nil {
				return nil, runtimeErr(proto, pc, err)
			}
			stack[sp] = &BoundMethod{Receiver: recv, Fn: fn}
			sp++

		case compiler.GETGLOBAL:
			name := proto.Strings[in.U()].Name()
			v, err := th.Globals.Get(String(name))
			if err != nil {
				return nil, runtimeErr(proto, pc, err)
			}
			stack[sp] = v
			sp++

		case compiler.SETLOCAL:
			sp--
			stack[in.U()] = stack[sp]

		case compiler.SETGLOBAL:
			sp--
			name := proto.Strings[in.U()].Name()
			if err := th.Globals.Set(String(name), stack[sp]); err != nil {
				return nil, runtimeErr(proto, pc, err)
			}

		case compiler.GETTABLE:
			tbl := stack[sp-2]
			key := stack[sp-1]
			v, err := th.index(tbl, key)
			if err != nil {
				return nil, runtimeErr(proto, pc, err)
			}
			sp -= 2
			stack[sp] = v
			sp++

		case compiler.SETTABLE:
			u := int(in.U())
			val := stack[sp-1]
			key := stack[sp-1-u]
			tbl := stack[sp-2-u]
			if err := th.setIndex(tbl, key, val); err != nil {
				return nil, runtimeErr(proto, pc, err)
			}
			sp--

		case compiler.SETTABLEPOP:
			val := stack[sp-1]
			key := stack[sp-2]
			tbl := stack[sp-3]
			if err := th.setIndex(tbl, key, val); err != nil {
				return nil, runtimeErr(proto, pc, err)
			}
			sp -= 3

		case compiler.SETLIST:
			base := int(in.A())
			tbl, ok := stack[base].(*Table)
			if !ok {
				return nil, runtimeErr(proto, pc, fmt.Errorf("attempt to initialise a %s value as a list", stack[base].Type()))
			}
			for i := base + 1; i < sp; i++ {
				tbl.Append(stack[i])
			}
			sp = base + 1

		case compiler.SETMAP:
			pairs := int(in.U())
			tblIdx := sp - 2*pairs - 1
			tbl, ok := stack[tblIdx].(*Table)
			if !ok {
				return nil, runtimeErr(proto, pc, fmt.Errorf("attempt to initialise a %s value as a table", stack[tblIdx].Type()))
			}
			for i := 0; i < pairs; i++ {
				key := stack[tblIdx+1+2*i]
				val := stack[tblIdx+2+2*i]
				if err := tbl.Set(key, val); err != nil {
					return nil, runtimeErr(proto, pc, err)
				}
			}
			sp = tblIdx + 1

		case compiler.CREATETABLE:
			stack[sp] = NewTable()
			sp++

		case compiler.ADDOP, compiler.SUBOP, compiler.MULOP, compiler.DIVOP, compiler.POWOP:
			b := stack[sp-1]
			a := stack[sp-2]
			v, err := arith(arithSymbol(in.Op), a, b)
			if err != nil {
				return nil, runtimeErr(proto, pc, err)
			}
			sp -= 2
			stack[sp] = v
			sp++

		case compiler.CONCOP:
			as, err := concatOperand(stack[sp-2])
			if err != nil {
				return nil, runtimeErr(proto, pc, err)
			}
			bs, err := concatOperand(stack[sp-1])
			if err != nil {
				return nil, runtimeErr(proto, pc, err)
			}
			sp -= 2
			stack[sp] = String(as + bs)
			sp++

		case compiler.EQOP:
			v := Bool(Equal(stack[sp-2], stack[sp-1]))
			sp -= 2
			stack[sp] = v
			sp++

		case compiler.NEOP:
			v := Bool(!Equal(stack[sp-2], stack[sp-1]))
			sp -= 2
			stack[sp] = v
			sp++

		case compiler.LTOP:
			lt, err := Less(stack[sp-2], stack[sp-1])
			if err != nil {
				return nil, runtimeErr(proto, pc, err)
			}
			sp -= 2
			stack[sp] = Bool(lt)
			sp++

		case compiler.LEOP:
			// a <= b  ==  !(b < a)
			gt, err := Less(stack[sp-1], stack[sp-2])
			if err != nil {
				return nil, runtimeErr(proto, pc, err)
			}
			sp -= 2
			stack[sp] = Bool(!gt)
			sp++

		case compiler.MINUSOP:
			n, ok := stack[sp-1].(Number)
			if !ok {
				return nil, runtimeErr(proto, pc, fmt.Errorf("attempt to perform arithmetic on a %s value", stack[sp-1].Type()))
			}
			stack[sp-1] = -n

		case compiler.NOTOP:
			stack[sp-1] = Bool(!Truthy(stack[sp-1]))

		case compiler.JMP:
			pc = pc + 1 + int(in.S())
			continue

		case compiler.IFTJMP:
			sp--
			cond := Truthy(stack[sp])
			if cond {
				pc = pc + 1 + int(in.S())
				continue
			}

		case compiler.IFFJMP:
			sp--
			cond := Truthy(stack[sp])
			if !cond {
				pc = pc + 1 + int(in.S())
				continue
			}

		case compiler.ONTJMP:
			if Truthy(stack[sp-1]) {
				pc = pc + 1 + int(in.S())
				continue
			}
			sp--

		case compiler.ONFJMP:
			if !Truthy(stack[sp-1]) {
				pc = pc + 1 + int(in.S())
				continue
			}
			sp--

		case compiler.CALL:
			base := int(in.A())
			b := in.B()
			callee := stack[base]
			callArgs := append([]Value(nil), stack[base+1:sp]...)
			c, ok := callee.(Callable)
			if !ok {
				return nil, runtimeErr(proto, pc, fmt.Errorf("attempt to call a %s value", callee.Type()))
			}
			results, err := th.Call(c, callArgs)
			if err != nil {
				return nil, err
			}
			sp = base
			if b == compiler.MaxArgB {
				for _, r := range results {
					stack[sp] = r
					sp++
				}
			} else {
				for i := 0; i < int(b); i++ {
					if i < len(results) {
						stack[sp] = results[i]
					} else {
						stack[sp] = Nil{}
					}
					sp++
				}
			}

		case compiler.CLOSURE:
			a := int(in.A())
			b := int(in.B())
			child := proto.Children[a]
			upvals := make([]Value, b)
			copy(upvals, stack[sp-b:sp])
			sp -= b
			stack[sp] = &Closure{Proto: child, Upvalues: upvals}
			sp++

		case compiler.RETCODE:
			u := int(in.U())
			return append([]Value(nil), stack[u:sp]...), nil

		case compiler.SETLINE:
			// debug-only marker; no runtime effect.

		default:
			return nil, runtimeErr(proto, pc, fmt.Errorf("internal error: unimplemented opcode %s", in.Op))
		}

		pc++
	}
}

func arithSymbol(op compiler.Opcode) string {
	switch op {
	case compiler.ADDOP:
		return "+"
	case compiler.SUBOP:
		return "-"
	case compiler.MULOP:
		return "*"
	case compiler.DIVOP:
		return "/"
	case compiler.POWOP:
		return "^"
	default:
		panic("internal error: arithSymbol of non-arithmetic opcode")
	}
}

func (th *Thread) index(tbl, key Value) (Value, error) {
	t, ok := tbl.(*Table)
	if !ok {
		return nil, fmt.Errorf("attempt to index a %s value", tbl.Type())
	}
	return t.Get(key)
}

func (th *Thread) setIndex(tbl, key, val Value) error {
	t, ok := tbl.(*Table)
	if !ok {
		return fmt.Errorf("attempt to index a %s value", tbl.Type())
	}
	return t.Set(key, val)
}

func (th *Thread) resolveMethod(recv Value, name string) (Callable, error) {
	t, ok := recv.(*Table)
	if !ok {
		return nil, fmt.Errorf("attempt to index a %s value", recv.Type())
	}
	v, err := t.Get(String(name))
	if err != nil {
		return nil, err
	}
	c, ok := v.(Callable)
	if !ok {
		return nil, fmt.Errorf("attempt to call a %s value (method %q)", v.Type(), name)
	}
	return c, nil
}

// runtimeErr attributes err to proto's source and, if debug line info was
// recorded, the line at pc. Only the failing frame is named; no multi-frame
// trace is built.
func runtimeErr(proto *compiler.Prototype, pc int, err error) error {
	if pc >= 0 && pc < len(proto.Lines) {
		return fmt.Errorf("%s:%d: %w", proto.Source, proto.Lines[pc], err)
	}
	return fmt.Errorf("%s: %w", proto.Source, err)
}
