package compiler

import "github.com/mna/luon/lang/intern"

// Runtime is the contract lang/compiler expects from its "runtime_state"
// collaborator (spec.md §6, "parse(runtime_state, token_stream)"): a place
// to root in-construction prototypes against collection, and a hook for the
// "notifies the runtime's global table that this name is referenced, for
// diagnostic purposes" requirement of close_exp's Global case (spec.md
// §4.4). internal/rtconfig.Runtime implements this.
type Runtime interface {
	// PushRoot pins p so the collector treats it (and everything it
	// transitively references) as reachable while it is under construction
	// (spec.md §3, §5: "a prototype must remain reachable... by keeping a
	// root on the runtime's evaluation stack").
	PushRoot(p *Prototype)
	// PopRoot unpins the most recently pushed root.
	PopRoot()
	// ReferenceGlobal records that name was referenced as a global, for
	// diagnostics (spec.md §4.4).
	ReferenceGlobal(name string)
	// DebugInfo reports whether the caller asked for per-function Locals/Lines
	// debug vectors to be populated.
	DebugInfo() bool
}

// upvalDesc is one entry of a function's upvalue vector: how to obtain the
// captured value from the *parent* scope at closure-creation time (spec.md
// §4.3, "Upvalue binding").
type upvalDesc struct {
	name   *intern.Symbol
	outer  vardesc // Local or Global, resolved in the parent's scope
}

func (u upvalDesc) equalTo(o upvalDesc) bool {
	return u.outer.kind == o.outer.kind && u.outer.slot == o.outer.slot
}

// localSlot is one entry of a function's local-variable list, in declaration
// order (spec.md §3, "a fixed-capacity array of local-variable names in
// declaration order with a count nlocalvar").
type localSlot struct {
	name *intern.Symbol
	line int32 // declaration line, for the debug vector
}

// funcState is one record of the compilation-state stack (spec.md §3,
// "Compilation-state record (per open function)"): everything needed to
// keep compiling one open function body, plus a parent pointer for upvalue
// resolution and outer-scope diagnostics.
type funcState struct {
	parent *funcState

	proto  *Prototype
	stack  stackTracker
	consts *constPool

	// locals holds every local declared so far in this function, in slot
	// order. nactive is how many of the trailing entries are currently in
	// scope; store_localvar appends beyond nactive without activating,
	// adjustlocalvars(n) grows nactive by n (spec.md §4.3).
	locals  []localSlot
	nactive int

	upvalues []upvalDesc

	lastLine int32 // last line marked for debug (SETLINE dedup)
	lastPC   int   // index of the last-emitted instruction, for peephole checks

	debug bool // whether this function records Locals/Lines debug info
}

func newFuncState(parent *funcState, source string, debug bool) *funcState {
	fs := &funcState{
		parent: parent,
		proto:  &Prototype{Source: source},
		debug:  debug,
	}
	fs.consts = newConstPool(fs.proto)
	if debug {
		fs.proto.Locals = []LocalDebug{}
		fs.proto.Lines = []int32{}
	}
	return fs
}

// isMain reports whether fs is the outermost (top-level chunk) record.
func (fs *funcState) isMain() bool { return fs.parent == nil }

// storeLocalVar reserves the next slot for name without activating it
// (spec.md §4.3: "reserves (but does not yet activate) the i-th slot").
// Returns the reserved slot index.
func (fs *funcState) storeLocalVar(line int32, name *intern.Symbol) int {
	if len(fs.locals) >= MaxLocals {
		fail(line, ErrLimit, "too many local variables")
	}
	slot := len(fs.locals)
	fs.locals = append(fs.locals, localSlot{name: name, line: line})
	return slot
}

// adjustLocalVars activates the next n reserved names (spec.md §4.3), and if
// debug info is enabled, registers each with its declaration line.
func (fs *funcState) adjustLocalVars(n int) {
	for i := 0; i < n; i++ {
		slot := fs.locals[fs.nactive]
		fs.nactive++
		if fs.debug {
			fs.proto.Locals = append(fs.proto.Locals, LocalDebug{Name: slot.name, Line: slot.line})
		}
	}
}

// openBlock returns a mark to later restore with closeBlock (spec.md §3:
// "the block records the pre-block slot count and pops back to it").
func (fs *funcState) openBlock() int { return fs.nactive }

// closeBlock pops active locals back to mark, discarding everything
// declared inside the block.
func (fs *funcState) closeBlock(mark int) {
	fs.nactive = mark
	fs.locals = fs.locals[:mark]
}

// resolveLocal searches this function's own active locals, most-recently
// declared first (so shadowing within one function works), returning the
// slot and true on a hit.
func (fs *funcState) resolveLocal(name *intern.Symbol) (int, bool) {
	for i := fs.nactive - 1; i >= 0; i-- {
		if fs.locals[i].name == name {
			return i, true
		}
	}
	return 0, false
}

// singlevar resolves name as spec.md §4.3 describes: a local of the current
// function, an error if it is a local of some outer function (closures are
// explicit, via bindUpvalue), or otherwise a global.
func (fs *funcState) singlevar(line int32, name *intern.Symbol) vardesc {
	if slot, ok := fs.resolveLocal(name); ok {
		return localVar(line, slot)
	}
	for outer := fs.parent; outer != nil; outer = outer.parent {
		if _, ok := outer.resolveLocal(name); ok {
			fail(line, ErrScope, "cannot access a variable in outer scope %q: use %%%s to capture it explicitly", name.Name(), name.Name())
		}
	}
	idx := fs.consts.string(line, name)
	return globalVar(line, idx)
}

// bindUpvalue resolves an explicit upvalue reference (%name, spec.md §4.3).
// Illegal in the main chunk and when name is also a local of the current
// scope. Reuses an existing upvalue entry with an equal descriptor, or
// appends one.
func (fs *funcState) bindUpvalue(line int32, name *intern.Symbol) int {
	if fs.isMain() {
		fail(line, ErrScope, "cannot use %%%s: no enclosing function", name.Name())
	}
	if _, ok := fs.resolveLocal(name); ok {
		fail(line, ErrScope, "%%%s: %s is already a local in this scope", name.Name(), name.Name())
	}

	var outer vardesc
	if slot, ok := fs.parent.resolveLocal(name); ok {
		outer = localVar(line, slot)
	} else {
		idx := fs.parent.consts.string(line, name)
		outer = globalVar(line, idx)
	}

	cand := upvalDesc{name: name, outer: outer}
	for i, u := range fs.upvalues {
		if u.equalTo(cand) {
			return i
		}
	}
	if len(fs.upvalues) >= MaxUpvalues {
		fail(line, ErrLimit, "too many upvalues")
	}
	fs.upvalues = append(fs.upvalues, cand)
	return len(fs.upvalues) - 1
}
