package compiler

// varKind is the tag of an expression descriptor (spec.md §3, "Expression
// descriptor (vardesc)"). Re-architected as a sum type per spec.md §9's own
// recommendation, instead of the source's raw tagged integer.
type varKind uint8

const (
	// vLocal: payload is the local-variable slot index.
	vLocal varKind = iota
	// vGlobal: payload is a string-constant index naming the global.
	vGlobal
	// vIndexed: no payload; table and key are already pushed.
	vIndexed
	// vExpression: payload is 0 (already materialised) or the pc of a
	// function-call instruction whose result count is still negotiable.
	vExpression
)

// vardesc describes where an expression's value is and how to materialise
// it, deferring commitment (spec.md §3): a bare NAME might still become a
// store, or the head of a call, before anything is emitted for it.
type vardesc struct {
	kind varKind
	// slot holds: the local slot index (vLocal), the string-constant index
	// of the global's name (vGlobal), or the pc of an open call (vExpression,
	// 0 meaning already materialised). Unused for vIndexed.
	slot int
	// line is the source line the descriptor originated at, carried so
	// close_exp/storevar can attribute the instructions they emit to the
	// right line even though materialisation may happen well after parsing.
	line int32
}

func localVar(line int32, slot int) vardesc    { return vardesc{kind: vLocal, slot: slot, line: line} }
func globalVar(line int32, strIdx int) vardesc { return vardesc{kind: vGlobal, slot: strIdx, line: line} }
func indexedVar(line int32) vardesc            { return vardesc{kind: vIndexed, line: line} }
func materialisedVar(line int32) vardesc       { return vardesc{kind: vExpression, slot: 0, line: line} }
func openCallVar(line int32, callPC int) vardesc {
	return vardesc{kind: vExpression, slot: callPC, line: line}
}

// isOpenCall reports whether v is an as-yet-unmaterialised call result whose
// result count can still be rewritten.
func (v vardesc) isOpenCall() bool { return v.kind == vExpression && v.slot != 0 }

// listDesc describes an expression list (call arguments, multiple-assignment
// right-hand side, return values): how many expressions were parsed, and
// whether the last one is an open call (spec.md §3, "List descriptor").
type listDesc struct {
	count  int
	callPC int // 0 if the list is closed (last expression already materialised)
	line   int32
}

func (l listDesc) open() bool { return l.callPC != 0 }

// ctorKind is the kind of one half of a table constructor (spec.md §3,
// "Constructor descriptor").
type ctorKind uint8

const (
	ctorEmpty ctorKind = iota
	ctorList
	ctorRecord
)

type ctorDesc struct {
	kind  ctorKind
	count int
}
