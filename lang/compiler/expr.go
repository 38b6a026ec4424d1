package compiler

import (
	"github.com/mna/luon/lang/intern"
	"github.com/mna/luon/lang/token"
)

// closeExp turns v into a materialised value on top of the operand stack
// (spec.md §4.4, "Materialisation: close_exp(v)").
func (p *Parser) closeExp(v *vardesc) {
	switch v.kind {
	case vLocal:
		p.emitU(v.line, PUSHLOCAL, uint32(v.slot), 1)
	case vGlobal:
		p.emitU(v.line, GETGLOBAL, uint32(v.slot), 1)
		if name, ok := p.fs.consts.stringAt(v.slot); ok {
			p.rt.ReferenceGlobal(name)
		}
	case vIndexed:
		p.emit(v.line, GETTABLE, -1)
	case vExpression:
		if v.slot != 0 {
			p.fixCallResults(v.line, v.slot, 1)
		}
	}
	*v = materialisedVar(v.line)
}

// storevar assumes the value to store already sits on top of the stack
// (spec.md §4.4, "Assignment: storevar(v)").
func (p *Parser) storevar(v vardesc) {
	switch v.kind {
	case vLocal:
		p.emitU(v.line, SETLOCAL, uint32(v.slot), -1)
	case vGlobal:
		p.emitU(v.line, SETGLOBAL, uint32(v.slot), -1)
	case vIndexed:
		p.emit(v.line, SETTABLEPOP, -3)
	case vExpression:
		fail(v.line, ErrSemantic, "cannot assign to this expression")
	}
}

// storeMulti stores n >= 2 right-hand values, already sitting on top of the
// stack in left-to-right target order, into targets in reverse order (spec.md
// §4.4, "Multiple assignment"). Indexed targets' table/key pairs were pushed,
// in target order, while the target list itself was parsed, and remain below
// every right-hand value; storing a given Indexed target therefore needs a
// SETTABLE offset that skips past the right-hand values still on the stack
// (its own and those of the targets before it), plus two slots for every
// Indexed target between it and the top. See DESIGN.md's "Multiple-assignment store order" note for
// the derivation. A final bulk POP discards every Indexed target's leftover
// table/key pair once all stores are done.
func (p *Parser) storeMulti(targets []vardesc) {
	n := len(targets)
	indexedAfter := make([]int, n)
	running := 0
	totalIndexed := 0
	for i := n - 1; i >= 0; i-- {
		indexedAfter[i] = running
		if targets[i].kind == vIndexed {
			running++
			totalIndexed++
		}
	}

	for i := n - 1; i >= 0; i-- {
		t := targets[i]
		switch t.kind {
		case vLocal:
			p.emitU(t.line, SETLOCAL, uint32(t.slot), -1)
		case vGlobal:
			p.emitU(t.line, SETGLOBAL, uint32(t.slot), -1)
		case vIndexed:
			u := uint32((i + 1) + 2*indexedAfter[i])
			p.emitU(t.line, SETTABLE, u, -1)
		case vExpression:
			fail(t.line, ErrSemantic, "cannot assign to this expression")
		}
	}

	if totalIndexed > 0 {
		line := targets[n-1].line
		n2 := 2 * totalIndexed
		p.emitU(line, POP, uint32(n2), -n2)
	}
}

// parseExprList parses a comma-separated expression list, materialising
// every expression but the last (which is left open if it is a function
// call), per spec.md §3's list descriptor.
func (p *Parser) parseExprList() listDesc {
	count := 0
	var last vardesc
	for {
		last = p.parseExpr()
		count++
		if p.tok != token.COMMA {
			break
		}
		p.closeExp(&last)
		p.advance()
	}
	if last.isOpenCall() {
		return listDesc{count: count, callPC: last.slot, line: last.line}
	}
	p.closeExp(&last)
	return listDesc{count: count, callPC: 0, line: last.line}
}

func (p *Parser) parseExpr() vardesc { return p.parseOrExpr() }

func (p *Parser) parseOrExpr() vardesc {
	left := p.parseAndExpr()
	for p.tok == token.OR {
		line := p.curLine()
		p.advance()
		p.closeExp(&left)
		jmp := p.emitS(line, ONTJMP, 0, -1)
		right := p.parseAndExpr()
		p.closeExp(&right)
		p.patchJump(line, jmp, p.here())
		left = materialisedVar(line)
	}
	return left
}

func (p *Parser) parseAndExpr() vardesc {
	left := p.parseSubExpr(0)
	for p.tok == token.AND {
		line := p.curLine()
		p.advance()
		p.closeExp(&left)
		jmp := p.emitS(line, ONFJMP, 0, -1)
		right := p.parseSubExpr(0)
		p.closeExp(&right)
		p.patchJump(line, jmp, p.here())
		left = materialisedVar(line)
	}
	return left
}

// unaryPriority is priority 5 of spec.md §4.4's table: "unary not, unary -".
const unaryPriority = 5

func isUnaryOp(tok token.Token) bool { return tok == token.NOT || tok == token.MINUS }

func unaryOpcode(tok token.Token) Opcode {
	if tok == token.NOT {
		return NOTOP
	}
	return MINUSOP
}

// binOpInfo returns the priority and associativity of tok as a binary
// operator, per spec.md §4.4's table.
func binOpInfo(tok token.Token) (prio int, rightAssoc bool, ok bool) {
	switch tok {
	case token.EQ, token.NE, token.LT, token.GT, token.LE, token.GE:
		return 1, false, true
	case token.CONCAT:
		return 2, false, true
	case token.PLUS, token.MINUS:
		return 3, false, true
	case token.STAR, token.SLASH:
		return 4, false, true
	case token.CARET:
		return 6, true, true
	default:
		return 0, false, false
	}
}

func binOpcode(tok token.Token) Opcode {
	switch tok {
	case token.PLUS:
		return ADDOP
	case token.MINUS:
		return SUBOP
	case token.STAR:
		return MULOP
	case token.SLASH:
		return DIVOP
	case token.CARET:
		return POWOP
	case token.CONCAT:
		return CONCOP
	case token.EQ:
		return EQOP
	case token.NE:
		return NEOP
	case token.LT:
		return LTOP
	case token.LE:
		return LEOP
	default:
		panic("internal error: binOpcode of non-binary token")
	}
}

// parseSubExpr is the operator-precedence engine, a precedence-climbing
// recursive descent equivalent to spec.md §4.4's shunting-yard description
// (see DESIGN.md's "precedence-climbing as shunting-yard equivalent" note).
// limit is the minimum priority an operator must have to be consumed at this
// level; a left-associative operator recurses with limit = prio+1 so a
// same-priority sibling is left for the caller's loop to combine
// left-to-right, while ^ (the only right-associative operator) recurses with
// limit = prio so a chain of ^ nests to the right.
func (p *Parser) parseSubExpr(limit int) vardesc {
	line := p.curLine()
	var left vardesc
	if isUnaryOp(p.tok) {
		op := unaryOpcode(p.tok)
		p.advance()
		operand := p.parseSubExpr(unaryPriority)
		p.closeExp(&operand)
		p.emit(line, op, 0)
		left = materialisedVar(line)
	} else {
		left = p.parseSimpleExpr()
	}

	for {
		prio, rightAssoc, ok := binOpInfo(p.tok)
		if !ok || prio < limit {
			break
		}
		opTok := p.tok
		opLine := p.curLine()
		p.advance()
		nextLimit := prio
		if !rightAssoc {
			nextLimit = prio + 1
		}

		if opTok == token.GT || opTok == token.GE {
			// a > b / a >= b have no opcode of their own: they compile to
			// not (a <= b) / not (a < b), with the operands pushed left to right.
			// Since LEOP computes !(b < a), the first is exactly b < a, and the
			// second, !(a < b), is b <= a: the same relation as the original.
			p.closeExp(&left)
			right := p.parseSubExpr(nextLimit)
			p.closeExp(&right)
			op := LEOP
			if opTok == token.GE {
				op = LTOP
			}
			p.emit(opLine, op, -1)
			p.emit(opLine, NOTOP, 0)
			left = materialisedVar(opLine)
			continue
		}

		p.closeExp(&left)
		right := p.parseSubExpr(nextLimit)
		p.closeExp(&right)
		p.emit(opLine, binOpcode(opTok), -1)
		left = materialisedVar(opLine)
	}
	return left
}

func (p *Parser) pushNumber(line int32, v float64) vardesc {
	if iv := int32(v); float64(iv) == v && iv >= -MaxArgS && iv <= MaxArgS {
		p.emitS(line, PUSHINT, iv, 1)
		return materialisedVar(line)
	}
	idx := p.fs.consts.number(line, v)
	p.emitU(line, PUSHNUM, uint32(idx), 1)
	return materialisedVar(line)
}

// parseSimpleExpr parses a primary expression: a literal, a table
// constructor, a function expression, or a prefix expression (name, parens,
// indexing, calls). Boolean literals are deliberately absent: nothing in
// spec.md §6's opcode table can push one, and true/false are reserved
// keywords precisely so they fall through to a syntax error here instead of
// being usable as identifiers.
func (p *Parser) parseSimpleExpr() vardesc {
	line := p.curLine()
	switch p.tok {
	case token.NUMBER:
		v := p.val.Num
		p.advance()
		return p.pushNumber(line, v)
	case token.STRING:
		sym := p.val.Sym
		p.advance()
		idx := p.fs.consts.string(line, sym)
		p.emitU(line, PUSHSTRING, uint32(idx), 1)
		return materialisedVar(line)
	case token.NIL:
		p.advance()
		p.emitU(line, PUSHNIL, 0, 1)
		return materialisedVar(line)
	case token.LBRACE:
		return p.parseTableConstructor()
	case token.FUNCTION:
		p.advance()
		return p.parseFunctionBody(line, false)
	default:
		return p.parsePrefixExpr()
	}
}

// parsePrefixExpr parses a name, an explicit upvalue reference, or a
// parenthesised expression, then any chain of indexing/call suffixes.
func (p *Parser) parsePrefixExpr() vardesc {
	line := p.curLine()
	var v vardesc
	switch p.tok {
	case token.NAME:
		name := p.val.Sym
		p.advance()
		v = p.fs.singlevar(line, name)
	case token.PERCENT:
		p.advance()
		name := p.parseName()
		idx := p.fs.bindUpvalue(line, name)
		p.emitU(line, PUSHUPVALUE, uint32(idx), 1)
		v = materialisedVar(line)
	case token.LPAREN:
		p.advance()
		inner := p.parseExpr()
		p.closeExp(&inner)
		p.expect(token.RPAREN)
		v = materialisedVar(line)
	default:
		fail(line, ErrSyntax, "unexpected symbol near %s", p.tokenDesc())
	}
	return p.parsePrefixSuffixes(v)
}

func (p *Parser) parsePrefixSuffixes(v vardesc) vardesc {
	for {
		line := p.curLine()
		switch p.tok {
		case token.DOT:
			p.advance()
			name := p.parseName()
			p.closeExp(&v)
			idx := p.fs.consts.string(line, name)
			p.emitU(line, PUSHSTRING, uint32(idx), 1)
			v = indexedVar(line)
		case token.LBRACK:
			p.advance()
			p.closeExp(&v)
			key := p.parseExpr()
			p.closeExp(&key)
			p.expect(token.RBRACK)
			v = indexedVar(line)
		case token.COLON:
			p.advance()
			name := p.parseName()
			v = p.parseCallSuffix(line, v, name)
		case token.LPAREN:
			v = p.parseCallSuffix(line, v, nil)
		default:
			return v
		}
	}
}

// parseCallSuffix compiles a call or method-call suffix. callee is
// materialised (pushed) first; for a method call (selfName != nil) PUSHSELF
// then re-pushes the receiver as the implicit first argument next to the
// resolved method function (spec.md §6, "PUSHSELF u"). The function's
// absolute stack slot, needed as CALL's a operand, is the current top right
// after these pushes. If the argument list's own last expression is an open
// call, it is fixed to Multret rather than 1: CALL has no argument-count
// operand of its own, it simply calls whatever sits at slot a and treats
// everything above it as arguments, so a trailing multret argument naturally
// expands in place.
func (p *Parser) parseCallSuffix(line int32, callee vardesc, selfName *intern.Symbol) vardesc {
	p.closeExp(&callee)
	if selfName != nil {
		idx := p.fs.consts.string(line, selfName)
		p.emitU(line, PUSHSELF, uint32(idx), 1)
	}
	base := p.fs.stack.depth - 1

	args := p.parseArgs(line)
	if args.open() {
		p.fixCallResults(args.line, args.callPC, Multret)
	}

	pc := p.emitCall(line, base)
	return openCallVar(line, pc)
}

// parseArgs parses a parenthesised, possibly empty argument list.
func (p *Parser) parseArgs(line int32) listDesc {
	p.expect(token.LPAREN)
	if p.tok == token.RPAREN {
		p.advance()
		return listDesc{line: line}
	}
	list := p.parseExprList()
	p.expect(token.RPAREN)
	return list
}

// patchArgU overwrites the raw operand word of the instruction at pc, used to
// back-patch CREATETABLE's size hint once a table constructor's item count is
// known (spec.md §4.4, table constructors).
func (p *Parser) patchArgU(pc int, u uint32) {
	p.fs.proto.Code[pc].Arg = u
}

// emitSetListFlush merges the pending array items sitting above the table at
// absolute stack slot base into it, popping them (spec.md §6, "SETLIST: bulk
// list-init").
func (p *Parser) emitSetListFlush(line int32, base, pending int) {
	if pending == 0 {
		return
	}
	// B is the batch size minus one (spec.md §4.4/§6); the VM itself doesn't
	// need it (it flushes everything between base and the live stack top at
	// runtime), but the on-wire encoding still follows the documented form.
	p.emitAB(line, SETLIST, uint32(base), uint32(pending-1), -pending)
}

// emitSetListMultret flushes a trailing open call's way of merging an
// unknown-at-compile-time number of values into the table: like emitCall,
// the tracked depth is reset directly rather than adjusted by a delta, since
// the true count is a runtime quantity.
func (p *Parser) emitSetListMultret(line int32, base int) {
	pc := p.here()
	p.fs.proto.Code = append(p.fs.proto.Code, Instruction{Op: SETLIST, Arg: encodeAB(uint32(base), encodeMultret)})
	p.noteLine(line)
	p.fs.stack.reset(base + 1)
}

// emitSetMapFlush merges pairs key/value pairs sitting above the table
// (pushed immediately after it, with no other intervening stack traffic)
// into it. SETMAP carries no explicit table slot operand, unlike SETLIST:
// the table under construction is always directly below its own pending
// pairs, since nothing else is ever pushed between a CREATETABLE and that
// table's own constructor flushes.
func (p *Parser) emitSetMapFlush(line int32, pairs int) {
	if pairs == 0 {
		return
	}
	n := 2 * pairs
	p.emitU(line, SETMAP, uint32(pairs), -n)
}

// parseTableConstructor implements spec.md §4.4's table constructor rule: at
// most two halves separated by ';', the first half's kind (list or record)
// inferred from its first item, CREATETABLE emitted up front with a
// placeholder size hint back-patched once the total item count is known.
func (p *Parser) parseTableConstructor() vardesc {
	line := p.curLine()
	p.expect(token.LBRACE)
	createPC := p.emitU(line, CREATETABLE, 0, 1)
	base := p.fs.stack.depth - 1

	total := 0
	firstKind := ctorEmpty
	if p.tok != token.RBRACE && p.tok != token.SEMI {
		first := p.parseCtorHalf(base)
		firstKind = first.kind
		total += first.count
	}
	if p.tok == token.SEMI {
		p.advance()
		if p.tok != token.RBRACE {
			second := p.parseCtorHalf(base)
			if second.kind != ctorEmpty && second.kind == firstKind {
				fail(line, ErrSemantic, "table constructor halves must be of different kinds")
			}
			total += second.count
		}
	}
	p.expect(token.RBRACE)

	hint := total
	if hint > int(MaxArgU) {
		hint = int(MaxArgU)
	}
	p.patchArgU(createPC, uint32(hint))
	return materialisedVar(line)
}

func (p *Parser) parseCtorHalf(base int) ctorDesc {
	if p.isRecordEntryStart() {
		return p.parseRecordHalf()
	}
	return p.parseListHalf(base)
}

// isRecordEntryStart disambiguates a record entry (`[expr] = expr` or
// `name = expr`) from a list entry that happens to start with a bare NAME,
// using the one-token lookahead buffer (spec.md §4.4, table constructors).
func (p *Parser) isRecordEntryStart() bool {
	if p.tok == token.LBRACK {
		return true
	}
	if p.tok == token.NAME {
		return p.peekIsAssign()
	}
	return false
}

// parseListHalf parses the array-style half of a table constructor, flushing
// every LFieldsPerFlush items via SETLIST. A final item that is still an
// open call expands to however many values it produces at runtime (spec.md
// §4.4).
func (p *Parser) parseListHalf(base int) ctorDesc {
	line := p.curLine()
	count := 0
	pending := 0
	for {
		item := p.parseExpr()
		count++
		if !p.accept(token.COMMA) {
			if item.isOpenCall() {
				p.emitSetListFlush(line, base, pending)
				p.emitSetListMultret(line, base)
			} else {
				p.closeExp(&item)
				pending++
				p.emitSetListFlush(line, base, pending)
			}
			break
		}
		p.closeExp(&item)
		pending++
		if pending == LFieldsPerFlush {
			p.emitSetListFlush(line, base, pending)
			pending = 0
		}
		if p.tok == token.RBRACE || p.tok == token.SEMI {
			p.emitSetListFlush(line, base, pending)
			break
		}
	}
	return ctorDesc{kind: ctorList, count: count}
}

// parseRecordHalf parses the record-style half of a table constructor,
// flushing every RFieldsPerFlush pairs via SETMAP.
func (p *Parser) parseRecordHalf() ctorDesc {
	line := p.curLine()
	count := 0
	pending := 0
	for {
		p.parseRecordEntry()
		count++
		pending++
		if pending == RFieldsPerFlush {
			p.emitSetMapFlush(line, pending)
			pending = 0
		}
		if !p.accept(token.COMMA) {
			break
		}
		if p.tok == token.RBRACE || p.tok == token.SEMI {
			break
		}
	}
	p.emitSetMapFlush(line, pending)
	return ctorDesc{kind: ctorRecord, count: count}
}

// parseRecordEntry parses one `[expr] = expr` or `name = expr` pair, pushing
// key then value.
func (p *Parser) parseRecordEntry() {
	line := p.curLine()
	if p.tok == token.LBRACK {
		p.advance()
		key := p.parseExpr()
		p.closeExp(&key)
		p.expect(token.RBRACK)
	} else {
		name := p.parseName()
		idx := p.fs.consts.string(line, name)
		p.emitU(line, PUSHSTRING, uint32(idx), 1)
	}
	p.expect(token.ASSIGN)
	val := p.parseExpr()
	p.closeExp(&val)
}

// parseFunctionBody parses a function's parameter list and body, opening a
// nested compilation state and, once it closes, materialising each captured
// upvalue into the enclosing scope before emitting CLOSURE (spec.md §4.5:
// "push upvalues, then emit CLOSURE" in that exact order). implicitSelf adds
// a leading `self` parameter for the `function t:name(...)` sugar.
func (p *Parser) parseFunctionBody(line int32, implicitSelf bool) vardesc {
	outer := p.fs
	fs := p.openFunction(outer, outer.proto.Source)
	p.fs = fs

	if implicitSelf {
		self := p.interned.Intern("self")
		fs.storeLocalVar(line, self)
		fs.adjustLocalVars(1)
	}

	p.expect(token.LPAREN)
	if p.tok != token.RPAREN {
		for {
			if p.tok == token.DOTS {
				p.advance()
				fs.proto.IsVararg = true
				arg := p.interned.Intern("arg")
				fs.storeLocalVar(line, arg)
				fs.adjustLocalVars(1)
				break
			}
			name := p.parseName()
			fs.storeLocalVar(line, name)
			fs.adjustLocalVars(1)
			if !p.accept(token.COMMA) {
				break
			}
		}
	}
	p.expect(token.RPAREN)
	if fs.nactive > MaxParams {
		fail(line, ErrLimit, "too many parameters")
	}
	fs.proto.NumParams = fs.nactive
	// params are already on the stack (pushed by the caller's CALL) by the
	// time the body starts executing; the tracker starts at 0 by default, so
	// it must be brought up to the param count before anything else is
	// emitted.
	fs.stack.reset(fs.nactive)
	if fs.nactive > fs.stack.max {
		fs.stack.max = fs.nactive
	}

	p.parseStatements()
	endLine := p.curLine()
	p.expect(token.END)

	child := p.closeFunction(fs, endLine)
	p.fs = outer

	for _, uv := range fs.upvalues {
		src := uv.outer
		p.closeExp(&src)
	}

	childIdx := outer.consts.child(line, child)

	b := len(fs.upvalues)
	p.emitAB(line, CLOSURE, uint32(childIdx), uint32(b), 1-b)
	return materialisedVar(line)
}
