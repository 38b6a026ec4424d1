package compiler

import (
	"fmt"

	"github.com/mna/luon/lang/intern"
	"github.com/mna/luon/lang/scanner"
	"github.com/mna/luon/lang/token"
)

// Parser is the grammar driver (spec.md §2 component 5): one token of
// lookahead (plus an optional second token of lookahead for the table
// constructor's record-vs-list disambiguation), the current compilation
// state stack (via fs), and the accumulated error list.
type Parser struct {
	scan     *scanner.Scanner
	interned *intern.Table
	rt       Runtime
	source   string

	tok token.Token
	val token.Value

	hasAhead bool
	aheadTok token.Token
	aheadVal token.Value

	errs ErrorList

	fs *funcState
}

// Parse drives a full compilation: opens the outer compilation state, reads
// the first token, parses a chunk, requires EOS, closes the outer function
// (spec.md §6, "Entry point"). Every fatal error unwinds via panic(abort{})
// and is caught here, per spec.md §7 ("non-recoverable... unwind out of the
// entire compilation. No partial prototype is returned.").
func Parse(rt Runtime, interned *intern.Table, source string, src []byte) (proto *Prototype, errs ErrorList) {
	p := &Parser{rt: rt, interned: interned, source: source}
	var sc scanner.Scanner
	sc.Init(source, src, interned, func(pos token.Position, msg string) {
		p.errs.add(newError(int32(pos.Line), ErrSyntax, "%s", msg))
	})
	p.scan = &sc

	defer func() {
		if r := recover(); r != nil {
			ab, ok := r.(abort)
			if !ok {
				panic(r)
			}
			p.errs.add(ab.err)
			proto = nil
		}
		p.errs.Sort()
		errs = p.errs
	}()

	p.advance()
	proto = p.parseMain()
	return proto, p.errs
}

func (p *Parser) advance() {
	if p.hasAhead {
		p.tok, p.val = p.aheadTok, p.aheadVal
		p.hasAhead = false
		return
	}
	p.tok = p.scan.Scan(&p.val)
}

// peekIsAssign reports whether the token after the current one is '=',
// fetching it into a one-token lookahead buffer if necessary. Needed only to
// tell a record-constructor entry (`name = expr`) apart from a list entry
// that happens to start with a NAME (spec.md §4.4, table constructors).
func (p *Parser) peekIsAssign() bool {
	if !p.hasAhead {
		p.aheadTok = p.scan.Scan(&p.aheadVal)
		p.hasAhead = true
	}
	return p.aheadTok == token.ASSIGN
}

func (p *Parser) curLine() int32 { return int32(p.val.Pos) }

func (p *Parser) tokenDesc() string {
	switch p.tok {
	case token.NAME, token.STRING:
		if p.val.Sym != nil {
			return p.val.Sym.Name()
		}
	case token.NUMBER:
		return fmt.Sprintf("%g", p.val.Num)
	}
	return p.tok.GoString()
}

func (p *Parser) accept(tok token.Token) bool {
	if p.tok == tok {
		p.advance()
		return true
	}
	return false
}

func (p *Parser) expect(tok token.Token) {
	if p.tok != tok {
		fail(p.curLine(), ErrSyntax, "%s expected near %s", tok.GoString(), p.tokenDesc())
	}
	p.advance()
}

func (p *Parser) parseName() *intern.Symbol {
	if p.tok != token.NAME {
		fail(p.curLine(), ErrSyntax, "name expected near %s", p.tokenDesc())
	}
	sym := p.val.Sym
	p.advance()
	return sym
}

func (p *Parser) blockFollows() bool {
	switch p.tok {
	case token.EOS, token.END, token.ELSE, token.ELSEIF, token.UNTIL:
		return true
	}
	return false
}

// openFunction creates a fresh compilation-state record and pins its
// prototype on the runtime's evaluation stack (spec.md §4.3, "Opening a
// function").
func (p *Parser) openFunction(parent *funcState, source string) *funcState {
	fs := newFuncState(parent, source, p.rt.DebugInfo())
	p.rt.PushRoot(fs.proto)
	return fs
}

// closeFunction emits the terminator, asserts the final stack-balance
// invariant, freezes the prototype, and unpins it (spec.md §4.3, "Closing a
// function"). Callers must have already set p.fs == fs.
func (p *Parser) closeFunction(fs *funcState, line int32) *Prototype {
	p.emit(line, ENDCODE, 0)
	fs.stack.assertBalanced(line, fs.nactive)

	proto := fs.proto
	proto.Upvalues = make([]UpvalueSource, len(fs.upvalues))
	for i, u := range fs.upvalues {
		proto.Upvalues[i] = UpvalueSource{Local: u.outer.kind == vLocal, Index: u.outer.slot}
	}
	proto.MaxStack = fs.stack.max
	proto.trim()

	p.rt.PopRoot()
	return proto
}

func (p *Parser) parseMain() *Prototype {
	fs := p.openFunction(nil, p.source)
	p.fs = fs
	p.parseStatements()
	if p.tok != token.EOS {
		fail(p.curLine(), ErrSyntax, "%s expected near %s", token.EOS.GoString(), p.tokenDesc())
	}
	return p.closeFunction(fs, p.curLine())
}

// parseBlock opens a new local-variable scope, parses statements until a
// block-terminating token, and closes the scope (emitting a POP for
// whatever locals it declared, per the block-exit cleanup decision recorded
// in DESIGN.md).
func (p *Parser) parseBlock() {
	mark := p.openBlock()
	p.parseStatements()
	p.closeBlock(mark)
}

func (p *Parser) openBlock() int { return p.fs.openBlock() }

func (p *Parser) closeBlock(mark int) {
	popped := len(p.fs.locals) - mark
	p.fs.closeBlock(mark)
	if popped > 0 {
		line := p.curLine()
		p.emitU(line, POP, uint32(popped), -popped)
	}
}

func (p *Parser) parseStatements() {
	for !p.blockFollows() {
		if p.tok == token.RETURN {
			p.parseReturn()
			break
		}
		p.parseStatement()
	}
}

func (p *Parser) parseStatement() {
	line := p.curLine()
	switch p.tok {
	case token.IF:
		p.advance()
		p.parseIfClause()
	case token.WHILE:
		p.parseWhile()
	case token.DO:
		p.advance()
		p.parseBlock()
		p.expect(token.END)
	case token.REPEAT:
		p.parseRepeat()
	case token.LOCAL:
		p.parseLocal()
	case token.FUNCTION:
		p.parseFunctionStatement()
	case token.SEMI:
		p.advance()
	default:
		p.parseExprStatement()
	}
	p.fs.stack.assertBalanced(line, p.fs.nactive)
}

// parseIfClause implements the if/elseif/else/end rule uniformly by
// recursing for the elseif continuation (spec.md §4.4): the over-jump past
// the else branch is always emitted, patched to land just after itself once
// the continuation is fully parsed, and dropped if it turns out to be a
// trailing no-op (no else part, or an empty else).
func (p *Parser) parseIfClause() {
	line := p.curLine()
	cond := p.parseExpr()
	p.closeExp(&cond)
	p.expect(token.THEN)

	condJmp := p.emitS(line, IFFJMP, 0, -1)
	p.parseBlock()
	overJmp := p.emitS(p.curLine(), JMP, 0, 0)
	p.patchJump(line, condJmp, p.here())

	switch p.tok {
	case token.ELSEIF:
		p.advance()
		p.parseIfClause()
	case token.ELSE:
		p.advance()
		p.parseBlock()
		p.expect(token.END)
	default:
		p.expect(token.END)
	}

	if p.dropTrailingJump(overJmp) {
		// the condition jump was patched past the dropped over-jump; it now
		// lands where the over-jump stood.
		p.patchJump(line, condJmp, p.here())
	} else {
		p.patchJump(line, overJmp, p.here())
	}
}

// parseWhile implements "emit the body first, then the condition" by
// parsing the condition once into a scratch region of the code vector,
// rewinding it, emitting the entry jump and body, and finally replaying the
// captured condition code at its real location (spec.md §4.4).
func (p *Parser) parseWhile() {
	line := p.curLine()
	p.advance() // WHILE

	start := p.here()
	baseline := p.fs.stack.depth
	cond := p.parseExpr()
	p.closeExp(&cond)
	p.expect(token.DO)
	end := p.here()

	if end-start > WhileScratchMax {
		fail(line, ErrLimit, "while condition too complex")
	}
	condCode := append([]Instruction(nil), p.fs.proto.Code[start:end]...)
	var condLines []int32
	if p.fs.debug {
		condLines = append([]int32(nil), p.fs.proto.Lines[start:end]...)
		p.fs.proto.Lines = p.fs.proto.Lines[:start]
	}
	p.fs.proto.Code = p.fs.proto.Code[:start]
	p.fs.stack.reset(baseline)

	entryJmp := p.emitS(line, JMP, 0, 0)
	bodyStart := p.here()
	p.parseBlock()
	p.expect(token.END)

	condLocation := p.here()
	p.fs.proto.Code = append(p.fs.proto.Code, condCode...)
	if p.fs.debug {
		p.fs.proto.Lines = append(p.fs.proto.Lines, condLines...)
	}
	p.fs.stack.delta(line, 1)

	backJmp := p.emitS(line, IFTJMP, 0, -1)
	p.patchJump(line, backJmp, bodyStart)
	p.patchJump(line, entryJmp, condLocation)
}

// parseRepeat implements "body, then condition, then a conditional backward
// jump" (spec.md §4.4). The body's own scope is closed (its locals popped)
// before the until-condition is parsed, so the condition sees only
// outer-scope names — see DESIGN.md's "repeat ... until locals scope" note.
func (p *Parser) parseRepeat() {
	line := p.curLine()
	p.advance() // REPEAT

	startPC := p.here()
	p.parseBlock()
	p.expect(token.UNTIL)

	cond := p.parseExpr()
	p.closeExp(&cond)
	jmp := p.emitS(line, IFFJMP, 0, -1)
	p.patchJump(line, jmp, startPC)
}

// parseLocal implements `local name {, name} [= explist]` (spec.md §4.4).
func (p *Parser) parseLocal() {
	line := p.curLine()
	p.advance() // LOCAL

	var slots []int
	for {
		name := p.parseName()
		slots = append(slots, p.fs.storeLocalVar(line, name))
		if !p.accept(token.COMMA) {
			break
		}
	}

	list := listDesc{line: line}
	if p.accept(token.ASSIGN) {
		list = p.parseExprList()
	}
	p.adjustList(line, len(slots), list)
	p.fs.adjustLocalVars(len(slots))
}

// parseFunctionStatement implements `function name[.name]*[:name] body`,
// permitted only at the top level of the main chunk (spec.md §4.4).
func (p *Parser) parseFunctionStatement() {
	line := p.curLine()
	if !p.fs.isMain() {
		fail(line, ErrSyntax, "function statements are only allowed at the top level of the main chunk; use a function expression instead")
	}
	p.advance() // FUNCTION

	name := p.parseName()
	target := p.fs.singlevar(line, name)
	isMethod := false
	for p.tok == token.DOT || p.tok == token.COLON {
		isMethod = p.tok == token.COLON
		p.advance()
		field := p.parseName()
		p.closeExp(&target)
		idx := p.fs.consts.string(line, field)
		p.emitU(line, PUSHSTRING, uint32(idx), 1)
		target = indexedVar(line)
		if isMethod {
			break
		}
	}

	p.parseFunctionBody(line, isMethod)
	p.storevar(target)
}

// parseExprStatement implements the "name statement" rule (spec.md §4.4): a
// parsed variable-or-call is either a call statement (an open call, fixed
// to zero results and discarded) or the head of a multiple-assignment.
func (p *Parser) parseExprStatement() {
	line := p.curLine()
	first := p.parsePrefixExpr()
	if p.tok != token.COMMA && p.tok != token.ASSIGN {
		if !first.isOpenCall() {
			fail(line, ErrSyntax, "syntax error near %s", p.tokenDesc())
		}
		p.fixCallResults(first.line, first.slot, 0)
		return
	}

	targets := []vardesc{first}
	for p.accept(token.COMMA) {
		targets = append(targets, p.parsePrefixExpr())
	}
	p.expect(token.ASSIGN)
	for _, t := range targets {
		if t.kind == vExpression {
			fail(t.line, ErrSemantic, "cannot assign to this expression")
		}
	}

	list := p.parseExprList()
	p.adjustList(line, len(targets), list)
	if len(targets) == 1 {
		p.storevar(targets[0])
	} else {
		p.storeMulti(targets)
	}
}

// parseReturn implements `return [explist]` (spec.md §4.4).
func (p *Parser) parseReturn() {
	line := p.curLine()
	p.advance() // RETURN

	list := listDesc{line: line}
	if !p.blockFollows() && p.tok != token.SEMI {
		list = p.parseExprList()
	}
	if list.open() {
		p.fixCallResults(list.line, list.callPC, Multret)
	}
	p.accept(token.SEMI)

	p.emitU(line, RETCODE, uint32(p.fs.nactive), 0)
	p.fs.stack.reset(p.fs.nactive)
}

// adjustList adjusts the top of the stack, currently holding list.count
// values, to exactly n values, per the call-site negotiation rules shared by
// `local` declarations and multiple assignment (spec.md §4.4).
func (p *Parser) adjustList(line int32, n int, list listDesc) {
	k := list.count
	if list.open() {
		switch {
		case k < n:
			p.fixCallResults(list.line, list.callPC, n-k+1)
		case k > n:
			// the call now yields nothing, so k-1 values remain
			p.fixCallResults(list.line, list.callPC, 0)
			if surplus := k - 1 - n; surplus > 0 {
				p.emitU(line, POP, uint32(surplus), -surplus)
			}
		default:
			p.fixCallResults(list.line, list.callPC, 1)
		}
		return
	}
	switch {
	case k < n:
		p.emitU(line, PUSHNIL, uint32(n-k-1), n-k)
	case k > n:
		p.emitU(line, POP, uint32(k-n), -(k - n))
	}
}
