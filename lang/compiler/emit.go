package compiler

// emit.go holds the bytecode emitter (spec.md §2 component 4): typed
// constructors for each instruction format, appending to the current
// function's code vector, advancing the cursor, and notifying the
// stack-depth tracker. Back-patching is done by index: a pc is just
// len(code) at the time of emission. Instructions are never reordered, and
// are removed only from the end of the code vector (dropTrailingJump, and
// parseWhile's rewind of the condition it then re-appends), so a recorded pc
// below the current end stays valid until the function closes.

// here returns the pc that the next emitted instruction will occupy.
func (p *Parser) here() int { return len(p.fs.proto.Code) }

// emit appends a no-operand instruction and applies its stack delta.
func (p *Parser) emit(line int32, op Opcode, delta int) int {
	pc := p.here()
	p.fs.proto.Code = append(p.fs.proto.Code, Instruction{Op: op})
	p.fs.stack.delta(line, delta)
	p.noteLine(line)
	return pc
}

// emitU appends an opcode+U (unsigned) instruction.
func (p *Parser) emitU(line int32, op Opcode, u uint32, delta int) int {
	if u > MaxArgU {
		fail(line, ErrLimit, "operand out of range for %s", op)
	}
	pc := p.here()
	p.fs.proto.Code = append(p.fs.proto.Code, Instruction{Op: op, Arg: u})
	p.fs.stack.delta(line, delta)
	p.noteLine(line)
	return pc
}

// emitS appends an opcode+S (signed) instruction.
func (p *Parser) emitS(line int32, op Opcode, s int32, delta int) int {
	pc := p.here()
	p.fs.proto.Code = append(p.fs.proto.Code, Instruction{Op: op, Arg: encodeS(s)})
	p.fs.stack.delta(line, delta)
	p.noteLine(line)
	return pc
}

// emitAB appends an opcode+A/B instruction.
func (p *Parser) emitAB(line int32, op Opcode, a, b uint32, delta int) int {
	if a > MaxArgA {
		fail(line, ErrLimit, "operand out of range for %s", op)
	}
	if b > MaxArgB {
		fail(line, ErrLimit, "operand out of range for %s", op)
	}
	pc := p.here()
	p.fs.proto.Code = append(p.fs.proto.Code, Instruction{Op: op, Arg: encodeAB(a, b)})
	p.fs.stack.delta(line, delta)
	p.noteLine(line)
	return pc
}

// noteLine records one source line per emitted instruction when debug info
// is enabled, and marks a SETLINE boundary in non-debug builds is
// unnecessary since the opcode itself is only useful with Lines tracked.
func (p *Parser) noteLine(line int32) {
	if !p.fs.debug {
		return
	}
	p.fs.proto.Lines = append(p.fs.proto.Lines, line)
}

// patchJump rewrites the S operand of the jump instruction at pc so that it
// targets target (an absolute pc). Offsets are relative to the instruction
// following the jump (spec.md §6: "pc-relative to the instruction following
// the jump").
func (p *Parser) patchJump(line int32, pc int, target int) {
	in := &p.fs.proto.Code[pc]
	if !isJump(in.Op) {
		fail(line, ErrSyntax, "internal error: patchJump on non-jump instruction")
	}
	offset := int32(target - (pc + 1))
	in.Arg = encodeS(offset)
}

// dropTrailingJump removes the jump instruction most recently emitted at pc
// if it is in fact the last instruction in the code vector, implementing
// the "if there is no else part... delete it" degenerate case of spec.md
// §4.4's if-statement rule.
func (p *Parser) dropTrailingJump(pc int) bool {
	if pc != len(p.fs.proto.Code)-1 {
		return false
	}
	p.fs.proto.Code = p.fs.proto.Code[:pc]
	if p.fs.debug {
		p.fs.proto.Lines = p.fs.proto.Lines[:pc]
	}
	return true
}

// fixCallResults rewrites the B operand of the CALL instruction at callPC to
// request exactly n results (or Multret), and adjusts the tracked stack
// depth from the provisional 1-result assumption made at emission time
// (spec.md §4.4, "Call-site negotiation").
func (p *Parser) fixCallResults(line int32, callPC int, n int) {
	in := &p.fs.proto.Code[callPC]
	if in.Op != CALL {
		fail(line, ErrSyntax, "internal error: fixCallResults on non-CALL instruction")
	}
	a := in.A()
	if n == Multret {
		in.Arg = encodeAB(a, encodeMultret)
		return
	}
	in.Arg = encodeAB(a, uint32(n))
	// the call was emitted assuming exactly 1 result; reconcile the tracked
	// depth with the now-fixed count.
	p.fs.stack.delta(line, n-1)
}

// emitCall appends a CALL instruction whose function sits at absolute stack
// slot base, provisionally requesting one result (spec.md §4.4, "Call-site
// negotiation": "A CALL is always emitted under the assumption that it
// produces a single result"). Unlike the other emitters, the tracked depth
// is not adjusted incrementally: a call collapses whatever the argument list
// pushed back down to base+1, so the depth is set directly.
func (p *Parser) emitCall(line int32, base int) int {
	if base > int(MaxArgA) {
		fail(line, ErrLimit, "too many temporaries or local variables")
	}
	pc := p.here()
	p.fs.proto.Code = append(p.fs.proto.Code, Instruction{Op: CALL, Arg: encodeAB(uint32(base), 1)})
	p.noteLine(line)
	p.fs.stack.reset(base + 1)
	if p.fs.stack.depth > p.fs.stack.max {
		p.fs.stack.max = p.fs.stack.depth
	}
	if p.fs.stack.max > MaxStack {
		fail(line, ErrLimit, "too many temporaries or local variables")
	}
	return pc
}

// encodeMultret is the on-the-wire B value standing for spec.md's Multret
// sentinel ("b=multret sentinel ⇒ all"): the widest representable B value,
// never a legal concrete result count since RFieldsPerFlush/LFieldsPerFlush
// and MaxParams are all far below it.
const encodeMultret = MaxArgB
