package compiler

import "fmt"

// Opcode identifies one bytecode instruction, per spec.md §6's opcode table.
type Opcode uint8

//nolint:revive
const (
	ENDCODE Opcode = iota // function terminator

	PUSHNIL  // U: push u+1 nils
	POP      // U: pop u values
	PUSHINT  // S: push small integer
	PUSHNUM  // U: push number-pool[u]
	PUSHSTRING
	PUSHLOCAL
	PUSHUPVALUE
	PUSHSELF
	GETGLOBAL
	SETLOCAL
	SETGLOBAL
	GETTABLE     // -: replace table,key with value
	SETTABLE     // U: store top into stack[-u-2][stack[-u-1]], table/key survive
	SETTABLEPOP  // -: store top into table,key beneath, pops all three
	SETLIST      // A,B: bulk list-init
	SETMAP       // U: bulk record-init
	CREATETABLE  // U: new empty table, size hint u

	ADDOP
	SUBOP
	MULOP
	DIVOP
	POWOP
	CONCOP

	EQOP
	NEOP
	LTOP
	LEOP

	MINUSOP
	NOTOP

	JMP    // S: unconditional jump
	IFTJMP // S: pop, jump if true
	IFFJMP // S: pop, jump if false
	ONTJMP // S: jump if true (keeping value), else pop
	ONFJMP // S: jump if false (keeping value), else pop

	CALL    // A,B: call stack[a], request b results (b == Multret => all)
	CLOSURE // A,B: make closure from child[a] with b upvalues
	RETCODE // U: return locals[u..]
	SETLINE // U: debug - mark current line
)

// opcodes that carry no operand word at all.
var noOperand = map[Opcode]bool{
	ENDCODE: true, GETTABLE: true, SETTABLEPOP: true,
	ADDOP: true, SUBOP: true, MULOP: true, DIVOP: true, POWOP: true, CONCOP: true,
	EQOP: true, NEOP: true, LTOP: true, LEOP: true,
	MINUSOP: true, NOTOP: true,
}

// opcodes whose operand is a signed, pc-relative jump offset.
var jumpOpcode = map[Opcode]bool{
	JMP: true, IFTJMP: true, IFFJMP: true, ONTJMP: true, ONFJMP: true,
}

// opcodes whose operand is a signed value but not a jump (PUSHINT only).
var signedOpcode = map[Opcode]bool{PUSHINT: true}

// opcodes whose operand is split into an A/B pair.
var abOpcode = map[Opcode]bool{SETLIST: true, CALL: true, CLOSURE: true}

var opcodeNames = [...]string{
	ENDCODE:     "endcode",
	PUSHNIL:     "pushnil",
	POP:         "pop",
	PUSHINT:     "pushint",
	PUSHNUM:     "pushnum",
	PUSHSTRING:  "pushstring",
	PUSHLOCAL:   "pushlocal",
	PUSHUPVALUE: "pushupvalue",
	PUSHSELF:    "pushself",
	GETGLOBAL:   "getglobal",
	SETLOCAL:    "setlocal",
	SETGLOBAL:   "setglobal",
	GETTABLE:    "gettable",
	SETTABLE:    "settable",
	SETTABLEPOP: "settablepop",
	SETLIST:     "setlist",
	SETMAP:      "setmap",
	CREATETABLE: "createtable",
	ADDOP:       "add",
	SUBOP:       "sub",
	MULOP:       "mul",
	DIVOP:       "div",
	POWOP:       "pow",
	CONCOP:      "concat",
	EQOP:        "eq",
	NEOP:        "ne",
	LTOP:        "lt",
	LEOP:        "le",
	MINUSOP:     "minus",
	NOTOP:       "not",
	JMP:         "jmp",
	IFTJMP:      "iftjmp",
	IFFJMP:      "iffjmp",
	ONTJMP:      "ontjmp",
	ONFJMP:      "onfjmp",
	CALL:        "call",
	CLOSURE:     "closure",
	RETCODE:     "ret",
	SETLINE:     "setline",
}

func (op Opcode) String() string {
	if int(op) < len(opcodeNames) && opcodeNames[op] != "" {
		return opcodeNames[op]
	}
	return fmt.Sprintf("illegal opcode (%d)", op)
}

var reverseOpcode = func() map[string]Opcode {
	m := make(map[string]Opcode, len(opcodeNames))
	for op, name := range opcodeNames {
		m[name] = Opcode(op)
	}
	return m
}()

// hasOperand reports whether op carries an operand word.
func hasOperand(op Opcode) bool { return !noOperand[op] }

// usesAB reports whether op's operand is split into A/B fields rather than a
// single U (unsigned) or S (signed) field.
func usesAB(op Opcode) bool { return abOpcode[op] }

// isJump reports whether op's operand is a signed, pc-relative jump offset.
func isJump(op Opcode) bool { return jumpOpcode[op] }

// isSigned reports whether op's (non-AB, non-jump) operand is signed.
func isSigned(op Opcode) bool { return signedOpcode[op] }

// Multret is the sentinel result-count meaning "all values produced by the
// call stay on the stack" (spec.md's glossary entry for "Multret").
const Multret = -1

// Instruction limits, per spec.md §4.2/§4.3/§6.
const (
	MaxArgU   = 1<<24 - 1 // MAXARG_U: widest unsigned operand (U, or A/B combined)
	MaxArgS   = MaxArgU / 2
	MaxArgA   = 1<<16 - 1 // MAXARG_A: widest A sub-field
	MaxArgB   = 1<<8 - 1  // widest B sub-field
	MaxStack  = 250       // MAXSTACK: hard operand-stack limit
	MaxLocals = 200       // MAXLOCALS
	MaxUpvalues = 32
	MaxParams   = 100
	MaxOps      = 20 // MAXOPS: operator-precedence operand stack depth
	WhileScratchMax = 200 // max instructions for a `while` condition's scratch buffer
	LFieldsPerFlush = 50
	RFieldsPerFlush = 50
)

// Instruction is one fixed-width bytecode word: an Opcode plus, depending on
// the opcode, either no operand, an unsigned U, a signed S, or an A/B pair
// packed into the same bits as U (spec.md §6).
type Instruction struct {
	Op   Opcode
	Arg  uint32 // raw bits for U, A<<8|B, or the S operand's bias-encoded form
}

// U returns the instruction's operand decoded as unsigned.
func (in Instruction) U() uint32 { return in.Arg }

// S returns the instruction's operand decoded as a signed, pc-relative
// offset: the raw bits are stored as (value + MaxArgS) so that the zero
// uint32 bit pattern never needs to represent a negative number.
func (in Instruction) S() int32 { return int32(in.Arg) - MaxArgS }

// A returns the upper sub-field of a packed A/B operand.
func (in Instruction) A() uint32 { return in.Arg >> 8 }

// B returns the lower sub-field of a packed A/B operand.
func (in Instruction) B() uint32 { return in.Arg & 0xff }

func encodeS(v int32) uint32 { return uint32(v + MaxArgS) }
func encodeAB(a, b uint32) uint32 { return a<<8 | (b & 0xff) }
