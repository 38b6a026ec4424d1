package compiler

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/mna/luon/lang/intern"
)

// This file implements a human-readable/writable form of a compiled
// prototype tree, for testing lang/machine without going through the
// scanner/parser (spec.md §8's optional "reverse path" property: "a
// disassembler/assembler round trip is available for testing"). Adapted from
// the teacher's section-based text format, simplified since this package's
// Instruction is a fixed-width word (one Instruction == one pc slot, so no
// varint/byte-address translation is needed the way the teacher's
// variable-length encoding requires).
//
// The format looks like this (indentation is arbitrary, section order is
// not):
//
//	program:
//		root: 0
//
//	function: 0 source="chunk" stack=3 params=0
//		strings:
//			"abc"
//		numbers:
//			1.34
//		upvalues:
//			local 2
//			global 1
//		children:
//			1
//		locals:
//			x	# line 3
//		code:
//			pushint 1	# 000
//			jmp 3	# 001
//
// Every Prototype reachable from the root is flattened into its own
// function: block, in preorder (a prototype always precedes its own
// children), and a children: section lists each child's index in that
// flattened order.

var sections = map[string]bool{
	"program:":   true,
	"function:":  true,
	"strings:":   true,
	"numbers:":   true,
	"upvalues:":  true,
	"children:":  true,
	"locals:":    true,
	"code:":      true,
}

// Dasm writes a prototype tree to its assembler textual format.
func Dasm(root *Prototype) ([]byte, error) {
	d := &dasm{buf: new(bytes.Buffer)}
	flat := flatten(root)

	d.write("program:\n")
	d.write("\troot: 0\n")

	for i, p := range flat {
		d.write("\n")
		d.function(i, p, flat)
	}
	return d.buf.Bytes(), d.err
}

// flatten returns every Prototype reachable from root, in preorder (root
// first, then each child's own subtree in Children order).
func flatten(root *Prototype) []*Prototype {
	var out []*Prototype
	var walk func(p *Prototype)
	walk = func(p *Prototype) {
		out = append(out, p)
		for _, c := range p.Children {
			walk(c)
		}
	}
	walk(root)
	return out
}

type dasm struct {
	buf *bytes.Buffer
	err error
}

func (d *dasm) function(idx int, p *Prototype, flat []*Prototype) {
	if d.err != nil {
		return
	}
	d.writef("function: %d source=%q stack=%d params=%d", idx, p.Source, p.MaxStack, p.NumParams)
	if p.IsVararg {
		d.write(" +varargs")
	}
	d.write("\n")

	if len(p.Strings) > 0 {
		d.write("\tstrings:\n")
		for i, s := range p.Strings {
			d.writef("\t\t%q\t# %03d\n", s.Name(), i)
		}
	}
	if len(p.Numbers) > 0 {
		d.write("\tnumbers:\n")
		for i, n := range p.Numbers {
			d.writef("\t\t%g\t# %03d\n", n, i)
		}
	}
	if len(p.Upvalues) > 0 {
		d.write("\tupvalues:\n")
		for i, u := range p.Upvalues {
			kind := "global"
			if u.Local {
				kind = "local"
			}
			d.writef("\t\t%s %d\t# %03d\n", kind, u.Index, i)
		}
	}
	if len(p.Children) > 0 {
		d.write("\tchildren:\n")
		for _, c := range p.Children {
			d.writef("\t\t%d\n", indexOf(flat, c))
		}
	}
	if len(p.Locals) > 0 {
		d.write("\tlocals:\n")
		for i, l := range p.Locals {
			d.writef("\t\t%s\t# line %d, slot %03d\n", l.Name.Name(), l.Line, i)
		}
	}

	if len(p.Code) > 0 {
		d.write("\tcode:\n")
		for i, in := range p.Code {
			d.writeInsn(i, in)
		}
	}
}

func (d *dasm) writeInsn(pc int, in Instruction) {
	switch {
	case !hasOperand(in.Op):
		d.writef("\t\t%s\t# %03d\n", in.Op, pc)
	case isJump(in.Op):
		target := pc + 1 + int(in.S())
		d.writef("\t\t%s %d\t# %03d\n", in.Op, target, pc)
	case isSigned(in.Op):
		d.writef("\t\t%s %d\t# %03d\n", in.Op, in.S(), pc)
	case usesAB(in.Op):
		b := "*"
		if in.B() != encodeMultret {
			b = strconv.FormatUint(uint64(in.B()), 10)
		}
		d.writef("\t\t%s %d %s\t# %03d\n", in.Op, in.A(), b, pc)
	default:
		d.writef("\t\t%s %d\t# %03d\n", in.Op, in.U(), pc)
	}
}

func indexOf(flat []*Prototype, p *Prototype) int {
	for i, q := range flat {
		if q == p {
			return i
		}
	}
	return -1
}

func (d *dasm) writef(s string, args ...any) { d.write(fmt.Sprintf(s, args...)) }

func (d *dasm) write(s string) {
	if d.err != nil {
		return
	}
	_, d.err = d.buf.WriteString(s)
}

// Asm loads a prototype tree from its assembler textual format, interning
// any string constants via interned.
func Asm(interned *intern.Table, b []byte) (*Prototype, error) {
	a := &asm{s: bufio.NewScanner(bytes.NewReader(b)), interned: interned}

	fields := a.next()
	root := a.program(fields)

	fields = a.next()
	var protos []*Prototype
	var childIdx [][]int
	for a.err == nil && len(fields) > 0 && fields[0] == "function:" {
		var p *Prototype
		var kids []int
		p, kids, fields = a.function(fields)
		protos = append(protos, p)
		childIdx = append(childIdx, kids)
	}

	if a.err == nil && len(fields) > 0 {
		a.err = fmt.Errorf("unexpected section: %s", fields[0])
	}
	if a.err == nil && (root < 0 || root >= len(protos)) {
		a.err = fmt.Errorf("invalid root function index: %d", root)
	}
	if a.err != nil {
		return nil, a.err
	}

	for i, kids := range childIdx {
		for _, k := range kids {
			if k < 0 || k >= len(protos) {
				a.err = fmt.Errorf("invalid child function index: %d", k)
				return nil, a.err
			}
			protos[i].Children = append(protos[i].Children, protos[k])
		}
	}
	return protos[root], nil
}

type asm struct {
	s        *bufio.Scanner
	rawLine  string
	interned *intern.Table
	err      error
}

func (a *asm) program(fields []string) int {
	if a.err != nil {
		return 0
	}
	if len(fields) == 0 || !strings.EqualFold(fields[0], "program:") {
		a.err = errors.New("expected program section")
		return 0
	}
	fields = a.next()
	if len(fields) == 0 || fields[0] != "root:" || len(fields) != 2 {
		a.err = errors.New("expected root: <index>")
		return 0
	}
	return int(a.int(fields[1]))
}

func (a *asm) function(fields []string) (*Prototype, []int, []string) {
	if len(fields) < 5 || fields[0] != "function:" {
		a.err = fmt.Errorf("invalid function header: %s", strings.Join(fields, " "))
		return nil, nil, a.next()
	}

	p := &Prototype{}
	for _, f := range fields[2:] {
		switch {
		case strings.HasPrefix(f, "source="):
			src, err := strconv.Unquote(strings.TrimPrefix(f, "source="))
			if err != nil {
				a.err = fmt.Errorf("invalid source attribute: %s: %w", f, err)
				return nil, nil, nil
			}
			p.Source = src
		case strings.HasPrefix(f, "stack="):
			p.MaxStack = int(a.int(strings.TrimPrefix(f, "stack=")))
		case strings.HasPrefix(f, "params="):
			p.NumParams = int(a.int(strings.TrimPrefix(f, "params=")))
		case f == "+varargs":
			p.IsVararg = true
		default:
			a.err = fmt.Errorf("invalid function attribute: %s", f)
			return nil, nil, nil
		}
	}

	fields = a.next()
	fields = a.strings(p, fields)
	fields = a.numbers(p, fields)
	fields = a.upvalues(p, fields)
	var kids []int
	kids, fields = a.children(fields)
	fields = a.locals(p, fields)
	fields = a.code(p, fields)

	return p, kids, fields
}

// strings reads the quoted string constant from the raw line rather than
// fields[0], since a string constant may itself contain whitespace (the
// teacher's asm.go does the same for its "string"/"bytes" constants).
func (a *asm) strings(p *Prototype, fields []string) []string {
	if a.err != nil || len(fields) == 0 || fields[0] != "strings:" {
		return fields
	}
	for fields = a.next(); len(fields) > 0 && !sections[fields[0]]; fields = a.next() {
		qs, err := strconv.QuotedPrefix(strings.TrimSpace(a.rawLine))
		if err != nil {
			a.err = fmt.Errorf("invalid string constant: %s: %w", a.rawLine, err)
			return fields
		}
		s, err := strconv.Unquote(qs)
		if err != nil {
			a.err = fmt.Errorf("invalid string constant: %s: %w", qs, err)
			return fields
		}
		p.Strings = append(p.Strings, a.interned.Intern(s))
	}
	return fields
}

func (a *asm) numbers(p *Prototype, fields []string) []string {
	if a.err != nil || len(fields) == 0 || fields[0] != "numbers:" {
		return fields
	}
	for fields = a.next(); len(fields) > 0 && !sections[fields[0]]; fields = a.next() {
		f, err := strconv.ParseFloat(fields[0], 64)
		if err != nil {
			a.err = fmt.Errorf("invalid number constant: %s: %w", fields[0], err)
			return fields
		}
		p.Numbers = append(p.Numbers, f)
	}
	return fields
}

func (a *asm) upvalues(p *Prototype, fields []string) []string {
	if a.err != nil || len(fields) == 0 || fields[0] != "upvalues:" {
		return fields
	}
	for fields = a.next(); len(fields) > 0 && !sections[fields[0]]; fields = a.next() {
		if len(fields) != 2 {
			a.err = fmt.Errorf("invalid upvalue: expected kind and index, got %d fields", len(fields))
			return fields
		}
		local := fields[0] == "local"
		if !local && fields[0] != "global" {
			a.err = fmt.Errorf("invalid upvalue kind: %s", fields[0])
			return fields
		}
		p.Upvalues = append(p.Upvalues, UpvalueSource{Local: local, Index: int(a.int(fields[1]))})
	}
	return fields
}

func (a *asm) children(fields []string) ([]int, []string) {
	var kids []int
	if a.err != nil || len(fields) == 0 || fields[0] != "children:" {
		return kids, fields
	}
	for fields = a.next(); len(fields) > 0 && !sections[fields[0]]; fields = a.next() {
		kids = append(kids, int(a.int(fields[0])))
	}
	return kids, fields
}

func (a *asm) locals(p *Prototype, fields []string) []string {
	if a.err != nil || len(fields) == 0 || fields[0] != "locals:" {
		return fields
	}
	for fields = a.next(); len(fields) > 0 && !sections[fields[0]]; fields = a.next() {
		p.Locals = append(p.Locals, LocalDebug{Name: a.interned.Intern(fields[0])})
	}
	return fields
}

func (a *asm) code(p *Prototype, fields []string) []string {
	if a.err != nil || len(fields) == 0 || fields[0] != "code:" {
		return fields
	}
	var rawTargets []int // absolute jump targets, by pc, -1 if not a jump
	for fields = a.next(); len(fields) > 0 && !sections[fields[0]]; fields = a.next() {
		op, ok := reverseOpcode[strings.ToLower(fields[0])]
		if !ok {
			a.err = fmt.Errorf("invalid opcode: %s", fields[0])
			return fields
		}

		switch {
		case !hasOperand(op):
			if len(fields) != 1 {
				a.err = fmt.Errorf("opcode %s takes no operand", fields[0])
				return fields
			}
			p.Code = append(p.Code, Instruction{Op: op})
			rawTargets = append(rawTargets, -1)
		case isJump(op):
			if len(fields) != 2 {
				a.err = fmt.Errorf("opcode %s expects one operand", fields[0])
				return fields
			}
			target := int(a.int(fields[1]))
			p.Code = append(p.Code, Instruction{Op: op})
			rawTargets = append(rawTargets, target)
		case isSigned(op):
			if len(fields) != 2 {
				a.err = fmt.Errorf("opcode %s expects one operand", fields[0])
				return fields
			}
			p.Code = append(p.Code, Instruction{Op: op, Arg: encodeS(int32(a.int(fields[1])))})
			rawTargets = append(rawTargets, -1)
		case usesAB(op):
			if len(fields) != 3 {
				a.err = fmt.Errorf("opcode %s expects two operands", fields[0])
				return fields
			}
			aVal := uint32(a.uint(fields[1]))
			var bVal uint32
			if fields[2] == "*" {
				bVal = encodeMultret
			} else {
				bVal = uint32(a.uint(fields[2]))
			}
			p.Code = append(p.Code, Instruction{Op: op, Arg: encodeAB(aVal, bVal)})
			rawTargets = append(rawTargets, -1)
		default:
			if len(fields) != 2 {
				a.err = fmt.Errorf("opcode %s expects one operand", fields[0])
				return fields
			}
			p.Code = append(p.Code, Instruction{Op: op, Arg: uint32(a.uint(fields[1]))})
			rawTargets = append(rawTargets, -1)
		}
	}

	for pc, target := range rawTargets {
		if target < 0 {
			continue
		}
		if target < 0 || target > len(p.Code) {
			a.err = fmt.Errorf("invalid jump target %d at pc %d", target, pc)
			return fields
		}
		p.Code[pc].Arg = encodeS(int32(target - (pc + 1)))
	}
	return fields
}

func (a *asm) int(s string) int64 {
	i, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		a.err = fmt.Errorf("invalid integer: %s: %w", s, err)
	}
	return i
}

func (a *asm) uint(s string) uint64 {
	u, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		a.err = fmt.Errorf("invalid unsigned integer: %s: %w", s, err)
	}
	return u
}

// next returns the fields of the next non-empty, non-comment-only line, so
// fields[0] holds the section/line identifier.
func (a *asm) next() []string {
	a.rawLine = ""
	if a.err != nil {
		return nil
	}
	for a.s.Scan() {
		line := a.s.Text()
		fields := strings.Fields(line)
		if len(fields) != 0 && !strings.HasPrefix(fields[0], "#") {
			for i, fld := range fields {
				if strings.HasPrefix(fld, "#") {
					fields = fields[:i]
					break
				}
			}
			a.rawLine = line
			return fields
		}
	}
	a.err = a.s.Err()
	return nil
}
