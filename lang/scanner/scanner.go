// Some of the scanner package is adapted from the Go source code:
// https://cs.opensource.google/go/go/+/refs/tags/go1.22.1:src/go/scanner/scanner.go
//
// Copyright 2009 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package scanner tokenizes Lua-family source text for lang/compiler. It is
// one of the external collaborators named by spec.md §1: it produces a
// stream of tokens carrying line numbers and semantic values, and leaves
// grammar and code generation entirely to lang/compiler.
package scanner

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/mna/luon/lang/intern"
	"github.com/mna/luon/lang/token"
)

const eof = -1

// Scanner tokenizes one source file. The zero value is not ready for use;
// call Init first.
type Scanner struct {
	filename string
	src      []byte
	interned *intern.Table
	err      func(pos token.Position, msg string)

	cur  rune // current character, or eof
	off  int  // byte offset of cur
	roff int  // byte offset just past cur
	line token.Pos

	sb strings.Builder // reused scratch buffer for string/long-bracket literals
}

// Init prepares s to scan src, reporting lexical errors through errHandler.
// interned is the string table used to canonicalize NAME and STRING values.
func (s *Scanner) Init(filename string, src []byte, interned *intern.Table, errHandler func(token.Position, string)) {
	s.filename = filename
	s.src = src
	s.interned = interned
	s.err = errHandler
	s.line = 1
	s.off = 0
	s.roff = 0
	s.cur = ' '
	s.advance()
}

func (s *Scanner) position() token.Position {
	return token.Position{Filename: s.filename, Line: s.line}
}

func (s *Scanner) error(msg string) {
	if s.err != nil {
		s.err(s.position(), msg)
	}
}

// advance reads the next rune into s.cur, tracking line numbers.
func (s *Scanner) advance() {
	if s.cur == '\n' {
		s.line++
	}
	if s.roff >= len(s.src) {
		s.off = len(s.src)
		s.cur = eof
		return
	}
	s.off = s.roff
	r, w := rune(s.src[s.roff]), 1
	if r >= utf8.RuneSelf {
		r, w = utf8.DecodeRune(s.src[s.roff:])
		if r == utf8.RuneError && w == 1 {
			s.error("invalid UTF-8 encoding")
		}
	}
	s.roff += w
	s.cur = r
}

func (s *Scanner) peek() rune {
	if s.roff >= len(s.src) {
		return eof
	}
	r, w := rune(s.src[s.roff]), 1
	if r >= utf8.RuneSelf {
		r, _ = utf8.DecodeRune(s.src[s.roff:])
	}
	_ = w
	return r
}

func isDigit(r rune) bool { return r >= '0' && r <= '9' }

func isNameStart(r rune) bool {
	return r == '_' || unicode.IsLetter(r)
}

func isNameCont(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

// Scan returns the next token and, for NAME/NUMBER/STRING tokens, fills val
// with its semantic value and position. val.Pos is always set.
func (s *Scanner) Scan(val *token.Value) token.Token {
	s.skipSpaceAndComments()
	val.Pos = s.line
	val.Sym = nil
	val.Num = 0

	if s.cur == eof {
		return token.EOS
	}

	switch {
	case isNameStart(s.cur):
		return s.scanName(val)
	case isDigit(s.cur):
		return s.scanNumber(val)
	case s.cur == '"' || s.cur == '\'':
		return s.scanShortString(val)
	}

	r := s.cur
	switch r {
	case '[':
		if s.peek() == '[' || s.peek() == '=' {
			if tok, ok := s.tryLongString(val); ok {
				return tok
			}
		}
		s.advance()
		return token.LBRACK
	case ']':
		s.advance()
		return token.RBRACK
	case '(':
		s.advance()
		return token.LPAREN
	case ')':
		s.advance()
		return token.RPAREN
	case '{':
		s.advance()
		return token.LBRACE
	case '}':
		s.advance()
		return token.RBRACE
	case '+':
		s.advance()
		return token.PLUS
	case '-':
		s.advance()
		return token.MINUS
	case '*':
		s.advance()
		return token.STAR
	case '/':
		s.advance()
		return token.SLASH
	case '^':
		s.advance()
		return token.CARET
	case '%':
		s.advance()
		return token.PERCENT
	case '#':
		s.advance()
		return token.HASH
	case ';':
		s.advance()
		return token.SEMI
	case ':':
		s.advance()
		return token.COLON
	case ',':
		s.advance()
		return token.COMMA
	case '=':
		s.advance()
		if s.cur == '=' {
			s.advance()
			return token.EQ
		}
		return token.ASSIGN
	case '~':
		s.advance()
		if s.cur == '=' {
			s.advance()
			return token.NE
		}
		s.error("unexpected symbol near '~'")
		return s.Scan(val)
	case '<':
		s.advance()
		if s.cur == '=' {
			s.advance()
			return token.LE
		}
		return token.LT
	case '>':
		s.advance()
		if s.cur == '=' {
			s.advance()
			return token.GE
		}
		return token.GT
	case '.':
		s.advance()
		if s.cur == '.' {
			s.advance()
			if s.cur == '.' {
				s.advance()
				return token.DOTS
			}
			return token.CONCAT
		}
		if isDigit(s.cur) {
			return s.scanNumberFromDot(val)
		}
		return token.DOT
	}

	s.error(fmt.Sprintf("unexpected symbol near %q", r))
	s.advance()
	return s.Scan(val)
}

func (s *Scanner) scanName(val *token.Value) token.Token {
	start := s.off
	for isNameCont(s.cur) {
		s.advance()
	}
	lit := string(s.src[start:s.off])
	if tok := token.Lookup(lit); tok != token.NAME {
		return tok
	}
	val.Sym = s.interned.Intern(lit)
	return token.NAME
}

// TokenAndValue combines a token kind with its semantic value, mirroring the
// pairing lang/compiler consumes one at a time while parsing.
type TokenAndValue struct {
	Token token.Token
	Value token.Value
}

// ScanAll tokenizes src in full, collecting every token up to and including
// EOS. Used by the CLI's "tokenize" command and by tests; lang/compiler
// itself drives the Scanner one token at a time instead.
func ScanAll(filename string, src []byte, interned *intern.Table) ([]TokenAndValue, error) {
	var (
		s   Scanner
		el  token.ErrorList
		out []TokenAndValue
	)
	s.Init(filename, src, interned, el.Add)
	for {
		var val token.Value
		tok := s.Scan(&val)
		out = append(out, TokenAndValue{Token: tok, Value: val})
		if tok == token.EOS {
			break
		}
	}
	el.Sort()
	return out, el.Err()
}
