package scanner

import "github.com/mna/luon/lang/token"

// mark is a snapshot of the scan-position fields only, used to backtrack
// when probing for an optional "[=*[" long bracket opener. It deliberately
// excludes sb (strings.Builder), which must never be struct-copied.
type mark struct {
	cur  rune
	off  int
	roff int
	line token.Pos
}

// skipSpaceAndComments advances past whitespace, "--" line comments and
// "--[[ ... ]]" (or "--[=[ ... ]=]") long comments, leaving s.cur positioned
// at the first character of the next token (or eof).
func (s *Scanner) skipSpaceAndComments() {
	for {
		switch s.cur {
		case ' ', '\t', '\r', '\n':
			s.advance()
			continue
		case '-':
			if s.peek() != '-' {
				return
			}
			s.advance() // consume first '-'
			s.advance() // consume second '-'
			if s.cur == '[' {
				if level, ok := s.longBracketLevel(); ok {
					s.skipLongBracket(level)
					continue
				}
			}
			// line comment: skip to end of line
			for s.cur != '\n' && s.cur != eof {
				s.advance()
			}
			continue
		}
		return
	}
}

func (s *Scanner) snapshot() mark {
	return mark{cur: s.cur, off: s.off, roff: s.roff, line: s.line}
}

func (s *Scanner) restore(m mark) {
	s.cur, s.off, s.roff, s.line = m.cur, m.off, m.roff, m.line
}

// longBracketLevel recognizes the opening "[=*[" of a long string or long
// comment starting at s.cur == '['. It does not consume input unless the
// bracket is well-formed, in which case it returns the level (number of '='
// signs) and consumes up to and including the second '['.
func (s *Scanner) longBracketLevel() (int, bool) {
	save := s.snapshot()
	s.advance() // consume '['
	level := 0
	for s.cur == '=' {
		level++
		s.advance()
	}
	if s.cur != '[' {
		s.restore(save)
		return 0, false
	}
	s.advance() // consume second '['
	// a newline immediately following the opening bracket is not part of the
	// literal
	if s.cur == '\r' {
		s.advance()
	}
	if s.cur == '\n' {
		s.advance()
	}
	return level, true
}

// skipLongBracket consumes up to and including the matching "]=*]" closer at
// the given level, for a long comment (the content itself is discarded).
func (s *Scanner) skipLongBracket(level int) {
	for {
		if s.cur == eof {
			s.error("unterminated long comment")
			return
		}
		if s.cur == ']' {
			if s.closesLongBracket(level) {
				return
			}
		}
		s.advance()
	}
}

// closesLongBracket attempts to consume a "]=*]" closer of the given level
// starting at s.cur == ']'. Returns whether it matched and consumed it.
func (s *Scanner) closesLongBracket(level int) bool {
	save := s.snapshot()
	s.advance() // consume ']'
	n := 0
	for s.cur == '=' {
		n++
		s.advance()
	}
	if n == level && s.cur == ']' {
		s.advance()
		return true
	}
	s.restore(save)
	return false
}
