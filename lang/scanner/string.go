package scanner

import (
	"fmt"

	"github.com/mna/luon/lang/token"
)

// scanShortString scans a single- or double-quoted string literal, handling
// the standard backslash escapes.
func (s *Scanner) scanShortString(val *token.Value) token.Token {
	quote := s.cur
	s.advance() // consume opening quote
	s.sb.Reset()

	for {
		switch s.cur {
		case eof, '\n':
			s.error("unterminated string")
			return s.finishString(val)
		case quote:
			s.advance()
			return s.finishString(val)
		case '\\':
			s.advance()
			s.scanEscape()
		default:
			s.sb.WriteRune(s.cur)
			s.advance()
		}
	}
}

func (s *Scanner) scanEscape() {
	switch s.cur {
	case 'n':
		s.sb.WriteByte('\n')
		s.advance()
	case 't':
		s.sb.WriteByte('\t')
		s.advance()
	case 'r':
		s.sb.WriteByte('\r')
		s.advance()
	case 'a':
		s.sb.WriteByte('\a')
		s.advance()
	case 'b':
		s.sb.WriteByte('\b')
		s.advance()
	case 'f':
		s.sb.WriteByte('\f')
		s.advance()
	case 'v':
		s.sb.WriteByte('\v')
		s.advance()
	case '\\', '"', '\'':
		s.sb.WriteRune(s.cur)
		s.advance()
	case '\n':
		s.sb.WriteByte('\n')
		s.advance()
	default:
		if isDigit(s.cur) {
			n := 0
			for i := 0; i < 3 && isDigit(s.cur); i++ {
				n = n*10 + int(s.cur-'0')
				s.advance()
			}
			if n > 255 {
				s.error(fmt.Sprintf("decimal escape too large near '\\%d'", n))
				n = 255
			}
			s.sb.WriteByte(byte(n))
			return
		}
		s.error(fmt.Sprintf("invalid escape sequence '\\%c'", s.cur))
		s.sb.WriteRune(s.cur)
		s.advance()
	}
}

func (s *Scanner) finishString(val *token.Value) token.Token {
	val.Sym = s.interned.Intern(s.sb.String())
	return token.STRING
}

// tryLongString attempts to scan a "[[ ... ]]" or "[=*[ ... ]=*]" long
// string literal starting at s.cur == '['. Returns ok=false (without
// consuming anything) if what follows '[' is not a well-formed opener, so
// the caller can fall back to treating '[' as LBRACK.
func (s *Scanner) tryLongString(val *token.Value) (token.Token, bool) {
	save := s.snapshot()
	level, ok := s.longBracketLevel()
	if !ok {
		s.restore(save)
		return token.ILLEGAL, false
	}

	s.sb.Reset()
	for {
		if s.cur == eof {
			s.error("unterminated long string")
			return s.finishString(val), true
		}
		if s.cur == ']' {
			if s.closesLongBracket(level) {
				return s.finishString(val), true
			}
		}
		s.sb.WriteRune(s.cur)
		s.advance()
	}
}
