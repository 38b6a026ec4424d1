package scanner

import (
	"strconv"

	"github.com/mna/luon/lang/token"
)

// scanNumber scans a NUMBER token starting at a digit: decimal integer or
// float (with optional fractional part and decimal exponent) or a
// hexadecimal integer (0x...).
func (s *Scanner) scanNumber(val *token.Value) token.Token {
	start := s.off
	if s.cur == '0' && (s.peek() == 'x' || s.peek() == 'X') {
		s.advance()
		s.advance()
		for isHexDigit(s.cur) {
			s.advance()
		}
		return s.finishNumber(val, start)
	}

	for isDigit(s.cur) {
		s.advance()
	}
	if s.cur == '.' {
		s.advance()
		for isDigit(s.cur) {
			s.advance()
		}
	}
	s.scanExponent()
	return s.finishNumber(val, start)
}

// scanNumberFromDot scans a NUMBER token that starts with '.' followed by a
// digit (the leading '.' has already been consumed by Scan).
func (s *Scanner) scanNumberFromDot(val *token.Value) token.Token {
	start := s.off - 1 // include the '.' already consumed
	for isDigit(s.cur) {
		s.advance()
	}
	s.scanExponent()
	return s.finishNumber(val, start)
}

func (s *Scanner) scanExponent() {
	if s.cur == 'e' || s.cur == 'E' {
		save := s.snapshot()
		s.advance()
		if s.cur == '+' || s.cur == '-' {
			s.advance()
		}
		if !isDigit(s.cur) {
			s.restore(save)
			return
		}
		for isDigit(s.cur) {
			s.advance()
		}
	}
}

func (s *Scanner) finishNumber(val *token.Value, start int) token.Token {
	lit := string(s.src[start:s.off])
	n, err := strconv.ParseFloat(lit, 64)
	if err != nil {
		if u, uerr := strconv.ParseUint(trimHexPrefix(lit), 16, 64); uerr == nil && isHexLiteral(lit) {
			n = float64(u)
		} else {
			s.error("malformed number near '" + lit + "'")
			n = 0
		}
	}
	val.Num = n
	return token.NUMBER
}

func isHexDigit(r rune) bool {
	return isDigit(r) || (r >= 'a' && r <= 'f') || (r >= 'A' && r <= 'F')
}

func isHexLiteral(lit string) bool {
	return len(lit) > 2 && lit[0] == '0' && (lit[1] == 'x' || lit[1] == 'X')
}

func trimHexPrefix(lit string) string {
	if isHexLiteral(lit) {
		return lit[2:]
	}
	return lit
}
