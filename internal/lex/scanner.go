package lex

import (
	"github.com/ljsking/cmonster/token"
)

// scanner lexes one source unit into raw tokens. It knows nothing about
// macros; directives exist for it only as a mode flag that turns the next
// newline into an end-of-directive token.
type scanner struct {
	unit  *Unit
	table *Table

	off       int
	line      int
	lineStart int

	leadingSpace bool
	startOfLine  bool

	// inDirective makes the next newline (or end of unit) produce an EOD
	// token and then clears itself.
	inDirective bool
}

func newScanner(u *Unit, tbl *Table) *scanner {
	return &scanner{unit: u, table: tbl, line: 1, startOfLine: true}
}

// multi-byte punctuators, longest first
var puncts3 = []string{"<<=", ">>="}
var puncts2 = []string{
	"->", "++", "--", "<<", ">>", "<=", ">=", "==", "!=", "&&", "||",
	"+=", "-=", "*=", "/=", "%=", "&=", "^=", "|=", "::",
}

func isIdentStart(b byte) bool {
	return b == '_' || (b >= 'A' && b <= 'Z') || (b >= 'a' && b <= 'z')
}

func isIdentPart(b byte) bool {
	return isIdentStart(b) || (b >= '0' && b <= '9')
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }

// next returns the next raw token of the unit. The second result is false
// once the unit is exhausted.
func (s *scanner) next() (token.Token, bool) {
	src := s.unit.Src
	for s.off < len(src) {
		ch := src[s.off]
		switch {
		case ch == ' ' || ch == '\t' || ch == '\r':
			s.off++
			s.leadingSpace = true
			continue
		case ch == '\n':
			if s.inDirective {
				s.inDirective = false
				eod := s.make(token.EOD, "")
				s.newline()
				return eod, true
			}
			s.newline()
			continue
		case ch == '\\' && s.continuesLine():
			// line continuation, treated as whitespace
			s.skipContinuation()
			s.leadingSpace = true
			continue
		case ch == '/' && s.off+1 < len(src) && src[s.off+1] == '/':
			for s.off < len(src) && src[s.off] != '\n' {
				s.off++
			}
			s.leadingSpace = true
			continue
		case ch == '/' && s.off+1 < len(src) && src[s.off+1] == '*':
			s.skipBlockComment()
			s.leadingSpace = true
			continue
		}
		break
	}

	if s.off >= len(src) {
		if s.inDirective {
			s.inDirective = false
			return s.make(token.EOD, ""), true
		}
		return token.Token{}, false
	}

	start := s.off
	pos := s.pos()
	flags := s.flags()
	ch := src[s.off]

	switch {
	case isIdentStart(ch):
		for s.off < len(src) && isIdentPart(src[s.off]) {
			s.off++
		}
		return s.emit(token.Ident, s.table.Intern(src[start:s.off]), pos, flags), true

	case isDigit(ch) || (ch == '.' && s.off+1 < len(src) && isDigit(src[s.off+1])):
		s.scanNumber()
		return s.emit(token.Number, src[start:s.off], pos, flags), true

	case ch == '"' || ch == '\'':
		s.scanQuoted(ch)
		kind := token.String
		if ch == '\'' {
			kind = token.Char
		}
		return s.emit(kind, src[start:s.off], pos, flags), true
	}

	// punctuators
	if rest := src[s.off:]; len(rest) >= 3 && rest[:3] == "..." {
		s.off += 3
		return s.emit(token.Ellipsis, "...", pos, flags), true
	}
	for _, p := range puncts3 {
		if hasPrefix(src[s.off:], p) {
			s.off += 3
			return s.emit(token.Punct, p, pos, flags), true
		}
	}
	if hasPrefix(src[s.off:], "##") {
		s.off += 2
		return s.emit(token.HashHash, "##", pos, flags), true
	}
	for _, p := range puncts2 {
		if hasPrefix(src[s.off:], p) {
			s.off += 2
			return s.emit(token.Punct, p, pos, flags), true
		}
	}
	s.off++
	switch ch {
	case '(':
		return s.emit(token.LParen, "(", pos, flags), true
	case ')':
		return s.emit(token.RParen, ")", pos, flags), true
	case ',':
		return s.emit(token.Comma, ",", pos, flags), true
	case '#':
		return s.emit(token.Hash, "#", pos, flags), true
	}
	return s.emit(token.Punct, src[start:s.off], pos, flags), true
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}

func (s *scanner) pos() token.Position {
	return token.Position{Unit: s.unit.ID, Line: s.line, Col: s.off - s.lineStart + 1}
}

func (s *scanner) flags() uint8 {
	var f uint8
	if s.leadingSpace {
		f |= token.LeadingSpace
	}
	if s.startOfLine {
		f |= token.StartOfLine
	}
	return f
}

func (s *scanner) make(kind token.Kind, text string) token.Token {
	return token.Token{Kind: kind, Text: text, Pos: s.pos()}
}

func (s *scanner) emit(kind token.Kind, text string, pos token.Position, flags uint8) token.Token {
	s.leadingSpace = false
	s.startOfLine = false
	return token.Token{Kind: kind, Text: text, Pos: pos, Flags: flags}
}

func (s *scanner) newline() {
	s.off++
	s.line++
	s.lineStart = s.off
	s.startOfLine = true
	s.leadingSpace = false
}

// continuesLine reports whether the backslash at s.off is followed, up to
// trailing spaces, by a newline.
func (s *scanner) continuesLine() bool {
	i := s.off + 1
	for i < len(s.unit.Src) && (s.unit.Src[i] == ' ' || s.unit.Src[i] == '\t' || s.unit.Src[i] == '\r') {
		i++
	}
	return i < len(s.unit.Src) && s.unit.Src[i] == '\n'
}

func (s *scanner) skipContinuation() {
	s.off++
	for s.unit.Src[s.off] != '\n' {
		s.off++
	}
	s.off++
	s.line++
	s.lineStart = s.off
}

func (s *scanner) skipBlockComment() {
	src := s.unit.Src
	s.off += 2
	for s.off < len(src) {
		if src[s.off] == '\n' {
			s.off++
			s.line++
			s.lineStart = s.off
			continue
		}
		if src[s.off] == '*' && s.off+1 < len(src) && src[s.off+1] == '/' {
			s.off += 2
			return
		}
		s.off++
	}
}

// scanNumber consumes a pp-number: digits, identifier characters, dots,
// and exponent signs after e/E/p/P.
func (s *scanner) scanNumber() {
	src := s.unit.Src
	for s.off < len(src) {
		ch := src[s.off]
		if isIdentPart(ch) || ch == '.' {
			s.off++
			continue
		}
		if (ch == '+' || ch == '-') && s.off > 0 {
			prev := src[s.off-1]
			if prev == 'e' || prev == 'E' || prev == 'p' || prev == 'P' {
				s.off++
				continue
			}
		}
		break
	}
}

// scanQuoted consumes a string or character literal including its quotes,
// keeping the raw spelling. An unterminated literal ends at the newline.
func (s *scanner) scanQuoted(quote byte) {
	src := s.unit.Src
	s.off++
	for s.off < len(src) {
		ch := src[s.off]
		if ch == '\\' && s.off+1 < len(src) {
			s.off += 2
			continue
		}
		if ch == '\n' {
			return
		}
		s.off++
		if ch == quote {
			return
		}
	}
}
