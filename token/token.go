// Package token defines the lexical token values produced and consumed by
// the preprocessing engine. Tokens are plain values: once constructed they
// are never mutated, and copying one is cheap.
package token

import "fmt"

// Kind classifies a token. The preprocessor only needs to tell apart the
// shapes that drive macro machinery; everything else is Punct.
type Kind uint8

const (
	EOF Kind = iota // end of input
	EOD             // end of a preprocessing directive

	Ident
	Number
	String
	Char

	LParen
	RParen
	Comma
	Hash
	HashHash
	Ellipsis
	Punct
)

var kindNames = [...]string{
	EOF:      "EOF",
	EOD:      "EOD",
	Ident:    "Ident",
	Number:   "Number",
	String:   "String",
	Char:     "Char",
	LParen:   "LParen",
	RParen:   "RParen",
	Comma:    "Comma",
	Hash:     "Hash",
	HashHash: "HashHash",
	Ellipsis: "Ellipsis",
	Punct:    "Punct",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", k)
}

// Position locates a token within a registered source unit. Unit ids are
// assigned by the source map in registration order, so positions from
// different units compare consistently. The zero Position means the token
// has no resolvable source location (it was built synthetically).
type Position struct {
	Unit int
	Line int
	Col  int
}

// IsValid reports whether the position refers to a real source unit.
func (p Position) IsValid() bool { return p.Unit != 0 }

func (p Position) String() string {
	if !p.IsValid() {
		return "-"
	}
	return fmt.Sprintf("%d:%d:%d", p.Unit, p.Line, p.Col)
}

// Token flag bits.
const (
	LeadingSpace uint8 = 1 << iota // preceded by whitespace or a comment
	StartOfLine                    // first token on its source line
)

// Token is one lexical unit: its kind, raw spelling, source position and
// layout flags.
type Token struct {
	Kind  Kind
	Text  string
	Pos   Position
	Flags uint8
}

// New builds a synthetic token with no source location, e.g. a replacement
// token produced by a dynamic macro callback.
func New(kind Kind, text string) Token {
	return Token{Kind: kind, Text: text}
}

// HasLeadingSpace reports whether whitespace preceded the token.
func (t Token) HasLeadingSpace() bool { return t.Flags&LeadingSpace != 0 }

// StartOfLine reports whether the token is the first on its line.
func (t Token) StartOfLine() bool { return t.Flags&StartOfLine != 0 }

func (t Token) String() string {
	return fmt.Sprintf("%s(%q)", t.Kind, t.Text)
}
