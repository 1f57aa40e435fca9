package lex

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/ljsking/cmonster/token"
)

func scanAll(src string) []token.Token {
	sc := newScanner(&Unit{ID: 1, Name: "scan.c", Src: src}, NewTable())
	var toks []token.Token
	for {
		t, ok := sc.next()
		if !ok {
			return toks
		}
		toks = append(toks, t)
	}
}

func kindsAndTexts(toks []token.Token) [][2]string {
	out := make([][2]string, len(toks))
	for i, t := range toks {
		out[i] = [2]string{t.Kind.String(), t.Text}
	}
	return out
}

func TestScan(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  [][2]string
	}{
		{
			"identifiers and numbers",
			"a1 _x 0x1f .5 1e+5",
			[][2]string{
				{"Ident", "a1"}, {"Ident", "_x"}, {"Number", "0x1f"},
				{"Number", ".5"}, {"Number", "1e+5"},
			},
		},
		{
			"string and char literals",
			`"s\"t" 'c'`,
			[][2]string{
				{"String", `"s\"t"`}, {"Char", "'c'"},
			},
		},
		{
			"punctuators longest first",
			"<<= << < ... ## # -> - ::",
			[][2]string{
				{"Punct", "<<="}, {"Punct", "<<"}, {"Punct", "<"},
				{"Ellipsis", "..."}, {"HashHash", "##"}, {"Hash", "#"},
				{"Punct", "->"}, {"Punct", "-"}, {"Punct", "::"},
			},
		},
		{
			"delimiters",
			"(a, b)",
			[][2]string{
				{"LParen", "("}, {"Ident", "a"}, {"Comma", ","},
				{"Ident", "b"}, {"RParen", ")"},
			},
		},
		{
			"comments are whitespace",
			"a /* b */ c // d\ne",
			[][2]string{
				{"Ident", "a"}, {"Ident", "c"}, {"Ident", "e"},
			},
		},
		{
			"line continuation",
			"a\\\nb",
			[][2]string{
				{"Ident", "a"}, {"Ident", "b"},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := kindsAndTexts(scanAll(tt.input))
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestScanPositionsAndFlags(t *testing.T) {
	toks := scanAll("ab cd\n  ef")
	want := []struct {
		pos          token.Position
		leadingSpace bool
		startOfLine  bool
	}{
		{token.Position{Unit: 1, Line: 1, Col: 1}, false, true},
		{token.Position{Unit: 1, Line: 1, Col: 4}, true, false},
		{token.Position{Unit: 1, Line: 2, Col: 3}, true, true},
	}
	if len(toks) != len(want) {
		t.Fatalf("got %d tokens, want %d", len(toks), len(want))
	}
	for i, w := range want {
		if toks[i].Pos != w.pos {
			t.Errorf("token %d: pos %+v, want %+v", i, toks[i].Pos, w.pos)
		}
		if toks[i].HasLeadingSpace() != w.leadingSpace {
			t.Errorf("token %d: leading space %v, want %v", i, toks[i].HasLeadingSpace(), w.leadingSpace)
		}
		if toks[i].StartOfLine() != w.startOfLine {
			t.Errorf("token %d: start of line %v, want %v", i, toks[i].StartOfLine(), w.startOfLine)
		}
	}
}

func TestIdentInterning(t *testing.T) {
	tbl := NewTable()
	a := tbl.Intern("probe")
	b := tbl.Intern("probe")
	if a != b {
		t.Error("interning the same name twice should return the same string")
	}
}
