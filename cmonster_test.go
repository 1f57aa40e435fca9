/*
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package cmonster

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/ljsking/cmonster/token"
)

// drainIterator collects every expanded output token text.
func drainIterator(t *testing.T, p *Preprocessor) []string {
	t.Helper()
	it := p.CreateIterator()
	var texts []string
	for it.HasNext() {
		tok, err := it.Next()
		if err != nil {
			t.Fatalf("iterator error: %v", err)
		}
		texts = append(texts, tok.Text)
	}
	return texts
}

func TestDefine(t *testing.T) {
	p := NewFromString("test.c", "ABC\n")
	fresh, err := p.Define("ABC", "123")
	if err != nil {
		t.Fatalf("Define: %v", err)
	}
	if !fresh {
		t.Error("first definition should report fresh")
	}

	// an identical duplicate is accepted but not fresh
	fresh, err = p.Define("ABC", "123")
	if err != nil {
		t.Fatalf("identical redefinition: %v", err)
	}
	if fresh {
		t.Error("identical redefinition should not report fresh")
	}

	// a conflicting duplicate is rejected and the table keeps the original
	if _, err = p.Define("ABC", "456"); err == nil {
		t.Fatal("conflicting redefinition should fail")
	}
	got := drainIterator(t, p)
	if diff := cmp.Diff([]string{"123"}, got); diff != "" {
		t.Errorf("output mismatch (-want +got):\n%s", diff)
	}
}

func TestDefineBadSignatures(t *testing.T) {
	p := NewFromString("test.c", "")
	for _, sig := range []string{
		"",
		"1BAD",
		"NAME)",
		"F(x",
		"F(a,,b)",
		"F(..., a)",
		"F(a, a)",
		"F(a b)",
	} {
		if _, err := p.Define(sig, "1"); err == nil {
			t.Errorf("Define(%q) should fail", sig)
		}
	}
}

func TestFunctionMacroExpansion(t *testing.T) {
	p := NewFromString("square.c", "SQUARE(1+2)\n")
	if _, err := p.Define("SQUARE(x)", "((x)*(x))"); err != nil {
		t.Fatalf("Define: %v", err)
	}
	got := strings.Join(drainIterator(t, p), "")
	if got != "((1+2)*(1+2))" {
		t.Errorf("got %q, want %q", got, "((1+2)*(1+2))")
	}
}

func TestVariadicGrouping(t *testing.T) {
	p := NewFromString("va.c", "V(s, 1, 2)\n")
	if _, err := p.Define("V(fmt, ...)", "printf(fmt, __VA_ARGS__)"); err != nil {
		t.Fatalf("Define: %v", err)
	}
	got := drainIterator(t, p)
	want := []string{"printf", "(", "s", ",", "1", ",", "2", ")"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("output mismatch (-want +got):\n%s", diff)
	}
}

func TestDynamicMacro(t *testing.T) {
	p := NewFromString("dyn.c", "go(1, 2)\ndone\n")
	var seen []string
	ok := p.DefineDynamic("go", func(args []token.Token) ([]token.Token, error) {
		for _, a := range args {
			seen = append(seen, a.Text)
		}
		return []token.Token{token.New(token.Number, "42")}, nil
	})
	if !ok {
		t.Fatal("DefineDynamic should succeed on a fresh name")
	}
	if p.DefineDynamic("go", nil) {
		t.Error("registering a nil callback should fail")
	}

	got := drainIterator(t, p)
	if diff := cmp.Diff([]string{"42", "done"}, got); diff != "" {
		t.Errorf("output mismatch (-want +got):\n%s", diff)
	}
	// raw argument tokens, separators included
	if diff := cmp.Diff([]string{"1", ",", "2"}, seen); diff != "" {
		t.Errorf("callback args mismatch (-want +got):\n%s", diff)
	}
}

func TestNestedDynamicMacros(t *testing.T) {
	p := NewFromString("nest.c", "OUTER(x)\n")
	p.DefineDynamic("OUTER", func(args []token.Token) ([]token.Token, error) {
		return []token.Token{
			token.New(token.Ident, "INNER"),
			token.New(token.LParen, "("),
			token.New(token.Ident, "z"),
			token.New(token.RParen, ")"),
		}, nil
	})
	p.DefineDynamic("INNER", func(args []token.Token) ([]token.Token, error) {
		return []token.Token{token.New(token.Number, "7")}, nil
	})
	got := drainIterator(t, p)
	if diff := cmp.Diff([]string{"7"}, got); diff != "" {
		t.Errorf("output mismatch (-want +got):\n%s", diff)
	}
}

func TestDynamicMacroError(t *testing.T) {
	p := NewFromString("err.c", "F(1)\n")
	p.DefineDynamic("F", func(args []token.Token) ([]token.Token, error) {
		return nil, os.ErrInvalid
	})
	it := p.CreateIterator()
	if !it.HasNext() {
		t.Fatal("a pending error should keep HasNext true")
	}
	_, err := it.Next()
	if err == nil || !strings.Contains(err.Error(), "dynamic macro F") {
		t.Errorf("got %v, want dynamic macro error", err)
	}
	// the error is sticky
	if _, err2 := it.Next(); err2 != err {
		t.Errorf("second Next returned %v, want the same error", err2)
	}
}

func TestAddPragma(t *testing.T) {
	p := NewFromString("prag.c", "#pragma greet world\n")
	ok := p.AddPragma("greet", func(args []token.Token) ([]token.Token, error) {
		out := []token.Token{token.New(token.Ident, "hello")}
		return append(out, args...), nil
	})
	if !ok {
		t.Fatal("AddPragma should succeed on a fresh name")
	}
	if p.AddPragma("greet", func([]token.Token) ([]token.Token, error) { return nil, nil }) {
		t.Error("registering the same pragma twice should fail")
	}
	got := drainIterator(t, p)
	if diff := cmp.Diff([]string{"hello", "world"}, got); diff != "" {
		t.Errorf("output mismatch (-want +got):\n%s", diff)
	}
}

func TestTokenize(t *testing.T) {
	p := NewFromString("tok.c", "A\n")
	if _, err := p.Define("A", "1"); err != nil {
		t.Fatalf("Define: %v", err)
	}

	toks, err := p.Tokenize("")
	if err != nil {
		t.Fatalf("Tokenize: %v", err)
	}
	if toks != nil {
		t.Errorf("empty input should yield no tokens, got %v", toks)
	}

	// no expansion, even for defined names
	toks, err = p.Tokenize("A + B")
	if err != nil {
		t.Fatalf("Tokenize: %v", err)
	}
	texts := make([]string, len(toks))
	for i, tok := range toks {
		texts[i] = tok.Text
	}
	if diff := cmp.Diff([]string{"A", "+", "B"}, texts); diff != "" {
		t.Errorf("token mismatch (-want +got):\n%s", diff)
	}

	// the main pass is unaffected by pre-start tokenizing
	got := drainIterator(t, p)
	if diff := cmp.Diff([]string{"1"}, got); diff != "" {
		t.Errorf("output mismatch (-want +got):\n%s", diff)
	}

	// mid-pass tokenizing goes through a secondary engine sharing the
	// identifier table and source map
	toks, err = p.Tokenize("x y")
	if err != nil {
		t.Fatalf("Tokenize: %v", err)
	}
	if len(toks) != 2 {
		t.Fatalf("got %d tokens, want 2", len(toks))
	}
	if !toks[0].Pos.IsValid() {
		t.Error("tokenized tokens should carry positions")
	}
	if toks[0].Pos.Line != 1 || toks[0].Pos.Col != 1 {
		t.Errorf("first token at %v, want line 1 col 1", toks[0].Pos)
	}
}

func TestFormatRoundTrip(t *testing.T) {
	p := NewFromString("fmt.c", "")
	src := "int x = 1;\n  foo(bar);"
	toks, err := p.Tokenize(src)
	if err != nil {
		t.Fatalf("Tokenize: %v", err)
	}
	var b strings.Builder
	if err := Format(&b, toks); err != nil {
		t.Fatalf("Format: %v", err)
	}
	if diff := cmp.Diff(src, b.String()); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestPreprocess(t *testing.T) {
	p := NewFromString("main.c", "#define PI 314\nx = PI;\n")
	var b bytes.Buffer
	if err := p.Preprocess(&b); err != nil {
		t.Fatalf("Preprocess: %v", err)
	}
	if diff := cmp.Diff("\nx = 314;", b.String()); diff != "" {
		t.Errorf("output mismatch (-want +got):\n%s", diff)
	}
}

func TestNew(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "main.c")
	if err := os.WriteFile(path, []byte("#define ONE 1\nONE\n"), 0644); err != nil {
		t.Fatal(err)
	}
	p, err := New(path)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	got := drainIterator(t, p)
	if diff := cmp.Diff([]string{"1"}, got); diff != "" {
		t.Errorf("output mismatch (-want +got):\n%s", diff)
	}

	if _, err := New(filepath.Join(dir, "missing.c")); err == nil {
		t.Error("New on a missing file should fail")
	}
}

func TestNextWithoutExpansion(t *testing.T) {
	p := NewFromString("raw.c", "#define A 1\nA\n")
	tok, err := p.Next(false)
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if tok.Text != "A" {
		t.Errorf("got %q, want the unexpanded name", tok.Text)
	}
	tok, err = p.Next(false)
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if tok.Kind != token.EOF {
		t.Errorf("got %v, want EOF", tok)
	}
}
