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

// Package cmonster is a C-family preprocessor whose macro table can mix
// ordinary textual definitions with macros computed by Go callbacks at
// expansion time. The facade wraps the engine in internal/lex and adds
// pre-start definition parsing, standalone tokenizing against the shared
// identifier table, and layout-preserving output.
package cmonster

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ljsking/cmonster/internal/lex"
	"github.com/ljsking/cmonster/token"
)

// ExpandFunc computes replacement tokens for a dynamic macro or a
// registered pragma. It receives the raw argument tokens, commas and all,
// and any error it returns aborts the preprocessing run.
type ExpandFunc = lex.ExpandFunc

// Preprocessor drives one preprocessing run over a main source unit. It
// is not safe for concurrent use.
type Preprocessor struct {
	engine *lex.Engine
	main   *lex.Unit
}

// New reads filename and builds a preprocessor for it. Include directives
// resolve relative to the including file first, then against includeDirs
// in order.
func New(filename string, includeDirs ...string) (*Preprocessor, error) {
	buf, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("cmonster: %w", err)
	}
	return NewFromString(filename, string(buf), includeDirs...), nil
}

// NewFromString builds a preprocessor over in-memory source text. The
// name is used for positions and error messages.
func NewFromString(name, src string, includeDirs ...string) *Preprocessor {
	e := lex.NewEngine(nil, nil, includeDirs)
	u := e.Sources().Add(name, src)
	return &Preprocessor{engine: e, main: u}
}

// Define installs a textual macro from a signature and a body string, the
// same shape the -D command line option takes. The signature is either a
// bare name or a name immediately followed by a parenthesized parameter
// list; a trailing "..." makes the macro variadic. Defining a macro
// identical to an existing one reports false with a nil error; a
// conflicting redefinition is an error.
func (p *Preprocessor) Define(signature, value string) (bool, error) {
	d, err := parseSignature(signature)
	if err != nil {
		return false, err
	}
	body, err := p.tokenizeText(value)
	if err != nil {
		return false, fmt.Errorf("define %s: %w", d.Name, err)
	}
	d.Body = body
	if len(body) > 0 {
		d.End = body[len(body)-1].Pos
	}
	if prev := p.engine.LookupMacro(d.Name); prev != nil {
		if pd, ok := prev.(*lex.Definition); ok && pd.IdenticalTo(d) {
			return false, nil
		}
		return false, fmt.Errorf("redefinition of macro %q", d.Name)
	}
	p.engine.DefineMacro(d)
	return true, nil
}

// DefineDynamic installs a macro whose replacement tokens come from fn at
// each invocation. Dynamic macros are always function-like; the callback
// sees every token between the invocation parentheses. It reports false
// when the name is already taken.
func (p *Preprocessor) DefineDynamic(name string, fn ExpandFunc) bool {
	return p.engine.DefineComputed(name, fn)
}

// AddPragma registers fn to handle "#pragma name ..." lines. The tokens
// after the pragma name are captured and handed to fn; its result is
// spliced into the output stream. It reports false when the name is
// already registered.
func (p *Preprocessor) AddPragma(name string, fn ExpandFunc) bool {
	return p.engine.AddPragma(name, fn)
}

// Tokenize lexes text into raw tokens without expanding macros or
// processing directives. Positions refer to a fresh ephemeral unit in the
// shared source map, so they stay comparable with tokens from the main
// pass. Empty input yields no tokens.
func (p *Preprocessor) Tokenize(text string) ([]token.Token, error) {
	if text == "" {
		return nil, nil
	}
	e := p.engine
	if e.Entered() {
		// the primary engine is mid-pass; a secondary one sharing the
		// identifier table and source map keeps it undisturbed
		e = lex.NewEngine(p.engine.Idents(), p.engine.Sources(), nil)
	}
	u := e.Sources().Add("<tokenize>", text)
	e.PushUnit(u)
	var toks []token.Token
	for {
		t := e.PeekRaw()
		if t.Kind == token.EOF {
			e.NextRaw() // drop the buffered end marker
			break
		}
		if t.Pos.Unit != u.ID {
			return nil, errors.New("tokenize: lookahead crossed out of the given text")
		}
		toks = append(toks, e.NextRaw())
	}
	return toks, nil
}

// Next returns the next output token, entering the main unit on the first
// call. With expand set, macro invocations are replaced; without it the
// stream is raw apart from directive processing. The end of input is an
// EOF token with a nil error.
func (p *Preprocessor) Next(expand bool) (token.Token, error) {
	if !p.engine.Entered() {
		p.engine.EnterMain(p.main)
	}
	return p.engine.Lex(expand)
}

// Preprocess runs the whole main unit through expansion and writes the
// layout-preserved result to w.
func (p *Preprocessor) Preprocess(w io.Writer) error {
	it := p.CreateIterator()
	var toks []token.Token
	for it.HasNext() {
		t, err := it.Next()
		if err != nil {
			return err
		}
		toks = append(toks, t)
	}
	return Format(w, toks)
}

// tokenizeText lexes a macro body against the shared identifier table
// without touching the engine's input stack.
func (p *Preprocessor) tokenizeText(text string) ([]token.Token, error) {
	if text == "" {
		return nil, nil
	}
	side := lex.NewEngine(p.engine.Idents(), p.engine.Sources(), nil)
	u := side.Sources().Add("<define>", text)
	side.PushUnit(u)
	var toks []token.Token
	for {
		t := side.NextRaw()
		if t.Kind == token.EOF {
			return toks, nil
		}
		toks = append(toks, t)
	}
}

// parseSignature splits "NAME" or "NAME(a, b, ...)" into an empty-bodied
// definition.
func parseSignature(sig string) (*lex.Definition, error) {
	sig = strings.TrimSpace(sig)
	name := sig
	params := ""
	hasParams := false
	if i := strings.IndexByte(sig, '('); i >= 0 {
		if !strings.HasSuffix(sig, ")") {
			return nil, fmt.Errorf("bad macro signature %q: unterminated parameter list", sig)
		}
		name = sig[:i]
		params = sig[i+1 : len(sig)-1]
		hasParams = true
	} else if strings.ContainsRune(sig, ')') {
		return nil, fmt.Errorf("bad macro signature %q: ')' without '('", sig)
	}
	if !isIdentifier(name) {
		return nil, fmt.Errorf("bad macro signature %q: invalid macro name", sig)
	}
	d := &lex.Definition{Name: name, FunctionLike: hasParams}
	if !hasParams || strings.TrimSpace(params) == "" {
		return d, nil
	}
	seen := make(map[string]bool)
	for _, raw := range strings.Split(params, ",") {
		param := strings.TrimSpace(raw)
		if d.Variadic {
			return nil, fmt.Errorf("bad macro signature %q: parameter after '...'", sig)
		}
		switch {
		case param == "...":
			d.Variadic = true
			d.Params = append(d.Params, lex.VarargsName)
		case isIdentifier(param):
			if seen[param] {
				return nil, fmt.Errorf("bad macro signature %q: duplicate parameter %q", sig, param)
			}
			seen[param] = true
			d.Params = append(d.Params, param)
		case param == "":
			return nil, fmt.Errorf("bad macro signature %q: empty parameter", sig)
		default:
			return nil, fmt.Errorf("bad macro signature %q: invalid parameter %q", sig, param)
		}
	}
	return d, nil
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '_', c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}
