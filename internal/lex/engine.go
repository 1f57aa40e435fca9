// Package lex is the preprocessing engine: it owns the identifier table,
// the source map, the macro table and the pragma registry, and pulls a
// fully macro-expanded token stream out of any number of stacked source
// units and re-entered token sequences.
package lex

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/ljsking/cmonster/token"
)

// frame is one entry of the input stack: either a live scanner over a
// source unit, or a re-entered token sequence being replayed.
type frame struct {
	sc    *scanner
	toks  []token.Token
	i     int
	guard string // include-cycle guard key, cleared when the frame pops
}

func (f *frame) next() (token.Token, bool) {
	if f.sc != nil {
		return f.sc.next()
	}
	if f.i < len(f.toks) {
		t := f.toks[f.i]
		f.i++
		return t, true
	}
	return token.Token{}, false
}

func (f *frame) isFile() bool { return f.sc != nil }

type rawToken struct {
	tok      token.Token
	fromFile bool
}

// Engine is the single mutable unit behind a preprocessor instance. It is
// not safe for concurrent use; every operation must come from one logical
// thread of control.
type Engine struct {
	idents  *Table
	sources *SourceMap
	macros  map[string]Macro
	pragmas map[string]ExpandFunc

	includeDirs []string
	including   map[string]bool

	stack  []*frame
	peeked *rawToken
	cond   condStack

	// single-slot capture mailbox, filled by the token-saver stage of a
	// pragma and drained by the handler dispatched right after it
	capture  []token.Token
	captured bool

	entered bool
}

// NewEngine builds an engine. Passing an existing identifier table and
// source map makes the new instance share them, which is how a secondary
// engine for pre-start tokenizing keeps identifier identity and location
// comparability with the primary one.
func NewEngine(idents *Table, sources *SourceMap, includeDirs []string) *Engine {
	if idents == nil {
		idents = NewTable()
	}
	if sources == nil {
		sources = NewSourceMap()
	}
	return &Engine{
		idents:      idents,
		sources:     sources,
		macros:      make(map[string]Macro),
		pragmas:     make(map[string]ExpandFunc),
		includeDirs: includeDirs,
		including:   make(map[string]bool),
	}
}

func (e *Engine) Idents() *Table      { return e.idents }
func (e *Engine) Sources() *SourceMap { return e.sources }
func (e *Engine) Entered() bool       { return e.entered }

// PushUnit stacks a scanner for the unit on top of the pending input.
func (e *Engine) PushUnit(u *Unit) {
	e.stack = append(e.stack, &frame{sc: newScanner(u, e.idents)})
}

// EnterMain enters the main source unit. Entering is one-way: once the
// main pass has started it cannot be restarted.
func (e *Engine) EnterMain(u *Unit) {
	if e.entered {
		return
	}
	e.entered = true
	e.PushUnit(u)
}

// EnterTokens splices a token sequence back to the front of the pending
// input, so it is rescanned as if newly read.
func (e *Engine) EnterTokens(toks []token.Token) {
	if len(toks) == 0 {
		return
	}
	e.stack = append(e.stack, &frame{toks: toks})
}

func (e *Engine) nextRaw() (token.Token, bool) {
	if p := e.peeked; p != nil {
		e.peeked = nil
		return p.tok, p.fromFile
	}
	for n := len(e.stack); n > 0; n = len(e.stack) {
		top := e.stack[n-1]
		if t, ok := top.next(); ok {
			return t, top.isFile()
		}
		if top.guard != "" {
			delete(e.including, top.guard)
		}
		e.stack = e.stack[:n-1]
	}
	return token.Token{Kind: token.EOF}, false
}

func (e *Engine) peekRaw() (token.Token, bool) {
	if e.peeked == nil {
		t, ff := e.nextRaw()
		e.peeked = &rawToken{tok: t, fromFile: ff}
	}
	return e.peeked.tok, e.peeked.fromFile
}

// PeekRaw returns the next raw token without consuming it and without
// macro expansion or directive handling.
func (e *Engine) PeekRaw() token.Token {
	t, _ := e.peekRaw()
	return t
}

// NextRaw consumes and returns the next raw token.
func (e *Engine) NextRaw() token.Token {
	t, _ := e.nextRaw()
	return t
}

// Lex returns the next token of the pending input, processing directives
// as they are reached. With expand set, identifiers naming macros are
// replaced according to their macro-table entry; without it they come
// back verbatim.
func (e *Engine) Lex(expand bool) (token.Token, error) {
	for {
		t, fromFile := e.nextRaw()
		if t.Kind == token.EOF {
			if e.cond.depth() != 0 {
				return t, e.errAt(e.cond.unclosedPos(), "unclosed #ifdef or #ifndef")
			}
			return t, nil
		}
		if fromFile && t.Kind == token.Hash && t.StartOfLine() {
			if err := e.directive(t); err != nil {
				return token.Token{Kind: token.EOF}, err
			}
			continue
		}
		if fromFile && !e.cond.active() {
			continue
		}
		if expand && t.Kind == token.Ident {
			if m, ok := e.macros[t.Text]; ok {
				expanded, err := e.expandMacro(t, m)
				if err != nil {
					return token.Token{Kind: token.EOF}, err
				}
				if expanded {
					continue
				}
			}
		}
		return t, nil
	}
}

// expandMacro dispatches on the macro variant. It reports false when the
// identifier turns out not to be an invocation (a function-like macro
// name without a following parenthesis) so the caller emits it verbatim.
func (e *Engine) expandMacro(name token.Token, m Macro) (bool, error) {
	switch mac := m.(type) {
	case *Definition:
		if !mac.FunctionLike {
			e.pushExpansion(name, mac.Body)
			return true, nil
		}
		if t, _ := e.peekRaw(); t.Kind != token.LParen {
			return false, nil
		}
		_, args, err := e.collectArgs(name)
		if err != nil {
			return false, err
		}
		sub, err := substitute(mac, name, args)
		if err != nil {
			return false, e.errAt(name.Pos, "%s", err)
		}
		e.pushExpansion(name, sub)
		return true, nil

	case *Computed:
		if t, _ := e.peekRaw(); t.Kind != token.LParen {
			return false, nil
		}
		raw, _, err := e.collectArgs(name)
		if err != nil {
			return false, err
		}
		res, err := mac.Expand(raw)
		if err != nil {
			return false, fmt.Errorf("dynamic macro %s: %w", name.Text, err)
		}
		e.pushExpansion(name, spaceSeparated(res))
		return true, nil
	}
	return false, nil
}

// collectArgs consumes a parenthesized argument list. raw holds every
// token between the outer parentheses, commas included; args is the same
// sequence split at top-level commas. An empty list yields a single empty
// argument, mirroring how comma splitting sees "()".
func (e *Engine) collectArgs(name token.Token) (raw []token.Token, args [][]token.Token, err error) {
	e.nextRaw() // the opening parenthesis
	depth := 1
	var cur []token.Token
	for {
		t, _ := e.nextRaw()
		switch t.Kind {
		case token.EOF:
			return nil, nil, e.errAt(name.Pos, "unterminated argument list invoking macro %q", name.Text)
		case token.LParen:
			depth++
		case token.RParen:
			depth--
			if depth == 0 {
				args = append(args, cur)
				return raw, args, nil
			}
		case token.Comma:
			if depth == 1 {
				raw = append(raw, t)
				args = append(args, cur)
				cur = nil
				continue
			}
		}
		raw = append(raw, t)
		cur = append(cur, t)
	}
}

// pushExpansion re-enters replacement tokens at the front of the pending
// input. The clones get invalid positions, marking them as expansion
// output rather than file text, and the first one takes over the
// invocation's layout flags so the expansion sits where the macro name
// sat.
func (e *Engine) pushExpansion(name token.Token, body []token.Token) {
	if len(body) == 0 {
		return
	}
	toks := append([]token.Token(nil), body...)
	for i := range toks {
		toks[i].Pos = token.Position{}
	}
	toks[0].Flags = name.Flags
	e.EnterTokens(toks)
}

// spaceSeparated clones toks with the leading-whitespace flag forced on
// every token after the first, preventing re-entered tokens from pasting
// together when serialized.
func spaceSeparated(toks []token.Token) []token.Token {
	if len(toks) == 0 {
		return nil
	}
	out := append([]token.Token(nil), toks...)
	for i := 1; i < len(out); i++ {
		out[i].Flags |= token.LeadingSpace
	}
	return out
}

// substitute builds the replacement sequence for a function-like textual
// macro invocation, handling parameter splicing, # stringification and
// ## pasting.
func substitute(d *Definition, name token.Token, args [][]token.Token) ([]token.Token, error) {
	fixed := len(d.Params)
	if d.Variadic {
		fixed--
	}
	if len(args) == 1 && len(args[0]) == 0 && fixed == 0 && !d.Variadic && len(d.Params) == 0 {
		args = nil
	}
	if d.Variadic {
		if len(args) == 1 && len(args[0]) == 0 && fixed == 0 {
			args = nil
		}
		if len(args) < fixed {
			return nil, fmt.Errorf("macro %q requires at least %d arguments, but %d given",
				name.Text, fixed, len(args))
		}
	} else if len(args) != len(d.Params) {
		return nil, fmt.Errorf("macro %q requires %d arguments, but %d given",
			name.Text, len(d.Params), len(args))
	}

	argFor := func(i int) []token.Token {
		if d.Variadic && i == fixed {
			return joinVarargs(args, fixed)
		}
		if i < len(args) {
			return args[i]
		}
		return nil
	}

	var out []token.Token
	for i := 0; i < len(d.Body); i++ {
		t := d.Body[i]

		// # param -> string literal of the argument spelling
		if t.Kind == token.Hash && i+1 < len(d.Body) && d.Body[i+1].Kind == token.Ident {
			if p := d.paramIndex(d.Body[i+1].Text); p >= 0 {
				out = append(out, token.Token{
					Kind:  token.String,
					Text:  strconv.Quote(spelling(argFor(p))),
					Pos:   t.Pos,
					Flags: t.Flags,
				})
				i++
				continue
			}
		}

		// lhs ## rhs -> pasted token
		if t.Kind == token.HashHash && len(out) > 0 && i+1 < len(d.Body) {
			rhs := d.Body[i+1]
			var repl []token.Token
			if p := d.paramIndex(rhs.Text); rhs.Kind == token.Ident && p >= 0 {
				repl = argFor(p)
			} else {
				repl = []token.Token{rhs}
			}
			i++
			lhs := out[len(out)-1]
			out = out[:len(out)-1]
			out = append(out, paste(lhs, repl)...)
			continue
		}

		if t.Kind == token.Ident {
			if p := d.paramIndex(t.Text); p >= 0 {
				arg := argFor(p)
				for j, at := range arg {
					if j == 0 {
						at.Flags = t.Flags
					}
					out = append(out, at)
				}
				continue
			}
		}
		out = append(out, t)
	}
	return out, nil
}

// joinVarargs rebuilds the __VA_ARGS__ token sequence from the trailing
// arguments, re-inserting the separating commas.
func joinVarargs(args [][]token.Token, fixed int) []token.Token {
	var out []token.Token
	for i := fixed; i < len(args); i++ {
		if i > fixed {
			out = append(out, token.New(token.Comma, ","))
		}
		out = append(out, args[i]...)
	}
	return out
}

// paste merges the left token with the first replacement token, keeping
// any remaining replacement tokens as-is.
func paste(lhs token.Token, repl []token.Token) []token.Token {
	if len(repl) == 0 {
		return []token.Token{lhs}
	}
	merged := lhs
	merged.Text += repl[0].Text
	if merged.Text == repl[0].Text {
		merged.Kind = repl[0].Kind
	}
	return append([]token.Token{merged}, repl[1:]...)
}

// spelling renders a token sequence the way it was written, with single
// spaces where the tokens carried leading whitespace.
func spelling(toks []token.Token) string {
	var s string
	for i, t := range toks {
		if i > 0 && t.HasLeadingSpace() {
			s += " "
		}
		s += t.Text
	}
	return s
}

// DefineMacro installs a textual definition, enforcing the redefinition
// rule: an identical duplicate is a no-op success, anything else naming
// an existing macro fails without mutating the table.
func (e *Engine) DefineMacro(d *Definition) bool {
	if prev, ok := e.macros[d.Name]; ok {
		if p, ok := prev.(*Definition); ok {
			return p.IdenticalTo(d)
		}
		return false
	}
	e.macros[d.Name] = d
	return true
}

// DefineComputed installs a callback-backed macro. Any existing entry
// under the name, textual or computed, is a conflict.
func (e *Engine) DefineComputed(name string, fn ExpandFunc) bool {
	if fn == nil {
		return false
	}
	if _, ok := e.macros[name]; ok {
		return false
	}
	e.macros[name] = &Computed{Name: name, Expand: fn}
	return true
}

// AddPragma registers a handler dispatched for "#pragma name ...".
func (e *Engine) AddPragma(name string, fn ExpandFunc) bool {
	if fn == nil {
		return false
	}
	if _, ok := e.pragmas[name]; ok {
		return false
	}
	e.pragmas[name] = fn
	return true
}

// LookupMacro returns the macro-table entry for name, or nil.
func (e *Engine) LookupMacro(name string) Macro {
	return e.macros[name]
}

func (e *Engine) captureTokens(toks []token.Token) error {
	if e.captured {
		return errors.New("capture mailbox written while full")
	}
	e.capture = append([]token.Token(nil), toks...)
	e.captured = true
	return nil
}

func (e *Engine) takeCapture() ([]token.Token, error) {
	if !e.captured {
		return nil, errors.New("capture mailbox read while empty")
	}
	toks := e.capture
	e.capture, e.captured = nil, false
	return toks, nil
}

func (e *Engine) errAt(pos token.Position, format string, args ...interface{}) error {
	prefix := fmt.Sprintf("%s:%d: ", e.sources.Name(pos.Unit), pos.Line)
	return fmt.Errorf(prefix+format, args...)
}
