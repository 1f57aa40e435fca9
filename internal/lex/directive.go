package lex

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/ljsking/cmonster/token"
)

// directive handles one preprocessing directive. The introducing '#' has
// already been consumed; the rest of the line is drained from the scanner
// that produced it before any parsing, so a malformed directive never
// leaves half a line behind.
func (e *Engine) directive(hash token.Token) error {
	top := e.stack[len(e.stack)-1]
	if !top.isFile() {
		return e.errAt(hash.Pos, "directive outside of a source unit")
	}
	sc := top.sc
	sc.inDirective = true
	toks := drainDirective(sc)
	if len(toks) == 0 {
		return nil // null directive
	}
	name := toks[0]
	rest := toks[1:]
	if name.Kind != token.Ident {
		if !e.cond.active() {
			return nil
		}
		return e.errAt(name.Pos, "malformed directive %q", name.Text)
	}

	// conditionals are tracked even inside inactive regions
	switch name.Text {
	case "ifdef", "ifndef":
		if len(rest) == 0 || rest[0].Kind != token.Ident {
			return e.errAt(name.Pos, "#%s expects a macro name", name.Text)
		}
		_, defined := e.macros[rest[0].Text]
		if name.Text == "ifndef" {
			defined = !defined
		}
		e.cond.push(defined, name.Pos)
		return nil
	case "if":
		e.cond.push(e.evalCondition(rest), name.Pos)
		return nil
	case "elif":
		if e.cond.depth() == 0 {
			return e.errAt(name.Pos, "stray #elif")
		}
		e.cond.elif(e.evalCondition(rest))
		return nil
	case "else":
		if e.cond.depth() == 0 {
			return e.errAt(name.Pos, "stray #else")
		}
		e.cond.els()
		return nil
	case "endif":
		if !e.cond.pop() {
			return e.errAt(name.Pos, "stray #endif")
		}
		return nil
	}

	if !e.cond.active() {
		return nil
	}

	switch name.Text {
	case "define":
		return e.defineDirective(rest, name.Pos)
	case "undef":
		if len(rest) == 0 || rest[0].Kind != token.Ident {
			return e.errAt(name.Pos, "#undef expects a macro name")
		}
		delete(e.macros, rest[0].Text)
		return nil
	case "include":
		return e.includeDirective(rest, name.Pos)
	case "pragma":
		return e.pragmaDirective(hash, name, rest)
	case "error":
		return e.errAt(name.Pos, "#error %s", spelling(rest))
	default:
		return e.errAt(name.Pos, "unknown directive %q", name.Text)
	}
}

func drainDirective(sc *scanner) []token.Token {
	var toks []token.Token
	for {
		t, ok := sc.next()
		if !ok || t.Kind == token.EOD {
			return toks
		}
		toks = append(toks, t)
	}
}

// defineDirective parses "#define NAME ..." and installs the definition
// under the same identity rule as the facade path: an identical duplicate
// is accepted silently, a different one is an error.
func (e *Engine) defineDirective(toks []token.Token, pos token.Position) error {
	if len(toks) == 0 || toks[0].Kind != token.Ident {
		return e.errAt(pos, "bad #define: expected a macro name")
	}
	name := toks[0]
	d := &Definition{Name: name.Text, End: name.Pos}
	body := toks[1:]

	// function-like only when '(' hugs the name
	if len(toks) > 1 && toks[1].Kind == token.LParen && !toks[1].HasLeadingSpace() {
		d.FunctionLike = true
		i := 2
		seen := make(map[string]bool)
		for {
			if i >= len(toks) {
				return e.errAt(pos, "bad #define %s: unterminated parameter list", d.Name)
			}
			if toks[i].Kind == token.RParen && len(d.Params) == 0 {
				i++
				break
			}
			switch toks[i].Kind {
			case token.Ident:
				if d.Variadic {
					return e.errAt(pos, "bad #define %s: parameter after '...'", d.Name)
				}
				if seen[toks[i].Text] {
					return e.errAt(pos, "bad #define %s: duplicate parameter %q", d.Name, toks[i].Text)
				}
				seen[toks[i].Text] = true
				d.Params = append(d.Params, toks[i].Text)
			case token.Ellipsis:
				d.Variadic = true
				d.Params = append(d.Params, VarargsName)
			default:
				return e.errAt(pos, "bad #define %s: expected parameter name, got %q", d.Name, toks[i].Text)
			}
			i++
			if i >= len(toks) {
				return e.errAt(pos, "bad #define %s: unterminated parameter list", d.Name)
			}
			if toks[i].Kind == token.RParen {
				i++
				break
			}
			if toks[i].Kind != token.Comma {
				return e.errAt(pos, "bad #define %s: expected ',' or ')', got %q", d.Name, toks[i].Text)
			}
			i++
		}
		body = toks[i:]
	}

	d.Body = append([]token.Token(nil), body...)
	if len(d.Body) > 0 {
		d.End = d.Body[len(d.Body)-1].Pos
	}
	if !e.DefineMacro(d) {
		return e.errAt(pos, "redefinition of macro %q", d.Name)
	}
	return nil
}

// includeDirective resolves the target, registers it as a new source unit
// and stacks it on top of the pending input.
func (e *Engine) includeDirective(toks []token.Token, pos token.Position) error {
	path, ok := includePath(toks)
	if !ok {
		return e.errAt(pos, "bad #include syntax")
	}
	from := e.sources.Name(pos.Unit)
	resolved, err := e.resolveInclude(path, from)
	if err != nil {
		return e.errAt(pos, "include %q: %v", path, err)
	}
	if e.including[resolved] {
		return e.errAt(pos, "include cycle detected at %q", resolved)
	}
	buf, err := os.ReadFile(resolved)
	if err != nil {
		return e.errAt(pos, "include %q: %v", path, err)
	}
	u := e.sources.Add(resolved, string(buf))
	e.including[resolved] = true
	e.PushUnit(u)
	e.stack[len(e.stack)-1].guard = resolved
	return nil
}

func includePath(toks []token.Token) (string, bool) {
	if len(toks) == 1 && toks[0].Kind == token.String {
		spell := toks[0].Text
		if len(spell) >= 2 {
			return spell[1 : len(spell)-1], true
		}
		return "", false
	}
	// <path> arrives as a punctuator-delimited token run
	if len(toks) >= 2 && toks[0].Text == "<" && toks[len(toks)-1].Text == ">" {
		var b strings.Builder
		for _, t := range toks[1 : len(toks)-1] {
			b.WriteString(t.Text)
		}
		return b.String(), true
	}
	return "", false
}

func (e *Engine) resolveInclude(path, includingFile string) (string, error) {
	if filepath.IsAbs(path) {
		if fileExists(path) {
			return filepath.Clean(path), nil
		}
		return "", os.ErrNotExist
	}
	if includingFile != "" {
		cand := filepath.Join(filepath.Dir(includingFile), path)
		if fileExists(cand) {
			return filepath.Clean(cand), nil
		}
	}
	for _, dir := range e.includeDirs {
		cand := filepath.Join(dir, path)
		if fileExists(cand) {
			return filepath.Clean(cand), nil
		}
	}
	return "", os.ErrNotExist
}

func fileExists(p string) bool {
	st, err := os.Stat(p)
	return err == nil && !st.IsDir()
}

// pragmaDirective runs the capture-then-dispatch chain for registered
// pragmas. The token saver first stores everything after the pragma name
// in the mailbox; the per-name handler then drains the mailbox, invokes
// the callback and re-enters its result tokens. Unregistered pragmas are
// passed through verbatim.
func (e *Engine) pragmaDirective(hash, name token.Token, toks []token.Token) error {
	if len(toks) > 0 && toks[0].Kind == token.Ident {
		if fn, ok := e.pragmas[toks[0].Text]; ok {
			if err := e.captureTokens(toks[1:]); err != nil {
				return err
			}
			args, err := e.takeCapture()
			if err != nil {
				return err
			}
			res, err := fn(args)
			if err != nil {
				return e.errAt(toks[0].Pos, "pragma %s: %v", toks[0].Text, err)
			}
			e.EnterTokens(spaceSeparated(res))
			return nil
		}
	}
	passthrough := append([]token.Token{hash, name}, toks...)
	e.EnterTokens(passthrough)
	return nil
}

// evalCondition implements the minimal #if truthiness the engine
// supports: optional '!' prefixes around defined(NAME), a defined and
// non-zero object-like macro, or a non-zero integer literal. Full
// conditional-expression evaluation is out of scope.
func (e *Engine) evalCondition(toks []token.Token) bool {
	neg := false
	for len(toks) > 0 && toks[0].Kind == token.Punct && toks[0].Text == "!" {
		neg = !neg
		toks = toks[1:]
	}
	v := false
	switch {
	case len(toks) == 0:
	case toks[0].Kind == token.Ident && toks[0].Text == "defined":
		name := ""
		if len(toks) >= 2 && toks[1].Kind == token.Ident {
			name = toks[1].Text
		} else if len(toks) >= 4 && toks[1].Kind == token.LParen && toks[2].Kind == token.Ident && toks[3].Kind == token.RParen {
			name = toks[2].Text
		}
		if name != "" {
			_, v = e.macros[name]
		}
	case toks[0].Kind == token.Ident:
		if m, ok := e.macros[toks[0].Text].(*Definition); ok && !m.FunctionLike {
			v = len(m.Body) > 0 && m.Body[0].Text != "0"
		}
	case toks[0].Kind == token.Number:
		v = toks[0].Text != "0"
	}
	if neg {
		return !v
	}
	return v
}

// Conditional-inclusion stack. Each frame remembers whether its enclosing
// region was active and whether any branch of this level has been taken.
type condFrame struct {
	parentActive bool
	taken        bool
	active       bool
	pos          token.Position
}

type condStack struct {
	frames []condFrame
}

func (c *condStack) depth() int { return len(c.frames) }

func (c *condStack) active() bool {
	if len(c.frames) == 0 {
		return true
	}
	return c.frames[len(c.frames)-1].active
}

func (c *condStack) push(cond bool, pos token.Position) {
	parent := c.active()
	active := parent && cond
	c.frames = append(c.frames, condFrame{
		parentActive: parent,
		taken:        active,
		active:       active,
		pos:          pos,
	})
}

func (c *condStack) elif(cond bool) {
	top := &c.frames[len(c.frames)-1]
	if !top.parentActive || top.taken {
		top.active = false
		return
	}
	top.active = cond
	if cond {
		top.taken = true
	}
}

func (c *condStack) els() {
	top := &c.frames[len(c.frames)-1]
	if !top.parentActive {
		top.active = false
		return
	}
	top.active = !top.taken
	top.taken = true
}

func (c *condStack) pop() bool {
	if len(c.frames) == 0 {
		return false
	}
	c.frames = c.frames[:len(c.frames)-1]
	return true
}

func (c *condStack) unclosedPos() token.Position {
	if len(c.frames) == 0 {
		return token.Position{}
	}
	return c.frames[len(c.frames)-1].pos
}
