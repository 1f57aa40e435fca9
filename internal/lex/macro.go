package lex

import (
	"github.com/ljsking/cmonster/token"
)

// VarargsName is the parameter identifier a trailing "..." binds to.
const VarargsName = "__VA_ARGS__"

// ExpandFunc computes replacement tokens from raw argument tokens. It is
// the callback type behind computed macros and registered pragmas.
type ExpandFunc func(args []token.Token) ([]token.Token, error)

// Macro is a macro-table entry. Expansion dispatches on the concrete
// variant: a Definition substitutes its body tokens, a Computed macro
// calls out to external code for its replacement.
type Macro interface {
	MacroName() string
}

// Definition is a textual macro: a fixed body token sequence, with
// parameters when function-like.
type Definition struct {
	Name         string
	FunctionLike bool
	Variadic     bool
	Params       []string
	Body         []token.Token
	End          token.Position
}

func (d *Definition) MacroName() string { return d.Name }

// paramIndex returns the position of name in the parameter list, or -1.
func (d *Definition) paramIndex(name string) int {
	for i, p := range d.Params {
		if p == name {
			return i
		}
	}
	return -1
}

// IdenticalTo reports whether two definitions are interchangeable: same
// shape flags, same parameter sequence, and bodies that match token for
// token in kind, spelling, and interior spacing. The first body token's
// spacing is ignored, matching how a redefinition may be laid out
// differently after the closing paren.
func (d *Definition) IdenticalTo(o *Definition) bool {
	if d.FunctionLike != o.FunctionLike || d.Variadic != o.Variadic {
		return false
	}
	if len(d.Params) != len(o.Params) || len(d.Body) != len(o.Body) {
		return false
	}
	for i := range d.Params {
		if d.Params[i] != o.Params[i] {
			return false
		}
	}
	for i := range d.Body {
		a, b := d.Body[i], o.Body[i]
		if a.Kind != b.Kind || a.Text != b.Text {
			return false
		}
		if i > 0 && a.HasLeadingSpace() != b.HasLeadingSpace() {
			return false
		}
	}
	return true
}

// Computed is a macro whose replacement is produced by a callback at
// invocation time. Computed macros are always function-like and variadic:
// the callback receives every token between the invocation parentheses.
type Computed struct {
	Name   string
	Expand ExpandFunc
}

func (c *Computed) MacroName() string { return c.Name }
