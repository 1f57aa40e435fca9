package lex

// Table interns identifier spellings. A primary engine and any secondary
// engine created for pre-start tokenizing share one Table, handed over at
// construction, so an identifier lexed by either instance is the same
// string value and macro lookups agree across both.
type Table struct {
	names map[string]string
}

func NewTable() *Table {
	return &Table{names: make(map[string]string)}
}

// Intern returns the canonical copy of name, adding it on first sight.
func (t *Table) Intern(name string) string {
	if s, ok := t.names[name]; ok {
		return s
	}
	t.names[name] = name
	return name
}
