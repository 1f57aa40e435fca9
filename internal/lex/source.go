package lex

// Unit is one loaded piece of source text: the main file, an included
// file, or an ephemeral buffer registered by Tokenize. Tokens keep only
// the unit id; the map resolves it back to a name when reporting errors.
type Unit struct {
	ID   int
	Name string
	Src  string
}

// SourceMap owns every Unit an engine (or a pair of engines sharing it)
// has loaded. Ids start at 1 and grow in registration order, so the zero
// Position stays invalid and cross-unit comparisons are stable.
type SourceMap struct {
	units []*Unit
}

func NewSourceMap() *SourceMap {
	return &SourceMap{}
}

// Add registers src under name and returns the new unit.
func (m *SourceMap) Add(name, src string) *Unit {
	u := &Unit{ID: len(m.units) + 1, Name: name, Src: src}
	m.units = append(m.units, u)
	return u
}

// Unit returns the unit with the given id, or nil.
func (m *SourceMap) Unit(id int) *Unit {
	if id < 1 || id > len(m.units) {
		return nil
	}
	return m.units[id-1]
}

// Name returns the unit name for an id, or "<unknown>".
func (m *SourceMap) Name(id int) string {
	if u := m.Unit(id); u != nil {
		return u.Name
	}
	return "<unknown>"
}
