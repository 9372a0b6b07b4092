package store

// Table describes the persisted columns of one entity label. The "id"
// column is implicit.
type Table struct {
	Label   string
	Fields  []string
	Kinds   map[string]string // field -> "text" | "number" | "date" | "bool"
	Folded  map[string]bool   // fields compared case-insensitively
	Parents []Relation        // relations leaving this table
}

// Relation links a child label to its parent label through a foreign key
// field on the child.
type Relation struct {
	Name       string // relationship label used in predicates, e.g. "location"
	From       string // child label
	To         string // parent label
	ForeignKey string // child field holding the parent's id
}

// Schema is the set of tables a store serves.
type Schema struct {
	Tables map[string]*Table
}

// Relation looks up the named relation leaving label.
func (s Schema) Relation(label, name string) (Relation, bool) {
	t, ok := s.Tables[label]
	if !ok {
		return Relation{}, false
	}
	for _, r := range t.Parents {
		if r.Name == name {
			return r, true
		}
	}
	return Relation{}, false
}

// Resolve walks path from label and returns the relations traversed.
func (s Schema) Resolve(label string, path Path) ([]Relation, bool) {
	out := make([]Relation, 0, len(path))
	cur := label
	for _, name := range path {
		rel, ok := s.Relation(cur, name)
		if !ok {
			return nil, false
		}
		out = append(out, rel)
		cur = rel.To
	}
	return out, true
}
