package store

import (
	"fmt"
	"slices"
	"strings"
)

// Predicate is an immutable filter tree. The concrete variants are
// Equals, And, Or and Relationship.
type Predicate interface {
	isPredicate()
	String() string
}

// Equals matches entities whose Field equals Value. A nil Value matches NULL.
// Fold requests case-insensitive comparison for string values.
type Equals struct {
	Field string
	Value any
	Fold  bool
}

// And matches when every child matches. An empty And matches everything.
type And struct {
	Children []Predicate
}

// Or matches when any child matches. An empty Or matches nothing.
type Or struct {
	Children []Predicate
}

// Relationship applies Child to the related entity reached through Label.
type Relationship struct {
	Label string
	Child Predicate
}

func (Equals) isPredicate()       {}
func (And) isPredicate()          {}
func (Or) isPredicate()           {}
func (Relationship) isPredicate() {}

func (p Equals) String() string {
	op := "="
	if p.Fold {
		op = "~="
	}
	return fmt.Sprintf("%s %s %v", p.Field, op, p.Value)
}

func (p And) String() string { return joinPredicates("AND", p.Children) }
func (p Or) String() string  { return joinPredicates("OR", p.Children) }

func (p Relationship) String() string {
	return fmt.Sprintf("%s{%s}", p.Label, p.Child)
}

func joinPredicates(op string, children []Predicate) string {
	parts := make([]string, len(children))
	for i, c := range children {
		parts[i] = c.String()
	}
	return "(" + strings.Join(parts, " "+op+" ") + ")"
}

// Path is a chain of relationship labels starting at the queried entity,
// e.g. ["sample", "location"] for a moisture content's location.
type Path []string

// String renders the path in dotted form.
func (p Path) String() string {
	return strings.Join(p, ".")
}

// Walk visits every Equals leaf of p along with the relationship path that
// leads to it.
func Walk(p Predicate, fn func(path Path, eq Equals)) {
	walk(p, nil, fn)
}

func walk(p Predicate, path Path, fn func(Path, Equals)) {
	switch v := p.(type) {
	case Equals:
		fn(path, v)
	case And:
		for _, c := range v.Children {
			walk(c, path, fn)
		}
	case Or:
		for _, c := range v.Children {
			walk(c, path, fn)
		}
	case Relationship:
		next := append(append(Path{}, path...), v.Label)
		walk(v.Child, next, fn)
	}
}

// Paths returns every distinct relationship path referenced by p, shortest first.
func Paths(p Predicate) []Path {
	seen := make(map[string]bool)
	var out []Path
	var visit func(Predicate, Path)
	visit = func(p Predicate, path Path) {
		switch v := p.(type) {
		case And:
			for _, c := range v.Children {
				visit(c, path)
			}
		case Or:
			for _, c := range v.Children {
				visit(c, path)
			}
		case Relationship:
			next := append(append(Path{}, path...), v.Label)
			if key := next.String(); !seen[key] {
				seen[key] = true
				out = append(out, next)
			}
			visit(v.Child, next)
		}
	}
	visit(p, nil)
	slices.SortStableFunc(out, func(a, b Path) int { return len(a) - len(b) })
	return out
}
