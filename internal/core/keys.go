package core

import (
	"fmt"
	"strings"
	"time"

	"github.com/JonMunkholm/geoimport/internal/store"
)

// keyPart is one identifying value of a record. Path is empty for the
// record's own fields and names the relationship chain for ancestor fields.
type keyPart struct {
	Path  store.Path
	Field string
	Value any
	Fold  bool
}

// keyParts lists the identifying values of rec for descriptor id, walking
// the ancestor chain. The scope field is replaced by scope. Foreign keys are
// never part of the result; the ancestor they point at is identified through
// its own key fields instead.
func (r *Registry) keyParts(id string, rec store.Record, scope string) ([]keyPart, error) {
	if err := r.checkKeys(id); err != nil {
		return nil, err
	}
	chain := r.Chain(id)

	var parts []keyPart
	var path store.Path
	for level, d := range chain {
		if level > 0 {
			path = append(path[:len(path):len(path)], chain[level-1].Parent.Relation)
		}

		for _, field := range d.UniqueKey {
			if field == d.foreignKey() {
				continue
			}
			part := keyPart{Path: path, Field: field, Fold: d.Folds(field)}
			switch {
			case field == r.scopeField:
				part.Value = scope
			case level == 0:
				part.Value = rec[field]
			default:
				part.Value = rec[chain[level-1].Parent.Keys[field]]
			}
			parts = append(parts, part)
		}
	}
	return parts, nil
}

// checkKeys fails unless every descriptor in id's chain has a unique key.
func (r *Registry) checkKeys(id string) error {
	chain := r.Chain(id)
	if len(chain) == 0 {
		return fmt.Errorf("%w: %s", ErrUnknownDescriptor, id)
	}
	for _, d := range chain {
		if len(d.UniqueKey) == 0 {
			return &ConfigurationError{Descriptor: d.ID, Reason: "unique key is empty"}
		}
	}
	return nil
}

// keyPredicate renders parts as nested Equals / Relationship clauses.
func keyPredicate(parts []keyPart) store.Predicate {
	return predicateAt(parts, 0)
}

func predicateAt(parts []keyPart, depth int) store.Predicate {
	var clauses []store.Predicate
	var deeper []keyPart
	for _, p := range parts {
		if len(p.Path) == depth {
			clauses = append(clauses, store.Equals{Field: p.Field, Value: p.Value, Fold: p.Fold})
		} else {
			deeper = append(deeper, p)
		}
	}
	if len(deeper) > 0 {
		clauses = append(clauses, store.Relationship{
			Label: deeper[0].Path[depth],
			Child: predicateAt(deeper, depth+1),
		})
	}
	return store.And{Children: clauses}
}

// entityIdentity encodes the values e and its ancestors hold for the fields
// of template, so it equals identity() of any record carrying the same key.
// Only Path, Field and Fold of template are read. ok is false when e lacks an
// ancestor the template reaches.
func entityIdentity(e *store.StoredEntity, template []keyPart) (id string, ok bool) {
	parts := make([]keyPart, len(template))
	for i, p := range template {
		anc := e.Ancestor(len(p.Path))
		if anc == nil {
			return "", false
		}
		p.Value = anc.Fields[p.Field]
		parts[i] = p
	}
	return identity(parts), true
}

// entityIndex groups stored entities by key identity. Each group keeps the
// order the store returned them in.
type entityIndex map[string][]*store.StoredEntity

func indexEntities(found []store.StoredEntity, template []keyPart) entityIndex {
	index := make(entityIndex, len(found))
	for i := range found {
		if id, ok := entityIdentity(&found[i], template); ok {
			index[id] = append(index[id], &found[i])
		}
	}
	return index
}

// shift keeps the parts at least n relationships deep and drops the first n
// labels of their paths, re-rooting a child's ancestor parts at its n-th
// ancestor.
func shift(parts []keyPart, n int) []keyPart {
	var out []keyPart
	for _, p := range parts {
		if len(p.Path) >= n {
			p.Path = p.Path[n:]
			out = append(out, p)
		}
	}
	return out
}

// identity encodes parts into a comparable string.
func identity(parts []keyPart) string {
	var b strings.Builder
	for _, p := range parts {
		b.WriteString(p.Path.String())
		b.WriteByte('.')
		b.WriteString(p.Field)
		b.WriteByte('=')
		b.WriteString(canonical(p.Value, p.Fold))
		b.WriteByte(';')
	}
	return b.String()
}

func canonical(v any, fold bool) string {
	switch x := store.Normalize(v).(type) {
	case nil:
		return "\x00"
	case string:
		if fold {
			return strings.ToLower(x)
		}
		return x
	case time.Time:
		return x.Format(time.RFC3339Nano)
	default:
		return fmt.Sprint(x)
	}
}
