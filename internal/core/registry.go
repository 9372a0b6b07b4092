package core

import (
	"fmt"
	"slices"

	"github.com/JonMunkholm/geoimport/internal/store"
)

// Registry is the immutable set of mapping descriptors an import runs
// against. Build it once at startup with NewRegistry and share it freely.
type Registry struct {
	scopeField string
	byID       map[string]*MappingDescriptor
	ordered    []*MappingDescriptor
	chains     map[string][]*MappingDescriptor
}

// NewRegistry validates descs and builds the ancestor chains.
// Descriptors with an empty unique key are accepted; reconciling them fails
// with a ConfigurationError so sibling descriptors can still run.
func NewRegistry(scopeField string, descs ...MappingDescriptor) (*Registry, error) {
	r := &Registry{
		scopeField: scopeField,
		byID:       make(map[string]*MappingDescriptor, len(descs)),
		chains:     make(map[string][]*MappingDescriptor, len(descs)),
	}

	labels := make(map[string]string)
	for i := range descs {
		d := descs[i]
		if d.ID == "" || d.Group == "" || d.Label == "" {
			return nil, &ConfigurationError{Descriptor: d.ID, Reason: "id, group and label are required"}
		}
		if _, dup := r.byID[d.ID]; dup {
			return nil, &ConfigurationError{Descriptor: d.ID, Reason: "duplicate descriptor id"}
		}
		if other, dup := labels[d.Label]; dup {
			return nil, &ConfigurationError{Descriptor: d.ID, Reason: fmt.Sprintf("label %q already used by %s", d.Label, other)}
		}
		labels[d.Label] = d.ID
		r.byID[d.ID] = &d
	}

	for _, d := range r.byID {
		chain, err := r.buildChain(d)
		if err != nil {
			return nil, err
		}
		r.chains[d.ID] = chain
	}

	for _, d := range r.byID {
		if err := r.checkLinks(d); err != nil {
			return nil, err
		}
	}

	r.ordered = r.topological(descs)
	return r, nil
}

func (r *Registry) buildChain(d *MappingDescriptor) ([]*MappingDescriptor, error) {
	chain := []*MappingDescriptor{d}
	seen := map[string]bool{d.ID: true}
	for cur := d; cur.Parent != nil; {
		parent, ok := r.byID[cur.Parent.ID]
		if !ok {
			return nil, &ConfigurationError{Descriptor: cur.ID, Reason: fmt.Sprintf("unknown parent %q", cur.Parent.ID)}
		}
		if seen[parent.ID] {
			return nil, &ConfigurationError{Descriptor: d.ID, Reason: "parent chain contains a cycle"}
		}
		seen[parent.ID] = true
		chain = append(chain, parent)
		cur = parent
	}
	return chain, nil
}

// checkLinks verifies that records of d carry every field needed to identify
// each of its ancestors.
func (r *Registry) checkLinks(d *MappingDescriptor) error {
	if d.Parent == nil {
		return nil
	}
	if d.Parent.Relation == "" || d.Parent.ForeignKey == "" {
		return &ConfigurationError{Descriptor: d.ID, Reason: "parent link needs a relation and a foreign key"}
	}
	if !d.IsInherited(d.Parent.ForeignKey) {
		return &ConfigurationError{Descriptor: d.ID, Reason: fmt.Sprintf("foreign key %q must be inherited", d.Parent.ForeignKey)}
	}

	chain := r.chains[d.ID]
	for level := 1; level < len(chain); level++ {
		link := chain[level-1].Parent
		anc := chain[level]
		for _, key := range anc.UniqueKey {
			if key == r.scopeField || key == anc.foreignKey() {
				continue
			}
			src, ok := link.Keys[key]
			if !ok {
				return &ConfigurationError{Descriptor: chain[level-1].ID, Reason: fmt.Sprintf("link to %s does not map key field %q", anc.ID, key)}
			}
			if !d.HasField(src) {
				return &ConfigurationError{Descriptor: d.ID, Reason: fmt.Sprintf("field %q needed to identify %s is not mapped", src, anc.ID)}
			}
		}
	}
	return nil
}

// topological orders parents before children, keeping declaration order
// among independent descriptors.
func (r *Registry) topological(descs []MappingDescriptor) []*MappingDescriptor {
	out := make([]*MappingDescriptor, 0, len(descs))
	placed := make(map[string]bool, len(descs))
	var place func(d *MappingDescriptor)
	place = func(d *MappingDescriptor) {
		if placed[d.ID] {
			return
		}
		if d.Parent != nil {
			place(r.byID[d.Parent.ID])
		}
		placed[d.ID] = true
		out = append(out, d)
	}
	for _, d := range descs {
		place(r.byID[d.ID])
	}
	return out
}

// ScopeField is the field whose value is substituted with the import scope.
func (r *Registry) ScopeField() string { return r.scopeField }

// Get returns a descriptor by ID.
func (r *Registry) Get(id string) (*MappingDescriptor, bool) {
	d, ok := r.byID[id]
	return d, ok
}

// Chain returns [d, parent, grandparent, ...]. The slice must not be modified.
func (r *Registry) Chain(id string) []*MappingDescriptor {
	return r.chains[id]
}

// Ordered returns every descriptor, parents before children.
func (r *Registry) Ordered() []*MappingDescriptor {
	return slices.Clone(r.ordered)
}

// RelationPath returns the relationship labels from id up to its root.
func (r *Registry) RelationPath(id string) store.Path {
	chain := r.chains[id]
	path := make(store.Path, 0, len(chain))
	for _, d := range chain[:max(len(chain)-1, 0)] {
		path = append(path, d.Parent.Relation)
	}
	return path
}

// Schema derives the store tables and relations served by the registry.
func (r *Registry) Schema() store.Schema {
	s := store.Schema{Tables: make(map[string]*store.Table, len(r.ordered))}
	for _, d := range r.ordered {
		t := &store.Table{
			Label:  d.Label,
			Kinds:  make(map[string]string),
			Folded: make(map[string]bool),
		}
		for _, f := range d.Fields {
			if d.IsOmitted(f.Field) || d.IsInherited(f.Field) {
				continue
			}
			t.Fields = append(t.Fields, f.Field)
			t.Kinds[f.Field] = f.Kind.String()
			t.Folded[f.Field] = f.Fold
		}
		for _, f := range d.Inherited {
			if d.IsOmitted(f) {
				continue
			}
			t.Fields = append(t.Fields, f)
			t.Kinds[f] = KindText.String()
		}
		if d.Parent != nil {
			parent := r.byID[d.Parent.ID]
			t.Parents = append(t.Parents, store.Relation{
				Name:       d.Parent.Relation,
				From:       d.Label,
				To:         parent.Label,
				ForeignKey: d.Parent.ForeignKey,
			})
		}
		s.Tables[d.Label] = t
	}
	return s
}
