// Package memory provides an in-memory implementation of store.Store used by
// tests and dry-run imports.
package memory

import (
	"context"
	"fmt"
	"maps"
	"sync"

	"github.com/google/uuid"

	"github.com/JonMunkholm/geoimport/internal/store"
)

// Compile-time contract assertion.
var _ store.Store = (*Store)(nil)

type row struct {
	id     string
	fields store.Record
}

// Store keeps entities per label in insertion order.
type Store struct {
	schema store.Schema

	txMu sync.Mutex // serializes Atomic blocks

	mu   sync.RWMutex
	rows map[string][]row
}

// New creates an empty store serving the given schema.
func New(schema store.Schema) *Store {
	return &Store{
		schema: schema,
		rows:   make(map[string][]row),
	}
}

// Seed inserts an entity with a caller-chosen ID. Intended for tests.
func (s *Store) Seed(label, id string, fields store.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[label] = append(s.rows[label], row{id: id, fields: maps.Clone(fields)})
}

// Count returns the number of stored entities of label.
func (s *Store) Count(label string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rows[label])
}

// FindMany implements store.Store.
func (s *Store) FindMany(ctx context.Context, q store.Query) ([]store.StoredEntity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, ok := s.schema.Tables[q.Label]; !ok {
		return nil, fmt.Errorf("find %s: %w", q.Label, store.ErrUnknownLabel)
	}
	if _, ok := s.schema.Resolve(q.Label, q.Include); !ok {
		return nil, fmt.Errorf("find %s: include path %q not in schema", q.Label, q.Include)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []store.StoredEntity
	for _, r := range s.rows[q.Label] {
		ok, err := s.match(q.Label, r, q.Where)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		out = append(out, s.entity(q.Label, r, q.Include))
	}
	return out, nil
}

// CreateMany implements store.Store.
func (s *Store) CreateMany(ctx context.Context, label string, records []store.Record) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, ok := s.schema.Tables[label]; !ok {
		return nil, fmt.Errorf("create %s: %w", label, store.ErrUnknownLabel)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, len(records))
	for i, rec := range records {
		ids[i] = uuid.New().String()
		s.rows[label] = append(s.rows[label], row{id: ids[i], fields: maps.Clone(rec)})
	}
	return ids, nil
}

// UpdateMany implements store.Store.
func (s *Store) UpdateMany(ctx context.Context, label string, updates []store.Update) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, ok := s.schema.Tables[label]; !ok {
		return fmt.Errorf("update %s: %w", label, store.ErrUnknownLabel)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range updates {
		found := false
		for i := range s.rows[label] {
			if s.rows[label][i].id == u.ID {
				merged := maps.Clone(s.rows[label][i].fields)
				maps.Copy(merged, u.Fields)
				s.rows[label][i].fields = merged
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("update %s: entity %s not found", label, u.ID)
		}
	}
	return nil
}

// Atomic implements store.Store. Writes made by fn are discarded if it fails.
func (s *Store) Atomic(ctx context.Context, fn func(store.Store) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	snapshot := make(map[string][]row, len(s.rows))
	for label, rows := range s.rows {
		snapshot[label] = append([]row(nil), rows...)
	}
	s.mu.RUnlock()

	if err := fn(s); err != nil {
		s.mu.Lock()
		s.rows = snapshot
		s.mu.Unlock()
		return err
	}
	return nil
}

func (s *Store) match(label string, r row, p store.Predicate) (bool, error) {
	switch v := p.(type) {
	case nil:
		return true, nil
	case store.Equals:
		var got any
		if v.Field == "id" {
			got = r.id
		} else {
			got = r.fields[v.Field]
		}
		return store.Equal(got, v.Value, v.Fold), nil
	case store.And:
		for _, c := range v.Children {
			ok, err := s.match(label, r, c)
			if err != nil || !ok {
				return false, err
			}
		}
		return true, nil
	case store.Or:
		for _, c := range v.Children {
			ok, err := s.match(label, r, c)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil
	case store.Relationship:
		rel, ok := s.schema.Relation(label, v.Label)
		if !ok {
			return false, fmt.Errorf("relationship %q not defined on %s", v.Label, label)
		}
		parent, ok := s.lookup(rel.To, r.fields[rel.ForeignKey])
		if !ok {
			return false, nil
		}
		return s.match(rel.To, parent, v.Child)
	default:
		return false, fmt.Errorf("unsupported predicate %T", p)
	}
}

func (s *Store) lookup(label string, id any) (row, bool) {
	key, ok := id.(string)
	if !ok {
		return row{}, false
	}
	for _, r := range s.rows[label] {
		if r.id == key {
			return r, true
		}
	}
	return row{}, false
}

func (s *Store) entity(label string, r row, include store.Path) store.StoredEntity {
	e := store.StoredEntity{ID: r.id, Label: label, Fields: maps.Clone(r.fields)}
	if len(include) == 0 {
		return e
	}
	rel, _ := s.schema.Relation(label, include[0])
	if parent, ok := s.lookup(rel.To, r.fields[rel.ForeignKey]); ok {
		p := s.entity(rel.To, parent, include[1:])
		e.Parent = &p
	}
	return e
}
