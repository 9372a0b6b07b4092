// Package store defines the narrow contract the import core uses to talk to
// the persistent entity store.
//
// The core only ever reads through FindMany while summarizing an import;
// CreateMany and UpdateMany are used by the separate commit step.
package store

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// ErrUnknownLabel is returned when a query or write names an entity label
// the store has no table for.
var ErrUnknownLabel = errors.New("unknown entity label")

// Record is a flat field -> value map of one entity.
type Record map[string]any

// Update replaces the listed fields of the entity with the given ID.
type Update struct {
	ID     string
	Fields Record
}

// Query selects entities of Label matching Where. Include lists the
// relationship path whose entities should be attached to each result,
// innermost first, e.g. ["sample", "location"].
type Query struct {
	Label   string
	Where   Predicate
	Include Path
}

// StoredEntity is one entity returned by the store. Parent is populated only
// when the query's Include path reaches it.
type StoredEntity struct {
	ID     string        `json:"id"`
	Label  string        `json:"label"`
	Fields Record        `json:"fields"`
	Parent *StoredEntity `json:"parent,omitempty"`
}

// Ancestor follows depth Parent links. Ancestor(0) is the entity itself.
func (e *StoredEntity) Ancestor(depth int) *StoredEntity {
	cur := e
	for i := 0; i < depth && cur != nil; i++ {
		cur = cur.Parent
	}
	return cur
}

// Store is the persistent entity store consumed by the import core.
type Store interface {
	// FindMany returns every entity of q.Label matching q.Where.
	FindMany(ctx context.Context, q Query) ([]StoredEntity, error)

	// CreateMany inserts records and returns the generated IDs in input order.
	CreateMany(ctx context.Context, label string, records []Record) ([]string, error)

	// UpdateMany applies field updates to existing entities.
	UpdateMany(ctx context.Context, label string, updates []Update) error

	// Atomic runs fn against a store view whose writes are committed only
	// if fn returns nil.
	Atomic(ctx context.Context, fn func(Store) error) error
}

// Equal compares two field values the way the store compares them:
// numbers by value regardless of Go type, times by instant, and strings
// case-insensitively when fold is set. nil equals only nil.
func Equal(a, b any, fold bool) bool {
	a, b = Normalize(a), Normalize(b)
	if a == nil || b == nil {
		return a == nil && b == nil
	}

	switch av := a.(type) {
	case float64:
		bv, ok := b.(float64)
		return ok && (av == bv || math.Abs(av-bv) < 1e-9)
	case time.Time:
		bv, ok := b.(time.Time)
		return ok && av.Equal(bv)
	case string:
		bv, ok := b.(string)
		if !ok {
			return false
		}
		if fold {
			return strings.EqualFold(av, bv)
		}
		return av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	default:
		return fmt.Sprint(a) == fmt.Sprint(b)
	}
}

// Normalize maps driver-specific representations onto the small set of
// types the core works with: nil, string, float64, bool and time.Time.
func Normalize(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case *string:
		if x == nil {
			return nil
		}
		return *x
	case []byte:
		return string(x)
	case int:
		return float64(x)
	case int32:
		return float64(x)
	case int64:
		return float64(x)
	case float32:
		return float64(x)
	case time.Time:
		return x.UTC()
	default:
		return v
	}
}
