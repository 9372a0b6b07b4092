// Package core provides the business logic for AGS import operations.
// This package has no transport dependencies and can be used by any frontend.
package core

import (
	"fmt"
	"slices"
	"strings"

	"github.com/JonMunkholm/geoimport/internal/store"
)

// Kind is the primitive type a mapped field is coerced to.
type Kind int

const (
	KindText Kind = iota
	KindNumber
	KindDate
	KindBool
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindNumber:
		return "number"
	case KindDate:
		return "date"
	case KindBool:
		return "bool"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ParseKind converts a kind name as written in descriptor files.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "text", "string":
		return KindText, nil
	case "number", "numeric":
		return KindNumber, nil
	case "date", "datetime":
		return KindDate, nil
	case "bool", "boolean":
		return KindBool, nil
	default:
		return KindText, fmt.Errorf("unknown field kind %q", s)
	}
}

// FieldMapping binds one AGS column to one domain field.
type FieldMapping struct {
	Column string // AGS heading, e.g. "LOCA_ID"
	Field  string // Domain field, e.g. "name"
	Kind   Kind
	Fold   bool // Compare case-insensitively during reconciliation
}

// ParentLink describes how a descriptor hangs off its parent.
type ParentLink struct {
	ID         string            // Parent descriptor ID
	Relation   string            // Relationship label from child to parent, e.g. "location"
	ForeignKey string            // Child field holding the parent's stored ID
	Keys       map[string]string // Parent unique-key field -> child field carrying its value
}

// MappingDescriptor maps one AGS group onto one entity label.
type MappingDescriptor struct {
	ID        string
	Group     string
	Label     string
	Fields    []FieldMapping
	UniqueKey []string
	Parent    *ParentLink
	Inherited []string // Filled by the caller, never read from the row
	Omitted   []string // Used for matching but stripped before persisting
}

// Field returns the mapping that produces the named domain field.
func (d *MappingDescriptor) Field(name string) (FieldMapping, bool) {
	for _, f := range d.Fields {
		if f.Field == name {
			return f, true
		}
	}
	return FieldMapping{}, false
}

// Kind returns the declared kind of a field. Inherited fields are text.
func (d *MappingDescriptor) Kind(field string) Kind {
	if f, ok := d.Field(field); ok {
		return f.Kind
	}
	return KindText
}

// Folds reports whether field compares case-insensitively.
func (d *MappingDescriptor) Folds(field string) bool {
	f, ok := d.Field(field)
	return ok && f.Fold
}

func (d *MappingDescriptor) IsInherited(field string) bool { return slices.Contains(d.Inherited, field) }
func (d *MappingDescriptor) IsOmitted(field string) bool   { return slices.Contains(d.Omitted, field) }

// HasField reports whether records of d carry field, either mapped or inherited.
func (d *MappingDescriptor) HasField(field string) bool {
	_, ok := d.Field(field)
	return ok || d.IsInherited(field)
}

// foreignKey returns the parent FK field name, or "" for roots.
func (d *MappingDescriptor) foreignKey() string {
	if d.Parent == nil {
		return ""
	}
	return d.Parent.ForeignKey
}

// RawRecord is one projected data row. Inherited fields are present and nil.
type RawRecord struct {
	Row    int
	Fields map[string]*string
}

// TypedRecord is a validated record. Values are nil, string, float64, bool or
// time.Time.
type TypedRecord struct {
	Row    int          `json:"row"`
	Fields store.Record `json:"fields"`
}

// Match pairs an incoming record with the stored entity it corresponds to.
type Match struct {
	Record TypedRecord        `json:"record"`
	Entity store.StoredEntity `json:"entity"`
}

// IntegrityWarning flags a record that matched more than one stored entity.
// The first candidate was used.
type IntegrityWarning struct {
	Row        int      `json:"row"`
	Candidates []string `json:"candidates"`
}

// ReconciliationResult partitions a batch into new and existing records.
type ReconciliationResult struct {
	New      []TypedRecord      `json:"new"`
	Updated  []Match            `json:"updated"`
	Warnings []IntegrityWarning `json:"warnings,omitempty"`
}
