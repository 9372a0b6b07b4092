package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEqual(t *testing.T) {
	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	tests := []struct {
		name string
		a, b any
		fold bool
		want bool
	}{
		{"nil nil", nil, nil, false, true},
		{"nil string", nil, "", false, false},
		{"int float", 2, 2.0, false, true},
		{"int64 float", int64(7), 7.0, false, true},
		{"float drift", 0.1 + 0.2, 0.3, false, true},
		{"different numbers", 1.0, 1.5, false, false},
		{"time zones", at, at.In(time.FixedZone("x", 3600)), false, true},
		{"strings exact", "BH1", "bh1", false, false},
		{"strings folded", "BH1", "bh1", true, true},
		{"bytes", []byte("abc"), "abc", false, true},
		{"string pointer", ptr("abc"), "abc", false, true},
		{"nil pointer", (*string)(nil), nil, false, true},
		{"bools", true, true, false, true},
		{"number vs string", 1.0, "1", false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Equal(tt.a, tt.b, tt.fold))
		})
	}
}

func ptr(s string) *string { return &s }

func TestWalkAndPaths(t *testing.T) {
	p := Or{Children: []Predicate{
		And{Children: []Predicate{
			Equals{Field: "specimenReference", Value: "1"},
			Relationship{Label: "sample", Child: And{Children: []Predicate{
				Equals{Field: "top", Value: 1.0},
				Relationship{Label: "location", Child: Equals{Field: "name", Value: "BH1"}},
			}}},
		}},
		Relationship{Label: "sample", Child: Equals{Field: "top", Value: 2.0}},
	}}

	var seen []string
	Walk(p, func(path Path, eq Equals) {
		seen = append(seen, path.String()+":"+eq.Field)
	})
	assert.Equal(t, []string{
		":specimenReference",
		"sample:top",
		"sample.location:name",
		"sample:top",
	}, seen)

	assert.Equal(t, []Path{{"sample"}, {"sample", "location"}}, Paths(p))
}

func TestPredicateString(t *testing.T) {
	p := And{Children: []Predicate{
		Equals{Field: "type", Value: "U", Fold: true},
		Relationship{Label: "location", Child: Equals{Field: "name", Value: "BH1"}},
	}}
	assert.Equal(t, "(type ~= U AND location{name = BH1})", p.String())
}

func TestAncestor(t *testing.T) {
	loc := &StoredEntity{ID: "l"}
	samp := &StoredEntity{ID: "s", Parent: loc}
	mc := &StoredEntity{ID: "m", Parent: samp}

	assert.Same(t, mc, mc.Ancestor(0))
	assert.Same(t, loc, mc.Ancestor(2))
	assert.Nil(t, mc.Ancestor(3))
}

func TestSchemaResolve(t *testing.T) {
	s := Schema{Tables: map[string]*Table{
		"location":         {Label: "location"},
		"sample":           {Label: "sample", Parents: []Relation{{Name: "location", From: "sample", To: "location", ForeignKey: "locationId"}}},
		"moisture_content": {Label: "moisture_content", Parents: []Relation{{Name: "sample", From: "moisture_content", To: "sample", ForeignKey: "sampleId"}}},
	}}

	rels, ok := s.Resolve("moisture_content", Path{"sample", "location"})
	assert.True(t, ok)
	assert.Len(t, rels, 2)
	assert.Equal(t, "location", rels[1].To)

	_, ok = s.Resolve("moisture_content", Path{"location"})
	assert.False(t, ok)

	rels, ok = s.Resolve("location", nil)
	assert.True(t, ok)
	assert.Empty(t, rels)
}
