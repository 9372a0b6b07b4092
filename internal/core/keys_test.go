package core

import (
	"errors"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/geoimport/internal/store"
)

func TestKeyParts_WalksAncestors(t *testing.T) {
	reg := testRegistry(t)

	rec := store.Record{
		"locationName": "BH1",
		"sampleTop":    1.5,
		"sampleType":   "U",
		"reference":    "S1",
		"sampleId":     nil,
	}
	parts, err := reg.keyParts("specimen", rec, "p1")
	require.NoError(t, err)

	assert.Equal(t, []keyPart{
		{Field: "reference", Value: "S1"},
		{Path: store.Path{"sample"}, Field: "top", Value: 1.5},
		{Path: store.Path{"sample"}, Field: "type", Value: "U", Fold: true},
		{Path: store.Path{"sample", "location"}, Field: "name", Value: "BH1"},
		{Path: store.Path{"sample", "location"}, Field: "projectId", Value: "p1"},
	}, parts)
}

func TestKeyParts_EmptyUniqueKey(t *testing.T) {
	loc := locationDesc()
	loc.UniqueKey = nil
	reg, err := NewRegistry(testScope, loc, sampleDesc())
	require.NoError(t, err)

	_, err = reg.keyParts("sample", store.Record{}, "p1")
	var cfgErr *ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "location", cfgErr.Descriptor)

	_, err = reg.keyParts("nope", store.Record{}, "p1")
	assert.ErrorIs(t, err, ErrUnknownDescriptor)
}

func TestKeyPredicate_NestsRelationships(t *testing.T) {
	parts := []keyPart{
		{Field: "reference", Value: "S1"},
		{Path: store.Path{"sample"}, Field: "top", Value: 1.5},
		{Path: store.Path{"sample", "location"}, Field: "name", Value: "BH1"},
	}

	got := keyPredicate(parts)
	assert.Equal(t, "(reference = S1 AND sample{(top = 1.5 AND location{(name = BH1)})})", got.String())
}

func TestEntityIdentity(t *testing.T) {
	loc := &store.StoredEntity{ID: "l1", Fields: store.Record{"name": "BH1", "projectId": "p1"}}
	samp := store.StoredEntity{ID: "s1", Fields: store.Record{"top": 1.5, "type": "u"}, Parent: loc}

	parts := []keyPart{
		{Field: "top", Value: 1.5},
		{Field: "type", Value: "U", Fold: true},
		{Path: store.Path{"location"}, Field: "name", Value: "BH1"},
	}
	got, ok := entityIdentity(&samp, parts)
	require.True(t, ok)
	assert.Equal(t, identity(parts), got)

	other := slices.Clone(parts)
	other[2].Value = "BH2"
	assert.NotEqual(t, identity(other), got)

	orphan := store.StoredEntity{ID: "s2", Fields: samp.Fields}
	_, ok = entityIdentity(&orphan, parts)
	assert.False(t, ok)
}

func TestIndexEntities_KeepsStoreOrder(t *testing.T) {
	loc := &store.StoredEntity{ID: "l1", Fields: store.Record{"name": "BH1"}}
	found := []store.StoredEntity{
		{ID: "s2", Fields: store.Record{"top": 1.0}, Parent: loc},
		{ID: "s1", Fields: store.Record{"top": 1.0}, Parent: loc},
		{ID: "s3", Fields: store.Record{"top": 2.0}, Parent: loc},
		{ID: "s4", Fields: store.Record{"top": 1.0}},
	}
	template := []keyPart{
		{Field: "top"},
		{Path: store.Path{"location"}, Field: "name"},
	}

	index := indexEntities(found, template)
	require.Len(t, index, 2)

	key := identity([]keyPart{
		{Field: "top", Value: 1},
		{Path: store.Path{"location"}, Field: "name", Value: "BH1"},
	})
	group := index[key]
	require.Len(t, group, 2)
	assert.Equal(t, "s2", group[0].ID)
	assert.Equal(t, "s1", group[1].ID)
}

func TestShiftAndIdentity(t *testing.T) {
	reg := testRegistry(t)

	specimen, err := reg.keyParts("specimen", store.Record{
		"locationName": "bh1", "sampleTop": 1, "sampleType": "u", "reference": "S1",
	}, "p1")
	require.NoError(t, err)

	samp, err := reg.keyParts("sample", store.Record{
		"locationName": "bh1", "top": 1.0, "type": "U",
	}, "p1")
	require.NoError(t, err)

	// The specimen's view of its sample identifies the same sample, with
	// numbers compared by value and the folded type case-insensitively.
	assert.Equal(t, identity(samp), identity(shift(specimen, 1)))

	other, err := reg.keyParts("sample", store.Record{
		"locationName": "BH1", "top": 1.0, "type": "U",
	}, "p1")
	require.NoError(t, err)
	assert.NotEqual(t, identity(samp), identity(other), "location name is not folded")
}
