package tables

import "github.com/JonMunkholm/geoimport/internal/core"

// Samples are unique per location, so the location name travels with each
// row for matching but is not stored on the sample itself.
func sample() core.MappingDescriptor {
	return core.MappingDescriptor{
		ID:    "sample",
		Group: "SAMP",
		Label: "sample",
		Fields: []core.FieldMapping{
			{Column: "LOCA_ID", Field: "locationName", Kind: core.KindText},
			{Column: "SAMP_TOP", Field: "top", Kind: core.KindNumber},
			{Column: "SAMP_REF", Field: "reference", Kind: core.KindText},
			{Column: "SAMP_TYPE", Field: "type", Kind: core.KindText, Fold: true},
			{Column: "SAMP_ID", Field: "code", Kind: core.KindText},
			{Column: "SAMP_BASE", Field: "base", Kind: core.KindNumber},
			{Column: "SAMP_DTIM", Field: "sampledAt", Kind: core.KindDate},
			{Column: "SAMP_DESC", Field: "description", Kind: core.KindText},
			{Column: "SAMP_REM", Field: "remarks", Kind: core.KindText},
		},
		UniqueKey: []string{"top", "reference", "type", "locationId"},
		Parent: &core.ParentLink{
			ID:         "location",
			Relation:   "location",
			ForeignKey: "locationId",
			Keys:       map[string]string{"name": "locationName"},
		},
		Inherited: []string{"locationId"},
		Omitted:   []string{"locationName"},
	}
}
