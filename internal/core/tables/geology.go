package tables

import "github.com/JonMunkholm/geoimport/internal/core"

func geology() core.MappingDescriptor {
	return core.MappingDescriptor{
		ID:    "geology",
		Group: "GEOL",
		Label: "geology",
		Fields: []core.FieldMapping{
			{Column: "LOCA_ID", Field: "locationName", Kind: core.KindText},
			{Column: "GEOL_TOP", Field: "top", Kind: core.KindNumber},
			{Column: "GEOL_BASE", Field: "base", Kind: core.KindNumber},
			{Column: "GEOL_DESC", Field: "description", Kind: core.KindText},
			{Column: "GEOL_LEG", Field: "legendCode", Kind: core.KindText},
			{Column: "GEOL_GEOL", Field: "geologyCode", Kind: core.KindText},
			{Column: "GEOL_STAT", Field: "stratum", Kind: core.KindText},
		},
		UniqueKey: []string{"top", "base", "locationId"},
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
