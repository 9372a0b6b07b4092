package tables

import "github.com/JonMunkholm/geoimport/internal/core"

func location() core.MappingDescriptor {
	return core.MappingDescriptor{
		ID:    "location",
		Group: "LOCA",
		Label: "location",
		Fields: []core.FieldMapping{
			{Column: "LOCA_ID", Field: "name", Kind: core.KindText},
			{Column: "LOCA_TYPE", Field: "type", Kind: core.KindText},
			{Column: "LOCA_STAT", Field: "status", Kind: core.KindText},
			{Column: "LOCA_NATE", Field: "easting", Kind: core.KindNumber},
			{Column: "LOCA_NATN", Field: "northing", Kind: core.KindNumber},
			{Column: "LOCA_GL", Field: "groundLevel", Kind: core.KindNumber},
			{Column: "LOCA_FDEP", Field: "finalDepth", Kind: core.KindNumber},
			{Column: "LOCA_STAR", Field: "startDate", Kind: core.KindDate},
			{Column: "LOCA_ENDD", Field: "endDate", Kind: core.KindDate},
			{Column: "LOCA_LAT", Field: "latitude", Kind: core.KindNumber},
			{Column: "LOCA_LON", Field: "longitude", Kind: core.KindNumber},
			{Column: "LOCA_REM", Field: "remarks", Kind: core.KindText},
		},
		UniqueKey: []string{"name", ScopeField},
		Inherited: []string{ScopeField},
	}
}
