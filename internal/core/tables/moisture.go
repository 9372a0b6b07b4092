package tables

import "github.com/JonMunkholm/geoimport/internal/core"

// LNMC rows identify their sample by LOCA_ID plus the sample key columns.
func moistureContent() core.MappingDescriptor {
	return core.MappingDescriptor{
		ID:    "moisture_content",
		Group: "LNMC",
		Label: "moisture_content",
		Fields: []core.FieldMapping{
			{Column: "LOCA_ID", Field: "locationName", Kind: core.KindText},
			{Column: "SAMP_TOP", Field: "sampleTop", Kind: core.KindNumber},
			{Column: "SAMP_REF", Field: "sampleReference", Kind: core.KindText},
			{Column: "SAMP_TYPE", Field: "sampleType", Kind: core.KindText, Fold: true},
			{Column: "SPEC_REF", Field: "specimenReference", Kind: core.KindText},
			{Column: "SPEC_DPTH", Field: "specimenDepth", Kind: core.KindNumber},
			{Column: "LNMC_MC", Field: "moistureContent", Kind: core.KindNumber},
			{Column: "LNMC_TEMP", Field: "dryingTemperature", Kind: core.KindNumber},
			{Column: "LNMC_REM", Field: "remarks", Kind: core.KindText},
		},
		UniqueKey: []string{"specimenReference", "specimenDepth", "sampleId"},
		Parent: &core.ParentLink{
			ID:         "sample",
			Relation:   "sample",
			ForeignKey: "sampleId",
			Keys: map[string]string{
				"top":       "sampleTop",
				"reference": "sampleReference",
				"type":      "sampleType",
			},
		},
		Inherited: []string{"sampleId"},
		Omitted:   []string{"locationName", "sampleTop", "sampleReference", "sampleType"},
	}
}
