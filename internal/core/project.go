package core

import "github.com/JonMunkholm/geoimport/internal/ags"

// Project builds one raw record per data row of desc's group. Columns the
// descriptor does not declare are ignored; declared columns missing from the
// group read as nil. A document without the group yields nil.
func Project(doc *ags.Document, desc *MappingDescriptor) []RawRecord {
	g := doc.Group(desc.Group)
	if g == nil {
		return nil
	}

	records := make([]RawRecord, g.Rows())
	for row := range records {
		fields := make(map[string]*string, len(desc.Fields)+len(desc.Inherited))
		for _, m := range desc.Fields {
			if desc.IsInherited(m.Field) {
				continue
			}
			if v, ok := g.Value(m.Column, row); ok {
				fields[m.Field] = &v
			} else {
				fields[m.Field] = nil
			}
		}
		for _, f := range desc.Inherited {
			fields[f] = nil
		}
		records[row] = RawRecord{Row: row, Fields: fields}
	}
	return records
}
