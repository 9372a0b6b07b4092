package ags

import (
	"fmt"
	"iter"
)

// Row-type markers of the group preamble.
const (
	MarkerGroup   = "GROUP"
	MarkerHeading = "HEADING"
	MarkerUnit    = "UNIT"
	MarkerType    = "TYPE"
)

// Heading is the declared name, unit and AGS type code of one column.
type Heading struct {
	Name string `json:"name"`
	Unit string `json:"unit"`
	Type string `json:"type"`
}

// Column holds every raw value of one heading, in row order.
type Column struct {
	Heading Heading  `json:"heading"`
	Data    []string `json:"data"`
}

// Group is one parsed table section of a document.
type Group struct {
	Name    string             `json:"name"`
	Columns map[string]*Column `json:"columns"`

	order []string
	rows  int
}

// Headings returns the group's headings in declared order.
func (g *Group) Headings() []Heading {
	out := make([]Heading, 0, len(g.order))
	for _, name := range g.order {
		out = append(out, g.Columns[name].Heading)
	}
	return out
}

// Rows returns the number of data rows in the group.
func (g *Group) Rows() int {
	return g.rows
}

// Value returns the raw value at the given column and row.
// ok is false when the column is not part of the group or the row is out of range.
func (g *Group) Value(column string, row int) (string, bool) {
	col, ok := g.Columns[column]
	if !ok || row < 0 || row >= len(col.Data) {
		return "", false
	}
	return col.Data[row], true
}

// ParseGroup builds a Group from the lexed lines of a single group block.
// startLine is the 1-indexed document line of the first element of lines and
// is only used for error reporting. Blank lines are skipped.
func ParseGroup(lines iter.Seq[[]string], startLine int) (*Group, error) {
	g := &Group{Columns: make(map[string]*Column)}

	var preamble int
	lineNo := startLine - 1

	for fields := range lines {
		lineNo++
		if isBlank(fields) {
			continue
		}

		switch preamble {
		case 0:
			if fields[0] != MarkerGroup || len(fields) < 2 || fields[1] == "" {
				return nil, &MalformedGroupError{Line: lineNo, Reason: "expected GROUP line with a group name"}
			}
			g.Name = fields[1]
		case 1:
			if fields[0] != MarkerHeading || len(fields) < 2 {
				return nil, malformed(g, lineNo, "expected HEADING line")
			}
			for _, name := range fields[1:] {
				if _, dup := g.Columns[name]; dup {
					return nil, malformed(g, lineNo, fmt.Sprintf("heading %q declared twice", name))
				}
				g.Columns[name] = &Column{Heading: Heading{Name: name}}
				g.order = append(g.order, name)
			}
		case 2, 3:
			marker := MarkerUnit
			if preamble == 3 {
				marker = MarkerType
			}
			if fields[0] != marker {
				return nil, malformed(g, lineNo, "expected "+marker+" line")
			}
			if len(fields)-1 != len(g.order) {
				return nil, malformed(g, lineNo, fmt.Sprintf("%s has %d fields, HEADING has %d",
					marker, len(fields)-1, len(g.order)))
			}
			for i, v := range fields[1:] {
				col := g.Columns[g.order[i]]
				if preamble == 2 {
					col.Heading.Unit = v
				} else {
					col.Heading.Type = v
				}
			}
		default:
			if len(fields)-1 != len(g.order) {
				return nil, malformed(g, lineNo, fmt.Sprintf("data row has %d fields, HEADING has %d",
					len(fields)-1, len(g.order)))
			}
			for i, v := range fields[1:] {
				col := g.Columns[g.order[i]]
				col.Data = append(col.Data, v)
			}
			g.rows++
			continue
		}
		preamble++
	}

	if preamble < 4 {
		return nil, malformed(g, lineNo, fmt.Sprintf("group preamble has %d of 4 lines", preamble))
	}

	return g, nil
}

func malformed(g *Group, line int, reason string) *MalformedGroupError {
	return &MalformedGroupError{Group: g.Name, Line: line, Reason: reason}
}
