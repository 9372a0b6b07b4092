package ags

import (
	"fmt"
	"io"
	"sort"
	"strings"
)

// groupBoundary separates group blocks in the source text.
const groupBoundary = "\n\"GROUP\","

// Document is the root parse artifact of one AGS file.
type Document struct {
	Groups map[string]*Group `json:"groups"`
}

// Group returns the named group, or nil if the document does not contain it.
func (d *Document) Group(name string) *Group {
	return d.Groups[name]
}

// Names returns the document's group names sorted alphabetically.
func (d *Document) Names() []string {
	names := make([]string, 0, len(d.Groups))
	for name := range d.Groups {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// chunk is one group block together with the document line it starts on.
type chunk struct {
	text      string
	startLine int
}

// Parse parses a complete AGS document. Any structural error aborts the
// parse; no partial document is returned.
func Parse(text string) (*Document, error) {
	doc := &Document{Groups: make(map[string]*Group)}

	for i, c := range splitGroups(text) {
		if i == 0 && !startsWithGroup(c.text) {
			// Preamble before the first group carries no data.
			continue
		}

		g, err := ParseGroup(Lines(c.text), c.startLine)
		if err != nil {
			return nil, err
		}
		if _, dup := doc.Groups[g.Name]; dup {
			return nil, &DuplicateGroupError{Group: g.Name, Line: c.startLine}
		}
		doc.Groups[g.Name] = g
	}

	if err := doc.validate(); err != nil {
		return nil, err
	}
	return doc, nil
}

// Read decodes r to UTF-8 and parses it as an AGS document.
func Read(r io.Reader) (*Document, error) {
	text, err := Decode(r)
	if err != nil {
		return nil, err
	}
	return Parse(text)
}

// splitGroups cuts text on the group boundary, re-attaching the GROUP prefix
// to every chunk after the first.
func splitGroups(text string) []chunk {
	var chunks []chunk
	prefix := ""
	line := 1

	for {
		idx := strings.Index(text, groupBoundary)
		if idx < 0 {
			chunks = append(chunks, chunk{text: prefix + trimLineEnd(text), startLine: line})
			return chunks
		}

		body := text[:idx]
		chunks = append(chunks, chunk{text: prefix + trimLineEnd(body), startLine: line})

		line += strings.Count(body, "\n") + 1
		text = text[idx+len(groupBoundary):]
		prefix = `"GROUP",`
	}
}

func trimLineEnd(s string) string {
	return strings.TrimRight(s, "\r\n")
}

func startsWithGroup(text string) bool {
	for fields := range Lines(text) {
		if isBlank(fields) {
			continue
		}
		return fields[0] == MarkerGroup
	}
	return false
}

// validate enforces the row-count invariant: every column of a group holds
// exactly one value per data row.
func (d *Document) validate() error {
	for _, name := range d.Names() {
		g := d.Groups[name]
		for _, colName := range g.order {
			if got := len(g.Columns[colName].Data); got != g.rows {
				return &ColumnLengthMismatchError{Group: g.Name, Column: colName, Got: got, Want: g.rows}
			}
		}
	}
	return nil
}

// String summarises the document for logs.
func (d *Document) String() string {
	parts := make([]string, 0, len(d.Groups))
	for _, name := range d.Names() {
		parts = append(parts, fmt.Sprintf("%s(%d)", name, d.Groups[name].rows))
	}
	return "Document{" + strings.Join(parts, ", ") + "}"
}
