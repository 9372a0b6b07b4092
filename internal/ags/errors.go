package ags

import "fmt"

// MalformedGroupError reports a group block that does not follow the
// GROUP/HEADING/UNIT/TYPE structure. It is fatal for the whole document.
type MalformedGroupError struct {
	Group  string
	Line   int // 1-indexed line in the source document
	Reason string
}

func (e *MalformedGroupError) Error() string {
	if e.Group == "" {
		return fmt.Sprintf("malformed group at line %d: %s", e.Line, e.Reason)
	}
	return fmt.Sprintf("malformed group %q at line %d: %s", e.Group, e.Line, e.Reason)
}

// DuplicateGroupError reports a group name that appears more than once.
type DuplicateGroupError struct {
	Group string
	Line  int
}

func (e *DuplicateGroupError) Error() string {
	return fmt.Sprintf("duplicate group %q at line %d", e.Group, e.Line)
}

// ColumnLengthMismatchError reports a column whose row count differs from
// the rest of its group.
type ColumnLengthMismatchError struct {
	Group  string
	Column string
	Got    int
	Want   int
}

func (e *ColumnLengthMismatchError) Error() string {
	return fmt.Sprintf("column length mismatch in group %q: column %q has %d rows, want %d",
		e.Group, e.Column, e.Got, e.Want)
}
