package core

// validation.go turns projected raw records into typed records.
//
// Every field of every record is coerced; a record with any failing field is
// dropped from the typed set and reported once with all of its failing
// fields. Validation never aborts the batch.

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/JonMunkholm/geoimport/internal/store"
)

// FieldError represents a single coercion failure.
type FieldError struct {
	Field   string `json:"field"`
	Value   string `json:"value"`
	Message string `json:"message"`
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// RecordError collects the field errors of one data row.
type RecordError struct {
	Row    int          `json:"row"`
	Fields []FieldError `json:"fields"`
}

func (e RecordError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.Error()
	}
	return fmt.Sprintf("row %d: %s", e.Row, strings.Join(parts, "; "))
}

// FieldNames returns the names of the failing fields.
func (e RecordError) FieldNames() []string {
	names := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		names[i] = f.Field
	}
	return names
}

// ValidationOutcome holds the typed records, in input order, and one error
// entry per rejected record.
type ValidationOutcome struct {
	Typed  []TypedRecord
	Errors []RecordError
}

// Validate coerces raws according to desc's field kinds.
func Validate(raws []RawRecord, desc *MappingDescriptor) ValidationOutcome {
	var out ValidationOutcome

	for _, raw := range raws {
		typed := make(store.Record, len(raw.Fields))
		var errs []FieldError

		// Sorted for stable error ordering.
		for _, field := range slices.Sorted(maps.Keys(raw.Fields)) {
			value := raw.Fields[field]
			v, err := Coerce(desc.Kind(field), value)
			if err != nil {
				errs = append(errs, FieldError{Field: field, Value: *value, Message: err.Error()})
				continue
			}
			typed[field] = v
		}

		if len(errs) > 0 {
			out.Errors = append(out.Errors, RecordError{Row: raw.Row, Fields: errs})
			continue
		}
		out.Typed = append(out.Typed, TypedRecord{Row: raw.Row, Fields: typed})
	}

	return out
}
