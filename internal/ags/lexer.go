// Package ags parses AGS4-style geotechnical exchange documents.
//
// An AGS document is a sequence of groups. Each group starts with a fixed
// four line preamble followed by data rows:
//
//	"GROUP","LOCA"
//	"HEADING","LOCA_ID","LOCA_LAT"
//	"UNIT","","deg"
//	"TYPE","ID","2DP"
//	"DATA","BH1","51.50"
//
// The grammar supported here is deliberately simpler than the published
// standard: fields are split on every comma and surrounding double quotes
// are stripped. Embedded commas and escaped quotes are not supported.
package ags

import (
	"iter"
	"regexp"
	"strings"
)

// lineBreak matches both Unix and Windows line endings.
var lineBreak = regexp.MustCompile(`\r?\n`)

// Lines splits text into logical lines and each line into de-quoted fields.
// The returned sequence is lazy and meant to be ranged over once.
func Lines(text string) iter.Seq[[]string] {
	return func(yield func([]string) bool) {
		rest := text
		for {
			loc := lineBreak.FindStringIndex(rest)
			if loc == nil {
				if rest != "" {
					yield(SplitFields(rest))
				}
				return
			}
			if !yield(SplitFields(rest[:loc[0]])) {
				return
			}
			rest = rest[loc[1]:]
		}
	}
}

// SplitFields splits a single line on commas and strips surrounding quotes.
func SplitFields(line string) []string {
	parts := strings.Split(line, ",")
	for i, p := range parts {
		parts[i] = unquote(p)
	}
	return parts
}

func unquote(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && strings.HasPrefix(s, `"`) && strings.HasSuffix(s, `"`) {
		return s[1 : len(s)-1]
	}
	return strings.Trim(s, `"`)
}

// isBlank reports whether a lexed line carries no content at all.
func isBlank(fields []string) bool {
	for _, f := range fields {
		if f != "" {
			return false
		}
	}
	return true
}
