// Package author provides the distinct author index and author name
// matching for autocomplete.
package author

import (
	"strings"
	"unicode"
)

// Name is an author name split into first and last parts.
type Name struct {
	First string // First name(s) and initials, may be empty
	Last  string
}

// ParseName splits an author string into first and last name.
//
// Supported formats:
//   - "Halzen"           → last="Halzen"
//   - "Francis Halzen"   → first="Francis", last="Halzen"
//   - "Halzen, F."       → first="F.", last="Halzen"
//
// Names are trimmed but case is preserved (matching is case-insensitive).
func ParseName(input string) Name {
	input = strings.TrimSpace(input)
	if input == "" {
		return Name{}
	}

	if idx := strings.Index(input, ","); idx > 0 {
		return Name{
			First: strings.TrimSpace(input[idx+1:]),
			Last:  strings.TrimSpace(input[:idx]),
		}
	}

	parts := strings.Fields(input)
	if len(parts) == 1 {
		return Name{Last: parts[0]}
	}
	return Name{
		First: strings.Join(parts[:len(parts)-1], " "),
		Last:  parts[len(parts)-1],
	}
}

// Query is a parsed autocomplete input.
type Query struct {
	Name
	raw string
}

// ParseQuery parses what a user typed into an author field.
func ParseQuery(input string) Query {
	return Query{Name: ParseName(input), raw: strings.TrimSpace(input)}
}

// IsEmpty reports whether nothing was typed.
func (q Query) IsEmpty() bool {
	return q.raw == ""
}

// Matches checks if the query matches a stored author string.
//
// Matching rules:
//   - Single word: case-insensitive prefix of any word in the name
//   - First and last: last name equal ignoring case, first name prefix
//
// This lets "halz" suggest "Halzen, F." while "F Halzen" does not match
// "Halzenberg, F.".
func (q Query) Matches(author string) bool {
	if q.IsEmpty() {
		return true
	}

	if q.First == "" {
		prefix := strings.ToLower(q.Last)
		for _, word := range words(author) {
			if strings.HasPrefix(strings.ToLower(word), prefix) {
				return true
			}
		}
		return false
	}

	a := ParseName(author)
	if !strings.EqualFold(q.Last, a.Last) {
		return false
	}
	return strings.HasPrefix(strings.ToLower(a.First), strings.ToLower(q.First))
}

func words(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return unicode.IsSpace(r) || r == ','
	})
}
