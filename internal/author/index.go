package author

import (
	"context"
	"fmt"
	"slices"
)

// Source yields every author name across all records, possibly unsorted.
type Source interface {
	DistinctAuthors(ctx context.Context) ([]string, error)
}

// Index answers distinct-author and autocomplete queries.
type Index struct {
	src Source
}

// NewIndex returns an index over src.
func NewIndex(src Source) *Index {
	return &Index{src: src}
}

// Distinct returns the global set of author names, sorted.
func (ix *Index) Distinct(ctx context.Context) ([]string, error) {
	authors, err := ix.src.DistinctAuthors(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing authors: %w", err)
	}
	authors = slices.Clone(authors)
	slices.Sort(authors)
	return slices.Compact(authors), nil
}

// Suggest returns up to limit authors matching input, sorted. A limit of
// zero or less returns every match.
func (ix *Index) Suggest(ctx context.Context, input string, limit int) ([]string, error) {
	authors, err := ix.Distinct(ctx)
	if err != nil {
		return nil, err
	}

	q := ParseQuery(input)
	matches := []string{}
	for _, a := range authors {
		if !q.Matches(a) {
			continue
		}
		matches = append(matches, a)
		if limit > 0 && len(matches) == limit {
			break
		}
	}
	return matches, nil
}
