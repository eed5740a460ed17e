// Package query turns user-supplied filter criteria into store filters.
package query

import (
	"slices"
	"strings"

	"github.com/wipacrepo/pubs/internal/store"
	"github.com/wipacrepo/pubs/internal/taxonomy"
)

// Criteria is the set of optional filters a caller may supply. Present
// conditions are AND-combined.
type Criteria struct {
	Projects  []string `json:"projects"`   // must contain all
	Sites     []string `json:"sites"`      // must contain all
	StartDate string   `json:"start_date"` // inclusive
	EndDate   string   `json:"end_date"`   // inclusive
	Types     []string `json:"type"`       // must be one of
	Search    string   `json:"search"`     // free text
	Authors   []string `json:"authors"`    // must contain all
}

// Normalize returns c with absent lists replaced by empty lists.
func (c Criteria) Normalize() Criteria {
	c.Projects = orEmpty(c.Projects)
	c.Sites = orEmpty(c.Sites)
	c.Types = orEmpty(c.Types)
	c.Authors = orEmpty(c.Authors)
	return c
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return slices.Clone(s)
}

// Builder builds store filters and filter-form options.
type Builder struct {
	reg *taxonomy.Registry
}

// NewBuilder returns a builder that reads labels from reg.
func NewBuilder(reg *taxonomy.Registry) *Builder {
	return &Builder{reg: reg}
}

// Build returns the store filter for c and the normalized criteria for
// redisplay. Keys outside the registry are passed through and simply
// match nothing.
func (b *Builder) Build(c Criteria) (store.Filter, Criteria) {
	echo := c.Normalize()

	f := store.Filter{
		AllProjects: nonEmpty(echo.Projects),
		AllSites:    nonEmpty(echo.Sites),
		AllAuthors:  nonEmpty(echo.Authors),
		AnyType:     nonEmpty(echo.Types),
		DateFrom:    echo.StartDate,
		DateTo:      echo.EndDate,
	}
	if strings.TrimSpace(echo.Search) != "" {
		f.Text = echo.Search
	}
	return f, echo
}

// nonEmpty returns values without empty strings, or nil if none remain.
func nonEmpty(values []string) []string {
	var out []string
	for _, v := range values {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}

// Option is one selectable entry in a filter form.
type Option struct {
	Key      string `json:"key"`
	Label    string `json:"label"`
	Selected bool   `json:"selected"`
}

// FormOptions lists every registry entry with its selection state.
type FormOptions struct {
	Types    []Option `json:"types"`
	Projects []Option `json:"projects"`
	Sites    []Option `json:"sites"`
}

// Options marks the registry entries selected by c.
func (b *Builder) Options(c Criteria) FormOptions {
	return FormOptions{
		Types:    options(b.reg.Types(), c.Types),
		Projects: options(b.reg.Projects(), c.Projects),
		Sites:    options(b.reg.Sites(), c.Sites),
	}
}

func options(enum taxonomy.Enum, selected []string) []Option {
	entries := enum.Entries()
	opts := make([]Option, len(entries))
	for i, e := range entries {
		opts[i] = Option{Key: e.Key, Label: e.Label, Selected: slices.Contains(selected, e.Key)}
	}
	return opts
}
