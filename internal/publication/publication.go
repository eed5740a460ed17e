// Package publication defines the catalogued publication record and the
// rules a record must satisfy before it is persisted.
package publication

import (
	"slices"
)

// Field names, as they appear in stored documents and import payloads.
const (
	FieldID        = "id"
	FieldTitle     = "title"
	FieldAuthors   = "authors"
	FieldType      = "type"
	FieldCitation  = "citation"
	FieldDate      = "date"
	FieldAbstract  = "abstract"
	FieldDownloads = "downloads"
	FieldProjects  = "projects"
	FieldSites     = "sites"
)

// FieldOrder is the order in which fields are validated.
var FieldOrder = []string{
	FieldTitle,
	FieldAuthors,
	FieldType,
	FieldCitation,
	FieldDate,
	FieldDownloads,
	FieldProjects,
	FieldSites,
	FieldAbstract,
}

// Publication is one catalogued publication entry.
type Publication struct {
	// ID is assigned by the store on insert. It is empty when a view
	// does not expose identifiers.
	ID string `json:"id,omitempty"`

	Title    string   `json:"title"`
	Authors  []string `json:"authors"`
	Type     string   `json:"type"`
	Citation string   `json:"citation"`
	Date     string   `json:"date"` // ISO date or date-time, stored as supplied
	Abstract string   `json:"abstract,omitempty"`

	Downloads []string `json:"downloads"`
	Projects  []string `json:"projects"`
	Sites     []string `json:"sites"`
}

// NaturalKey identifies "the same publication" across imports.
//
// Two distinct publications sharing title, author list and date collapse
// into one record on import. Import scripts rely on this for
// deduplication, so the key is deliberately not stronger.
type NaturalKey struct {
	Title   string
	Authors []string
	Date    string
}

// Key returns the natural key of p.
func (p Publication) Key() NaturalKey {
	return NaturalKey{Title: p.Title, Authors: slices.Clone(p.Authors), Date: p.Date}
}

// Equal reports whether two keys identify the same publication. Author
// order is significant.
func (k NaturalKey) Equal(o NaturalKey) bool {
	return k.Title == o.Title && k.Date == o.Date && slices.Equal(k.Authors, o.Authors)
}

// WithDefaults returns a copy of p with nil sequences replaced by empty ones.
func (p Publication) WithDefaults() Publication {
	if p.Authors == nil {
		p.Authors = []string{}
	}
	if p.Downloads == nil {
		p.Downloads = []string{}
	}
	if p.Projects == nil {
		p.Projects = []string{}
	}
	if p.Sites == nil {
		p.Sites = []string{}
	}
	return p
}

// SortTags sorts projects and sites in place so every consumer sees a
// stable tag order regardless of insertion order.
func (p *Publication) SortTags() {
	slices.Sort(p.Projects)
	slices.Sort(p.Sites)
}

// Patch is a partial update. A nil field was not supplied and leaves the
// stored value untouched; a non-nil field replaces it, even when empty.
type Patch struct {
	Title     *string   `json:"title,omitempty"`
	Authors   *[]string `json:"authors,omitempty"`
	Type      *string   `json:"type,omitempty"`
	Citation  *string   `json:"citation,omitempty"`
	Date      *string   `json:"date,omitempty"`
	Abstract  *string   `json:"abstract,omitempty"`
	Downloads *[]string `json:"downloads,omitempty"`
	Projects  *[]string `json:"projects,omitempty"`
	Sites     *[]string `json:"sites,omitempty"`
}

// Fields returns the supplied field names in validation order.
func (p Patch) Fields() []string {
	var fields []string
	for _, f := range FieldOrder {
		if p.has(f) {
			fields = append(fields, f)
		}
	}
	return fields
}

// IsEmpty reports whether no field was supplied.
func (p Patch) IsEmpty() bool {
	return len(p.Fields()) == 0
}

func (p Patch) has(field string) bool {
	switch field {
	case FieldTitle:
		return p.Title != nil
	case FieldAuthors:
		return p.Authors != nil
	case FieldType:
		return p.Type != nil
	case FieldCitation:
		return p.Citation != nil
	case FieldDate:
		return p.Date != nil
	case FieldAbstract:
		return p.Abstract != nil
	case FieldDownloads:
		return p.Downloads != nil
	case FieldProjects:
		return p.Projects != nil
	case FieldSites:
		return p.Sites != nil
	}
	return false
}

// Values returns the supplied fields keyed by field name. Sequence values
// are never nil.
func (p Patch) Values() map[string]any {
	values := make(map[string]any)
	str := func(field string, v *string) {
		if v != nil {
			values[field] = *v
		}
	}
	list := func(field string, v *[]string) {
		if v != nil {
			if *v == nil {
				values[field] = []string{}
			} else {
				values[field] = slices.Clone(*v)
			}
		}
	}
	str(FieldTitle, p.Title)
	list(FieldAuthors, p.Authors)
	str(FieldType, p.Type)
	str(FieldCitation, p.Citation)
	str(FieldDate, p.Date)
	str(FieldAbstract, p.Abstract)
	list(FieldDownloads, p.Downloads)
	list(FieldProjects, p.Projects)
	list(FieldSites, p.Sites)
	return values
}

// Apply copies the supplied fields onto pub.
func (p Patch) Apply(pub *Publication) {
	if p.Title != nil {
		pub.Title = *p.Title
	}
	if p.Authors != nil {
		pub.Authors = slices.Clone(*p.Authors)
	}
	if p.Type != nil {
		pub.Type = *p.Type
	}
	if p.Citation != nil {
		pub.Citation = *p.Citation
	}
	if p.Date != nil {
		pub.Date = *p.Date
	}
	if p.Abstract != nil {
		pub.Abstract = *p.Abstract
	}
	if p.Downloads != nil {
		pub.Downloads = slices.Clone(*p.Downloads)
	}
	if p.Projects != nil {
		pub.Projects = slices.Clone(*p.Projects)
	}
	if p.Sites != nil {
		pub.Sites = slices.Clone(*p.Sites)
	}
	*pub = pub.WithDefaults()
}
