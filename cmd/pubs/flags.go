package main

import (
	"slices"

	"github.com/spf13/cobra"

	"github.com/wipacrepo/pubs/internal/publication"
	"github.com/wipacrepo/pubs/internal/query"
)

// addCriteriaFlags registers the filter flags shared by list, count and export.
func addCriteriaFlags(cmd *cobra.Command, c *query.Criteria) {
	f := cmd.Flags()
	f.StringSliceVar(&c.Projects, "project", nil, "Require project (repeatable, all must match)")
	f.StringSliceVar(&c.Sites, "site", nil, "Require site (repeatable, all must match)")
	f.StringSliceVar(&c.Types, "type", nil, "Allow publication type (repeatable, any may match)")
	f.StringArrayVar(&c.Authors, "author", nil, "Require author (repeatable, all must match)")
	f.StringVar(&c.StartDate, "start", "", "Earliest date, inclusive (YYYY-MM-DD)")
	f.StringVar(&c.EndDate, "end", "", "Latest date, inclusive (YYYY-MM-DD)")
	f.StringVar(&c.Search, "search", "", `Free-text search over title, authors and citation ("phrase", -exclude)`)
}

// pubFlags holds the record field flags of add and edit.
type pubFlags struct {
	title     string
	authors   []string
	typ       string
	citation  string
	date      string
	abstract  string
	downloads []string
	projects  []string
	sites     []string
}

func (pf *pubFlags) register(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&pf.title, publication.FieldTitle, "", "Title")
	f.StringArrayVar(&pf.authors, "author", nil, "Author (repeatable, in order)")
	f.StringVar(&pf.typ, publication.FieldType, "", "Publication type key")
	f.StringVar(&pf.citation, publication.FieldCitation, "", "Citation")
	f.StringVar(&pf.date, publication.FieldDate, "", "Date (YYYY-MM-DD or ISO date-time)")
	f.StringVar(&pf.abstract, publication.FieldAbstract, "", "Abstract")
	f.StringArrayVar(&pf.downloads, "download", nil, "Download link (repeatable)")
	f.StringSliceVar(&pf.projects, "project", nil, "Project key (repeatable)")
	f.StringSliceVar(&pf.sites, "site", nil, "Site key (repeatable)")
}

// publication returns a full record from the flags.
func (pf *pubFlags) publication() publication.Publication {
	return publication.Publication{
		Title:     pf.title,
		Authors:   pf.authors,
		Type:      pf.typ,
		Citation:  pf.citation,
		Date:      pf.date,
		Abstract:  pf.abstract,
		Downloads: pf.downloads,
		Projects:  pf.projects,
		Sites:     pf.sites,
	}.WithDefaults()
}

// patch returns a patch holding only the flags set on the command line.
// A list flag given only as --project="" clears that list; empty values
// mixed with others are kept so validation can reject them.
func (pf *pubFlags) patch(cmd *cobra.Command) publication.Patch {
	changed := cmd.Flags().Changed
	var p publication.Patch
	str := func(name string, v string) *string {
		if !changed(name) {
			return nil
		}
		return &v
	}
	list := func(name string, v []string) *[]string {
		if !changed(name) {
			return nil
		}
		if len(v) == 0 || (len(v) == 1 && v[0] == "") {
			return &[]string{}
		}
		out := slices.Clone(v)
		return &out
	}
	p.Title = str(publication.FieldTitle, pf.title)
	p.Authors = list("author", pf.authors)
	p.Type = str(publication.FieldType, pf.typ)
	p.Citation = str(publication.FieldCitation, pf.citation)
	p.Date = str(publication.FieldDate, pf.date)
	p.Abstract = str(publication.FieldAbstract, pf.abstract)
	p.Downloads = list("download", pf.downloads)
	p.Projects = list("project", pf.projects)
	p.Sites = list("site", pf.sites)
	return p
}
