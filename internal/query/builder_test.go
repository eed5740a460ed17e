package query

import (
	"slices"
	"testing"

	"github.com/wipacrepo/pubs/internal/taxonomy"
)

func TestBuild(t *testing.T) {
	b := NewBuilder(taxonomy.Default())

	tests := []struct {
		name     string
		criteria Criteria
		check    func(t *testing.T, c Criteria)
	}{
		{
			name:     "empty criteria match everything",
			criteria: Criteria{},
			check: func(t *testing.T, c Criteria) {
				f, _ := b.Build(c)
				if !f.IsEmpty() {
					t.Errorf("Build() filter = %+v, want empty", f)
				}
			},
		},
		{
			name:     "lists carry through",
			criteria: Criteria{Projects: []string{"hawc", "icecube"}, Types: []string{"journal", "thesis"}, Authors: []string{"auth1"}},
			check: func(t *testing.T, c Criteria) {
				f, _ := b.Build(c)
				if !slices.Equal(f.AllProjects, []string{"hawc", "icecube"}) {
					t.Errorf("AllProjects = %v", f.AllProjects)
				}
				if !slices.Equal(f.AnyType, []string{"journal", "thesis"}) {
					t.Errorf("AnyType = %v", f.AnyType)
				}
				if !slices.Equal(f.AllAuthors, []string{"auth1"}) {
					t.Errorf("AllAuthors = %v", f.AllAuthors)
				}
			},
		},
		{
			name:     "single date bound",
			criteria: Criteria{StartDate: "2020-02-02"},
			check: func(t *testing.T, c Criteria) {
				f, _ := b.Build(c)
				if f.DateFrom != "2020-02-02" || f.DateTo != "" {
					t.Errorf("date range = [%q, %q]", f.DateFrom, f.DateTo)
				}
			},
		},
		{
			name:     "blank search adds no text condition",
			criteria: Criteria{Search: "   "},
			check: func(t *testing.T, c Criteria) {
				f, echo := b.Build(c)
				if f.Text != "" {
					t.Errorf("Text = %q, want empty", f.Text)
				}
				if echo.Search != "   " {
					t.Errorf("echo Search = %q, want unchanged", echo.Search)
				}
			},
		},
		{
			name:     "unknown keys pass through",
			criteria: Criteria{Projects: []string{"pingu"}},
			check: func(t *testing.T, c Criteria) {
				f, _ := b.Build(c)
				if !slices.Equal(f.AllProjects, []string{"pingu"}) {
					t.Errorf("AllProjects = %v", f.AllProjects)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, tt.criteria)
		})
	}
}

func TestBuild_EchoDefaultsLists(t *testing.T) {
	b := NewBuilder(taxonomy.Default())
	_, echo := b.Build(Criteria{Search: "neutrino", Sites: []string{"wipac"}})

	for name, list := range map[string][]string{
		"projects": echo.Projects,
		"types":    echo.Types,
		"authors":  echo.Authors,
	} {
		if list == nil || len(list) != 0 {
			t.Errorf("echo %s = %#v, want empty non-nil list", name, list)
		}
	}
	if !slices.Equal(echo.Sites, []string{"wipac"}) || echo.Search != "neutrino" {
		t.Errorf("echo = %+v, want supplied values unchanged", echo)
	}
}

func TestOptions(t *testing.T) {
	reg := taxonomy.Default()
	b := NewBuilder(reg)

	opts := b.Options(Criteria{Projects: []string{"hawc"}, Types: []string{"thesis"}})
	if len(opts.Projects) != reg.Projects().Len() {
		t.Fatalf("got %d project options, want %d", len(opts.Projects), reg.Projects().Len())
	}

	for _, o := range opts.Projects {
		if o.Selected != (o.Key == "hawc") {
			t.Errorf("project %s Selected = %v", o.Key, o.Selected)
		}
		if o.Key == "hawc" && o.Label != "HAWC" {
			t.Errorf("hawc label = %q", o.Label)
		}
	}
	for _, o := range opts.Sites {
		if o.Selected {
			t.Errorf("site %s selected with no site criteria", o.Key)
		}
	}
	selected := 0
	for _, o := range opts.Types {
		if o.Selected {
			selected++
		}
	}
	if selected != 1 {
		t.Errorf("%d types selected, want 1", selected)
	}
}
