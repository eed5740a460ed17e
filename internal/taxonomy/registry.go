// Package taxonomy holds the fixed enumerations of publication types,
// projects and sites that publication records are validated against.
package taxonomy

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Entry is one key of an enumeration together with its display label.
type Entry struct {
	Key   string `yaml:"key" json:"key"`
	Label string `yaml:"label" json:"label"`
}

// Enum is an ordered, read-only set of entries.
type Enum struct {
	entries []Entry
	labels  map[string]string
}

func newEnum(name string, entries []Entry) (Enum, error) {
	e := Enum{
		entries: make([]Entry, len(entries)),
		labels:  make(map[string]string, len(entries)),
	}
	for i, entry := range entries {
		if entry.Key == "" {
			return Enum{}, fmt.Errorf("%s entry %d: empty key", name, i+1)
		}
		if _, dup := e.labels[entry.Key]; dup {
			return Enum{}, fmt.Errorf("%s entry %d: duplicate key %q", name, i+1, entry.Key)
		}
		if entry.Label == "" {
			entry.Label = entry.Key
		}
		e.entries[i] = entry
		e.labels[entry.Key] = entry.Label
	}
	return e, nil
}

// Has reports whether key is a member of the enumeration.
func (e Enum) Has(key string) bool {
	_, ok := e.labels[key]
	return ok
}

// Label returns the display label for key, or key itself if unknown.
func (e Enum) Label(key string) string {
	if label, ok := e.labels[key]; ok {
		return label
	}
	return key
}

// Keys returns the keys in registry order.
func (e Enum) Keys() []string {
	keys := make([]string, len(e.entries))
	for i, entry := range e.entries {
		keys[i] = entry.Key
	}
	return keys
}

// Entries returns a copy of the entries in registry order.
func (e Enum) Entries() []Entry {
	out := make([]Entry, len(e.entries))
	copy(out, e.entries)
	return out
}

// Labels returns a key→label map. The map is a copy.
func (e Enum) Labels() map[string]string {
	out := make(map[string]string, len(e.labels))
	for k, v := range e.labels {
		out[k] = v
	}
	return out
}

// Len returns the number of entries.
func (e Enum) Len() int {
	return len(e.entries)
}

// Registry bundles the three enumerations. It is built once at startup and
// never mutated afterwards, so it is safe to share between goroutines.
type Registry struct {
	types    Enum
	projects Enum
	sites    Enum
}

// Types returns the publication-type enumeration.
func (r *Registry) Types() Enum { return r.types }

// Projects returns the project enumeration.
func (r *Registry) Projects() Enum { return r.projects }

// Sites returns the site enumeration.
func (r *Registry) Sites() Enum { return r.sites }

// File is the YAML layout accepted by Load.
type File struct {
	Types    []Entry `yaml:"types"`
	Projects []Entry `yaml:"projects"`
	Sites    []Entry `yaml:"sites"`
}

// New builds a registry from explicit entry lists.
func New(f File) (*Registry, error) {
	types, err := newEnum("types", f.Types)
	if err != nil {
		return nil, err
	}
	projects, err := newEnum("projects", f.Projects)
	if err != nil {
		return nil, err
	}
	sites, err := newEnum("sites", f.Sites)
	if err != nil {
		return nil, err
	}
	return &Registry{types: types, projects: projects, sites: sites}, nil
}

// DefaultFile returns the built-in taxonomy.
func DefaultFile() File {
	return File{
		Types: []Entry{
			{Key: "journal", Label: "Journal Article"},
			{Key: "proceeding", Label: "Conference Proceeding"},
			{Key: "thesis", Label: "Thesis"},
			{Key: "other", Label: "Other"},
			{Key: "internal", Label: "Internal Report"},
		},
		Projects: []Entry{
			{Key: "icecube", Label: "IceCube"},
			{Key: "ara", Label: "ARA"},
			{Key: "bigdata", Label: "BigData"},
			{Key: "cta", Label: "CTA"},
			{Key: "dm-ice", Label: "DM-Ice"},
			{Key: "hawc", Label: "HAWC"},
		},
		Sites: []Entry{
			{Key: "icecube", Label: "IceCube"},
			{Key: "ara", Label: "ARA"},
			{Key: "wipac", Label: "WIPAC"},
		},
	}
}

// Default returns the built-in registry.
func Default() *Registry {
	r, err := New(DefaultFile())
	if err != nil {
		panic(fmt.Sprintf("built-in taxonomy is invalid: %v", err))
	}
	return r
}

// Load reads a YAML taxonomy file. An empty path yields the built-in
// registry. Sections omitted from the file keep their built-in entries.
func Load(path string) (*Registry, error) {
	if path == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading taxonomy: %w", err)
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing taxonomy: %w", err)
	}

	defaults := DefaultFile()
	if len(f.Types) == 0 {
		f.Types = defaults.Types
	}
	if len(f.Projects) == 0 {
		f.Projects = defaults.Projects
	}
	if len(f.Sites) == 0 {
		f.Sites = defaults.Sites
	}

	r, err := New(f)
	if err != nil {
		return nil, fmt.Errorf("invalid taxonomy %s: %w", path, err)
	}
	return r, nil
}
