package main

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/wipacrepo/pubs/internal/importer"
	"github.com/wipacrepo/pubs/internal/publication"
	"github.com/wipacrepo/pubs/internal/store"
	"github.com/wipacrepo/pubs/internal/taxonomy"
)

const sampleBatch = `{"publications":[{"title":"foo","authors":["bar"],"type":"journal",` +
	`"citation":"cite","date":"2020-11-03","downloads":[],"projects":["icecube"],"sites":[]}]}`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestReadSourcesFile(t *testing.T) {
	path := writeFile(t, t.TempDir(), "feeds.txt", `
# nightly feeds
https://example.org/pubs.json

  local.csv  
`)
	got, err := readSourcesFile(path)
	if err != nil {
		t.Fatalf("readSourcesFile() error = %v", err)
	}
	if want := []string{"https://example.org/pubs.json", "local.csv"}; !slices.Equal(got, want) {
		t.Errorf("readSourcesFile() = %q, want %q", got, want)
	}

	if _, err := readSourcesFile(filepath.Join(t.TempDir(), "missing.txt")); err == nil {
		t.Error("readSourcesFile(missing) succeeded, want error")
	}
}

func TestImportSources(t *testing.T) {
	dir := t.TempDir()
	st, err := store.OpenSQLite(filepath.Join(dir, "pubs.db"))
	if err != nil {
		t.Fatalf("OpenSQLite() error = %v", err)
	}
	defer st.Close(context.Background())

	im := importer.New(st, publication.NewValidator(taxonomy.Default()))
	src := importer.NewSource(strings.NewReader(""))
	good := writeFile(t, dir, "good.json", sampleBatch)
	bad := writeFile(t, dir, "bad.json", `{"publications":[{"title":"x"}]}`)
	ctx := context.Background()

	plan, err := importSources(ctx, im, src, []string{good}, "", true)
	if err != nil {
		t.Fatalf("dry run error = %v", err)
	}
	if plan[0].Plan == nil || plan[0].Plan.WouldInsert != 1 || plan[0].Result != nil {
		t.Errorf("dry run = %+v", plan[0])
	}
	if n, _ := st.Count(ctx, store.Filter{}); n != 0 {
		t.Fatalf("dry run wrote %d records", n)
	}

	results, err := importSources(ctx, im, src, []string{good, good}, "", false)
	if err != nil {
		t.Fatalf("importSources() error = %v", err)
	}
	if results[0].Result.Inserted != 1 || results[1].Result.Replaced != 1 {
		t.Errorf("results = %+v, %+v", results[0].Result, results[1].Result)
	}

	results, err = importSources(ctx, im, src, []string{good, bad, good}, "", false)
	if err == nil {
		t.Fatal("importSources() with invalid batch succeeded, want error")
	}
	if len(results) != 2 || results[1].Source != bad {
		t.Errorf("results = %+v, want to stop at %s", results, bad)
	}
	if exitCodeFor(err) != ExitDataError {
		t.Errorf("exitCodeFor(%v) = %d, want %d", err, exitCodeFor(err), ExitDataError)
	}
}
