package catalog

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/wipacrepo/pubs/internal/metrics"
	"github.com/wipacrepo/pubs/internal/publication"
	"github.com/wipacrepo/pubs/internal/query"
	"github.com/wipacrepo/pubs/internal/store"
	"github.com/wipacrepo/pubs/internal/taxonomy"
)

func newTestService(t *testing.T, opts ...Option) *Service {
	t.Helper()
	st, err := store.OpenSQLite(filepath.Join(t.TempDir(), "pubs.db"))
	if err != nil {
		t.Fatalf("OpenSQLite() error = %v", err)
	}
	t.Cleanup(func() { st.Close(context.Background()) })
	return New(st, taxonomy.Default(), opts...)
}

func pub(title, date string, projects ...string) publication.Publication {
	return publication.Publication{
		Title:     title,
		Authors:   []string{"auth1"},
		Type:      "journal",
		Citation:  "citation",
		Date:      date,
		Downloads: []string{"https://arxiv.org/abs/1"},
		Projects:  projects,
	}
}

func insertAll(t *testing.T, s *Service, pubs ...publication.Publication) []string {
	t.Helper()
	var ids []string
	for _, p := range pubs {
		id, err := s.Insert(context.Background(), p)
		if err != nil {
			t.Fatalf("Insert(%q) error = %v", p.Title, err)
		}
		ids = append(ids, id)
	}
	return ids
}

func titles(pubs []publication.Publication) []string {
	out := make([]string, len(pubs))
	for i, p := range pubs {
		out[i] = p.Title
	}
	return out
}

func TestFetch_StartDate(t *testing.T) {
	s := newTestService(t)
	insertAll(t, s,
		pub("jan", "2020-01-02", "icecube"),
		pub("feb", "2020-02-03", "icecube"),
		pub("mar", "2020-03-04", "icecube"),
	)

	got, err := s.Fetch(context.Background(), query.Criteria{StartDate: "2020-02-02"}, FetchOptions{})
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if want := []string{"mar", "feb"}; !slices.Equal(titles(got), want) {
		t.Errorf("Fetch() = %v, want %v", titles(got), want)
	}
}

func TestFetch_ProjectsIntersectTypesUnion(t *testing.T) {
	s := newTestService(t)
	thesis := pub("thesis", "2020-01-04", "hawc")
	thesis.Type = "thesis"
	proceeding := pub("proceeding", "2020-01-05", "icecube")
	proceeding.Type = "proceeding"
	insertAll(t, s,
		pub("both", "2020-01-01", "icecube", "hawc"),
		pub("icecube", "2020-01-02", "icecube"),
		pub("hawc", "2020-01-03", "hawc"),
		thesis,
		proceeding,
	)
	ctx := context.Background()

	got, err := s.Fetch(ctx, query.Criteria{Projects: []string{"hawc", "icecube"}}, FetchOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if want := []string{"both"}; !slices.Equal(titles(got), want) {
		t.Errorf("projects intersection = %v, want %v", titles(got), want)
	}

	got, err = s.Fetch(ctx, query.Criteria{Types: []string{"journal", "thesis"}}, FetchOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if want := []string{"thesis", "hawc", "icecube", "both"}; !slices.Equal(titles(got), want) {
		t.Errorf("types union = %v, want %v", titles(got), want)
	}
}

func TestFetch_Pagination(t *testing.T) {
	s := newTestService(t)
	for i := 1; i <= 7; i++ {
		insertAll(t, s, pub(fmt.Sprintf("p%d", i), fmt.Sprintf("2020-01-%02d", i), "icecube"))
	}
	ctx := context.Background()

	all, err := s.Fetch(ctx, query.Criteria{}, FetchOptions{})
	if err != nil {
		t.Fatal(err)
	}

	var paged []string
	for page := 0; ; page++ {
		got, err := s.Fetch(ctx, query.Criteria{}, FetchOptions{Page: page, PageSize: 2})
		if err != nil {
			t.Fatal(err)
		}
		if len(got) == 0 {
			break
		}
		if len(got) > 2 {
			t.Fatalf("page %d has %d records", page, len(got))
		}
		paged = append(paged, titles(got)...)
	}

	if !slices.Equal(paged, titles(all)) {
		t.Errorf("pages = %v, want partition of %v", paged, titles(all))
	}
	if want := []string{"p7", "p6", "p5", "p4", "p3", "p2", "p1"}; !slices.Equal(titles(all), want) {
		t.Errorf("Fetch() = %v, want %v", titles(all), want)
	}

	got, _ := s.Fetch(ctx, query.Criteria{}, FetchOptions{Page: -3, PageSize: 2})
	if want := []string{"p7", "p6"}; !slices.Equal(titles(got), want) {
		t.Errorf("negative page = %v, want first page", titles(got))
	}
}

func TestFetch_IDsAndTagOrder(t *testing.T) {
	s := newTestService(t)
	p := pub("tags", "2020-01-01", "icecube", "hawc", "ara")
	p.Sites = []string{"wipac", "icecube"}
	ids := insertAll(t, s, p)
	ctx := context.Background()

	got, err := s.Fetch(ctx, query.Criteria{}, FetchOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if got[0].ID != "" {
		t.Errorf("ID = %q, want omitted", got[0].ID)
	}
	if !slices.Equal(got[0].Projects, []string{"ara", "hawc", "icecube"}) {
		t.Errorf("Projects = %v, want sorted", got[0].Projects)
	}
	if !slices.Equal(got[0].Sites, []string{"icecube", "wipac"}) {
		t.Errorf("Sites = %v, want sorted", got[0].Sites)
	}

	got, _ = s.Fetch(ctx, query.Criteria{}, FetchOptions{IncludeID: true})
	if got[0].ID != ids[0] {
		t.Errorf("ID = %q, want %q", got[0].ID, ids[0])
	}
}

func TestFetch_Cancelled(t *testing.T) {
	s := newTestService(t)
	insertAll(t, s, pub("a", "2020-01-01"), pub("b", "2020-01-02"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	got, err := s.Fetch(ctx, query.Criteria{}, FetchOptions{})
	if !errors.Is(err, store.ErrCancelled) || !errors.Is(err, context.Canceled) {
		t.Errorf("Fetch(cancelled) error = %v, want cancellation", err)
	}
	if got != nil {
		t.Errorf("Fetch(cancelled) = %v, want no partial results", got)
	}
}

func TestList(t *testing.T) {
	s := newTestService(t)
	insertAll(t, s, pub("a", "2020-01-01", "icecube"), pub("b", "2020-01-02", "icecube"), pub("c", "2020-01-03", "hawc"))

	got, err := s.List(context.Background(), query.Criteria{Projects: []string{"icecube"}}, FetchOptions{PageSize: 1})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if got.Total != 2 {
		t.Errorf("Total = %d, want 2", got.Total)
	}
	if want := []string{"b"}; !slices.Equal(titles(got.Publications), want) {
		t.Errorf("Publications = %v, want %v", titles(got.Publications), want)
	}
	if got.Criteria.Sites == nil || got.Criteria.Types == nil {
		t.Errorf("Criteria echo = %+v, want empty lists", got.Criteria)
	}
}

func TestInsert_Validation(t *testing.T) {
	m := metrics.New()
	s := newTestService(t, WithMetrics(m))

	bad := pub("bad", "2020-01-01", "pingu")
	_, err := s.Insert(context.Background(), bad)
	var verr *publication.ValidationError
	if !errors.As(err, &verr) || verr.Field != publication.FieldProjects {
		t.Fatalf("Insert() error = %v, want projects ValidationError", err)
	}
	if n, _ := s.Count(context.Background(), query.Criteria{}); n != 0 {
		t.Errorf("Count() = %d after rejected insert, want 0", n)
	}
	if got := testutil.ToFloat64(m.ValidationFailures.WithLabelValues(publication.FieldProjects)); got != 1 {
		t.Errorf("validation failures = %v, want 1", got)
	}
}

func TestUpdateGetDelete(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	ids := insertAll(t, s, pub("original", "2020-01-01", "icecube"))

	citation := "Phys. Rev. D 99"
	if err := s.Update(ctx, ids[0], publication.Patch{Citation: &citation}); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	got, err := s.Get(ctx, ids[0])
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Citation != citation || got.Title != "original" {
		t.Errorf("after Update() = %+v", got)
	}

	badType := "book"
	var verr *publication.ValidationError
	if err := s.Update(ctx, ids[0], publication.Patch{Type: &badType}); !errors.As(err, &verr) {
		t.Errorf("Update(bad type) error = %v, want ValidationError", err)
	}

	if err := s.Delete(ctx, ids[0]); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := s.Get(ctx, ids[0]); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Get(deleted) error = %v, want ErrNotFound", err)
	}
	if err := s.Update(ctx, ids[0], publication.Patch{Citation: &citation}); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Update(deleted) error = %v, want ErrNotFound", err)
	}
	if err := s.Delete(ctx, ids[0]); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Delete(deleted) error = %v, want ErrNotFound", err)
	}
}

func TestAuthors(t *testing.T) {
	s := newTestService(t)
	a := pub("a", "2020-01-01")
	a.Authors = []string{"Halzen, F.", "Karle, A."}
	b := pub("b", "2020-01-02")
	b.Authors = []string{"Karle, A."}
	insertAll(t, s, a, b)
	ctx := context.Background()

	got, err := s.DistinctAuthors(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if want := []string{"Halzen, F.", "Karle, A."}; !slices.Equal(got, want) {
		t.Errorf("DistinctAuthors() = %v, want %v", got, want)
	}

	got, err = s.SuggestAuthors(ctx, "kar", 10)
	if err != nil {
		t.Fatal(err)
	}
	if want := []string{"Karle, A."}; !slices.Equal(got, want) {
		t.Errorf("SuggestAuthors() = %v, want %v", got, want)
	}
}

// brokenCursor yields one row that cannot be decoded.
type brokenCursor struct{ done bool }

func (c *brokenCursor) Next(context.Context) bool {
	if c.done {
		return false
	}
	c.done = true
	return true
}
func (c *brokenCursor) Decode(*publication.Publication) error { return errors.New("corrupt row") }
func (c *brokenCursor) Err() error                            { return nil }
func (c *brokenCursor) Close(context.Context) error           { return nil }

type brokenStore struct{ store.Store }

func (brokenStore) Find(context.Context, store.Filter) (store.Cursor, error) {
	return &brokenCursor{}, nil
}

func TestFetch_DecodeErrorIsWrapped(t *testing.T) {
	s := New(brokenStore{}, taxonomy.Default())
	got, err := s.Fetch(context.Background(), query.Criteria{}, FetchOptions{})
	if err == nil {
		t.Fatalf("Fetch() = %v, want error", got)
	}
	if got != nil {
		t.Errorf("Fetch() returned records alongside error: %v", got)
	}
	if want := "fetching publications: corrupt row"; err.Error() != want {
		t.Errorf("Fetch() error = %q, want %q", err, want)
	}
}
