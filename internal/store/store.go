// Package store persists publication records in a document collection and
// answers filtered queries against it.
package store

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/wipacrepo/pubs/internal/publication"
)

// Index names. Creation is skipped when an index of the same name exists.
const (
	ProjectsIndex = "projects_index"
	DateIndex     = "date_index"
	TextIndex     = "text_index"
)

// Text index weights.
const (
	TitleWeight    = 10
	AuthorsWeight  = 5
	CitationWeight = 1
)

var (
	// ErrNotFound is returned when an identifier matches no record.
	ErrNotFound = errors.New("publication not found")

	// ErrUnavailable marks transient infrastructure failures. Callers may
	// retry; the store never retries internally.
	ErrUnavailable = errors.New("publication store unavailable")

	// ErrCancelled is returned when the caller's context ends before the
	// store call completes. It is joined with the context error.
	ErrCancelled = errors.New("operation cancelled")
)

// Filter is a store-neutral query. All present conditions must hold.
// Empty lists and strings impose no condition.
type Filter struct {
	AllProjects []string // record contains every listed project
	AllSites    []string // record contains every listed site
	AllAuthors  []string // record contains every listed author
	AnyType     []string // record type is one of the list
	DateFrom    string   // inclusive, lexical
	DateTo      string   // inclusive, lexical
	Text        string   // free text, delegated to the text index
}

// IsEmpty reports whether f matches every record.
func (f Filter) IsEmpty() bool {
	return len(f.AllProjects) == 0 && len(f.AllSites) == 0 && len(f.AllAuthors) == 0 &&
		len(f.AnyType) == 0 && f.DateFrom == "" && f.DateTo == "" && f.Text == ""
}

// Cursor iterates query results sorted by date descending. Records with
// equal dates come back in insertion order.
type Cursor interface {
	Next(ctx context.Context) bool
	Decode(p *publication.Publication) error
	Err() error
	Close(ctx context.Context) error
}

// Store is the record store adapter. Every write targets exactly one
// document and is atomic for that document; there are no cross-document
// transactions.
type Store interface {
	// Insert stores p and returns the identifier assigned to it.
	Insert(ctx context.Context, p *publication.Publication) (string, error)

	// Upsert replaces the record matching p's natural key wholesale, or
	// inserts p if none matches. It reports whether an insert happened.
	Upsert(ctx context.Context, p *publication.Publication) (inserted bool, err error)

	// Exists reports whether a record with the natural key is stored.
	Exists(ctx context.Context, key publication.NaturalKey) (bool, error)

	// Update applies the supplied patch fields to the record with id.
	Update(ctx context.Context, id string, patch publication.Patch) error

	// Delete removes the record with id.
	Delete(ctx context.Context, id string) error

	// Get returns the record with id.
	Get(ctx context.Context, id string) (*publication.Publication, error)

	// Find streams records matching f, newest first.
	Find(ctx context.Context, f Filter) (Cursor, error)

	// Count returns the number of records matching f.
	Count(ctx context.Context, f Filter) (int64, error)

	// DistinctAuthors returns every author name across all records.
	DistinctAuthors(ctx context.Context) ([]string, error)

	// EnsureIndexes creates missing indexes and returns the names created.
	EnsureIndexes(ctx context.Context) ([]string, error)

	Close(ctx context.Context) error
}

// Open connects to the store addressed by rawURL. mongodb:// and
// mongodb+srv:// URLs select MongoDB with the database named by the last
// path segment; sqlite://<path> selects the embedded SQLite store.
func Open(ctx context.Context, rawURL string) (Store, error) {
	switch {
	case strings.HasPrefix(rawURL, "mongodb://"), strings.HasPrefix(rawURL, "mongodb+srv://"):
		dbName, err := MongoDatabaseName(rawURL)
		if err != nil {
			return nil, err
		}
		return OpenMongo(ctx, rawURL, dbName)
	case strings.HasPrefix(rawURL, "sqlite://"):
		return OpenSQLite(strings.TrimPrefix(rawURL, "sqlite://"))
	default:
		return nil, fmt.Errorf("unsupported store URL %q (want mongodb:// or sqlite://)", rawURL)
	}
}

// MongoDatabaseName extracts the database name from a MongoDB URL.
func MongoDatabaseName(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parsing store URL: %w", err)
	}
	name := strings.Trim(u.Path, "/")
	if name == "" || strings.Contains(name, "/") {
		return "", fmt.Errorf("store URL %q must name exactly one database", rawURL)
	}
	return name, nil
}

// cancelled wraps a context error so both ErrCancelled and the original
// context error match with errors.Is.
func cancelled(err error) error {
	return fmt.Errorf("%w: %w", ErrCancelled, err)
}

// unavailable wraps an infrastructure error.
func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
}

// IsCancelled reports whether err came from caller cancellation.
func IsCancelled(err error) bool {
	return errors.Is(err, ErrCancelled) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
