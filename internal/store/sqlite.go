package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"go.mongodb.org/mongo-driver/bson/primitive"
	_ "modernc.org/sqlite"

	"github.com/wipacrepo/pubs/internal/publication"
)

// selectPublicationFields is the column list every publication query reads.
const selectPublicationFields = `id, title, authors_json, type, citation, date, abstract,
	downloads_json, projects_json, sites_json`

// SQLite is a Store backed by an embedded SQLite database. Identifiers are
// ObjectID hex strings so they look the same as MongoDB identifiers.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens or creates a SQLite database at path.
func OpenSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite doesn't support concurrent writes

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

func createSchema(db *sql.DB) error {
	schema := `
		CREATE TABLE IF NOT EXISTS publications (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			title TEXT NOT NULL,
			authors_json TEXT NOT NULL,
			type TEXT NOT NULL,
			citation TEXT NOT NULL,
			date TEXT NOT NULL,
			abstract TEXT,
			downloads_json TEXT NOT NULL,
			projects_json TEXT NOT NULL,
			sites_json TEXT NOT NULL
		);

		-- Natural key lookups during import
		CREATE INDEX IF NOT EXISTS natural_key ON publications(title, date);

		-- Free text search over title, authors and citation
		CREATE VIRTUAL TABLE IF NOT EXISTS text_index USING fts5(
			id UNINDEXED,
			title,
			authors,
			citation,
			tokenize = 'porter unicode61'
		);
	`
	_, err := db.Exec(schema)
	return err
}

// row holds the JSON-encoded columns of one publication.
type row struct {
	title, authors, typ, citation, date, abstract string
	downloads, projects, sites                    string
}

func encodeRow(p *publication.Publication) (row, error) {
	q := p.WithDefaults()
	r := row{title: q.Title, typ: q.Type, citation: q.Citation, date: q.Date, abstract: q.Abstract}
	for _, col := range []struct {
		dst    *string
		values []string
	}{
		{&r.authors, q.Authors},
		{&r.downloads, q.Downloads},
		{&r.projects, q.Projects},
		{&r.sites, q.Sites},
	} {
		b, err := json.Marshal(col.values)
		if err != nil {
			return row{}, fmt.Errorf("encoding publication: %w", err)
		}
		*col.dst = string(b)
	}
	return r, nil
}

func authorsJSON(authors []string) (string, error) {
	if authors == nil {
		authors = []string{}
	}
	b, err := json.Marshal(authors)
	if err != nil {
		return "", fmt.Errorf("encoding authors: %w", err)
	}
	return string(b), nil
}

// scanner interface for sql.Row and sql.Rows
type scanner interface {
	Scan(dest ...any) error
}

func scanPublication(s scanner) (*publication.Publication, error) {
	var p publication.Publication
	var authors, downloads, projects, sites string
	var abstract sql.NullString

	if err := s.Scan(&p.ID, &p.Title, &authors, &p.Type, &p.Citation, &p.Date, &abstract,
		&downloads, &projects, &sites); err != nil {
		return nil, err
	}
	p.Abstract = abstract.String

	for _, col := range []struct {
		name string
		src  string
		dst  *[]string
	}{
		{"authors", authors, &p.Authors},
		{"downloads", downloads, &p.Downloads},
		{"projects", projects, &p.Projects},
		{"sites", sites, &p.Sites},
	} {
		if err := json.Unmarshal([]byte(col.src), col.dst); err != nil {
			return nil, fmt.Errorf("parsing %s JSON for %s: %w", col.name, p.ID, err)
		}
	}
	p = p.WithDefaults()
	return &p, nil
}

func (s *SQLite) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func insertRow(ctx context.Context, tx *sql.Tx, id string, r row) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO publications (
			id, title, authors_json, type, citation, date, abstract,
			downloads_json, projects_json, sites_json
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, r.title, r.authors, r.typ, r.citation, r.date, nullableString(r.abstract),
		r.downloads, r.projects, r.sites)
	if err != nil {
		return err
	}
	return indexText(ctx, tx, id, r)
}

func replaceRow(ctx context.Context, tx *sql.Tx, id string, r row) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE publications SET
			title = ?, authors_json = ?, type = ?, citation = ?, date = ?, abstract = ?,
			downloads_json = ?, projects_json = ?, sites_json = ?
		WHERE id = ?`,
		r.title, r.authors, r.typ, r.citation, r.date, nullableString(r.abstract),
		r.downloads, r.projects, r.sites, id)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM text_index WHERE id = ?`, id); err != nil {
		return err
	}
	return indexText(ctx, tx, id, r)
}

// indexText adds the searchable text of a row to the FTS table.
func indexText(ctx context.Context, tx *sql.Tx, id string, r row) error {
	var authors []string
	if err := json.Unmarshal([]byte(r.authors), &authors); err != nil {
		return err
	}
	_, err := tx.ExecContext(ctx, `INSERT INTO text_index (id, title, authors, citation) VALUES (?, ?, ?, ?)`,
		id, r.title, strings.Join(authors, ", "), r.citation)
	return err
}

// Insert stores p under a fresh identifier.
func (s *SQLite) Insert(ctx context.Context, p *publication.Publication) (string, error) {
	r, err := encodeRow(p)
	if err != nil {
		return "", err
	}
	id := primitive.NewObjectID().Hex()
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		return insertRow(ctx, tx, id, r)
	})
	if err != nil {
		return "", classifySQLite(ctx, "inserting publication", err)
	}
	return id, nil
}

// Upsert replaces the row sharing p's natural key in place, keeping its
// identifier and position, or inserts p.
func (s *SQLite) Upsert(ctx context.Context, p *publication.Publication) (bool, error) {
	r, err := encodeRow(p)
	if err != nil {
		return false, err
	}

	var inserted bool
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		var id string
		err := tx.QueryRowContext(ctx,
			`SELECT id FROM publications WHERE title = ? AND authors_json = ? AND date = ? ORDER BY seq LIMIT 1`,
			r.title, r.authors, r.date).Scan(&id)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			inserted = true
			return insertRow(ctx, tx, primitive.NewObjectID().Hex(), r)
		case err != nil:
			return err
		default:
			return replaceRow(ctx, tx, id, r)
		}
	})
	if err != nil {
		return false, classifySQLite(ctx, "upserting publication", err)
	}
	return inserted, nil
}

// Exists reports whether a row with key is stored.
func (s *SQLite) Exists(ctx context.Context, key publication.NaturalKey) (bool, error) {
	authors, err := authorsJSON(key.Authors)
	if err != nil {
		return false, err
	}
	var n int
	err = s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM publications WHERE title = ? AND authors_json = ? AND date = ?`,
		key.Title, authors, key.Date).Scan(&n)
	if err != nil {
		return false, classifySQLite(ctx, "looking up publication", err)
	}
	return n > 0, nil
}

// Update applies the supplied patch fields to the row with id.
func (s *SQLite) Update(ctx context.Context, id string, patch publication.Patch) error {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		current, err := scanPublication(tx.QueryRowContext(ctx,
			`SELECT `+selectPublicationFields+` FROM publications WHERE id = ?`, id))
		if err != nil {
			return err
		}
		if patch.IsEmpty() {
			return nil
		}
		patch.Apply(current)
		r, err := encodeRow(current)
		if err != nil {
			return err
		}
		return replaceRow(ctx, tx, id, r)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return classifySQLite(ctx, "updating publication", err)
	}
	return nil
}

// Delete removes the row with id.
func (s *SQLite) Delete(ctx context.Context, id string) error {
	var affected int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM publications WHERE id = ?`, id)
		if err != nil {
			return err
		}
		if affected, err = res.RowsAffected(); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `DELETE FROM text_index WHERE id = ?`, id)
		return err
	})
	if err != nil {
		return classifySQLite(ctx, "deleting publication", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// Get returns the row with id.
func (s *SQLite) Get(ctx context.Context, id string) (*publication.Publication, error) {
	p, err := scanPublication(s.db.QueryRowContext(ctx,
		`SELECT `+selectPublicationFields+` FROM publications WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, classifySQLite(ctx, "getting publication", err)
	}
	return p, nil
}

// Find streams matching rows newest first, ties in insertion order.
func (s *SQLite) Find(ctx context.Context, f Filter) (Cursor, error) {
	where, args := sqliteWhere(f)
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+selectPublicationFields+` FROM publications`+where+` ORDER BY date DESC, seq ASC`,
		args...)
	if err != nil {
		return nil, classifySQLite(ctx, "finding publications", err)
	}
	return &sqliteCursor{rows: rows}, nil
}

// Count returns the number of rows matching f.
func (s *SQLite) Count(ctx context.Context, f Filter) (int64, error) {
	where, args := sqliteWhere(f)
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM publications`+where, args...).Scan(&n); err != nil {
		return 0, classifySQLite(ctx, "counting publications", err)
	}
	return n, nil
}

// DistinctAuthors returns every author name across all rows.
func (s *SQLite) DistinctAuthors(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT j.value FROM publications, json_each(publications.authors_json) AS j`)
	if err != nil {
		return nil, classifySQLite(ctx, "listing authors", err)
	}
	defer rows.Close()

	authors := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, classifySQLite(ctx, "listing authors", err)
		}
		authors = append(authors, name)
	}
	if err := rows.Err(); err != nil {
		return nil, classifySQLite(ctx, "listing authors", err)
	}
	return authors, nil
}

// EnsureIndexes creates the date and projects indexes if absent. The text
// index is part of the schema and always exists.
func (s *SQLite) EnsureIndexes(ctx context.Context) ([]string, error) {
	statements := []struct {
		name string
		sql  string
	}{
		{ProjectsIndex, `CREATE INDEX ` + ProjectsIndex + ` ON publications(projects_json)`},
		{DateIndex, `CREATE INDEX ` + DateIndex + ` ON publications(date)`},
	}

	var created []string
	for _, stmt := range statements {
		var n int
		err := s.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM sqlite_master WHERE name = ?`, stmt.name).Scan(&n)
		if err != nil {
			return created, classifySQLite(ctx, "listing indexes", err)
		}
		if n > 0 {
			continue
		}
		if _, err := s.db.ExecContext(ctx, stmt.sql); err != nil {
			return created, classifySQLite(ctx, "creating "+stmt.name, err)
		}
		created = append(created, stmt.name)
	}
	return created, nil
}

// Close closes the database connection.
func (s *SQLite) Close(context.Context) error {
	return s.db.Close()
}

type sqliteCursor struct {
	rows *sql.Rows
	ctx  context.Context
	err  error
}

func (c *sqliteCursor) Next(ctx context.Context) bool {
	c.ctx = ctx
	if err := ctx.Err(); err != nil {
		c.err = cancelled(err)
		return false
	}
	return c.rows.Next()
}

func (c *sqliteCursor) Decode(p *publication.Publication) error {
	got, err := scanPublication(c.rows)
	if err != nil {
		return fmt.Errorf("decoding publication: %w", err)
	}
	*p = *got
	return nil
}

func (c *sqliteCursor) Err() error {
	if c.err != nil {
		return c.err
	}
	if err := c.rows.Err(); err != nil {
		ctx := c.ctx
		if ctx == nil {
			ctx = context.Background()
		}
		return classifySQLite(ctx, "reading publications", err)
	}
	return nil
}

func (c *sqliteCursor) Close(context.Context) error {
	return c.rows.Close()
}

// sqliteWhere renders f as a WHERE clause with positional arguments.
func sqliteWhere(f Filter) (string, []any) {
	var conds []string
	var args []any

	containsAll := func(column string, values []string) {
		for _, v := range values {
			conds = append(conds, `EXISTS (SELECT 1 FROM json_each(publications.`+column+`) WHERE value = ?)`)
			args = append(args, v)
		}
	}

	containsAll("projects_json", f.AllProjects)
	containsAll("sites_json", f.AllSites)
	if f.DateFrom != "" {
		conds = append(conds, "date >= ?")
		args = append(args, f.DateFrom)
	}
	if f.DateTo != "" {
		conds = append(conds, "date <= ?")
		args = append(args, f.DateTo)
	}
	if len(f.AnyType) > 0 {
		marks := strings.TrimSuffix(strings.Repeat("?, ", len(f.AnyType)), ", ")
		conds = append(conds, "type IN ("+marks+")")
		for _, t := range f.AnyType {
			args = append(args, t)
		}
	}
	if f.Text != "" {
		if q, ok := ftsQuery(f.Text); ok {
			conds = append(conds, "id IN (SELECT id FROM text_index WHERE text_index MATCH ?)")
			args = append(args, q)
		} else {
			conds = append(conds, "0")
		}
	}
	containsAll("authors_json", f.AllAuthors)

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// ftsQuery translates a free text search into an FTS5 query: bare terms
// match any, quoted phrases must all match, and -term excludes. It
// reports false when nothing positive remains to match.
func ftsQuery(search string) (string, bool) {
	terms, phrases, negated := parseTextSearch(search)

	var q string
	if len(phrases) > 0 {
		quoted := make([]string, len(phrases))
		for i, p := range phrases {
			quoted[i] = quoteFTS(p)
		}
		q = strings.Join(quoted, " AND ")
	} else if len(terms) > 0 {
		quoted := make([]string, len(terms))
		for i, t := range terms {
			quoted[i] = quoteFTS(t)
		}
		q = strings.Join(quoted, " OR ")
	} else {
		return "", false
	}

	for _, n := range negated {
		q = "(" + q + ") NOT " + quoteFTS(n)
	}
	return q, true
}

func parseTextSearch(s string) (terms, phrases, negated []string) {
	for {
		s = strings.TrimLeftFunc(s, unicode.IsSpace)
		if s == "" {
			return terms, phrases, negated
		}

		if s[0] == '"' {
			var phrase string
			if end := strings.IndexByte(s[1:], '"'); end >= 0 {
				phrase, s = s[1:1+end], s[2+end:]
			} else {
				phrase, s = s[1:], ""
			}
			if hasWordChar(phrase) {
				phrases = append(phrases, phrase)
			}
			continue
		}

		word := s
		if end := strings.IndexFunc(s, unicode.IsSpace); end >= 0 {
			word, s = s[:end], s[end:]
		} else {
			s = ""
		}
		if strings.HasPrefix(word, "-") {
			if w := word[1:]; hasWordChar(w) {
				negated = append(negated, w)
			}
			continue
		}
		if hasWordChar(word) {
			terms = append(terms, word)
		}
	}
}

func hasWordChar(s string) bool {
	return strings.IndexFunc(s, func(r rune) bool {
		return unicode.IsLetter(r) || unicode.IsDigit(r)
	}) >= 0
}

func quoteFTS(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// nullableString converts a string to sql.NullString, treating empty as NULL.
func nullableString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func classifySQLite(ctx context.Context, op string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return cancelled(ctxErr)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return cancelled(err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
