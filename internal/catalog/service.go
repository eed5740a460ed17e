// Package catalog is the retrieval and record-management façade over the
// publication store.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/wipacrepo/pubs/internal/author"
	"github.com/wipacrepo/pubs/internal/metrics"
	"github.com/wipacrepo/pubs/internal/publication"
	"github.com/wipacrepo/pubs/internal/query"
	"github.com/wipacrepo/pubs/internal/store"
	"github.com/wipacrepo/pubs/internal/taxonomy"
)

// Service executes filtered retrievals and single-record writes.
type Service struct {
	store     store.Store
	reg       *taxonomy.Registry
	validator *publication.Validator
	builder   *query.Builder
	authors   *author.Index
	log       *zap.Logger
	metrics   *metrics.Metrics
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) { s.log = l }
}

// WithMetrics sets the collectors updated by the service.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// New returns a service over st validating against reg.
func New(st store.Store, reg *taxonomy.Registry, opts ...Option) *Service {
	s := &Service{
		store:     st,
		reg:       reg,
		validator: publication.NewValidator(reg),
		builder:   query.NewBuilder(reg),
		authors:   author.NewIndex(st),
		log:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Registry returns the taxonomy the service validates against.
func (s *Service) Registry() *taxonomy.Registry { return s.reg }

// Validator returns the record validator.
func (s *Service) Validator() *publication.Validator { return s.validator }

// Store returns the underlying store.
func (s *Service) Store() store.Store { return s.store }

// FetchOptions controls identifier exposure and pagination. Pagination
// applies only when PageSize is positive; Page is zero-based.
type FetchOptions struct {
	IncludeID bool
	Page      int
	PageSize  int
}

// Fetch returns the records matching c, newest first, with projects and
// sites sorted. On any error no records are returned.
func (s *Service) Fetch(ctx context.Context, c query.Criteria, opts FetchOptions) ([]publication.Publication, error) {
	defer s.metrics.ObserveFetch(time.Now())

	f, _ := s.builder.Build(c)
	cur, err := s.store.Find(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("fetching publications: %w", err)
	}
	defer cur.Close(context.WithoutCancel(ctx))

	skip, limit := 0, 0
	if opts.PageSize > 0 {
		limit = opts.PageSize
		skip = max(opts.Page, 0) * opts.PageSize
	}

	pubs := []publication.Publication{}
	for cur.Next(ctx) {
		if skip > 0 {
			skip--
			continue
		}

		var p publication.Publication
		if err := cur.Decode(&p); err != nil {
			return nil, fmt.Errorf("fetching publications: %w", err)
		}
		if !opts.IncludeID {
			p.ID = ""
		}
		p.SortTags()
		pubs = append(pubs, p)

		if limit > 0 && len(pubs) == limit {
			break
		}
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("fetching publications: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("fetching publications: %w: %w", store.ErrCancelled, err)
	}
	return pubs, nil
}

// Count returns the number of records matching c.
func (s *Service) Count(ctx context.Context, c query.Criteria) (int64, error) {
	f, _ := s.builder.Build(c)
	n, err := s.store.Count(ctx, f)
	if err != nil {
		return 0, fmt.Errorf("counting publications: %w", err)
	}
	return n, nil
}

// Listing is one page of results with the criteria echo and total count.
type Listing struct {
	Publications []publication.Publication `json:"publications"`
	Criteria     query.Criteria            `json:"criteria"`
	Total        int64                     `json:"total"`
}

// List fetches a page and the total count for c.
func (s *Service) List(ctx context.Context, c query.Criteria, opts FetchOptions) (*Listing, error) {
	pubs, err := s.Fetch(ctx, c, opts)
	if err != nil {
		return nil, err
	}
	total, err := s.Count(ctx, c)
	if err != nil {
		return nil, err
	}
	_, echo := s.builder.Build(c)
	return &Listing{Publications: pubs, Criteria: echo, Total: total}, nil
}

// Options returns the filter form entries marked by c.
func (s *Service) Options(c query.Criteria) query.FormOptions {
	return s.builder.Options(c)
}

// Get returns the record with id, identifier included.
func (s *Service) Get(ctx context.Context, id string) (*publication.Publication, error) {
	p, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	p.SortTags()
	return p, nil
}

// Insert validates p and stores it, returning the assigned identifier.
func (s *Service) Insert(ctx context.Context, p publication.Publication) (string, error) {
	if err := s.validator.Validate(&p); err != nil {
		s.rejected(err, p.Title)
		return "", err
	}
	p = p.WithDefaults()
	p.ID = ""

	id, err := s.store.Insert(ctx, &p)
	if err != nil {
		s.log.Error("inserting publication failed", zap.String("title", p.Title), zap.Error(err))
		return "", err
	}
	s.log.Info("publication inserted", zap.String("id", id))
	return id, nil
}

// Update validates and applies only the fields supplied in patch.
func (s *Service) Update(ctx context.Context, id string, patch publication.Patch) error {
	if err := s.validator.ValidatePatch(patch); err != nil {
		s.rejected(err, "")
		return err
	}
	if err := s.store.Update(ctx, id, patch); err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			s.log.Error("updating publication failed", zap.String("id", id), zap.Error(err))
		}
		return err
	}
	s.log.Info("publication updated", zap.String("id", id), zap.Strings("fields", patch.Fields()))
	return nil
}

// Delete removes the record with id.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	s.log.Info("publication deleted", zap.String("id", id))
	return nil
}

// DistinctAuthors returns every author across all records, sorted.
func (s *Service) DistinctAuthors(ctx context.Context) ([]string, error) {
	return s.authors.Distinct(ctx)
}

// SuggestAuthors returns up to limit authors matching input.
func (s *Service) SuggestAuthors(ctx context.Context, input string, limit int) ([]string, error) {
	return s.authors.Suggest(ctx, input, limit)
}

// EnsureIndexes creates any missing store indexes.
func (s *Service) EnsureIndexes(ctx context.Context) ([]string, error) {
	created, err := s.store.EnsureIndexes(ctx)
	for _, name := range created {
		s.log.Info("index created", zap.String("index", name))
	}
	if err != nil {
		return created, fmt.Errorf("ensuring indexes: %w", err)
	}
	return created, nil
}

func (s *Service) rejected(err error, title string) {
	var verr *publication.ValidationError
	if errors.As(err, &verr) {
		s.metrics.ValidationFailed(verr.Field)
		s.log.Warn("publication rejected",
			zap.String("field", verr.Field),
			zap.String("title", title),
			zap.String("reason", verr.Reason))
	}
}
