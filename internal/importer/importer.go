// Package importer bulk-imports publication records from CSV or JSON
// payloads, merging by natural key.
package importer

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/wipacrepo/pubs/internal/metrics"
	"github.com/wipacrepo/pubs/internal/publication"
)

// maxTitleLen bounds record titles quoted in errors.
const maxTitleLen = 100

// ImportError aborts a whole batch: the payload could not be read, or a
// record failed validation.
type ImportError struct {
	Reason string
	Record int    // 1-based position of the offending record, 0 for payload errors
	Title  string // offending record's title, truncated
	Err    error
}

func (e *ImportError) Error() string {
	switch {
	case e.Record > 0 && e.Title != "":
		return fmt.Sprintf("import failed: record %d %q: %s", e.Record, e.Title, e.Reason)
	case e.Record > 0:
		return fmt.Sprintf("import failed: record %d: %s", e.Record, e.Reason)
	case e.Err != nil:
		return fmt.Sprintf("import failed: %s: %v", e.Reason, e.Err)
	default:
		return "import failed: " + e.Reason
	}
}

func (e *ImportError) Unwrap() error { return e.Err }

// Store is the subset of the record store the importer writes through.
type Store interface {
	Upsert(ctx context.Context, p *publication.Publication) (inserted bool, err error)
	Exists(ctx context.Context, key publication.NaturalKey) (bool, error)
}

// Importer parses, validates and upserts batches.
type Importer struct {
	store       Store
	validator   *publication.Validator
	log         *zap.Logger
	metrics     *metrics.Metrics
	concurrency int
	limiter     *rate.Limiter
}

// Option configures an Importer.
type Option func(*Importer)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(im *Importer) { im.log = l }
}

// WithMetrics sets the collectors updated per batch and record.
func WithMetrics(m *metrics.Metrics) Option {
	return func(im *Importer) { im.metrics = m }
}

// WithConcurrency sets the number of parallel upsert workers. Records
// sharing a natural key are always written in order by one worker.
func WithConcurrency(n int) Option {
	return func(im *Importer) {
		if n > 0 {
			im.concurrency = n
		}
	}
}

// WithWriteRate caps upserts per second. Zero means unlimited.
func WithWriteRate(perSecond float64) Option {
	return func(im *Importer) {
		if perSecond > 0 {
			im.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
		}
	}
}

// New returns an importer writing to st.
func New(st Store, v *publication.Validator, opts ...Option) *Importer {
	im := &Importer{
		store:       st,
		validator:   v,
		log:         zap.NewNop(),
		concurrency: 1,
	}
	for _, opt := range opts {
		opt(im)
	}
	return im
}

// Parse decodes the payload and validates every record. Nothing is
// written. The first invalid record fails the whole batch.
func (im *Importer) Parse(data []byte, encoding string) ([]publication.Publication, error) {
	text, err := decodeText(data, encoding)
	if err != nil {
		return nil, err
	}
	raws, err := parsePayload(text)
	if err != nil {
		return nil, err
	}

	pubs := make([]publication.Publication, 0, len(raws))
	for i, raw := range raws {
		p, shapeErrs := toPublication(raw)
		if err := im.check(&p, shapeErrs); err != nil {
			var verr *publication.ValidationError
			if errors.As(err, &verr) {
				im.metrics.ValidationFailed(verr.Field)
			}
			return nil, &ImportError{
				Reason: err.Error(),
				Record: i + 1,
				Title:  truncateTitle(p.Title),
				Err:    err,
			}
		}
		pubs = append(pubs, p)
	}
	return pubs, nil
}

// check reports the first failing field in validation order, whether the
// failure came from the field's shape or from its value.
func (im *Importer) check(p *publication.Publication, shapeErrs map[string]*publication.ValidationError) error {
	for _, field := range publication.FieldOrder {
		if verr, ok := shapeErrs[field]; ok {
			return verr
		}
		if err := im.validator.CheckField(p, field); err != nil {
			return err
		}
	}
	return nil
}

// Result summarizes a committed batch.
type Result struct {
	BatchID  string `json:"batch_id"`
	Total    int    `json:"total"`
	Inserted int    `json:"inserted"`
	Replaced int    `json:"replaced"`
}

// Import parses and validates the whole batch, then upserts every record
// by natural key. Writes are not transactional across records: when a
// write fails, the returned Result counts the records already committed.
func (im *Importer) Import(ctx context.Context, data []byte, encoding string) (*Result, error) {
	res := &Result{BatchID: uuid.NewString()}
	log := im.log.With(zap.String("batch_id", res.BatchID))

	pubs, err := im.Parse(data, encoding)
	if err != nil {
		im.metrics.BatchFinished(metrics.OutcomeInvalid)
		log.Warn("import rejected", zap.Error(err))
		return nil, err
	}
	res.Total = len(pubs)
	log.Info("import started", zap.Int("records", res.Total), zap.Int("workers", im.concurrency))

	var inserted, replaced atomic.Int64
	write := func(ctx context.Context, p *publication.Publication) error {
		if im.limiter != nil {
			if err := im.limiter.Wait(ctx); err != nil {
				return err
			}
		}
		wasInserted, err := im.store.Upsert(ctx, p)
		if err != nil {
			return fmt.Errorf("importing %q: %w", truncateTitle(p.Title), err)
		}
		if wasInserted {
			inserted.Add(1)
			im.metrics.RecordImported(metrics.ActionInserted)
		} else {
			replaced.Add(1)
			im.metrics.RecordImported(metrics.ActionReplaced)
		}
		return nil
	}

	if im.concurrency <= 1 {
		for i := range pubs {
			if err = write(ctx, &pubs[i]); err != nil {
				break
			}
		}
	} else {
		err = im.writeParallel(ctx, pubs, write)
	}

	res.Inserted = int(inserted.Load())
	res.Replaced = int(replaced.Load())
	if err != nil {
		im.metrics.BatchFinished(metrics.OutcomeFailed)
		log.Error("import failed",
			zap.Int("inserted", res.Inserted),
			zap.Int("replaced", res.Replaced),
			zap.Error(err))
		return res, err
	}

	im.metrics.BatchFinished(metrics.OutcomeOK)
	log.Info("import finished", zap.Int("inserted", res.Inserted), zap.Int("replaced", res.Replaced))
	return res, nil
}

// writeParallel groups records by natural key so each key's records are
// applied in batch order by a single worker.
func (im *Importer) writeParallel(ctx context.Context, pubs []publication.Publication,
	write func(context.Context, *publication.Publication) error) error {
	var order []string
	groups := make(map[string][]*publication.Publication)
	for i := range pubs {
		k := keyString(pubs[i].Key())
		if _, ok := groups[k]; !ok {
			order = append(order, k)
		}
		groups[k] = append(groups[k], &pubs[i])
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(im.concurrency)
	for _, k := range order {
		group := groups[k]
		g.Go(func() error {
			for _, p := range group {
				if err := write(gctx, p); err != nil {
					return err
				}
			}
			return nil
		})
	}
	return g.Wait()
}

// Plan actions.
const (
	ActionInsert  = "insert"
	ActionReplace = "replace"
)

// PlanDetail is the predicted action for one record.
type PlanDetail struct {
	Title  string `json:"title"`
	Date   string `json:"date"`
	Action string `json:"action"`
}

// Plan is a dry-run report.
type Plan struct {
	Total        int          `json:"total"`
	WouldInsert  int          `json:"would_insert"`
	WouldReplace int          `json:"would_replace"`
	Details      []PlanDetail `json:"details,omitempty"`
}

// Plan parses and validates the batch and reports what Import would do,
// without writing.
func (im *Importer) Plan(ctx context.Context, data []byte, encoding string) (*Plan, error) {
	pubs, err := im.Parse(data, encoding)
	if err != nil {
		return nil, err
	}

	plan := &Plan{Total: len(pubs)}
	seen := make(map[string]bool)
	for _, p := range pubs {
		k := keyString(p.Key())
		action := ActionInsert
		if seen[k] {
			action = ActionReplace
		} else {
			exists, err := im.store.Exists(ctx, p.Key())
			if err != nil {
				return nil, fmt.Errorf("planning %q: %w", truncateTitle(p.Title), err)
			}
			if exists {
				action = ActionReplace
			}
		}
		seen[k] = true

		if action == ActionInsert {
			plan.WouldInsert++
		} else {
			plan.WouldReplace++
		}
		plan.Details = append(plan.Details, PlanDetail{
			Title:  truncateTitle(p.Title),
			Date:   p.Date,
			Action: action,
		})
	}
	return plan, nil
}

// keyString renders a natural key as a map key.
func keyString(k publication.NaturalKey) string {
	return fmt.Sprintf("%q|%q|%q", k.Title, k.Authors, k.Date)
}

// truncateTitle shortens s to maxTitleLen characters.
func truncateTitle(s string) string {
	if utf8.RuneCountInString(s) <= maxTitleLen {
		return s
	}
	return string([]rune(s)[:maxTitleLen])
}
